// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package results

import (
	"bufio"
	"context"
	"encoding/xml"
	"io"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/sparql"
)

const xmlNamespace = "http://www.w3.org/2005/sparql-results#"

func writeXML(ctx context.Context, out io.Writer, res *sparql.Results) error {
	w := bufio.NewWriter(out)
	w.WriteString("<?xml version=\"1.0\"?>\n<sparql xmlns=\"" + xmlNamespace + "\">\n  <head>\n")
	for _, v := range res.Vars {
		w.WriteString("    <variable name=\"")
		xml.EscapeText(w, []byte(v))
		w.WriteString("\"/>\n")
	}
	w.WriteString("  </head>\n")
	if res.Form == sparql.AskForm {
		if res.Boolean {
			w.WriteString("  <boolean>true</boolean>\n")
		} else {
			w.WriteString("  <boolean>false</boolean>\n")
		}
		w.WriteString("</sparql>\n")
		return w.Flush()
	}
	w.WriteString("  <results>\n")
	incomplete := false
	for _, sol := range res.Solutions {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		w.WriteString("    <result>\n")
		for _, v := range res.Vars {
			t, ok := sol[v]
			if !ok {
				continue
			}
			w.WriteString("      <binding name=\"")
			xml.EscapeText(w, []byte(v))
			w.WriteString("\">")
			writeXMLTerm(w, t)
			w.WriteString("</binding>\n")
		}
		w.WriteString("    </result>\n")
	}
	if incomplete {
		w.WriteString("    <!-- " + IncompleteMarker + " -->\n")
	}
	w.WriteString("  </results>\n</sparql>\n")
	if err := w.Flush(); err != nil {
		return err
	}
	if incomplete {
		return ErrIncomplete
	}
	return nil
}

func writeXMLTerm(w *bufio.Writer, t rdf.Term) {
	switch t.Kind {
	case rdf.KindIRI:
		w.WriteString("<uri>")
		xml.EscapeText(w, []byte(t.Value))
		w.WriteString("</uri>")
	case rdf.KindBlank:
		w.WriteString("<bnode>")
		xml.EscapeText(w, []byte(t.Value))
		w.WriteString("</bnode>")
	default:
		w.WriteString("<literal")
		switch {
		case t.Lang != "":
			w.WriteString(" xml:lang=\"")
			xml.EscapeText(w, []byte(t.Lang))
			w.WriteString("\"")
		case t.Datatype != "":
			w.WriteString(" datatype=\"")
			xml.EscapeText(w, []byte(t.Datatype))
			w.WriteString("\"")
		}
		w.WriteString(">")
		xml.EscapeText(w, []byte(t.Value))
		w.WriteString("</literal>")
	}
}
