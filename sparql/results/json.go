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
	"encoding/json"
	"io"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/sparql"
)

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

func toJSONTerm(t rdf.Term) jsonTerm {
	switch t.Kind {
	case rdf.KindIRI:
		return jsonTerm{Type: "uri", Value: t.Value}
	case rdf.KindBlank:
		return jsonTerm{Type: "bnode", Value: t.Value}
	}
	return jsonTerm{Type: "literal", Value: t.Value, Lang: t.Lang, Datatype: t.Datatype}
}

func writeJSON(ctx context.Context, out io.Writer, res *sparql.Results) error {
	w := bufio.NewWriter(out)
	if res.Form == sparql.AskForm {
		b, _ := json.Marshal(res.Boolean)
		w.WriteString("{\n  \"head\": {},\n  \"boolean\": ")
		w.Write(b)
		w.WriteString("\n}\n")
		return w.Flush()
	}
	vars, err := json.Marshal(res.Vars)
	if err != nil {
		return err
	}
	w.WriteString("{\n  \"head\": { \"vars\": ")
	w.Write(vars)
	w.WriteString(" },\n  \"results\": {\n    \"bindings\": [")
	incomplete := false
	for i, sol := range res.Solutions {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		row := make(map[string]jsonTerm, len(sol))
		for name, t := range sol {
			row[name] = toJSONTerm(t)
		}
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if i > 0 {
			w.WriteString(",")
		}
		w.WriteString("\n      ")
		w.Write(b)
	}
	w.WriteString("\n    ]\n  }")
	if incomplete {
		w.WriteString(",\n  \"warning\": \"" + IncompleteMarker + "\"")
	}
	w.WriteString("\n}\n")
	if err := w.Flush(); err != nil {
		return err
	}
	if incomplete {
		return ErrIncomplete
	}
	return nil
}
