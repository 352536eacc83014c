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
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/sparql"
)

// ASK results have no standard CSV or TSV form. They are written as a single
// column named askResult.
const askColumn = "_askResult"

func writeCSV(ctx context.Context, out io.Writer, res *sparql.Results) error {
	w := csv.NewWriter(out)
	w.UseCRLF = true
	if res.Form == sparql.AskForm {
		w.Write([]string{askColumn})
		w.Write([]string{strconv.FormatBool(res.Boolean)})
		w.Flush()
		return w.Error()
	}
	w.Write(res.Vars)
	incomplete := false
	record := make([]string, len(res.Vars))
	for _, sol := range res.Solutions {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		for i, v := range res.Vars {
			record[i] = csvValue(sol[v])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	if incomplete {
		w.Write([]string{"# " + IncompleteMarker})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if incomplete {
		return ErrIncomplete
	}
	return nil
}

// csvValue is the lossy CSV form of a term: IRIs and literals are written
// without their markup.
func csvValue(t rdf.Term) string {
	switch t.Kind {
	case rdf.KindNone:
		return ""
	case rdf.KindBlank:
		return "_:" + t.Value
	}
	return t.Value
}

func writeTSV(ctx context.Context, out io.Writer, res *sparql.Results) error {
	w := bufio.NewWriter(out)
	if res.Form == sparql.AskForm {
		w.WriteString("?" + askColumn + "\n")
		w.WriteString(strconv.FormatBool(res.Boolean) + "\n")
		return w.Flush()
	}
	header := make([]string, len(res.Vars))
	for i, v := range res.Vars {
		header[i] = "?" + v
	}
	w.WriteString(strings.Join(header, "\t"))
	w.WriteString("\n")
	incomplete := false
	for _, sol := range res.Solutions {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		for i, v := range res.Vars {
			if i > 0 {
				w.WriteByte('\t')
			}
			if t, ok := sol[v]; ok {
				w.WriteString(t.String())
			}
		}
		w.WriteByte('\n')
	}
	if incomplete {
		w.WriteString("# " + IncompleteMarker + "\n")
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if incomplete {
		return ErrIncomplete
	}
	return nil
}
