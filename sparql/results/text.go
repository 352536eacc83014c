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
	"context"
	"io"

	"github.com/ebay/sparqld/sparql"
	"github.com/ebay/sparqld/util/table"
)

func writeText(ctx context.Context, w io.Writer, res *sparql.Results) error {
	if res.Form == sparql.AskForm {
		answer := "No"
		if res.Boolean {
			answer = "Yes"
		}
		_, err := io.WriteString(w, "Ask => "+answer+"\n")
		return err
	}
	rows := make([][]string, 1, len(res.Solutions)+1)
	rows[0] = res.Vars
	incomplete := false
	for _, sol := range res.Solutions {
		if ctx.Err() != nil {
			incomplete = true
			break
		}
		row := make([]string, len(res.Vars))
		for i, v := range res.Vars {
			if t, ok := sol[v]; ok {
				row[i] = t.String()
			}
		}
		rows = append(rows, row)
	}
	if len(res.Vars) > 0 {
		if err := table.PrettyPrint(w, rows, table.HeaderRow|table.Boxed); err != nil {
			return err
		}
	}
	if incomplete {
		if _, err := io.WriteString(w, IncompleteMarker+"\n"); err != nil {
			return err
		}
		return ErrIncomplete
	}
	return nil
}
