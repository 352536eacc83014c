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

// Package table formats rows of text into a table for human consumption.
package table

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Options control how the table is laid out.
type Options int

const (
	// HeaderRow separates the first row from the rest.
	HeaderRow Options = 1 << iota
	// SkipEmpty writes nothing if the table has no rows besides the header.
	SkipEmpty
	// RightJustify pads cells on the left rather than the right.
	RightJustify
	// Boxed draws a frame around the table, in the style of the SPARQL text
	// result format:
	//	---------------
	//	| s     | o   |
	//	===============
	//	| <a>   | "x" |
	//	---------------
	Boxed
)

func (o Options) has(opt Options) bool {
	return o&opt != 0
}

// PrettyPrint writes 't' as a table to 'dest'. Cells may span several lines,
// separated by \n. Every row must have the same number of cells as the first.
func PrettyPrint(dest io.Writer, t [][]string, opts Options) error {
	chrome := 0
	if opts.has(HeaderRow) {
		chrome = 1
	}
	if len(t) == 0 || (opts.has(SkipEmpty) && len(t) <= chrome) {
		return nil
	}
	widths := make([]int, len(t[0]))
	cells := make([][][]string, len(t))
	for r, row := range t {
		cells[r] = make([][]string, len(row))
		for c, s := range row {
			cells[r][c] = strings.Split(s, "\n")
			for _, line := range cells[r][c] {
				if w := charsWide(line); w > widths[c] {
					widths[c] = w
				}
			}
		}
	}
	w := bufio.NewWriterSize(dest, 256)
	total := 1
	for _, width := range widths {
		total += width + 3
	}
	rule := func(ch string) {
		io.WriteString(w, strings.Repeat(ch, total))
		io.WriteString(w, "\n")
	}
	divider := func() {
		if opts.has(Boxed) {
			rule("=")
			return
		}
		for _, width := range widths {
			io.WriteString(w, " ")
			io.WriteString(w, strings.Repeat("-", width))
			io.WriteString(w, " |")
		}
		io.WriteString(w, "\n")
	}
	if opts.has(Boxed) {
		rule("-")
	}
	for r, row := range cells {
		height := 1
		for _, lines := range row {
			if len(lines) > height {
				height = len(lines)
			}
		}
		for l := 0; l < height; l++ {
			if opts.has(Boxed) {
				io.WriteString(w, "|")
			}
			for c, lines := range row {
				line := ""
				if l < len(lines) {
					line = lines[l]
				}
				io.WriteString(w, " ")
				io.WriteString(w, pad(line, widths[c], opts))
				io.WriteString(w, " |")
			}
			io.WriteString(w, "\n")
		}
		if r == 0 && chrome == 1 {
			divider()
		}
	}
	if opts.has(Boxed) {
		rule("-")
	}
	return w.Flush()
}

func pad(s string, width int, opts Options) string {
	n := width - charsWide(s)
	if n <= 0 {
		return s
	}
	if opts.has(RightJustify) {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// charsWide estimates how wide a string will be on a typical terminal. The
// string is normalized first so that combining sequences count once.
func charsWide(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}
