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

package codec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ebay/sparqld/rdf"
	p "github.com/vektah/goparsify"
)

// statement parses one N-Triples or N-Quads statement. Its result is a
// []rdf.Term of length 3 or 4.
var statement p.Parser

func init() {
	iri := p.NewParser("IRI", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		v, end, err := rdf.ScanIRIRef(ps.Input, ps.Pos)
		if err != nil {
			ps.ErrorHere("IRI")
			return
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = rdf.IRI(v)
		ps.Pos = end
	})
	blank := p.NewParser("blank node", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		if !strings.HasPrefix(ps.Get(), "_:") {
			ps.ErrorHere("blank node")
			return
		}
		label, end := rdf.ScanLabel(ps.Input, ps.Pos+2)
		if label == "" {
			ps.ErrorHere("blank node label")
			return
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = rdf.Blank(label)
		ps.Pos = end
	})
	literal := p.NewParser("literal", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		if ps.Pos >= len(ps.Input) || ps.Input[ps.Pos] != '"' {
			ps.ErrorHere("literal")
			return
		}
		lex, end, err := rdf.ScanString(ps.Input, ps.Pos)
		if err != nil {
			ps.ErrorHere("literal")
			return
		}
		term := rdf.Literal(lex, "")
		switch {
		case strings.HasPrefix(ps.Input[end:], "@"):
			tag, tagEnd, err := rdf.ScanLangTag(ps.Input, end)
			if err != nil {
				ps.Pos = end
				ps.ErrorHere("language tag")
				return
			}
			term = rdf.LangLiteral(lex, tag)
			end = tagEnd
		case strings.HasPrefix(ps.Input[end:], "^^"):
			dt, dtEnd, err := rdf.ScanIRIRef(ps.Input, end+2)
			if err != nil {
				ps.Pos = end + 2
				ps.ErrorHere("datatype IRI")
				return
			}
			term = rdf.Literal(lex, dt)
			end = dtEnd
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = term
		ps.Pos = end
	})
	subject := p.Any(iri, blank)
	object := p.Any(iri, blank, literal)
	graphLabel := p.Maybe(p.Any(iri, blank))
	statement = p.Seq(subject, iri, object, graphLabel, ".").Map(func(n *p.Result) {
		terms := []rdf.Term{
			n.Child[0].Result.(rdf.Term),
			n.Child[1].Result.(rdf.Term),
			n.Child[2].Result.(rdf.Term),
		}
		if g, ok := n.Child[3].Result.(rdf.Term); ok {
			terms = append(terms, g)
		}
		n.Result = terms
	})
}

// lineWS skips spaces, tabs, and comments, which run to the end of the line.
func lineWS(s *p.State) {
	for s.Pos < len(s.Input) {
		switch s.Input[s.Pos] {
		case ' ', '\t', '\r', '\n':
			s.Pos++
		case '#':
			s.Pos = len(s.Input)
		default:
			return
		}
	}
}

func parseLines(r io.Reader, quads bool, opts ParseOptions, emit func(rdf.Quad) error) error {
	formatName := "N-Triples"
	if quads {
		formatName = "N-Quads"
	}
	fail := func(lineNum int, line string, offset int, details string) error {
		if offset > len(line) {
			offset = len(line)
		}
		return &ParseError{
			Format:  formatName,
			Line:    lineNum,
			Column:  utf8.RuneCountInString(line[:offset]) + 1,
			Details: details,
		}
	}
	resolve := func(t rdf.Term) (rdf.Term, error) {
		switch {
		case t.IsIRI() && opts.Base != "":
			abs, err := rdf.Resolve(opts.Base, t.Value)
			if err != nil {
				return t, err
			}
			return rdf.IRI(abs), nil
		case t.IsBlank() && opts.BlankNodes != nil:
			return opts.BlankNodes.Blank(t.Value), nil
		case t.IsLiteral() && t.Datatype != "" && opts.Base != "":
			dt, err := rdf.Resolve(opts.Base, t.Datatype)
			if err != nil {
				return t, err
			}
			return rdf.Literal(t.Value, dt), nil
		}
		return t, nil
	}

	reader := bufio.NewReader(r)
	for lineNum := 1; ; lineNum++ {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		if line != "" {
			state := p.NewState(line)
			state.WS = lineWS
			state.WS(state)
			if state.Pos < len(line) {
				result := p.Result{}
				statement(state, &result)
				if state.Errored() {
					return fail(lineNum, line, state.Error.Pos(), "expected "+expectedText(&state.Error))
				}
				state.WS(state)
				if state.Pos < len(line) {
					return fail(lineNum, line, state.Pos,
						fmt.Sprintf("unparsed text: '%s'", strings.TrimSpace(line[state.Pos:])))
				}
				terms := result.Result.([]rdf.Term)
				if len(terms) == 4 && !quads {
					return fail(lineNum, line, 0, "graph names are not allowed in N-Triples")
				}
				var q rdf.Quad
				for i, t := range terms {
					t, err := resolve(t)
					if err != nil {
						return fail(lineNum, line, 0, err.Error())
					}
					switch i {
					case 0:
						q.S = t
					case 1:
						q.P = t
					case 2:
						q.O = t
					case 3:
						q.G = t
					}
				}
				if err := emit(q); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// expectedText extracts the expected text from a goparsify error. This relies
// on the format of goparsify's error messages.
func expectedText(e *p.Error) string {
	msg := e.Error()
	idx := strings.Index(msg, "expected")
	if idx == -1 {
		return msg
	}
	return strings.TrimSpace(msg[idx+len("expected"):])
}

type lineEncoder struct {
	w     *bufio.Writer
	quads bool
}

func newLineEncoder(quads bool) func(io.Writer) Encoder {
	return func(w io.Writer) Encoder {
		return &lineEncoder{w: bufio.NewWriter(w), quads: quads}
	}
}

func (e *lineEncoder) Encode(q rdf.Quad) error {
	var line string
	if e.quads {
		line = q.String()
	} else {
		line = q.Triple().String()
	}
	if _, err := e.w.WriteString(line); err != nil {
		return err
	}
	return e.w.WriteByte('\n')
}

func (e *lineEncoder) Flush() error {
	return e.w.Flush()
}
