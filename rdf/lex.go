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

package rdf

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EscapeString escapes a literal's lexical form for use between double quotes
// in N-Triples, N-Quads, and SPARQL.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\"\\\n\r\t\b\f") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeIRI escapes the characters that may not appear between angle brackets
// using \u escapes.
func EscapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<', '>', '"', '{', '}', '|', '^', '`', '\\', ' ':
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses EscapeString, and also accepts \u and \U escapes.
func Unescape(s string) (string, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("dangling escape at offset %d", i)
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case '"', '\'', '\\':
			b.WriteByte(s[i])
		case 'u', 'U':
			n := 4
			if s[i] == 'U' {
				n = 8
			}
			if i+n >= len(s) {
				return "", fmt.Errorf("short unicode escape at offset %d", i-1)
			}
			v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil || !utf8.ValidRune(rune(v)) {
				return "", fmt.Errorf("invalid unicode escape %q", s[i-1:i+1+n])
			}
			b.WriteRune(rune(v))
			i += n
		default:
			return "", fmt.Errorf("invalid escape '\\%c'", s[i])
		}
	}
	return b.String(), nil
}

// ScanString reads a quoted string starting at input[pos], which must be the
// opening quote character (either ' or "). It returns the unescaped contents
// and the offset just past the closing quote.
func ScanString(input string, pos int) (value string, end int, err error) {
	if pos >= len(input) || (input[pos] != '"' && input[pos] != '\'') {
		return "", pos, fmt.Errorf("expected string")
	}
	quote := input[pos]
	for i := pos + 1; i < len(input); i++ {
		switch input[i] {
		case '\\':
			i++
		case '\n', '\r':
			return "", i, fmt.Errorf("unterminated string")
		case quote:
			value, err := Unescape(input[pos+1 : i])
			if err != nil {
				return "", pos, err
			}
			return value, i + 1, nil
		}
	}
	return "", len(input), fmt.Errorf("unterminated string")
}

// ScanIRIRef reads an IRI reference between angle brackets starting at
// input[pos], which must be '<'. It returns the unescaped IRI and the offset
// just past the closing '>'. The IRI is not resolved.
func ScanIRIRef(input string, pos int) (iri string, end int, err error) {
	if pos >= len(input) || input[pos] != '<' {
		return "", pos, fmt.Errorf("expected IRI")
	}
	for i := pos + 1; i < len(input); i++ {
		switch input[i] {
		case '>':
			iri, err := Unescape(input[pos+1 : i])
			if err != nil {
				return "", pos, err
			}
			return iri, i + 1, nil
		case '<', '"', '{', '}', '|', '^', '`', ' ', '\t', '\n', '\r':
			return "", i, fmt.Errorf("invalid character %q in IRI", input[i])
		}
	}
	return "", len(input), fmt.Errorf("unterminated IRI")
}

// IsLabelChar returns true for the characters permitted in blank node labels,
// variable names, and the local part of prefixed names.
func IsLabelChar(r rune) bool {
	return r == '_' || r == '-' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r >= 0x80
}

// ScanLabel reads label characters starting at input[pos]. A trailing '.' is
// not consumed, since it ends a statement.
func ScanLabel(input string, pos int) (label string, end int) {
	end = pos
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if !IsLabelChar(r) {
			break
		}
		end += size
	}
	for end > pos && input[end-1] == '.' {
		end--
	}
	return input[pos:end], end
}

// ScanLangTag reads a language tag such as "en-US" starting at input[pos],
// which must be '@'.
func ScanLangTag(input string, pos int) (tag string, end int, err error) {
	if pos >= len(input) || input[pos] != '@' {
		return "", pos, fmt.Errorf("expected language tag")
	}
	end = pos + 1
	for end < len(input) {
		c := input[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c == '-' && end > pos+1) ||
			(c >= '0' && c <= '9' && end > pos+1) {
			end++
			continue
		}
		break
	}
	if end == pos+1 {
		return "", pos, fmt.Errorf("empty language tag")
	}
	return strings.ToLower(input[pos+1 : end]), end, nil
}
