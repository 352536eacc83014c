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

// Package codec reads and writes RDF in the line-based N-Triples and N-Quads
// syntaxes, and maps media types and file extensions onto those syntaxes.
package codec

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/ebay/sparqld/rdf"
)

// ParseOptions controls how a document is parsed.
type ParseOptions struct {
	// Relative IRIs are resolved against Base. If Base is empty, relative IRIs
	// are kept as they are.
	Base string
	// If set, blank node labels are rewritten through the scope, so that two
	// documents loaded into the same dataset don't share blank nodes.
	BlankNodes *rdf.BlankNodeScope
}

// An Encoder writes quads in some syntax. Output may be buffered until Flush
// is called.
type Encoder interface {
	Encode(q rdf.Quad) error
	Flush() error
}

// A Format is an RDF syntax.
type Format struct {
	// Short name, like "nt".
	Name string
	// The preferred media type.
	MediaType string
	// Other media types that are read and written as this syntax.
	Aliases []string
	// File extensions, with the leading dot.
	Extensions []string
	// If true, the syntax can carry graph names.
	Quads bool

	parse      func(r io.Reader, quads bool, opts ParseOptions, emit func(rdf.Quad) error) error
	newEncoder func(w io.Writer) Encoder
}

func (f *Format) String() string {
	return f.Name
}

// Parse reads a document from 'r' and calls 'emit' for every statement, in
// order. Parsing stops at the first syntax error or the first error returned
// by emit. Statements in triples syntaxes are emitted with a zero graph.
func (f *Format) Parse(r io.Reader, opts ParseOptions, emit func(rdf.Quad) error) error {
	return f.parse(r, f.Quads, opts, emit)
}

// NewEncoder returns an Encoder that writes to 'w'. For triples syntaxes, the
// graph name of each quad is dropped.
func (f *Format) NewEncoder(w io.Writer) Encoder {
	return f.newEncoder(w)
}

// MediaTypes returns the preferred media type followed by its aliases.
func (f *Format) MediaTypes() []string {
	return append([]string{f.MediaType}, f.Aliases...)
}

var (
	// NTriples is the W3C N-Triples syntax.
	NTriples = &Format{
		Name:       "nt",
		MediaType:  "application/n-triples",
		Aliases:    []string{"text/plain"},
		Extensions: []string{".nt"},
		parse:      parseLines,
		newEncoder: newLineEncoder(false),
	}
	// NQuads is the W3C N-Quads syntax.
	NQuads = &Format{
		Name:       "nq",
		MediaType:  "application/n-quads",
		Aliases:    []string{"text/x-nquads", "text/nquads"},
		Extensions: []string{".nq"},
		Quads:      true,
		parse:      parseLines,
		newEncoder: newLineEncoder(true),
	}

	formats = []*Format{NTriples, NQuads}
)

// All returns every supported format, in order of preference.
func All() []*Format {
	return append([]*Format(nil), formats...)
}

// TriplesFormats returns the formats suitable for writing a single graph.
func TriplesFormats() []*Format {
	return []*Format{NTriples}
}

// QuadsFormats returns the formats suitable for writing a whole dataset.
func QuadsFormats() []*Format {
	return []*Format{NQuads}
}

// ByMediaType returns the format for a content type such as
// "application/n-triples; charset=utf-8", or nil if there isn't one.
func ByMediaType(contentType string) *Format {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	for _, f := range formats {
		for _, t := range f.MediaTypes() {
			if t == mt {
				return f
			}
		}
	}
	return nil
}

// ByFilename returns the format for a file name based on its extension, or
// nil if there isn't one. A trailing ".gz" is not supported.
func ByFilename(filename string) *Format {
	ext := strings.ToLower(path.Ext(filename))
	for _, f := range formats {
		for _, e := range f.Extensions {
			if e == ext {
				return f
			}
		}
	}
	return nil
}

// ByName returns the format with the given short name, or nil.
func ByName(name string) *Format {
	for _, f := range formats {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// ParseError describes a syntax error in an RDF document.
type ParseError struct {
	// The name of the format being parsed.
	Format string
	// 1-based line and column (in runes) of the error.
	Line   int
	Column int
	// The specific problem.
	Details string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s: line %d column %d: %s",
		e.Format, e.Line, e.Column, e.Details)
}
