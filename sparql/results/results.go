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

// Package results writes the results of SELECT and ASK queries in the SPARQL
// result formats. Writers check the context between rows; if it is done they
// end the output with a visible marker and return ErrIncomplete, since the
// response status has already been sent by then.
package results

import (
	"context"
	"errors"
	"io"
	"mime"
	"strings"

	"github.com/ebay/sparqld/sparql"
)

// IncompleteMarker is written into output that was cut short.
const IncompleteMarker = "results incomplete: query timed out"

// ErrIncomplete is returned by Write when the context was done before all the
// rows were written.
var ErrIncomplete = errors.New(IncompleteMarker)

// A Format is a result set serialization.
type Format struct {
	// Short name, as used in the output= parameter.
	Name      string
	MediaType string
	// Used by content negotiation only; Write never produces these types.
	Aliases []string
	write   func(ctx context.Context, w io.Writer, res *sparql.Results) error
}

func (f *Format) String() string {
	return f.Name
}

// Write writes the SELECT or ASK results to w.
func (f *Format) Write(ctx context.Context, w io.Writer, res *sparql.Results) error {
	if res.Form == sparql.ConstructForm {
		return errors.New("results: CONSTRUCT results are graphs, not result sets")
	}
	return f.write(ctx, w, res)
}

// MediaTypes returns the primary media type followed by the aliases.
func (f *Format) MediaTypes() []string {
	return append([]string{f.MediaType}, f.Aliases...)
}

// The supported formats.
var (
	JSON = &Format{
		Name:      "json",
		MediaType: "application/sparql-results+json",
		Aliases:   []string{"application/json"},
		write:     writeJSON,
	}
	XML = &Format{
		Name:      "xml",
		MediaType: "application/sparql-results+xml",
		Aliases:   []string{"application/xml", "text/xml"},
		write:     writeXML,
	}
	CSV = &Format{
		Name:      "csv",
		MediaType: "text/csv",
		write:     writeCSV,
	}
	TSV = &Format{
		Name:      "tsv",
		MediaType: "text/tab-separated-values",
		write:     writeTSV,
	}
	Text = &Format{
		Name:      "text",
		MediaType: "text/plain",
		write:     writeText,
	}
)

// All returns every format, in order of preference.
func All() []*Format {
	return []*Format{JSON, XML, CSV, TSV, Text}
}

// ByMediaType returns the format for the media type, which may carry
// parameters, or nil.
func ByMediaType(mediaType string) *Format {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	for _, f := range All() {
		for _, m := range f.MediaTypes() {
			if m == mt {
				return f
			}
		}
	}
	return nil
}

// IsXML returns true if the media type is in the XML family. Such documents
// declare their own encoding.
func IsXML(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = mediaType
	}
	return strings.HasSuffix(mt, "/xml") || strings.HasSuffix(mt, "+xml")
}
