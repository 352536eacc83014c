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

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/pkg/errors"
)

// The multipart form field naming the graph to upload into.
const formFieldGraph = "graph"

// Longest accepted value of a non-file form field.
const maxFieldBytes = 64 << 10

// uploadCounts is the response body of an upload.
type uploadCounts struct {
	// Statements read from the files.
	Count       int `json:"count"`
	TripleCount int `json:"tripleCount"`
	QuadCount   int `json:"quadCount"`
}

// upload loads the files of a multipart form. The graph field may come after
// the files, so the whole body is read into a buffer before the dataset is
// touched, whether or not the dataset is transactional.
func (s *Server) upload(a *Action) error {
	if requestMediaType(a.Request) != contentTypeMultipart {
		return errUnsupportedMediaType("uploads must be sent as %s", contentTypeMultipart)
	}
	mr, err := a.Request.MultipartReader()
	if err != nil {
		return errBadRequest("bad multipart body: %v", err)
	}
	buf := memstore.New()
	var counts uploadCounts
	graphField, haveGraphField := "", false
	for i := 0; ; i++ {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errBadRequest("bad multipart body: %v", err)
		}
		if part.FileName() == "" {
			if part.FormName() == formFieldGraph {
				value, err := ioutil.ReadAll(io.LimitReader(part, maxFieldBytes))
				if err != nil {
					return errBadRequest("bad multipart body: %v", err)
				}
				graphField, haveGraphField = strings.TrimSpace(string(value)), true
			}
			part.Close()
			continue
		}
		err = loadPart(a, i, part, buf, &counts)
		part.Close()
		if err != nil {
			return err
		}
	}

	ref, haveTarget, err := uploadTarget(a, graphField, haveGraphField)
	if err != nil {
		return err
	}
	var res writeResult
	if haveTarget {
		names, err := buf.GraphNames()
		if err != nil {
			return err
		}
		if len(names) > 0 {
			return errBadRequest("the files name graphs, but the upload targets %v", ref)
		}
		res, err = applyGraph(a, ref, false, buf.Default())
		if err != nil {
			return err
		}
		s.publish(a, graphLabel(ref), res.added, 0)
	} else {
		res.existed = true
		if err := applyDataset(a, false, buf, &res); err != nil {
			return err
		}
		s.publish(a, "", res.added, 0)
	}

	status := http.StatusOK
	if !res.existed {
		status = http.StatusCreated
	}
	a.Response.Header().Set("Content-Type", "application/json")
	a.Response.WriteHeader(status)
	enc := json.NewEncoder(a.Response)
	enc.SetIndent("", "  ")
	return enc.Encode(counts)
}

// loadPart parses one file of the upload into buf.
func loadPart(a *Action, i int, part *multipart.Part, buf store.DatasetGraph, counts *uploadCounts) error {
	format := partFormat(part)
	if format == nil {
		return errUnsupportedMediaType("can't tell the syntax of %q from its Content-Type %q or its name",
			part.FileName(), part.Header.Get("Content-Type"))
	}
	opts := parseOptions(a)
	opts.BlankNodes = rdf.NewBlankNodeScope(fmt.Sprintf("%s-%d-%d", blankNodeSeed, a.ID, i))
	err := format.Parse(part, opts, func(q rdf.Quad) error {
		if q.InDefaultGraph() {
			counts.TripleCount++
		} else {
			counts.QuadCount++
		}
		counts.Count++
		_, err := store.AddQuad(buf, q)
		return err
	})
	var perr *codec.ParseError
	if errors.As(err, &perr) {
		return errBadRequest("%s: %v", part.FileName(), perr)
	}
	return err
}

// partFormat picks the syntax of a file from its name, falling back to its
// Content-Type. Browsers send generic types for files they don't know.
func partFormat(part *multipart.Part) *codec.Format {
	if f := codec.ByFilename(part.FileName()); f != nil {
		return f
	}
	return codec.ByMediaType(part.Header.Get("Content-Type"))
}

// uploadTarget returns the graph named by ?graph=/?default, by the request URL
// or by the graph form field. haveTarget is false when neither names one, in which case the
// files are loaded into the dataset as they are.
func uploadTarget(a *Action, graphField string, haveGraphField bool) (ref targetRef, haveTarget bool, err error) {
	_, hasGraph := a.Params[paramGraph]
	_, hasDefault := a.Params[paramDefault]
	if hasGraph || hasDefault {
		if haveGraphField {
			return targetRef{}, false, errBadRequest("graph given both in the URL and in the form")
		}
		ref, err = parseTarget(a)
		return ref, err == nil, err
	}
	if a.Trailing != "" && a.Service == nil {
		if haveGraphField {
			return targetRef{}, false, errBadRequest("graph given both in the URL and in the form")
		}
		return targetRef{name: rdf.IRI(requestURL(a.Request, false))}, true, nil
	}
	if !haveGraphField {
		return targetRef{}, false, nil
	}
	if graphField == "" || graphField == defaultGraphValue {
		return targetRef{isDefault: true}, true, nil
	}
	iri, err := rdf.Resolve(requestURL(a.Request, false), graphField)
	if err != nil {
		return targetRef{}, false, errBadRequest("bad graph name %q: %v", graphField, err)
	}
	if iri == rdf.DefaultGraphIRI {
		return targetRef{isDefault: true}, true, nil
	}
	return targetRef{name: rdf.IRI(iri)}, true, nil
}
