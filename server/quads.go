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
	"net/http"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/store"
	"github.com/pkg/errors"
)

// quadsRead dumps the whole dataset.
func (s *Server) quadsRead(a *Action) error {
	out, contentType, err := negotiate(a, rdfOffers(codec.QuadsFormats()))
	if err != nil {
		return err
	}
	var quads []rdf.Quad
	err = a.Read(func(dsg store.DatasetGraph) error {
		err := dsg.Find(rdf.Quad{}, func(q rdf.Quad) bool {
			quads = append(quads, q)
			return true
		})
		return errors.Wrap(err, "reading dataset")
	})
	if err != nil {
		return err
	}
	h := a.Response.Header()
	h.Set("Content-Type", contentType)
	h.Add("Vary", "Accept")
	if a.Request.Method == http.MethodHead {
		a.Response.WriteHeader(http.StatusOK)
		return nil
	}
	enc := out.rdf.NewEncoder(a.Response)
	for _, q := range quads {
		if err := enc.Encode(q); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// quadsWrite adds a document to the dataset (POST) or replaces the dataset's
// contents with it (PUT). Triples in the document go to the default graph.
func (s *Server) quadsWrite(a *Action) error {
	format, err := bodyFormat(a.Request)
	if err != nil {
		return err
	}
	res, err := writeDataset(a, a.Request.Method == http.MethodPut, format, a.Request.Body)
	if err != nil {
		return err
	}
	s.publish(a, "", res.added, res.removed)
	a.Response.WriteHeader(http.StatusNoContent)
	return nil
}
