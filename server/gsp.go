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

// gspRead serves GET and HEAD on a graph.
func (s *Server) gspRead(a *Action) error {
	ref, err := parseTarget(a)
	if err != nil {
		return err
	}
	out, contentType, err := negotiate(a, rdfOffers(codec.TriplesFormats()))
	if err != nil {
		return err
	}
	var triples []rdf.Triple
	err = a.Read(func(store.DatasetGraph) error {
		target, err := a.Target(ref)
		if err != nil {
			return err
		}
		exists, err := target.Exists()
		if err != nil {
			return err
		}
		if !exists {
			return errNotFound("no %v in dataset %s", ref, a.Dataset.Name)
		}
		g, err := target.Graph()
		if err != nil {
			return err
		}
		triples, err = store.Triples(g, rdf.Triple{})
		return errors.Wrapf(err, "reading %v", ref)
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
	for _, t := range triples {
		if err := enc.Encode(rdf.Quad{S: t.S, P: t.P, O: t.O}); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// gspWrite serves PUT, POST and DELETE on a graph. PUT replaces the graph and
// POST adds to it; both respond 201 if the graph didn't exist before and 204
// otherwise.
func (s *Server) gspWrite(a *Action) error {
	ref, err := parseTarget(a)
	if err != nil {
		return err
	}
	if a.Request.Method == http.MethodDelete {
		return s.gspDelete(a, ref)
	}
	format, err := bodyFormat(a.Request)
	if err != nil {
		return err
	}
	res, err := writeGraph(a, graphWrite{
		target:    ref,
		overwrite: a.Request.Method == http.MethodPut,
		format:    format,
		body:      a.Request.Body,
	})
	if err != nil {
		return err
	}
	s.publish(a, graphLabel(ref), res.added, res.removed)
	if res.existed {
		a.Response.WriteHeader(http.StatusNoContent)
	} else {
		a.Response.WriteHeader(http.StatusCreated)
	}
	return nil
}

// gspDelete removes a named graph, or empties the default graph.
func (s *Server) gspDelete(a *Action, ref targetRef) error {
	removed := 0
	err := a.Write(func(dsg store.DatasetGraph) error {
		target, err := a.Target(ref)
		if err != nil {
			return err
		}
		exists, err := target.Exists()
		if err != nil {
			return err
		}
		if !exists {
			return errNotFound("no %v in dataset %s", ref, a.Dataset.Name)
		}
		g, err := target.Graph()
		if err != nil {
			return err
		}
		if removed, err = g.Size(); err != nil {
			return err
		}
		if target.IsDefault() {
			return errors.Wrap(g.Clear(), "clearing default graph")
		}
		return errors.Wrapf(dsg.RemoveGraph(target.Name()), "removing %v", ref)
	})
	if err != nil {
		return err
	}
	s.publish(a, graphLabel(ref), 0, removed)
	a.Response.WriteHeader(http.StatusNoContent)
	return nil
}

// graphLabel names the graph in change events.
func graphLabel(ref targetRef) string {
	if ref.isDefault {
		return "default"
	}
	return ref.name.Value
}
