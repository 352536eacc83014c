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

	"github.com/ebay/sparqld/sparql"
	"github.com/ebay/sparqld/store"
)

// update runs a SPARQL update in one write transaction. On a dataset that
// can't roll back, the operations applied before a failure remain.
func (s *Server) update(a *Action) error {
	text, err := requestText(a, paramUpdate, contentTypeSPARQLUpdate)
	if err != nil {
		return err
	}
	u, err := sparql.ParseUpdate(text, requestURL(a.Request, false))
	if err != nil {
		return sparqlFailure(err)
	}
	using, usingNamed, err := graphURIs(a, paramUsingGraphURI, paramUsingNamedGraphURI)
	if err != nil {
		return err
	}
	if len(using) > 0 || len(usingNamed) > 0 {
		for _, op := range u.Operations {
			m, ok := op.(*sparql.Modify)
			if !ok {
				continue
			}
			if len(m.Using) > 0 || len(m.UsingNamed) > 0 {
				return errBadRequest("%s and %s can't be combined with USING in the update",
					paramUsingGraphURI, paramUsingNamedGraphURI)
			}
			m.Using, m.UsingNamed = using, usingNamed
		}
	}
	var stats sparql.UpdateStats
	err = a.Write(func(dsg store.DatasetGraph) error {
		var err error
		stats, err = sparql.Apply(a.Context(), dsg, u)
		return err
	})
	if err != nil {
		return sparqlFailure(err)
	}
	s.publish(a, "", stats.Added, stats.Removed)
	a.Response.WriteHeader(http.StatusNoContent)
	return nil
}
