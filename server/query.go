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
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/sparql"
	"github.com/ebay/sparqld/sparql/results"
	"github.com/ebay/sparqld/store"
	"github.com/pkg/errors"
)

// Query and update parameters.
const (
	paramDefaultGraphURI    = "default-graph-uri"
	paramNamedGraphURI      = "named-graph-uri"
	paramUsingGraphURI      = "using-graph-uri"
	paramUsingNamedGraphURI = "using-named-graph-uri"
	paramTimeout            = "timeout"
)

// Request bodies holding a query or update larger than this are rejected.
const maxRequestTextBytes = 16 << 20

// query runs a SPARQL query.
func (s *Server) query(a *Action) error {
	text, err := requestText(a, paramQuery, contentTypeSPARQLQuery)
	if err != nil {
		return err
	}
	base := requestURL(a.Request, false)
	q, err := sparql.ParseQuery(text, base)
	if err != nil {
		return sparqlFailure(err)
	}
	from, fromNamed, err := graphURIs(a, paramDefaultGraphURI, paramNamedGraphURI)
	if err != nil {
		return err
	}
	if len(from) == 0 && len(fromNamed) == 0 {
		from, fromNamed = q.From, q.FromNamed
	}
	offers := resultOffers()
	if q.Form == sparql.ConstructForm {
		offers = rdfOffers(codec.TriplesFormats())
	}
	out, contentType, err := negotiate(a, offers)
	if err != nil {
		return err
	}
	timeout, err := requestTimeout(a)
	if err != nil {
		return err
	}
	ctx := a.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var res *sparql.Results
	err = a.Read(func(dsg store.DatasetGraph) error {
		var err error
		res, err = sparql.NewView(dsg, from, fromNamed).Evaluate(ctx, q)
		return err
	})
	if err != nil {
		if ctx.Err() != nil && errors.Cause(err) == ctx.Err() {
			metrics.queryTimeouts.WithLabelValues("false").Inc()
			return errUnavailable("query did not complete within %v", timeout)
		}
		return err
	}

	a.Response.Header().Set("Content-Type", contentType)
	a.Response.Header().Add("Vary", "Accept")
	if out.rdf != nil {
		err = writeConstruct(ctx, a, out, res.Triples)
	} else {
		err = out.results.Write(ctx, a.Response, res)
	}
	if err == results.ErrIncomplete {
		metrics.queryTimeouts.WithLabelValues("true").Inc()
		a.log.WithField("timeout", timeout).Warn("Query results cut short")
		return nil
	}
	return err
}

// writeConstruct writes the triples of a CONSTRUCT query. If the context is
// done first, the output ends with a comment saying so and ErrIncomplete is
// returned.
func writeConstruct(ctx context.Context, a *Action, out offer, triples []rdf.Triple) error {
	sparql.SortTriples(triples)
	enc := out.rdf.NewEncoder(a.Response)
	for _, t := range triples {
		if ctx.Err() != nil {
			if err := enc.Flush(); err != nil {
				return err
			}
			if _, err := io.WriteString(a.Response, "# "+results.IncompleteMarker+"\n"); err != nil {
				return err
			}
			return results.ErrIncomplete
		}
		if err := enc.Encode(rdf.Quad{S: t.S, P: t.P, O: t.O}); err != nil {
			return err
		}
	}
	return enc.Flush()
}

// requestText returns the query or update text, from the request body when
// it has the given content type, or else from exactly one parameter.
func requestText(a *Action, param, bodyType string) (string, error) {
	values := a.Params[param]
	mt := requestMediaType(a.Request)
	if a.Request.Method == http.MethodPost && mt == bodyType {
		if len(values) > 0 {
			return "", errBadRequest("%s given both as the body and as %s=", param, param)
		}
		body, err := ioutil.ReadAll(io.LimitReader(a.Request.Body, maxRequestTextBytes+1))
		if err != nil {
			return "", errors.Wrap(err, "reading request body")
		}
		if len(body) > maxRequestTextBytes {
			return "", errBadRequest("%s is too large", param)
		}
		return string(body), nil
	}
	if a.Request.Method == http.MethodPost && mt != "" && mt != contentTypeForm {
		return "", errUnsupportedMediaType("unsupported Content-Type %q: expected %s or %s",
			mt, bodyType, contentTypeForm)
	}
	switch len(values) {
	case 0:
		return "", errBadRequest("no %s given: use %s= or a %s body", param, param, bodyType)
	case 1:
		return values[0], nil
	}
	return "", errBadRequest("%s= given %d times", param, len(values))
}

// graphURIs returns the absolute IRIs of the protocol's dataset parameters.
func graphURIs(a *Action, defaultParam, namedParam string) (defaults, named []rdf.Term, err error) {
	base := requestURL(a.Request, false)
	resolve := func(param string) ([]rdf.Term, error) {
		var res []rdf.Term
		for _, v := range a.Params[param] {
			iri, err := rdf.Resolve(base, v)
			if err != nil {
				return nil, errBadRequest("bad %s %q: %v", param, v, err)
			}
			res = append(res, rdf.IRI(iri))
		}
		return res, nil
	}
	if defaults, err = resolve(defaultParam); err != nil {
		return nil, nil, err
	}
	if named, err = resolve(namedParam); err != nil {
		return nil, nil, err
	}
	return defaults, named, nil
}

// requestTimeout returns the query time limit: timeout= in seconds if given,
// clamped to the dataset's maximum, or else the dataset's default.
func requestTimeout(a *Action) (time.Duration, error) {
	var requested time.Duration
	if v := a.Params.Get(paramTimeout); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil || secs < 0 {
			return 0, errBadRequest("bad timeout %q: expected a number of seconds", v)
		}
		requested = time.Duration(secs * float64(time.Second))
	}
	return a.Dataset.queryTimeout(requested), nil
}

// sparqlFailure turns syntax errors and failed updates into client errors.
func sparqlFailure(err error) error {
	var perr *sparql.ParseError
	if errors.As(err, &perr) {
		return errBadRequest("%v", perr)
	}
	var uerr *sparql.UpdateError
	if errors.As(err, &uerr) {
		return errBadRequest("%v", uerr)
	}
	return err
}
