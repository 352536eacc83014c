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
	"strings"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
	"github.com/pkg/errors"
)

// Parameter names that identify a graph store target.
const (
	paramGraph   = "graph"
	paramDefault = "default"
	// The value of graph= that names the default graph.
	defaultGraphValue = "default"
)

// targetRef identifies the graph a graph store request addresses. It's
// resolved from the request alone, before any transaction is open.
type targetRef struct {
	isDefault bool
	// Set unless isDefault.
	name rdf.Term
}

func (t targetRef) String() string {
	if t.isDefault {
		return "default graph"
	}
	return t.name.String()
}

// parseTarget determines which graph the request addresses: the default
// graph with ?default or ?graph=default, a named graph with ?graph=<iri>
// (resolved against the request URL), or, with neither parameter, the graph
// named by the request URL itself.
func parseTarget(a *Action) (targetRef, error) {
	defaults, hasDefault := a.Params[paramDefault]
	graphs, hasGraph := a.Params[paramGraph]
	switch {
	case hasDefault && hasGraph:
		return targetRef{}, errBadRequest("both ?default and ?graph= given")
	case hasDefault:
		if len(defaults) > 1 {
			return targetRef{}, errBadRequest("?default given more than once")
		}
		if defaults[0] != "" {
			return targetRef{}, errBadRequest("?default must not have a value")
		}
		return targetRef{isDefault: true}, nil
	case hasGraph:
		if len(graphs) > 1 {
			return targetRef{}, errBadRequest("?graph= given more than once")
		}
		name := strings.TrimSpace(graphs[0])
		if name == "" {
			return targetRef{}, errBadRequest("?graph= must name a graph")
		}
		if name == defaultGraphValue {
			return targetRef{isDefault: true}, nil
		}
		iri, err := rdf.Resolve(requestURL(a.Request, false), name)
		if err != nil {
			return targetRef{}, errBadRequest("bad graph name %q: %v", name, err)
		}
		if iri == rdf.DefaultGraphIRI {
			return targetRef{isDefault: true}, nil
		}
		return targetRef{name: rdf.IRI(iri)}, nil
	}
	// The trailing path of a service names the service, never a graph.
	if a.Trailing == "" || a.Service != nil {
		return targetRef{}, errBadRequest("no graph given: use ?default or ?graph=")
	}
	return targetRef{name: rdf.IRI(requestURL(a.Request, false))}, nil
}

// requestURL returns the absolute URL of the request, with or without its
// query string.
func requestURL(r *http.Request, withQuery bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "http" || fwd == "https" {
		scheme = fwd
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	u := scheme + "://" + host + r.URL.EscapedPath()
	if withQuery && r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

// A Target is a resolved graph store target bound to the action's open
// transaction. The graph is fetched at most once.
type Target struct {
	ref   targetRef
	dsg   store.DatasetGraph
	graph store.Graph
}

// Target binds the reference to the open transaction's dataset graph.
func (a *Action) Target(ref targetRef) (*Target, error) {
	if a.active == nil {
		return nil, a.stateError("Target")
	}
	return &Target{ref: ref, dsg: a.active}, nil
}

// IsDefault returns true for the default graph.
func (t *Target) IsDefault() bool {
	return t.ref.isDefault
}

// Name returns the graph name, or rdf.DefaultGraph for the default graph.
func (t *Target) Name() rdf.Term {
	if t.ref.isDefault {
		return rdf.DefaultGraph
	}
	return t.ref.name
}

// Exists returns true if the graph exists. The default graph always exists.
// It doesn't create the graph, so it must be asked before Graph.
func (t *Target) Exists() (bool, error) {
	if t.ref.isDefault {
		return true, nil
	}
	exists, err := t.dsg.ContainsGraph(t.ref.name)
	return exists, errors.Wrapf(err, "checking for graph %v", t.ref.name)
}

// Graph returns the target graph. Some stores create a named graph on first
// access.
func (t *Target) Graph() (store.Graph, error) {
	if t.graph != nil {
		return t.graph, nil
	}
	if t.ref.isDefault {
		t.graph = t.dsg.Default()
		return t.graph, nil
	}
	g, err := t.dsg.Named(t.ref.name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening graph %v", t.ref.name)
	}
	t.graph = g
	return g, nil
}

func (t *Target) String() string {
	return t.ref.String()
}
