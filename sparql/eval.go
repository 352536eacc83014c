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

package sparql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
)

// A Binding maps variable names to terms. It is one solution of a pattern.
type Binding map[string]rdf.Term

func (b Binding) extend(name string, t rdf.Term) Binding {
	res := make(Binding, len(b)+1)
	for k, v := range b {
		res[k] = v
	}
	res[name] = t
	return res
}

// key returns a string that is equal for two bindings exactly when they bind
// the given variables to the same terms.
func (b Binding) key(vars []string) string {
	var s strings.Builder
	for _, v := range vars {
		s.WriteString(b[v].String())
		s.WriteByte(0)
	}
	return s.String()
}

// A View is the RDF dataset a query is evaluated against: the graphs that
// are merged to form its default graph and the named graphs it can see.
type View struct {
	dsg store.DatasetGraph
	// Nil for the store's own default graph.
	defaultGraphs []rdf.Term
	// Nil for all the store's named graphs.
	namedGraphs []rdf.Term
}

// NewView returns the view of 'dsg' described by the FROM and FROM NAMED
// graphs. If both lists are empty, the view is the whole dataset. Otherwise
// the default graph is the merge of the 'from' graphs and only 'fromNamed'
// graphs are visible to GRAPH. The union graph IRI in 'from' stands for the
// merge of all the named graphs.
func NewView(dsg store.DatasetGraph, from, fromNamed []rdf.Term) *View {
	v := &View{dsg: dsg}
	if len(from) == 0 && len(fromNamed) == 0 {
		return v
	}
	v.defaultGraphs = append([]rdf.Term{}, from...)
	v.namedGraphs = append([]rdf.Term{}, fromNamed...)
	return v
}

// Results are the outcome of a query. Which fields are set depends on Form.
type Results struct {
	Form QueryForm
	// For SELECT.
	Vars      []string
	Solutions []Binding
	// For ASK.
	Boolean bool
	// For CONSTRUCT.
	Triples []rdf.Triple
}

// Evaluate runs the query against the view. It checks ctx periodically and
// returns ctx.Err() if it is done.
func (v *View) Evaluate(ctx context.Context, q *Query) (*Results, error) {
	defaults, err := v.defaultGraphNames()
	if err != nil {
		return nil, err
	}
	ev := evaluator{ctx: ctx, view: v}
	sols, err := ev.group(q.Where, []Binding{{}}, defaults)
	if err != nil {
		return nil, err
	}
	res := &Results{Form: q.Form}
	switch q.Form {
	case AskForm:
		res.Boolean = len(sols) > 0
		return res, nil

	case ConstructForm:
		sols = slice(sols, q.Offset, q.Limit)
		scope := rdf.NewBlankNodeScope(fmt.Sprintf("%p", q))
		seen := make(map[rdf.Triple]bool)
		for i, sol := range sols {
			for _, tp := range q.Template {
				t, ok := instantiate(tp, sol, scope, i)
				if ok && !seen[t] {
					seen[t] = true
					res.Triples = append(res.Triples, t)
				}
			}
		}
		return res, nil
	}

	res.Vars = q.ResultVars()
	projected := make([]Binding, 0, len(sols))
	seen := make(map[string]bool)
	for _, sol := range sols {
		row := make(Binding, len(res.Vars))
		for _, name := range res.Vars {
			if t, ok := sol[name]; ok {
				row[name] = t
			}
		}
		if q.Distinct {
			k := row.key(res.Vars)
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		projected = append(projected, row)
	}
	res.Solutions = slice(projected, q.Offset, q.Limit)
	return res, nil
}

// slice applies OFFSET and LIMIT, where -1 means absent.
func slice(sols []Binding, offset, limit int64) []Binding {
	if offset > 0 {
		if offset >= int64(len(sols)) {
			return nil
		}
		sols = sols[offset:]
	}
	if limit >= 0 && limit < int64(len(sols)) {
		sols = sols[:limit]
	}
	return sols
}

// defaultGraphNames returns the graphs merged to form the default graph, with
// the union graph IRI expanded.
func (v *View) defaultGraphNames() ([]rdf.Term, error) {
	if v.defaultGraphs == nil {
		return []rdf.Term{rdf.DefaultGraph}, nil
	}
	var res []rdf.Term
	for _, g := range v.defaultGraphs {
		if g.Value != rdf.UnionGraphIRI {
			res = append(res, g)
			continue
		}
		named, err := v.dsg.GraphNames()
		if err != nil {
			return nil, err
		}
		res = append(res, named...)
	}
	return res, nil
}

// visibleNamedGraphs returns the named graphs GRAPH can match.
func (v *View) visibleNamedGraphs() ([]rdf.Term, error) {
	if v.namedGraphs == nil {
		return v.dsg.GraphNames()
	}
	return v.namedGraphs, nil
}

func (v *View) isVisible(name rdf.Term) (bool, error) {
	if v.namedGraphs == nil {
		return v.dsg.ContainsGraph(name)
	}
	for _, g := range v.namedGraphs {
		if g == name {
			return true, nil
		}
	}
	return false, nil
}

// find returns the triples matching the pattern in the merge of the graphs.
// Graphs that do not exist are empty.
func (v *View) find(graphs []rdf.Term, pattern rdf.Triple) ([]rdf.Triple, error) {
	var res []rdf.Triple
	var seen map[rdf.Triple]bool
	if len(graphs) > 1 {
		seen = make(map[rdf.Triple]bool)
	}
	for _, name := range graphs {
		if !name.IsDefaultGraph() {
			exists, err := v.dsg.ContainsGraph(name)
			if err != nil {
				return nil, err
			}
			if !exists {
				continue
			}
		}
		g, err := store.GraphFor(v.dsg, name)
		if err != nil {
			return nil, err
		}
		err = g.Find(pattern, func(t rdf.Triple) bool {
			if seen != nil {
				if seen[t] {
					return true
				}
				seen[t] = true
			}
			res = append(res, t)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type evaluator struct {
	ctx  context.Context
	view *View
}

// group extends each input solution with the solutions of the group, matched
// against the merge of 'active'.
func (ev *evaluator) group(g *Group, in []Binding, active []rdf.Term) ([]Binding, error) {
	sols := in
	for _, e := range g.Elements {
		if len(sols) == 0 {
			return nil, nil
		}
		var err error
		switch e := e.(type) {
		case BasicPattern:
			for _, tp := range e {
				if sols, err = ev.triplePattern(tp, sols, active); err != nil {
					return nil, err
				}
			}
		case *GraphPattern:
			if sols, err = ev.graphPattern(e, sols); err != nil {
				return nil, err
			}
		}
	}
	return sols, nil
}

func (ev *evaluator) triplePattern(tp TriplePattern, in []Binding, active []rdf.Term) ([]Binding, error) {
	var out []Binding
	for _, b := range in {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		pattern := rdf.Triple{S: substitute(tp.S, b), P: substitute(tp.P, b), O: substitute(tp.O, b)}
		matches, err := ev.view.find(active, pattern)
		if err != nil {
			return nil, err
		}
		for _, t := range matches {
			if ext, ok := bind(b, tp, t); ok {
				out = append(out, ext)
			}
		}
	}
	return out, nil
}

func (ev *evaluator) graphPattern(gp *GraphPattern, in []Binding) ([]Binding, error) {
	var out []Binding
	for _, b := range in {
		if err := ev.ctx.Err(); err != nil {
			return nil, err
		}
		var names []rdf.Term
		if name := substitute(gp.Graph, b); !name.IsZero() {
			visible, err := ev.view.isVisible(name)
			if err != nil {
				return nil, err
			}
			if visible {
				names = []rdf.Term{name}
			}
		} else {
			var err error
			if names, err = ev.view.visibleNamedGraphs(); err != nil {
				return nil, err
			}
		}
		for _, name := range names {
			start := b
			if gp.Graph.IsVar() {
				start = b.extend(gp.Graph.Var, name)
			}
			sols, err := ev.group(gp.Where, []Binding{start}, []rdf.Term{name})
			if err != nil {
				return nil, err
			}
			out = append(out, sols...)
		}
	}
	return out, nil
}

// substitute returns the term for the node under the binding, or the zero
// term (a wildcard) for an unbound variable.
func substitute(n Node, b Binding) rdf.Term {
	if n.IsVar() {
		return b[n.Var]
	}
	return n.Term
}

// bind extends b with the variables of tp bound to the terms of t. It fails if
// a variable repeated in tp would be bound to two different terms.
func bind(b Binding, tp TriplePattern, t rdf.Triple) (Binding, bool) {
	res := b
	copied := false
	for _, pair := range [3]struct {
		n Node
		t rdf.Term
	}{{tp.S, t.S}, {tp.P, t.P}, {tp.O, t.O}} {
		if !pair.n.IsVar() {
			continue
		}
		if have, ok := res[pair.n.Var]; ok {
			if have != pair.t {
				return nil, false
			}
			continue
		}
		if !copied {
			res = b.extend(pair.n.Var, pair.t)
			copied = true
		} else {
			res[pair.n.Var] = pair.t
		}
	}
	return res, true
}

// instantiate fills in a template triple from a solution. Blank node
// variables become blank nodes unique to the solution number. It returns
// false if a variable is unbound or the result is not a valid triple.
func instantiate(tp TriplePattern, sol Binding, scope *rdf.BlankNodeScope, solution int) (rdf.Triple, bool) {
	var terms [3]rdf.Term
	for i, n := range [3]Node{tp.S, tp.P, tp.O} {
		switch {
		case n.IsVar() && isBlankVar(n.Var):
			terms[i] = scope.Blank(fmt.Sprintf("%s.%d", n.Var, solution))
		case n.IsVar():
			t, ok := sol[n.Var]
			if !ok {
				return rdf.Triple{}, false
			}
			terms[i] = t
		default:
			terms[i] = n.Term
		}
	}
	t := rdf.NewTriple(terms[0], terms[1], terms[2])
	return t, t.Valid()
}

// SortTriples orders triples by subject, predicate, then object.
func SortTriples(triples []rdf.Triple) {
	sort.Slice(triples, func(i, j int) bool {
		a, b := triples[i], triples[j]
		if c := rdf.Compare(a.S, b.S); c != 0 {
			return c < 0
		}
		if c := rdf.Compare(a.P, b.P); c != 0 {
			return c < 0
		}
		return rdf.Compare(a.O, b.O) < 0
	})
}
