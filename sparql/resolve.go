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
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ebay/sparqld/rdf"
)

// ParseQuery parses a SPARQL query. Relative IRIs are resolved against base,
// which is normally the request URL.
func ParseQuery(in, base string) (*Query, error) {
	res, err := parse("query", in, queryRoot)
	if err != nil {
		return nil, err
	}
	raw := res.(*rawQuery)
	r := newResolver("query", in, base)
	if err := r.declare(raw.decls); err != nil {
		return nil, err
	}
	q := &Query{
		Form:     raw.form,
		Distinct: raw.distinct,
		Limit:    -1,
		Offset:   -1,
	}
	for _, v := range raw.projection {
		q.Projection = append(q.Projection, v.value)
	}
	for _, d := range raw.datasets {
		iri, err := r.iri(d.iri)
		if err != nil {
			return nil, err
		}
		if d.named {
			q.FromNamed = append(q.FromNamed, iri)
		} else {
			q.From = append(q.From, iri)
		}
	}
	if q.Where, err = r.group(raw.where); err != nil {
		return nil, err
	}
	if raw.form == ConstructForm {
		quads, err := r.quadPatterns(raw.template, blankAsVar)
		if err != nil {
			return nil, err
		}
		for _, qp := range quads {
			if qp.Graph != (Node{}) {
				return nil, r.errorAt(0, "GRAPH is not allowed in a CONSTRUCT template")
			}
			q.Template = append(q.Template, qp.TriplePattern)
		}
	}
	for _, m := range raw.modifiers {
		v := int64(math.MaxInt64)
		if m.value < math.MaxInt64 {
			v = int64(m.value)
		}
		if m.isLimit {
			q.Limit = v
		} else {
			q.Offset = v
		}
	}
	return q, nil
}

var updateSeq uint64

// ParseUpdate parses a SPARQL update request. Relative IRIs are resolved
// against base. Blank nodes in INSERT DATA are given labels unique to this
// request.
func ParseUpdate(in, base string) (*Update, error) {
	res, err := parse("update", in, updateRoot)
	if err != nil {
		return nil, err
	}
	u := &Update{}
	steps, ok := res.([]rawStep)
	if !ok {
		// Only a prologue.
		return u, nil
	}
	r := newResolver("update", in, base)
	r.blanks = rdf.NewBlankNodeScope(fmt.Sprintf("%d.%d",
		time.Now().UnixNano(), atomic.AddUint64(&updateSeq, 1)))
	for _, step := range steps {
		if err := r.declare(step.decls); err != nil {
			return nil, err
		}
		op, err := r.operation(step.offset, step.op)
		if err != nil {
			return nil, err
		}
		u.Operations = append(u.Operations, op)
	}
	return u, nil
}

// blankMode says what blank nodes become in some part of a request.
type blankMode int

const (
	// Non-distinguished variables, for patterns and templates.
	blankAsVar blankMode = iota
	// Fresh blank nodes, for INSERT DATA.
	blankFresh
	// Not allowed, for DELETE DATA and DELETE templates.
	blankError
)

// resolver turns raw syntax into terms, applying the prologue.
type resolver struct {
	typ      string
	input    string
	base     string
	prefixes map[string]string
	blanks   *rdf.BlankNodeScope
}

func newResolver(typ, input, base string) *resolver {
	return &resolver{
		typ:      typ,
		input:    input,
		base:     base,
		prefixes: make(map[string]string),
	}
}

func (r *resolver) errorAt(offset int, format string, args ...interface{}) error {
	return newParseError(r.typ, r.input, offset, fmt.Sprintf(format, args...))
}

// declare applies BASE and PREFIX declarations, in order.
func (r *resolver) declare(decls []rawDecl) error {
	for _, d := range decls {
		iri, err := r.resolveIRI(d.iri)
		if err != nil {
			return err
		}
		if d.isBase {
			r.base = iri
		} else {
			r.prefixes[d.prefix] = iri
		}
	}
	return nil
}

// resolveIRI resolves a relative IRI reference. With no base, relative
// references are left as written.
func (r *resolver) resolveIRI(t rawTerm) (string, error) {
	if r.base == "" {
		return t.value, nil
	}
	iri, err := rdf.Resolve(r.base, t.value)
	if err != nil {
		return "", r.errorAt(t.offset, "%v", err)
	}
	return iri, nil
}

func (r *resolver) iri(t rawTerm) (rdf.Term, error) {
	switch t.kind {
	case rawIRI:
		iri, err := r.resolveIRI(t)
		if err != nil {
			return rdf.Term{}, err
		}
		return rdf.IRI(iri), nil
	case rawPName:
		ns, ok := r.prefixes[t.value]
		if !ok {
			return rdf.Term{}, r.errorAt(t.offset, "undefined prefix '%s:'", t.value)
		}
		return rdf.IRI(ns + t.local), nil
	case rawTypeKeyword:
		return rdf.IRI(rdf.RDFType), nil
	}
	return rdf.Term{}, r.errorAt(t.offset, "expected IRI")
}

func (r *resolver) node(t rawTerm, blanks blankMode) (Node, error) {
	switch t.kind {
	case rawVar:
		return Variable(t.value), nil
	case rawBlank:
		switch blanks {
		case blankFresh:
			return TermNode(r.blanks.Blank(t.value)), nil
		case blankError:
			return Node{}, r.errorAt(t.offset, "blank nodes are not allowed here")
		}
		return Variable(blankVarPrefix + t.value), nil
	case rawLiteral:
		if t.lang != "" {
			return TermNode(rdf.LangLiteral(t.value, t.lang)), nil
		}
		dt := ""
		if t.datatype != nil {
			iri, err := r.iri(*t.datatype)
			if err != nil {
				return Node{}, err
			}
			dt = iri.Value
		}
		return TermNode(rdf.Literal(t.value, dt)), nil
	}
	iri, err := r.iri(t)
	if err != nil {
		return Node{}, err
	}
	return TermNode(iri), nil
}

func (r *resolver) triple(t rawTriple, blanks blankMode) (TriplePattern, error) {
	var tp TriplePattern
	var err error
	if tp.S, err = r.node(t.s, blanks); err != nil {
		return tp, err
	}
	if tp.P, err = r.node(t.p, blanks); err != nil {
		return tp, err
	}
	tp.O, err = r.node(t.o, blanks)
	return tp, err
}

// group converts the items of a WHERE clause.
func (r *resolver) group(items []interface{}) (*Group, error) {
	g := &Group{}
	var bgp BasicPattern
	for _, item := range items {
		switch item := item.(type) {
		case []rawTriple:
			for _, t := range item {
				tp, err := r.triple(t, blankAsVar)
				if err != nil {
					return nil, err
				}
				bgp = append(bgp, tp)
			}
		case rawGraph:
			if len(bgp) > 0 {
				g.Elements = append(g.Elements, bgp)
				bgp = nil
			}
			name, err := r.node(item.name, blankAsVar)
			if err != nil {
				return nil, err
			}
			where, err := r.group(item.items)
			if err != nil {
				return nil, err
			}
			g.Elements = append(g.Elements, &GraphPattern{Graph: name, Where: where})
		}
	}
	if len(bgp) > 0 {
		g.Elements = append(g.Elements, bgp)
	}
	return g, nil
}

// quadPatterns converts the items of quad data or a template, which allow
// GRAPH blocks one level deep.
func (r *resolver) quadPatterns(items []interface{}, blanks blankMode) ([]QuadPattern, error) {
	var res []QuadPattern
	add := func(graph Node, triples []rawTriple) error {
		for _, t := range triples {
			tp, err := r.triple(t, blanks)
			if err != nil {
				return err
			}
			res = append(res, QuadPattern{Graph: graph, TriplePattern: tp})
		}
		return nil
	}
	for _, item := range items {
		switch item := item.(type) {
		case []rawTriple:
			if err := add(Node{}, item); err != nil {
				return nil, err
			}
		case rawGraph:
			name, err := r.node(item.name, blanks)
			if err != nil {
				return nil, err
			}
			for _, inner := range item.items {
				triples, ok := inner.([]rawTriple)
				if !ok {
					return nil, r.errorAt(item.name.offset, "nested GRAPH blocks are not allowed here")
				}
				if err := add(name, triples); err != nil {
					return nil, err
				}
			}
		}
	}
	return res, nil
}

// groundQuads converts quad data, which may not contain variables.
func (r *resolver) groundQuads(offset int, items []interface{}, blanks blankMode) ([]rdf.Quad, error) {
	patterns, err := r.quadPatterns(items, blanks)
	if err != nil {
		return nil, err
	}
	quads := make([]rdf.Quad, 0, len(patterns))
	for _, qp := range patterns {
		for _, n := range []Node{qp.Graph, qp.S, qp.P, qp.O} {
			if n.IsVar() {
				return nil, r.errorAt(offset, "variable %v is not allowed in quad data", n)
			}
		}
		quads = append(quads, rdf.Quad{G: qp.Graph.Term, S: qp.S.Term, P: qp.P.Term, O: qp.O.Term})
	}
	return quads, nil
}

func (r *resolver) operation(offset int, op rawOp) (Operation, error) {
	switch op.kind {
	case opInsertData:
		quads, err := r.groundQuads(offset, op.data, blankFresh)
		if err != nil {
			return nil, err
		}
		return &InsertData{Quads: quads}, nil

	case opDeleteData:
		quads, err := r.groundQuads(offset, op.data, blankError)
		if err != nil {
			return nil, err
		}
		return &DeleteData{Quads: quads}, nil

	case opModify:
		if op.del == nil && op.ins == nil {
			return nil, r.errorAt(offset, "expected DELETE or INSERT")
		}
		m := &Modify{}
		var err error
		if m.Delete, err = r.quadPatterns(op.del, blankError); err != nil {
			return nil, err
		}
		if m.Insert, err = r.quadPatterns(op.ins, blankAsVar); err != nil {
			return nil, err
		}
		for _, d := range op.using {
			iri, err := r.iri(d.iri)
			if err != nil {
				return nil, err
			}
			if d.named {
				m.UsingNamed = append(m.UsingNamed, iri)
			} else {
				m.Using = append(m.Using, iri)
			}
		}
		if m.Where, err = r.group(op.where); err != nil {
			return nil, err
		}
		return m, nil

	case opClear, opDrop, opCreate:
		target := GraphRef{Kind: op.ref.kind}
		if target.Kind == RefGraph {
			iri, err := r.iri(op.ref.iri)
			if err != nil {
				return nil, err
			}
			target.Graph = iri
		}
		switch op.kind {
		case opClear:
			return &Clear{Silent: op.silent, Target: target}, nil
		case opDrop:
			return &Drop{Silent: op.silent, Target: target}, nil
		}
		return &Create{Silent: op.silent, Graph: target.Graph}, nil
	}
	return nil, r.errorAt(offset, "unsupported operation")
}

// isBlankVar returns true for the variables that stand in for blank nodes.
func isBlankVar(name string) bool {
	return strings.HasPrefix(name, blankVarPrefix)
}
