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

package rdf

import "strings"

// A Triple is a subject, predicate, object statement.
type Triple struct {
	S, P, O Term
}

// A Quad is a Triple in a graph. A zero or DefaultGraph G places the quad in
// the default graph.
type Quad struct {
	G, S, P, O Term
}

// NewTriple is a convenience constructor.
func NewTriple(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// String returns the triple as an N-Triples line, without the newline.
func (t Triple) String() string {
	var b strings.Builder
	t.S.writeTo(&b)
	b.WriteByte(' ')
	t.P.writeTo(&b)
	b.WriteByte(' ')
	t.O.writeTo(&b)
	b.WriteString(" .")
	return b.String()
}

// Matches returns true if each term of t matches the corresponding term of
// the pattern. See Term.Matches.
func (t Triple) Matches(pattern Triple) bool {
	return t.S.Matches(pattern.S) && t.P.Matches(pattern.P) && t.O.Matches(pattern.O)
}

// Valid returns true if the triple can be stored: the subject is an IRI or
// blank node, the predicate an IRI, and the object any non-zero term.
func (t Triple) Valid() bool {
	return (t.S.IsIRI() || t.S.IsBlank()) && t.P.IsIRI() && !t.O.IsZero()
}

// Triple returns the triple part of the quad.
func (q Quad) Triple() Triple {
	return Triple{S: q.S, P: q.P, O: q.O}
}

// InDefaultGraph returns true if the quad belongs to the default graph.
func (q Quad) InDefaultGraph() bool {
	return q.G.IsZero() || q.G.IsDefaultGraph()
}

// Graph returns the graph name of the quad, with the default graph normalized
// to DefaultGraph.
func (q Quad) Graph() Term {
	if q.InDefaultGraph() {
		return DefaultGraph
	}
	return q.G
}

// InGraph returns the quad for triple t in graph g.
func InGraph(g Term, t Triple) Quad {
	return Quad{G: g, S: t.S, P: t.P, O: t.O}
}

// String returns the quad as an N-Quads line, without the newline.
func (q Quad) String() string {
	if q.InDefaultGraph() {
		return q.Triple().String()
	}
	var b strings.Builder
	q.S.writeTo(&b)
	b.WriteByte(' ')
	q.P.writeTo(&b)
	b.WriteByte(' ')
	q.O.writeTo(&b)
	b.WriteByte(' ')
	q.G.writeTo(&b)
	b.WriteString(" .")
	return b.String()
}
