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

// Package sparql parses and evaluates the subset of SPARQL 1.1 Query and
// Update that the protocol server supports: SELECT, ASK, and CONSTRUCT over
// basic graph patterns with GRAPH blocks, and the graph management and data
// update operations.
package sparql

import (
	"fmt"
	"strings"

	"github.com/ebay/sparqld/rdf"
)

// A Node is either a variable or an RDF term.
type Node struct {
	// The variable name, without the leading '?'. Empty for terms.
	Var  string
	Term rdf.Term
}

// Variable returns a variable Node.
func Variable(name string) Node {
	return Node{Var: name}
}

// TermNode returns a Node for a constant term.
func TermNode(t rdf.Term) Node {
	return Node{Term: t}
}

// IsVar returns true if the node is a variable.
func (n Node) IsVar() bool {
	return n.Var != ""
}

func (n Node) String() string {
	if n.IsVar() {
		return "?" + n.Var
	}
	return n.Term.String()
}

// A TriplePattern is a triple whose positions may be variables.
type TriplePattern struct {
	S, P, O Node
}

func (t TriplePattern) String() string {
	return fmt.Sprintf("%v %v %v", t.S, t.P, t.O)
}

// An Element is one part of a Group: a BasicPattern or a GraphPattern.
type Element interface {
	isElement()
}

// A BasicPattern is a sequence of triple patterns matched against the active
// graph.
type BasicPattern []TriplePattern

// A GraphPattern evaluates its group against a named graph. If Graph is a
// variable, it is bound to each visible named graph in turn.
type GraphPattern struct {
	Graph Node
	Where *Group
}

func (BasicPattern) isElement()  {}
func (*GraphPattern) isElement() {}

// A Group is a conjunction of elements.
type Group struct {
	Elements []Element
}

// Vars returns the names of the variables in the group, in the order they
// first appear.
func (g *Group) Vars() []string {
	var vars []string
	seen := make(map[string]bool)
	add := func(n Node) {
		if n.IsVar() && !seen[n.Var] && !strings.HasPrefix(n.Var, blankVarPrefix) {
			seen[n.Var] = true
			vars = append(vars, n.Var)
		}
	}
	var walk func(g *Group)
	walk = func(g *Group) {
		for _, e := range g.Elements {
			switch e := e.(type) {
			case BasicPattern:
				for _, tp := range e {
					add(tp.S)
					add(tp.P)
					add(tp.O)
				}
			case *GraphPattern:
				add(e.Graph)
				walk(e.Where)
			}
		}
	}
	walk(g)
	return vars
}

// blankVarPrefix marks the variables that stand in for blank nodes in query
// patterns. They are never projected.
const blankVarPrefix = "_:"

// QueryForm is the kind of result a Query produces.
type QueryForm int

// The possible values of QueryForm.
const (
	SelectForm QueryForm = iota + 1
	AskForm
	ConstructForm
)

func (f QueryForm) String() string {
	switch f {
	case SelectForm:
		return "SELECT"
	case AskForm:
		return "ASK"
	case ConstructForm:
		return "CONSTRUCT"
	}
	return fmt.Sprintf("QueryForm(%d)", int(f))
}

// A Query is a parsed SPARQL query.
type Query struct {
	Form     QueryForm
	Distinct bool
	// The projected variables for SELECT. Nil means '*'.
	Projection []string
	// The graphs named in FROM and FROM NAMED clauses.
	From      []rdf.Term
	FromNamed []rdf.Term
	Where     *Group
	// The CONSTRUCT template.
	Template []TriplePattern
	// -1 if absent.
	Limit  int64
	Offset int64
}

// ResultVars returns the variables of a SELECT query's results.
func (q *Query) ResultVars() []string {
	if q.Projection != nil {
		return q.Projection
	}
	return q.Where.Vars()
}

// An Update is a parsed SPARQL update request: a sequence of operations that
// are applied in order.
type Update struct {
	Operations []Operation
}

// An Operation is one step of an Update.
type Operation interface {
	isOperation()
}

// InsertData adds ground quads.
type InsertData struct {
	Quads []rdf.Quad
}

// DeleteData removes ground quads.
type DeleteData struct {
	Quads []rdf.Quad
}

// A QuadPattern is a triple pattern in the default graph (zero Graph) or in a
// named graph.
type QuadPattern struct {
	Graph Node
	TriplePattern
}

// Modify is DELETE { } INSERT { } WHERE { }, with either template optional.
type Modify struct {
	Delete     []QuadPattern
	Insert     []QuadPattern
	Using      []rdf.Term
	UsingNamed []rdf.Term
	Where      *Group
}

// GraphRefKind identifies what a graph management operation applies to.
type GraphRefKind int

// The possible values of GraphRefKind.
const (
	RefGraph GraphRefKind = iota + 1
	RefDefault
	RefNamed
	RefAll
)

// A GraphRef is the target of CLEAR and DROP.
type GraphRef struct {
	Kind GraphRefKind
	// Only for RefGraph.
	Graph rdf.Term
}

// Clear removes all triples from the target graphs.
type Clear struct {
	Silent bool
	Target GraphRef
}

// Drop removes the target graphs.
type Drop struct {
	Silent bool
	Target GraphRef
}

// Create creates an empty named graph.
type Create struct {
	Silent bool
	Graph  rdf.Term
}

func (*InsertData) isOperation() {}
func (*DeleteData) isOperation() {}
func (*Modify) isOperation()     {}
func (*Clear) isOperation()      {}
func (*Drop) isOperation()       {}
func (*Create) isOperation()     {}
