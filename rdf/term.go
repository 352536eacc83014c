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

// Package rdf defines the RDF terms, triples, and quads that flow between the
// protocol layer, the stores, and the codecs.
package rdf

import (
	"fmt"
	"strings"
)

// Well-known IRIs.
const (
	// DefaultGraphIRI names the default graph of a dataset when it has to be
	// written down as an IRI, for example in a Quad.
	DefaultGraphIRI = "urn:x-arq:DefaultGraph"
	// UnionGraphIRI names the union of all the named graphs of a dataset.
	UnionGraphIRI = "urn:x-arq:UnionGraph"

	RDFType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
	XSDBoolean    = "http://www.w3.org/2001/XMLSchema#boolean"
	XSDInteger    = "http://www.w3.org/2001/XMLSchema#integer"
	XSDDecimal    = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDouble     = "http://www.w3.org/2001/XMLSchema#double"
)

// Kind identifies the type of a Term.
type Kind uint8

// The possible values of Kind. The zero value is used for the zero Term, which
// acts as a wildcard in patterns.
const (
	KindNone Kind = iota
	KindIRI
	KindBlank
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// A Term is an IRI, a blank node, or a literal. Terms are comparable values
// and may be used as map keys. The zero Term matches anything when used in a
// pattern.
type Term struct {
	Kind Kind
	// The IRI, the blank node label (without "_:"), or the literal's lexical
	// form.
	Value string
	// Literals only. Empty means xsd:string, or rdf:langString when Lang is
	// set.
	Datatype string
	// Literals only. The language tag, lower cased.
	Lang string
}

// DefaultGraph is the Term used for the default graph in quads.
var DefaultGraph = IRI(DefaultGraphIRI)

// IRI returns an IRI term.
func IRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// Blank returns a blank node with the given label.
func Blank(label string) Term {
	return Term{Kind: KindBlank, Value: label}
}

// Literal returns a literal with the given datatype. An empty datatype or
// xsd:string results in a simple literal.
func Literal(lexical, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: lexical, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(lexical, lang string) Term {
	return Term{Kind: KindLiteral, Value: lexical, Lang: strings.ToLower(lang)}
}

// IsZero returns true for the zero Term.
func (t Term) IsZero() bool {
	return t.Kind == KindNone
}

// IsIRI returns true if the term is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsBlank returns true if the term is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral returns true if the term is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsDefaultGraph returns true if the term names the default graph. The zero
// Term is not considered to name the default graph.
func (t Term) IsDefaultGraph() bool {
	return t.Kind == KindIRI && t.Value == DefaultGraphIRI
}

// DatatypeIRI returns the effective datatype of a literal.
func (t Term) DatatypeIRI() string {
	switch {
	case t.Kind != KindLiteral:
		return ""
	case t.Lang != "":
		return RDFLangString
	case t.Datatype == "":
		return XSDString
	}
	return t.Datatype
}

// String returns the term in N-Triples syntax. The zero Term is written as
// "ANY".
func (t Term) String() string {
	var b strings.Builder
	t.writeTo(&b)
	return b.String()
}

func (t Term) writeTo(b *strings.Builder) {
	switch t.Kind {
	case KindIRI:
		b.WriteByte('<')
		b.WriteString(EscapeIRI(t.Value))
		b.WriteByte('>')
	case KindBlank:
		b.WriteString("_:")
		b.WriteString(t.Value)
	case KindLiteral:
		b.WriteByte('"')
		b.WriteString(EscapeString(t.Value))
		b.WriteByte('"')
		if t.Lang != "" {
			b.WriteByte('@')
			b.WriteString(t.Lang)
		} else if t.Datatype != "" {
			b.WriteString("^^<")
			b.WriteString(EscapeIRI(t.Datatype))
			b.WriteByte('>')
		}
	default:
		b.WriteString("ANY")
	}
}

// Compare orders terms by kind, then value, then datatype, then language. The
// zero Term sorts before everything else.
func Compare(a, b Term) int {
	switch {
	case a.Kind < b.Kind:
		return -1
	case a.Kind > b.Kind:
		return 1
	}
	if c := strings.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(a.Datatype, b.Datatype); c != 0 {
		return c
	}
	return strings.Compare(a.Lang, b.Lang)
}

// Matches returns true if 'pattern' is the zero Term or equal to t.
func (t Term) Matches(pattern Term) bool {
	return pattern.IsZero() || pattern == t
}
