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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TermString(t *testing.T) {
	tests := []struct {
		term Term
		exp  string
	}{
		{IRI("http://example.org/a"), "<http://example.org/a>"},
		{Blank("b0"), "_:b0"},
		{Literal("bob", ""), `"bob"`},
		{Literal("bob", XSDString), `"bob"`},
		{Literal("42", XSDInteger), `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`},
		{LangLiteral("chat", "FR"), `"chat"@fr`},
		{Literal("a \"quoted\"\nline", ""), `"a \"quoted\"\nline"`},
		{Term{}, "ANY"},
	}
	for _, test := range tests {
		t.Run(test.exp, func(t *testing.T) {
			assert.Equal(t, test.exp, test.term.String())
		})
	}
}

func Test_DatatypeIRI(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(XSDString, Literal("x", "").DatatypeIRI())
	assert.Equal(RDFLangString, LangLiteral("x", "en").DatatypeIRI())
	assert.Equal(XSDInteger, Literal("1", XSDInteger).DatatypeIRI())
	assert.Equal("", IRI("http://x").DatatypeIRI())
}

func Test_Compare(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(-1, Compare(Term{}, IRI("a")))
	assert.Equal(-1, Compare(IRI("z"), Blank("a")))
	assert.Equal(1, Compare(Literal("b", ""), Literal("a", "")))
	assert.Equal(0, Compare(LangLiteral("a", "en"), LangLiteral("a", "EN")))
	assert.Equal(-1, Compare(Literal("a", ""), Literal("a", XSDInteger)))
}

func Test_QuadGraph(t *testing.T) {
	assert := assert.New(t)
	tr := NewTriple(IRI("s"), IRI("p"), IRI("o"))
	assert.True(InGraph(Term{}, tr).InDefaultGraph())
	assert.True(InGraph(DefaultGraph, tr).InDefaultGraph())
	assert.Equal(DefaultGraph, InGraph(Term{}, tr).Graph())
	q := InGraph(IRI("g"), tr)
	assert.False(q.InDefaultGraph())
	assert.Equal("<s> <p> <o> <g> .", q.String())
	assert.Equal("<s> <p> <o> .", q.Triple().String())
}

func Test_TripleMatches(t *testing.T) {
	assert := assert.New(t)
	tr := NewTriple(IRI("s"), IRI("p"), Literal("o", ""))
	assert.True(tr.Matches(Triple{}))
	assert.True(tr.Matches(Triple{S: IRI("s")}))
	assert.False(tr.Matches(Triple{S: IRI("x")}))
	assert.True(tr.Valid())
	assert.False(NewTriple(Literal("s", ""), IRI("p"), IRI("o")).Valid())
}

func Test_Unescape(t *testing.T) {
	tests := []struct {
		in     string
		exp    string
		errMsg string
	}{
		{in: `plain`, exp: "plain"},
		{in: `a\tb\nc`, exp: "a\tb\nc"},
		{in: `\"q\"`, exp: `"q"`},
		{in: `été`, exp: "été"},
		{in: `\U0001F600`, exp: "😀"},
		{in: `bad\q`, errMsg: `invalid escape '\q'`},
		{in: `short\u12`, errMsg: "short unicode escape at offset 5"},
		{in: `end\`, errMsg: "dangling escape at offset 3"},
	}
	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			act, err := Unescape(test.in)
			if test.errMsg != "" {
				assert.EqualError(t, err, test.errMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.exp, act)
			assert.Equal(t, test.exp, mustUnescape(t, EscapeString(act)))
		})
	}
}

func mustUnescape(t *testing.T, s string) string {
	r, err := Unescape(s)
	require.NoError(t, err)
	return r
}

func Test_ScanString(t *testing.T) {
	assert := assert.New(t)
	v, end, err := ScanString(`x "a\"b" rest`, 2)
	assert.NoError(err)
	assert.Equal(`a"b`, v)
	assert.Equal(8, end)

	v, end, err = ScanString(`'single'`, 0)
	assert.NoError(err)
	assert.Equal("single", v)
	assert.Equal(8, end)

	_, _, err = ScanString(`"open`, 0)
	assert.EqualError(err, "unterminated string")
	_, _, err = ScanString("\"two\nlines\"", 0)
	assert.EqualError(err, "unterminated string")
}

func Test_ScanIRIRef(t *testing.T) {
	assert := assert.New(t)
	v, end, err := ScanIRIRef("<http://x/y> .", 0)
	assert.NoError(err)
	assert.Equal("http://x/y", v)
	assert.Equal(12, end)

	v, _, err = ScanIRIRef("<>", 0)
	assert.NoError(err)
	assert.Equal("", v)

	_, _, err = ScanIRIRef("<a b>", 0)
	assert.EqualError(err, `invalid character ' ' in IRI`)
}

func Test_ScanLabel(t *testing.T) {
	assert := assert.New(t)
	l, end := ScanLabel("abc.def. ", 0)
	assert.Equal("abc.def", l)
	assert.Equal(7, end)
	l, end = ScanLabel("x1 y", 0)
	assert.Equal("x1", l)
	assert.Equal(2, end)
}

func Test_ScanLangTag(t *testing.T) {
	assert := assert.New(t)
	tag, end, err := ScanLangTag(`@en-US .`, 0)
	assert.NoError(err)
	assert.Equal("en-us", tag)
	assert.Equal(6, end)
	_, _, err = ScanLangTag(`@-en`, 0)
	assert.EqualError(err, "empty language tag")
}

func Test_Resolve(t *testing.T) {
	tests := []struct {
		base, ref string
		exp       string
		errMsg    string
	}{
		{base: "http://host/ds", ref: "g1", exp: "http://host/g1"},
		{base: "http://host/ds/", ref: "g1", exp: "http://host/ds/g1"},
		{base: "http://host/ds?graph=x", ref: "../other", exp: "http://host/other"},
		{base: "http://host/ds", ref: "http://elsewhere/g", exp: "http://elsewhere/g"},
		{base: "http://host/ds", ref: DefaultGraphIRI, exp: DefaultGraphIRI},
		{base: "", ref: "g1", errMsg: "relative IRI <g1> with no base"},
		{base: "rel/base", ref: "g1", errMsg: "base IRI <rel/base> is not absolute"},
	}
	for _, test := range tests {
		t.Run(test.base+" "+test.ref, func(t *testing.T) {
			act, err := Resolve(test.base, test.ref)
			if test.errMsg != "" {
				assert.EqualError(t, err, test.errMsg)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.exp, act)
		})
	}
}

func Test_BlankNodeScope(t *testing.T) {
	assert := assert.New(t)
	s1 := NewBlankNodeScope("doc1")
	s2 := NewBlankNodeScope("doc2")
	assert.Equal(s1.Label("a"), s1.Label("a"))
	assert.NotEqual(s1.Label("a"), s1.Label("b"))
	assert.NotEqual(s1.Label("a"), s2.Label("a"))
	assert.Len(s1.Label("a"), 17)
	assert.True(s1.Blank("a").IsBlank())
}
