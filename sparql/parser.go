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
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ebay/sparqld/rdf"
	p "github.com/vektah/goparsify"
)

// The parsers below produce raw syntax: prefixed names, relative IRIs, and
// blank node labels are kept as written, and are resolved against the
// prologue once the whole request has been parsed. See resolve.go.

type rawKind int

const (
	rawIRI rawKind = iota + 1
	rawPName
	rawVar
	rawBlank
	rawLiteral
	rawTypeKeyword
)

type rawTerm struct {
	kind rawKind
	// The IRI, the prefix of a prefixed name, the variable name, the blank
	// node label, or the literal's lexical form.
	value string
	// The local part of a prefixed name.
	local string
	// For literals.
	lang     string
	datatype *rawTerm
	// Byte offset into the input, for error messages.
	offset int
}

type rawTriple struct {
	s, p, o rawTerm
}

// rawGraph is a GRAPH block. Group items are either []rawTriple or rawGraph.
type rawGraph struct {
	name  rawTerm
	items []interface{}
}

type rawDecl struct {
	isBase bool
	prefix string
	iri    rawTerm
}

type rawDataset struct {
	named bool
	iri   rawTerm
}

type rawModifier struct {
	isLimit bool
	value   uint64
}

type rawQuery struct {
	decls      []rawDecl
	form       QueryForm
	distinct   bool
	projection []rawTerm
	datasets   []rawDataset
	template   []interface{}
	where      []interface{}
	modifiers  []rawModifier
}

type rawOpKind int

const (
	opInsertData rawOpKind = iota + 1
	opDeleteData
	opModify
	opClear
	opDrop
	opCreate
)

type rawGraphRef struct {
	kind GraphRefKind
	iri  rawTerm
}

type rawOp struct {
	kind   rawOpKind
	silent bool
	// INSERT DATA / DELETE DATA.
	data []interface{}
	// DELETE/INSERT WHERE. A nil slice means the template is absent.
	del, ins []interface{}
	using    []rawDataset
	where    []interface{}
	// CLEAR, DROP, CREATE.
	ref rawGraphRef
}

type rawStep struct {
	decls  []rawDecl
	offset int
	op     rawOp
}

// starProjection is the result of parsing 'SELECT *'.
type starProjection struct{}

var (
	queryRoot  p.Parser
	updateRoot p.Parser
)

func init() {
	iriRef := p.NewParser("IRI", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		v, end, err := rdf.ScanIRIRef(ps.Input, ps.Pos)
		if err != nil {
			ps.ErrorHere("IRI")
			return
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = rawTerm{kind: rawIRI, value: v, offset: ps.Pos}
		ps.Pos = end
	})
	pname := p.NewParser("prefixed name", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		prefix, end, ok := scanPrefix(ps.Input, ps.Pos)
		if !ok {
			ps.ErrorHere("prefixed name")
			return
		}
		local, end := rdf.ScanLabel(ps.Input, end)
		n.Token = ps.Input[ps.Pos:end]
		n.Result = rawTerm{kind: rawPName, value: prefix, local: local, offset: ps.Pos}
		ps.Pos = end
	})
	pnameNS := p.NewParser("prefix", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		prefix, end, ok := scanPrefix(ps.Input, ps.Pos)
		if !ok || (end < len(ps.Input) && isNameChar(ps.Input, end)) {
			ps.ErrorHere("prefix")
			return
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = prefix
		ps.Pos = end
	})
	variable := p.NewParser("variable", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		in := ps.Get()
		if len(in) < 2 || (in[0] != '?' && in[0] != '$') {
			ps.ErrorHere("variable")
			return
		}
		end := 1
		for end < len(in) {
			r, size := utf8.DecodeRuneInString(in[end:])
			if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			end += size
		}
		if end == 1 {
			ps.ErrorHere("variable")
			return
		}
		n.Token = in[:end]
		n.Result = rawTerm{kind: rawVar, value: in[1:end], offset: ps.Pos}
		ps.Advance(end)
	})
	blank := p.NewParser("blank node", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		if !strings.HasPrefix(ps.Get(), "_:") {
			ps.ErrorHere("blank node")
			return
		}
		label, end := rdf.ScanLabel(ps.Input, ps.Pos+2)
		if label == "" {
			ps.ErrorHere("blank node")
			return
		}
		n.Token = ps.Input[ps.Pos:end]
		n.Result = rawTerm{kind: rawBlank, value: label, offset: ps.Pos}
		ps.Pos = end
	})
	typeKeyword := p.NewParser("a", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		in := ps.Get()
		if !strings.HasPrefix(in, "a") || (len(in) > 1 && (in[1] == ':' || isNameChar(in, 1))) {
			ps.ErrorHere("a")
			return
		}
		n.Token = "a"
		n.Result = rawTerm{kind: rawTypeKeyword, offset: ps.Pos}
		ps.Advance(1)
	})
	stringLiteral := p.NewParser("literal", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		start := ps.Pos
		lex, end, err := rdf.ScanString(ps.Input, start)
		if err != nil {
			ps.ErrorHere("literal")
			return
		}
		term := rawTerm{kind: rawLiteral, value: lex, offset: start}
		switch {
		case strings.HasPrefix(ps.Input[end:], "@"):
			tag, tagEnd, err := rdf.ScanLangTag(ps.Input, end)
			if err != nil {
				ps.Pos = end
				ps.ErrorHere("language tag")
				return
			}
			term.lang = tag
			end = tagEnd
		case strings.HasPrefix(ps.Input[end:], "^^"):
			dt, dtEnd, ok := scanDatatype(ps.Input, end+2)
			if !ok {
				ps.Pos = end + 2
				ps.ErrorHere("datatype")
				return
			}
			term.datatype = &dt
			end = dtEnd
		}
		n.Token = ps.Input[start:end]
		n.Result = term
		ps.Pos = end
	})
	numericLiteral := p.NewParser("number", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		lex, datatype := scanNumber(ps.Get())
		if lex == "" {
			ps.ErrorHere("number")
			return
		}
		n.Token = lex
		n.Result = rawTerm{
			kind:     rawLiteral,
			value:    lex,
			datatype: &rawTerm{kind: rawIRI, value: datatype},
			offset:   ps.Pos,
		}
		ps.Advance(len(lex))
	})
	booleanLiteral := p.NewParser("boolean", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		in := ps.Get()
		for _, b := range []string{"true", "false"} {
			if len(in) >= len(b) && strings.EqualFold(in[:len(b)], b) &&
				(len(in) == len(b) || (in[len(b)] != ':' && !isNameChar(in, len(b)))) {
				n.Token = in[:len(b)]
				n.Result = rawTerm{
					kind:     rawLiteral,
					value:    b,
					datatype: &rawTerm{kind: rawIRI, value: rdf.XSDBoolean},
					offset:   ps.Pos,
				}
				ps.Advance(len(b))
				return
			}
		}
		ps.ErrorHere("boolean")
	})

	iri := p.Any(iriRef, pname)
	varOrIRI := p.Any(variable, iriRef, pname)
	subject := p.Any(variable, iriRef, blank, pname)
	verb := p.Any(variable, iriRef, typeKeyword, pname)
	object := p.Any(variable, iriRef, blank, stringLiteral, numericLiteral, booleanLiteral, pname)

	objectList := repeatOneOrMore(object, ",").Map(func(n *p.Result) {
		objs := make([]rawTerm, len(n.Child))
		for i := range n.Child {
			objs[i] = n.Child[i].Result.(rawTerm)
		}
		n.Result = objs
	})
	type predicateObjects struct {
		verb    rawTerm
		objects []rawTerm
	}
	predicateObjectList := p.Seq(verb, objectList).Map(func(n *p.Result) {
		n.Result = predicateObjects{
			verb:    n.Child[0].Result.(rawTerm),
			objects: n.Child[1].Result.([]rawTerm),
		}
	})
	// Allows "; ;" and a trailing ";", as SPARQL does.
	propertyList := p.Seq(predicateObjectList,
		repeatZeroOrMore(p.Seq(";", p.Maybe(predicateObjectList)))).Map(func(n *p.Result) {
		lists := []predicateObjects{n.Child[0].Result.(predicateObjects)}
		for _, more := range n.Child[1].Child {
			if po, ok := more.Child[1].Result.(predicateObjects); ok {
				lists = append(lists, po)
			}
		}
		n.Result = lists
	})
	triplesSameSubject := p.Seq(subject, propertyList).Map(func(n *p.Result) {
		s := n.Child[0].Result.(rawTerm)
		var triples []rawTriple
		for _, po := range n.Child[1].Result.([]predicateObjects) {
			for _, o := range po.objects {
				triples = append(triples, rawTriple{s: s, p: po.verb, o: o})
			}
		}
		n.Result = triples
	})

	var group p.Parser
	groupRef := func(ps *p.State, n *p.Result) {
		group(ps, n)
	}
	graphBlock := p.Seq(ignoreCase("GRAPH"), varOrIRI, groupRef).Map(func(n *p.Result) {
		n.Result = rawGraph{
			name:  n.Child[1].Result.(rawTerm),
			items: n.Child[2].Result.([]interface{}),
		}
	})
	group = p.Seq("{", repeatZeroOrMore(p.Seq(p.Any(graphBlock, triplesSameSubject), p.Maybe("."))), "}").
		Map(func(n *p.Result) {
			items := make([]interface{}, 0, len(n.Child[1].Child))
			for _, c := range n.Child[1].Child {
				items = append(items, c.Child[0].Result)
			}
			n.Result = items
		})

	prologue := repeatZeroOrMore(p.Any(
		p.Seq(ignoreCase("PREFIX"), pnameNS, iriRef).Map(func(n *p.Result) {
			n.Result = rawDecl{prefix: n.Child[1].Result.(string), iri: n.Child[2].Result.(rawTerm)}
		}),
		p.Seq(ignoreCase("BASE"), iriRef).Map(func(n *p.Result) {
			n.Result = rawDecl{isBase: true, iri: n.Child[1].Result.(rawTerm)}
		}),
	)).Map(func(n *p.Result) {
		decls := make([]rawDecl, len(n.Child))
		for i := range n.Child {
			decls[i] = n.Child[i].Result.(rawDecl)
		}
		n.Result = decls
	})

	datasetClause := func(keyword string) p.Parser {
		return p.Seq(ignoreCase(keyword), p.Maybe(ignoreCase("NAMED")), iri).Map(func(n *p.Result) {
			n.Result = rawDataset{named: n.Child[1].Token != "", iri: n.Child[2].Result.(rawTerm)}
		})
	}
	datasetClauses := func(keyword string) p.Parser {
		return repeatZeroOrMore(datasetClause(keyword)).Map(func(n *p.Result) {
			ds := make([]rawDataset, len(n.Child))
			for i := range n.Child {
				ds[i] = n.Child[i].Result.(rawDataset)
			}
			n.Result = ds
		})
	}
	whereClause := p.Seq(p.Maybe(ignoreCase("WHERE")), groupRef).Map(func(n *p.Result) {
		n.Result = n.Child[1].Result
	})
	modifiers := repeatZeroOrMore(p.Any(
		p.Seq(ignoreCase("LIMIT"), uint64Literal()).Map(func(n *p.Result) {
			n.Result = rawModifier{isLimit: true, value: n.Child[1].Result.(uint64)}
		}),
		p.Seq(ignoreCase("OFFSET"), uint64Literal()).Map(func(n *p.Result) {
			n.Result = rawModifier{value: n.Child[1].Result.(uint64)}
		}),
	)).Map(func(n *p.Result) {
		mods := make([]rawModifier, len(n.Child))
		for i := range n.Child {
			mods[i] = n.Child[i].Result.(rawModifier)
		}
		n.Result = mods
	})

	projection := p.Any(
		p.Exact("*").Map(func(n *p.Result) {
			n.Result = starProjection{}
		}),
		repeatOneOrMore(variable).Map(func(n *p.Result) {
			vars := make([]rawTerm, len(n.Child))
			for i := range n.Child {
				vars[i] = n.Child[i].Result.(rawTerm)
			}
			n.Result = vars
		}),
	)
	selectQuery := p.Seq(ignoreCase("SELECT"), p.Maybe(ignoreCase("DISTINCT")), projection,
		datasetClauses("FROM"), whereClause, modifiers).Map(func(n *p.Result) {
		q := &rawQuery{
			form:      SelectForm,
			distinct:  n.Child[1].Token != "",
			datasets:  n.Child[3].Result.([]rawDataset),
			where:     n.Child[4].Result.([]interface{}),
			modifiers: n.Child[5].Result.([]rawModifier),
		}
		if vars, ok := n.Child[2].Result.([]rawTerm); ok {
			q.projection = vars
		}
		n.Result = q
	})
	askQuery := p.Seq(ignoreCase("ASK"), datasetClauses("FROM"), whereClause).Map(func(n *p.Result) {
		n.Result = &rawQuery{
			form:     AskForm,
			datasets: n.Child[1].Result.([]rawDataset),
			where:    n.Child[2].Result.([]interface{}),
		}
	})
	constructQuery := p.Seq(ignoreCase("CONSTRUCT"), groupRef, datasetClauses("FROM"),
		whereClause, modifiers).Map(func(n *p.Result) {
		n.Result = &rawQuery{
			form:      ConstructForm,
			template:  n.Child[1].Result.([]interface{}),
			datasets:  n.Child[2].Result.([]rawDataset),
			where:     n.Child[3].Result.([]interface{}),
			modifiers: n.Child[4].Result.([]rawModifier),
		}
	})
	queryRoot = p.Seq(prologue, p.Any(selectQuery, askQuery, constructQuery)).Map(func(n *p.Result) {
		q := n.Child[1].Result.(*rawQuery)
		q.decls = n.Child[0].Result.([]rawDecl)
		n.Result = q
	})

	silent := p.Maybe(ignoreCase("SILENT"))
	insertData := p.Seq(ignoreCase("INSERT"), ignoreCase("DATA"), groupRef).Map(func(n *p.Result) {
		op := rawOp{kind: opInsertData}
		op.data = n.Child[2].Result.([]interface{})
		n.Result = op
	})
	deleteData := p.Seq(ignoreCase("DELETE"), ignoreCase("DATA"), groupRef).Map(func(n *p.Result) {
		op := rawOp{kind: opDeleteData}
		op.data = n.Child[2].Result.([]interface{})
		n.Result = op
	})
	deleteWhere := p.Seq(ignoreCase("DELETE"), ignoreCase("WHERE"), groupRef).Map(func(n *p.Result) {
		op := rawOp{kind: opModify}
		op.del = n.Child[2].Result.([]interface{})
		op.where = op.del
		n.Result = op
	})
	template := func(keyword string) p.Parser {
		return p.Seq(ignoreCase(keyword), groupRef).Map(func(n *p.Result) {
			n.Result = n.Child[1].Result
		})
	}
	modify := p.Seq(p.Maybe(template("DELETE")), p.Maybe(template("INSERT")),
		datasetClauses("USING"), ignoreCase("WHERE"), groupRef).Map(func(n *p.Result) {
		op := rawOp{kind: opModify}
		if del, ok := n.Child[0].Result.([]interface{}); ok {
			op.del = del
		}
		if ins, ok := n.Child[1].Result.([]interface{}); ok {
			op.ins = ins
		}
		op.using = n.Child[2].Result.([]rawDataset)
		op.where = n.Child[4].Result.([]interface{})
		n.Result = op
	})
	graphRefAll := p.Any(
		p.Seq(ignoreCase("GRAPH"), iri).Map(func(n *p.Result) {
			n.Result = rawGraphRef{kind: RefGraph, iri: n.Child[1].Result.(rawTerm)}
		}),
		ignoreCase("DEFAULT").Map(func(n *p.Result) {
			n.Result = rawGraphRef{kind: RefDefault}
		}),
		ignoreCase("NAMED").Map(func(n *p.Result) {
			n.Result = rawGraphRef{kind: RefNamed}
		}),
		ignoreCase("ALL").Map(func(n *p.Result) {
			n.Result = rawGraphRef{kind: RefAll}
		}),
	)
	graphManagement := func(keyword string, kind rawOpKind) p.Parser {
		return p.Seq(ignoreCase(keyword), silent, graphRefAll).Map(func(n *p.Result) {
			op := rawOp{kind: kind}
			op.silent = n.Child[1].Token != ""
			op.ref = n.Child[2].Result.(rawGraphRef)
			n.Result = op
		})
	}
	create := p.Seq(ignoreCase("CREATE"), silent, ignoreCase("GRAPH"), iri).Map(func(n *p.Result) {
		op := rawOp{kind: opCreate}
		op.silent = n.Child[1].Token != ""
		op.ref = rawGraphRef{kind: RefGraph, iri: n.Child[3].Result.(rawTerm)}
		n.Result = op
	})
	operation := p.Any(insertData, deleteData, deleteWhere, modify,
		graphManagement("CLEAR", opClear), graphManagement("DROP", opDrop), create)
	// position consumes nothing and records where the next token starts.
	position := p.NewParser("", func(ps *p.State, n *p.Result) {
		ps.WS(ps)
		n.Result = ps.Pos
	})
	step := p.Seq(prologue, position, operation).Map(func(n *p.Result) {
		n.Result = rawStep{
			decls:  n.Child[0].Result.([]rawDecl),
			offset: n.Child[1].Result.(int),
			op:     n.Child[2].Result.(rawOp),
		}
	})
	steps := p.Seq(step, repeatZeroOrMore(p.Seq(";", step)), p.Maybe(";")).Map(func(n *p.Result) {
		all := []rawStep{n.Child[0].Result.(rawStep)}
		for _, c := range n.Child[1].Child {
			all = append(all, c.Child[1].Result.(rawStep))
		}
		n.Result = all
	})
	updateRoot = p.Any(steps, prologue)
}

// repeatZeroOrMore matches zero or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned.
func repeatZeroOrMore(parser p.Parserish, sep ...p.Parserish) p.Parser {
	return p.Some(parser, sep...)
}

// repeatOneOrMore matches one or more parsers and returns the value as
// .Child[n]. An optional separator can be provided and that value will be
// consumed but not returned.
func repeatOneOrMore(parser p.Parserish, sep ...p.Parserish) p.Parser {
	return p.Many(parser, sep...)
}

// uint64Literal parses a uint64 in base 10 from state.
func uint64Literal() p.Parser {
	return p.NewParser("integer", func(ps *p.State, node *p.Result) {
		ps.WS(ps)
		end := ps.Pos
		for end < len(ps.Input) && ps.Input[end] >= '0' && ps.Input[end] <= '9' {
			end++
		}
		if end == ps.Pos {
			ps.ErrorHere("integer")
			return
		}
		v, err := strconv.ParseUint(ps.Input[ps.Pos:end], 10, 64)
		if err != nil {
			ps.ErrorHere("integer")
			return
		}
		node.Token = ps.Input[ps.Pos:end]
		node.Result = v
		ps.Pos = end
	})
}

// ignoreCase returns a parser that matches the supplied keyword ignoring case.
func ignoreCase(match string) p.Parser {
	return p.NewParser(match, func(s *p.State, r *p.Result) {
		s.WS(s)
		in := s.Get()
		if len(in) < len(match) || !strings.EqualFold(match, in[:len(match)]) {
			s.ErrorHere(match)
			return
		}
		s.Advance(len(match))
		r.Token = in[:len(match)]
	})
}

// sparqlWS is a goparsify whitespace parser for SPARQL. Whitespace chars are
// ' ' \t \r \n only. '#' starts a comment which runs to the end of the line.
func sparqlWS(s *p.State) {
	for s.Pos < len(s.Input) {
		switch s.Input[s.Pos] {
		case ' ', '\t', '\r', '\n':
			s.Pos++
		case '#':
			for s.Pos < len(s.Input) && s.Input[s.Pos] != '\n' && s.Input[s.Pos] != '\r' {
				s.Pos++
			}
		default:
			return
		}
	}
}

// isNameChar returns true if the rune at in[i] may continue a prefixed name.
func isNameChar(in string, i int) bool {
	r, _ := utf8.DecodeRuneInString(in[i:])
	return rdf.IsLabelChar(r)
}

// scanPrefix reads the prefix part of a prefixed name, including the colon,
// starting at in[pos]. The prefix may be empty.
func scanPrefix(in string, pos int) (prefix string, end int, ok bool) {
	end = pos
	for end < len(in) {
		r, size := utf8.DecodeRuneInString(in[end:])
		if r == ':' {
			return in[pos:end], end + 1, true
		}
		if !rdf.IsLabelChar(r) || (end == pos && (r == '.' || r == '-' || r == '_' || unicode.IsDigit(r))) {
			return "", pos, false
		}
		end += size
	}
	return "", pos, false
}

// scanDatatype reads the IRI or prefixed name following "^^".
func scanDatatype(in string, pos int) (rawTerm, int, bool) {
	if pos < len(in) && in[pos] == '<' {
		v, end, err := rdf.ScanIRIRef(in, pos)
		if err != nil {
			return rawTerm{}, pos, false
		}
		return rawTerm{kind: rawIRI, value: v, offset: pos}, end, true
	}
	prefix, end, ok := scanPrefix(in, pos)
	if !ok {
		return rawTerm{}, pos, false
	}
	local, end := rdf.ScanLabel(in, end)
	return rawTerm{kind: rawPName, value: prefix, local: local, offset: pos}, end, true
}

// scanNumber reads an integer, decimal, or double from the start of 'in'. It
// returns an empty lexical form if there isn't one.
func scanNumber(in string) (lex, datatype string) {
	i := 0
	if i < len(in) && (in[i] == '+' || in[i] == '-') {
		i++
	}
	digits := func() int {
		start := i
		for i < len(in) && in[i] >= '0' && in[i] <= '9' {
			i++
		}
		return i - start
	}
	intDigits := digits()
	datatype = rdf.XSDInteger
	if i+1 < len(in) && in[i] == '.' && in[i+1] >= '0' && in[i+1] <= '9' {
		i++
		digits()
		datatype = rdf.XSDDecimal
	} else if intDigits == 0 {
		return "", ""
	}
	if i < len(in) && (in[i] == 'e' || in[i] == 'E') {
		mark := i
		i++
		if i < len(in) && (in[i] == '+' || in[i] == '-') {
			i++
		}
		if digits() == 0 {
			i = mark
		} else {
			datatype = rdf.XSDDouble
		}
	}
	return in[:i], datatype
}

// ParseError captures more detailed information about a parsing error, and
// where it occurred.
type ParseError struct {
	// "query" or "update".
	ParseType string
	// The input string to the parser which resulted in this error.
	Input string
	// Offset is the byte offset into 'Input' at which the error occurred.
	Offset int
	// Line is the line number in 'Input' at which the error occurred.
	Line int
	// Column is the column (in runes) into the indicated Line that the error
	// occurred.
	Column int
	// The specific parser error that occurred.
	Details string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s: line %d column %d: %s",
		e.ParseType, e.Line, e.Column, e.Details)
}

func newParseError(typ, input string, offset int, details string) *ParseError {
	line, col := coordinates(input, offset)
	return &ParseError{
		ParseType: typ,
		Input:     input,
		Offset:    offset,
		Line:      line,
		Column:    col,
		Details:   details,
	}
}

// coordinates returns the line & column of the supplied offset in the string
// 'input'. Offset is in bytes, the returned column value is in runes.
func coordinates(input string, atOffset int) (line, col int) {
	input = strings.TrimRightFunc(input, unicode.IsSpace)
	if atOffset > len(input) {
		atOffset = len(input)
	}
	line = 1
	lineStart := 0
	for i := 0; i < atOffset; i++ {
		if input[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, utf8.RuneCountInString(input[lineStart:atOffset]) + 1
}

// expectedText extracts the expected text from a goparsify error. This relies
// on the format of goparsify's error messages.
func expectedText(e *p.Error) string {
	msg := e.Error()
	idx := strings.Index(msg, "expected")
	if idx == -1 {
		return msg
	}
	return strings.TrimSpace(msg[idx+len("expected"):])
}

// parse runs the root parser over the whole input.
func parse(typ, in string, root p.Parser) (interface{}, error) {
	state := p.NewState(in)
	state.WS = sparqlWS
	state.WS(state)
	result := p.Result{}
	root(state, &result)
	if state.Errored() {
		return nil, newParseError(typ, in, state.Error.Pos(), "expected "+expectedText(&state.Error))
	}
	state.WS(state)
	if unparsed := state.Get(); unparsed != "" {
		return nil, newParseError(typ, in, state.Pos,
			fmt.Sprintf("unparsed text: '%s'", firstLine(unparsed)))
	}
	return result.Result, nil
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
