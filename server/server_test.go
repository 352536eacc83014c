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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ebay/sparqld/changelog"
	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/sparql/results"
	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/boltstore"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/ebay/sparqld/store/txlock"
	"github.com/ebay/sparqld/util/parallel"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend opens an empty dataset of one kind.
type backend struct {
	name string
	open func(t *testing.T) store.Dataset
}

var backends = []backend{
	{"memory", func(t *testing.T) store.Dataset {
		return txlock.New("ds", memstore.New())
	}},
	{"bolt", func(t *testing.T) store.Dataset {
		ds, err := boltstore.Open(filepath.Join(t.TempDir(), "data.bolt"))
		require.NoError(t, err)
		t.Cleanup(func() { ds.Close() })
		return ds
	}},
}

// forEachBackend runs the test against every kind of dataset.
func forEachBackend(t *testing.T, test func(t *testing.T, b backend)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			test(t, b)
		})
	}
}

type recordingPublisher struct {
	lock   sync.Mutex
	events []changelog.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e changelog.Event) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []changelog.Event {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]changelog.Event(nil), p.events...)
}

type testServer struct {
	t       *testing.T
	server  *Server
	handler http.Handler
	ds      *DatasetRef
	changes *recordingPublisher
}

func newTestServer(t *testing.T, dataset store.Dataset, policy *Policy) *testServer {
	ds := NewDatasetRef("/ds", dataset, policy, nil)
	reg, err := NewRegistry(ds)
	require.NoError(t, err)
	changes := new(recordingPublisher)
	s := New(reg, Options{ChangeLog: changes})
	return &testServer{t: t, server: s, handler: s.Handler(), ds: ds, changes: changes}
}

type header struct {
	key, value string
}

func (ts *testServer) do(method, target, contentType, body string, headers ...header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	for _, h := range headers {
		r.Header.Set(h.key, h.value)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func (ts *testServer) put(target, body string) *httptest.ResponseRecorder {
	return ts.do("PUT", target, "application/n-triples", body)
}

func (ts *testServer) update(text string) *httptest.ResponseRecorder {
	return ts.do("POST", "/ds/update", "application/sparql-update", text)
}

func (ts *testServer) ask(query string) bool {
	w := ts.do("GET", "/ds/sparql?query="+url.QueryEscape(query), "", "",
		header{"Accept", "application/sparql-results+json"})
	require.Equal(ts.t, 200, w.Code, w.Body.String())
	var res struct {
		Boolean bool `json:"boolean"`
	}
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Boolean
}

// lines returns the non-empty lines of a body, sorted.
func lines(body string) []string {
	var res []string
	for _, l := range strings.Split(body, "\n") {
		if l != "" {
			res = append(res, l)
		}
	}
	sort.Strings(res)
	return res
}

func (ts *testServer) assertBalanced() {
	begins, ends := ts.ds.TxnCounts()
	assert.Equal(ts.t, begins, ends, "transaction begins and ends")
}

const (
	tripleA = `<http://ex/s> <http://ex/p> "a" .`
	tripleB = `<http://ex/s> <http://ex/p> "b" .`
	tripleC = `<http://ex/s> <http://ex/p> "c" .`
)

func Test_UpdateThenQuery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		assert.False(t, ts.ask(`ASK { <http://ex/s> <http://ex/p> "a" }`))
		w := ts.update(`INSERT DATA { <http://ex/s> <http://ex/p> "a" . GRAPH <http://ex/g> { <http://ex/s> <http://ex/p> "b" } }`)
		assert.Equal(t, 204, w.Code, w.Body.String())
		assert.True(t, ts.ask(`ASK { <http://ex/s> <http://ex/p> "a" }`))
		assert.True(t, ts.ask(`ASK { GRAPH <http://ex/g> { ?s ?p "b" } }`))

		w = ts.do("GET", "/ds?query="+url.QueryEscape(`SELECT ?o { ?s ?p ?o }`), "", "",
			header{"Accept", "text/csv"})
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "o\r\na\r\n", w.Body.String())

		events := ts.changes.Events()
		if assert.Len(t, events, 1) {
			assert.Equal(t, "/ds", events[0].Dataset)
			assert.Equal(t, "update", events[0].Operation)
			assert.Equal(t, 2, events[0].Added)
		}
		ts.assertBalanced()
	})
}

func Test_QueryForms(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	require.Equal(t, 204, ts.put("/ds?default", tripleA+"\n"+tripleB+"\n").Code)

	form := url.Values{"query": {`SELECT ?o { ?s ?p ?o }`}, "output": {"tsv"}}.Encode()
	w := ts.do("POST", "/ds/sparql", "application/x-www-form-urlencoded", form)
	assert.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, "text/tab-separated-values; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, []string{`"a"`, `"b"`, "?o"}, lines(w.Body.String()))

	w = ts.do("POST", "/ds/sparql", "application/sparql-query",
		`CONSTRUCT { ?s <http://ex/q> ?o } WHERE { ?s ?p ?o }`)
	assert.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, "application/n-triples; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<http://ex/s> <http://ex/q> \"a\" .\n<http://ex/s> <http://ex/q> \"b\" .\n", w.Body.String())

	w = ts.do("GET", "/ds/sparql?query="+url.QueryEscape(`ASK {}`)+"&force-accept=text/plain", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))

	// FROM is overridden by default-graph-uri.
	require.Equal(t, 201, ts.put("/ds?graph=http://ex/g", tripleC).Code)
	q := url.QueryEscape(`SELECT ?o FROM <http://ex/nope> { ?s ?p ?o }`)
	w = ts.do("GET", "/ds/sparql?output=csv&default-graph-uri=http://ex/g&query="+q, "", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "o\r\nc\r\n", w.Body.String())
}

func Test_QueryErrors(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		status      int
		message     string
	}{
		{"noQuery", "GET", "/ds/sparql", "", "", 400, "no query given"},
		{"twoQueries", "GET", "/ds/sparql?query=ASK{}&query=ASK{}", "", "", 400, "query= given 2 times"},
		{"syntax", "GET", "/ds/sparql?query=" + url.QueryEscape("SELECT * {"), "", "", 400, ""},
		{"bodyAndParam", "POST", "/ds/sparql?query=ASK{}", "application/sparql-query", "ASK {}", 400,
			"query given both as the body and as query="},
		{"badContentType", "POST", "/ds/sparql", "text/turtle", "ASK {}", 415, "unsupported Content-Type"},
		{"badTimeout", "GET", "/ds/sparql?timeout=soon&query=ASK{}", "", "", 400, "bad timeout"},
		{"thrift", "GET", "/ds/sparql?output=thrift&query=ASK{}", "", "", 400, "can't produce"},
		{"updateSyntax", "POST", "/ds/update", "application/sparql-update", "INSERT NONSENSE", 400, ""},
		{"updateGET", "GET", "/ds/update?update=CLEAR+ALL", "", "", 405, ""},
		{"usingWithUSING", "POST", "/ds/update?using-graph-uri=http://ex/g", "application/sparql-update",
			"DELETE { ?s ?p ?o } USING <http://ex/h> WHERE { ?s ?p ?o }", 400, "can't be combined with USING"},
		{"noDataset", "GET", "/nope/sparql?query=ASK{}", "", "", 404, "no dataset at /nope/sparql"},
		{"ambiguous", "GET", "/ds?query=ASK{}&default", "", "", 400, "ambiguous request"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := ts.do(test.method, test.target, test.contentType, test.body)
			assert.Equal(t, test.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), test.message)
			assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
		})
	}
	ts.assertBalanced()
}

func Test_GSP(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		const g = "/ds/data?graph=http://ex/g1"

		w := ts.do("GET", g, "", "")
		assert.Equal(t, 404, w.Code)
		w = ts.do("DELETE", g, "", "")
		assert.Equal(t, 404, w.Code)

		w = ts.put(g, tripleA+"\n"+tripleB+"\n")
		assert.Equal(t, 201, w.Code, w.Body.String())
		w = ts.put(g, tripleC+"\n")
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("GET", g, "", "")
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "application/n-triples; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, []string{tripleC}, lines(w.Body.String()))

		w = ts.do("POST", g, "text/plain", tripleA)
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("GET", g, "", "", header{"Accept", "text/plain"})
		assert.Equal(t, []string{tripleA, tripleC}, lines(w.Body.String()))

		w = ts.do("HEAD", g, "", "")
		assert.Equal(t, 200, w.Code)
		assert.Empty(t, w.Body.String())

		w = ts.do("DELETE", g, "", "")
		assert.Equal(t, 204, w.Code)
		w = ts.do("GET", g, "", "")
		assert.Equal(t, 404, w.Code)

		// POST to a missing graph creates it.
		w = ts.do("POST", "/ds/data?graph=http://ex/g2", "application/n-triples", tripleA)
		assert.Equal(t, 201, w.Code, w.Body.String())

		var ops []string
		for _, e := range ts.changes.Events() {
			ops = append(ops, fmt.Sprintf("%s %s +%d -%d", e.Operation, e.Graph, e.Added, e.Removed))
		}
		assert.Equal(t, []string{
			"gsp-write http://ex/g1 +2 -0",
			"gsp-write http://ex/g1 +1 -2",
			"gsp-write http://ex/g1 +1 -0",
			"gsp-write http://ex/g1 +0 -2",
			"gsp-write http://ex/g2 +1 -0",
		}, ops)
		ts.assertBalanced()
	})
}

func Test_GSPDefaultGraph(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		// The default graph always exists.
		w := ts.put("/ds?default", tripleA)
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("POST", "/ds?graph=default", "application/n-triples", tripleB)
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("GET", "/ds/get?default", "", "")
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, []string{tripleA, tripleB}, lines(w.Body.String()))

		w = ts.do("DELETE", "/ds?default", "", "")
		assert.Equal(t, 204, w.Code)
		w = ts.do("GET", "/ds?default", "", "")
		assert.Equal(t, 200, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func Test_GSPDirectNaming(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	w := ts.put("/ds/graphs/one", tripleA)
	assert.Equal(t, 201, w.Code, w.Body.String())
	assert.True(t, ts.ask(`ASK { GRAPH <http://example.com/ds/graphs/one> { ?s ?p "a" } }`))
	w = ts.do("GET", "/ds/graphs/one", "", "")
	assert.Equal(t, []string{tripleA}, lines(w.Body.String()))
	w = ts.do("GET", "/ds?graph=graphs/two", "", "")
	assert.Equal(t, 404, w.Code)
}

func Test_GSPServiceNeedsGraph(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	for _, target := range []string{"/ds/data", "/ds/get"} {
		w := ts.do("GET", target, "", "")
		assert.Equal(t, 400, w.Code, target)
		assert.Contains(t, w.Body.String(), "no graph given")
	}
	w := ts.put("/ds/data", tripleA)
	assert.Equal(t, 400, w.Code, w.Body.String())
	w = ts.do("POST", "/ds/data", "application/n-triples", tripleA)
	assert.Equal(t, 400, w.Code, w.Body.String())
	assert.False(t, ts.ask(`ASK { GRAPH <http://example.com/ds/data> { ?s ?p ?o } }`))
	assert.False(t, ts.ask(`ASK { ?s ?p ?o }`))
	ts.assertBalanced()
}

func Test_GSPWriteErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		const g = "/ds/data?graph=http://ex/g1"
		require.Equal(t, 201, ts.put(g, tripleA).Code)

		tests := []struct {
			name        string
			method      string
			contentType string
			body        string
			status      int
		}{
			{"syntax", "PUT", "application/n-triples", tripleB + "\n<http://ex/s> <http://ex/p> .\n", 400},
			{"syntaxPOST", "POST", "application/n-triples", tripleB + "\n<http://ex/s> \"p\" <http://ex/o> .\n", 400},
			{"namedGraphInBody", "PUT", "application/n-quads", tripleB + "\n<http://ex/s> <http://ex/p> <http://ex/o> <http://ex/h> .\n", 400},
			{"noContentType", "PUT", "", tripleB, 415},
			{"unknownContentType", "PUT", "text/turtle", tripleB, 415},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				w := ts.do(test.method, g, test.contentType, test.body)
				assert.Equal(t, test.status, w.Code, w.Body.String())
				// A failed write leaves the graph as it was.
				w = ts.do("GET", g, "", "")
				assert.Equal(t, []string{tripleA}, lines(w.Body.String()))
			})
		}
		ts.assertBalanced()
	})
}

func Test_ConcurrentReadsSeeWholeWrites(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		const g = "/ds/data?graph=http://ex/g"
		docs := [][]string{
			{`<http://ex/s> <http://ex/p> "1" .`, `<http://ex/s> <http://ex/p> "2" .`, `<http://ex/s> <http://ex/p> "3" .`},
			{`<http://ex/s> <http://ex/p> "x" .`, `<http://ex/s> <http://ex/p> "y" .`},
		}
		require.Equal(t, 201, ts.put(g, strings.Join(docs[0], "\n")).Code)
		err := parallel.InvokeN(context.Background(), 40, func(ctx context.Context, i int) error {
			if i%2 == 0 {
				w := ts.put(g, strings.Join(docs[(i/2)%2], "\n"))
				if w.Code != 204 {
					return fmt.Errorf("PUT: %d %s", w.Code, w.Body.String())
				}
				return nil
			}
			w := ts.do("GET", g, "", "")
			if w.Code != 200 {
				return fmt.Errorf("GET: %d %s", w.Code, w.Body.String())
			}
			got := lines(w.Body.String())
			for _, doc := range docs {
				if strings.Join(got, "\n") == strings.Join(lines(strings.Join(doc, "\n")), "\n") {
					return nil
				}
			}
			return fmt.Errorf("GET saw a partial write: %v", got)
		})
		assert.NoError(t, err)
		ts.assertBalanced()
	})
}

func Test_Policy(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), ReadOnlyPolicy())
	w := ts.put("/ds/data?default", tripleA)
	assert.Equal(t, 403, w.Code)
	assert.Equal(t, "gsp-write is not allowed on dataset /ds\n", w.Body.String())
	w = ts.update(`INSERT DATA { <http://ex/s> <http://ex/p> "a" }`)
	assert.Equal(t, 403, w.Code)
	w = ts.do("GET", "/ds/data?default", "", "")
	assert.Equal(t, 200, w.Code)
	assert.False(t, ts.ask(`ASK { ?s ?p ?o }`))
	assert.Equal(t, CounterValues{Requests: 4, Good: 2, Bad: 2}, ts.ds.Counters.Values())
	begins, _ := ts.ds.TxnCounts()
	assert.Equal(t, int64(2), begins, "denied requests don't open transactions")
}

func Test_Options(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), ReadOnlyPolicy())
	w := ts.do("OPTIONS", "/ds/update", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))
	w = ts.do("OPTIONS", "/ds/data?default", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "GET, HEAD, PUT, POST, DELETE, OPTIONS", w.Header().Get("Allow"))
	w = ts.do("PATCH", "/ds/data?default", "", "")
	assert.Equal(t, 405, w.Code)
	assert.Equal(t, "GET, HEAD, PUT, POST, DELETE, OPTIONS", w.Header().Get("Allow"))
}

func Test_Quads(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		quadG := `<http://ex/s> <http://ex/p> "g" <http://ex/g> .`
		w := ts.do("POST", "/ds", "application/n-quads", tripleA+"\n"+quadG+"\n")
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("GET", "/ds", "", "")
		assert.Equal(t, 200, w.Code)
		assert.Equal(t, "application/n-quads; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, lines(tripleA+"\n"+quadG), lines(w.Body.String()))

		w = ts.do("PUT", "/ds", "application/n-quads", tripleB)
		assert.Equal(t, 204, w.Code, w.Body.String())
		w = ts.do("GET", "/ds", "", "", header{"Accept", "application/n-quads"})
		assert.Equal(t, []string{tripleB}, lines(w.Body.String()))
		w = ts.do("GET", "/ds?graph=http://ex/g", "", "")
		assert.Equal(t, 404, w.Code)

		w = ts.do("PUT", "/ds", "application/n-quads", "<http://ex/s> nonsense")
		assert.Equal(t, 400, w.Code)
		w = ts.do("GET", "/ds", "", "")
		assert.Equal(t, []string{tripleB}, lines(w.Body.String()))

		events := ts.changes.Events()
		if assert.Len(t, events, 2) {
			assert.Equal(t, "quads-write", events[1].Operation)
			assert.Equal(t, 1, events[1].Added)
			assert.Equal(t, 2, events[1].Removed)
		}
		ts.assertBalanced()
	})
}

// multipartBody builds an upload form. Each part is either a file or a plain
// field.
type formPart struct {
	field    string
	filename string
	content  string
}

func multipartBody(t *testing.T, parts ...formPart) (contentType, body string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		var w io.Writer
		var err error
		if p.filename != "" {
			w, err = mw.CreateFormFile(p.field, p.filename)
		} else {
			w, err = mw.CreateFormField(p.field)
		}
		require.NoError(t, err)
		_, err = io.WriteString(w, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), buf.String()
}

func Test_Upload(t *testing.T) {
	forEachBackend(t, func(t *testing.T, b backend) {
		ts := newTestServer(t, b.open(t), nil)
		// The graph field comes after the file.
		ct, body := multipartBody(t,
			formPart{field: "file", filename: "data.nt", content: tripleA + "\n" + tripleB + "\n"},
			formPart{field: "graph", content: "http://ex/up"})
		w := ts.do("POST", "/ds/upload", ct, body)
		assert.Equal(t, 201, w.Code, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		var counts uploadCounts
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
		assert.Equal(t, uploadCounts{Count: 2, TripleCount: 2}, counts)
		w = ts.do("GET", "/ds?graph=http://ex/up", "", "")
		assert.Equal(t, []string{tripleA, tripleB}, lines(w.Body.String()))

		ct, body = multipartBody(t,
			formPart{field: "file", filename: "more.nt", content: tripleC},
			formPart{field: "graph", content: "http://ex/up"})
		w = ts.do("POST", "/ds/upload", ct, body)
		assert.Equal(t, 200, w.Code, w.Body.String())
		w = ts.do("GET", "/ds?graph=http://ex/up", "", "")
		assert.Equal(t, []string{tripleA, tripleB, tripleC}, lines(w.Body.String()))

		// Without a graph, quads go where they say.
		ct, body = multipartBody(t, formPart{field: "file", filename: "data.nq",
			content: `<http://ex/s> <http://ex/p> "q" <http://ex/q> .` + "\n" + tripleA})
		w = ts.do("POST", "/ds/upload", ct, body)
		assert.Equal(t, 200, w.Code, w.Body.String())
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
		assert.Equal(t, uploadCounts{Count: 2, TripleCount: 1, QuadCount: 1}, counts)
		assert.True(t, ts.ask(`ASK { GRAPH <http://ex/q> { ?s ?p "q" } }`))

		// A bad file loads nothing.
		ct, body = multipartBody(t,
			formPart{field: "file", filename: "good.nt", content: `<http://ex/s> <http://ex/p> "new" .`},
			formPart{field: "file", filename: "bad.nt", content: `<http://ex/s> nonsense`})
		w = ts.do("POST", "/ds/upload", ct, body)
		assert.Equal(t, 400, w.Code)
		assert.Contains(t, w.Body.String(), "bad.nt")
		assert.False(t, ts.ask(`ASK { ?s ?p "new" }`))

		ct, body = multipartBody(t, formPart{field: "file", filename: "data.ttl", content: tripleA})
		w = ts.do("POST", "/ds/upload", ct, body)
		assert.Equal(t, 415, w.Code)

		ct, body = multipartBody(t,
			formPart{field: "file", filename: "data.nt", content: tripleA},
			formPart{field: "graph", content: "http://ex/up"})
		w = ts.do("POST", "/ds/upload?graph=http://ex/other", ct, body)
		assert.Equal(t, 400, w.Code)
		ts.assertBalanced()
	})
}

func Test_UploadIntoURLGraph(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	ct, body := multipartBody(t, formPart{field: "file", filename: "data.nt", content: tripleA})
	w := ts.do("POST", "/ds?graph=http://ex/byurl", ct, body)
	assert.Equal(t, 201, w.Code, w.Body.String())
	assert.True(t, ts.ask(`ASK { GRAPH <http://ex/byurl> { ?s ?p "a" } }`))
}

func Test_UploadDirectNaming(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	ct, body := multipartBody(t, formPart{field: "file", filename: "data.nt", content: tripleA})
	w := ts.do("POST", "/ds/graphs/one", ct, body)
	assert.Equal(t, 201, w.Code, w.Body.String())
	assert.True(t, ts.ask(`ASK { GRAPH <http://example.com/ds/graphs/one> { ?s ?p "a" } }`))
	assert.False(t, ts.ask(`ASK { ?s ?p ?o }`))

	ct, body = multipartBody(t,
		formPart{field: "graph", content: "http://ex/other"},
		formPart{field: "file", filename: "data.nt", content: tripleB})
	w = ts.do("POST", "/ds/graphs/one", ct, body)
	assert.Equal(t, 400, w.Code, w.Body.String())
	assert.False(t, ts.ask(`ASK { GRAPH <http://ex/other> { ?s ?p ?o } }`))
}

func Test_QueryTimeout(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	require.Equal(t, 204, ts.put("/ds?default", tripleA).Code)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest("GET", "/ds/sparql?query="+url.QueryEscape(`ASK { ?s ?p ?o }`), nil).WithContext(ctx)
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, r)
	assert.Equal(t, 503, w.Code)
	assert.Contains(t, w.Body.String(), "query did not complete within")
	assert.Equal(t, int64(1), ts.ds.Counters.Values().Bad)
	ts.assertBalanced()
}

// stallingWriter blocks on its first write, as a slow client would.
type stallingWriter struct {
	*httptest.ResponseRecorder
	stall   time.Duration
	stalled bool
}

func (w *stallingWriter) Write(p []byte) (int, error) {
	if !w.stalled {
		w.stalled = true
		time.Sleep(w.stall)
	}
	return w.ResponseRecorder.Write(p)
}

func Test_QueryTimeoutWhileStreaming(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	const rows = 2000
	var doc strings.Builder
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&doc, "<http://ex/s%d> <http://ex/p> \"value %d\" .\n", i, i)
	}
	require.Equal(t, 204, ts.put("/ds?default", doc.String()).Code)

	query := url.Values{
		"query":   {`SELECT ?s ?o { ?s <http://ex/p> ?o }`},
		"timeout": {"0.3"},
		"output":  {"tsv"},
	}
	r := httptest.NewRequest("GET", "/ds/sparql?"+query.Encode(), nil)
	w := &stallingWriter{ResponseRecorder: httptest.NewRecorder(), stall: 500 * time.Millisecond}
	ts.server.ServeHTTP(w, r)

	assert.Equal(t, 200, w.Code)
	out := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	assert.Equal(t, "?s\t?o", out[0])
	assert.Equal(t, "# "+results.IncompleteMarker, out[len(out)-1])
	assert.True(t, len(out)-2 < rows, "got all %d rows", len(out)-2)
	ts.assertBalanced()
}

func Test_writeConstructIncomplete(t *testing.T) {
	triples := []rdf.Triple{
		rdf.NewTriple(rdf.IRI("http://ex/s"), rdf.IRI("http://ex/p"), rdf.Literal("b", "")),
		rdf.NewTriple(rdf.IRI("http://ex/s"), rdf.IRI("http://ex/p"), rdf.Literal("a", "")),
	}
	w := httptest.NewRecorder()
	a := &Action{Response: w}
	out := offer{rdf: codec.NTriples}
	require.NoError(t, writeConstruct(context.Background(), a, out, triples))
	assert.Equal(t, tripleA+"\n"+tripleB+"\n", w.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w = httptest.NewRecorder()
	a = &Action{Response: w}
	assert.Equal(t, results.ErrIncomplete, writeConstruct(ctx, a, out, triples))
	assert.Equal(t, "# "+results.IncompleteMarker+"\n", w.Body.String())
}

func Test_RequestID(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	first, err := strconv.ParseInt(ts.do("GET", "/ds?default", "", "").Header().Get(headerRequestID), 10, 64)
	require.NoError(t, err)
	w := ts.do("GET", "/nope", "", "")
	assert.Equal(t, 404, w.Code)
	second, err := strconv.ParseInt(w.Header().Get(headerRequestID), 10, 64)
	require.NoError(t, err)
	assert.True(t, second > first)
}

func Test_Admin(t *testing.T) {
	ts := newTestServer(t, backends[0].open(t), nil)
	ts.put("/ds/data?default", tripleA)
	ts.do("GET", "/ds/sparql", "", "")

	w := ts.do("GET", "/$/ping", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))

	w = ts.do("GET", "/$/server", "", "")
	assert.Equal(t, 200, w.Code)
	var desc serverDescription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
	if assert.Len(t, desc.Datasets, 1) {
		assert.Equal(t, "/ds", desc.Datasets[0].Name)
		assert.Equal(t, "config", desc.Datasets[0].Policy)
		assert.False(t, desc.Datasets[0].Transactional)
		assert.Len(t, desc.Datasets[0].Services, 5)
	}

	for _, target := range []string{"/$/stats", "/$/stats/ds"} {
		w = ts.do("GET", target, "", "")
		assert.Equal(t, 200, w.Code, target)
		var stats struct {
			Datasets map[string]datasetStats `json:"datasets"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats), target)
		ds := stats.Datasets["/ds"]
		assert.Equal(t, CounterValues{Requests: 2, Good: 1, Bad: 1}, ds.CounterValues)
		assert.Equal(t, CounterValues{Requests: 1, Good: 1}, ds.Services["gsp-rw"])
		assert.Equal(t, CounterValues{Requests: 1, Bad: 1}, ds.Services["query"])
		assert.Equal(t, ds.Transactions.Begins, ds.Transactions.Ends)
	}

	w = ts.do("GET", "/$/stats/ds?format=text", "", "")
	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Dataset")
	assert.Contains(t, w.Body.String(), "/ds")
	w = ts.do("GET", "/$/stats/nope", "", "")
	assert.Equal(t, 404, w.Code)
}

func Test_CORS(t *testing.T) {
	ds := NewDatasetRef("/ds", backends[0].open(t), nil, nil)
	reg, err := NewRegistry(ds)
	require.NoError(t, err)
	s := New(reg, Options{CORS: &config.CORS{AllowedOrigins: []string{"http://app.example"}}})
	r := httptest.NewRequest("GET", "/ds?default", nil)
	r.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func Test_RequestLoggedOnceOnArrival(t *testing.T) {
	logger := log.StandardLogger()
	oldHooks := logger.ReplaceHooks(make(log.LevelHooks))
	oldLevel := logger.GetLevel()
	defer func() {
		logger.ReplaceHooks(oldHooks)
		logger.SetLevel(oldLevel)
	}()
	hook := new(logtest.Hook)
	logger.AddHook(hook)
	logger.SetLevel(log.DebugLevel)

	ts := newTestServer(t, backends[0].open(t), nil)
	require.Equal(t, 200, ts.do("GET", "/ds?default", "", "").Code)
	arrivals := 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.DebugLevel && strings.Contains(e.Message, "GET /ds?default") {
			arrivals++
		}
	}
	assert.Equal(t, 1, arrivals)
}
