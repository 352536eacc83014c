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

// Package storetest holds tests that every store.Dataset implementation
// should pass.
package storetest

import (
	"testing"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Some IRIs and triples shared by the tests.
var (
	G1 = rdf.IRI("http://example.org/g1")
	G2 = rdf.IRI("http://example.org/g2")

	Alice = rdf.IRI("http://example.org/alice")
	Bob   = rdf.IRI("http://example.org/bob")
	Knows = rdf.IRI("http://xmlns.com/foaf/0.1/knows")
	Name  = rdf.IRI("http://xmlns.com/foaf/0.1/name")

	AliceKnowsBob = rdf.NewTriple(Alice, Knows, Bob)
	AliceName     = rdf.NewTriple(Alice, Name, rdf.Literal("Alice", ""))
	BobName       = rdf.NewTriple(Bob, Name, rdf.LangLiteral("Bob", "en"))
)

// Run runs the conformance tests. newDataset must return an empty dataset; it
// is called once per test.
func Run(t *testing.T, newDataset func(t *testing.T) store.Dataset) {
	tests := []struct {
		name string
		fn   func(t *testing.T, ds store.Dataset)
	}{
		{"AddFind", testAddFind},
		{"FindPatterns", testFindPatterns},
		{"NamedGraphs", testNamedGraphs},
		{"ReadTxnDoesNotCreate", testReadTxnDoesNotCreate},
		{"Clear", testClear},
		{"TxnStates", testTxnStates},
		{"StopIteration", testStopIteration},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ds := newDataset(t)
			defer ds.Close()
			test.fn(t, ds)
		})
	}
}

// Write runs fn in a committed write transaction.
func Write(t *testing.T, ds store.Dataset, fn func(dsg store.DatasetGraph)) {
	t.Helper()
	txn, err := ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	fn(txn.Graph())
	require.NoError(t, txn.Commit())
	require.NoError(t, txn.End())
}

// Read runs fn in a read transaction.
func Read(t *testing.T, ds store.Dataset, fn func(dsg store.DatasetGraph)) {
	t.Helper()
	txn, err := ds.Begin(store.ReadTxn)
	require.NoError(t, err)
	fn(txn.Graph())
	require.NoError(t, txn.End())
}

// Quads returns every quad in the dataset.
func Quads(t *testing.T, dsg store.DatasetGraph) []rdf.Quad {
	t.Helper()
	var res []rdf.Quad
	require.NoError(t, dsg.Find(rdf.Quad{}, func(q rdf.Quad) bool {
		res = append(res, q)
		return true
	}))
	return res
}

func testAddFind(t *testing.T, ds store.Dataset) {
	Write(t, ds, func(dsg store.DatasetGraph) {
		added, err := dsg.Default().Add(AliceKnowsBob)
		require.NoError(t, err)
		assert.True(t, added)
		added, err = dsg.Default().Add(AliceKnowsBob)
		require.NoError(t, err)
		assert.False(t, added, "second add of the same triple")
		_, err = dsg.Default().Add(AliceName)
		require.NoError(t, err)
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		n, err := dsg.Default().Size()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		found, err := store.Contains(dsg.Default(), AliceKnowsBob)
		require.NoError(t, err)
		assert.True(t, found)
		_, err = dsg.Default().Add(BobName)
		assert.Equal(t, store.ErrReadOnly, err)
	})
	Write(t, ds, func(dsg store.DatasetGraph) {
		deleted, err := dsg.Default().Delete(AliceKnowsBob)
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = dsg.Default().Delete(AliceKnowsBob)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		all, err := store.Triples(dsg.Default(), rdf.Triple{})
		require.NoError(t, err)
		assert.Equal(t, []rdf.Triple{AliceName}, all)
	})
}

func testFindPatterns(t *testing.T, ds store.Dataset) {
	Write(t, ds, func(dsg store.DatasetGraph) {
		for _, tr := range []rdf.Triple{AliceKnowsBob, AliceName, BobName} {
			_, err := dsg.Default().Add(tr)
			require.NoError(t, err)
		}
	})
	tests := []struct {
		name    string
		pattern rdf.Triple
		exp     []rdf.Triple
	}{
		{"all", rdf.Triple{}, []rdf.Triple{AliceKnowsBob, AliceName, BobName}},
		{"s", rdf.Triple{S: Alice}, []rdf.Triple{AliceKnowsBob, AliceName}},
		{"p", rdf.Triple{P: Name}, []rdf.Triple{AliceName, BobName}},
		{"o", rdf.Triple{O: Bob}, []rdf.Triple{AliceKnowsBob}},
		{"sp", rdf.Triple{S: Alice, P: Name}, []rdf.Triple{AliceName}},
		{"so", rdf.Triple{S: Alice, O: Bob}, []rdf.Triple{AliceKnowsBob}},
		{"po", rdf.Triple{P: Name, O: rdf.LangLiteral("Bob", "en")}, []rdf.Triple{BobName}},
		{"spo", AliceName, []rdf.Triple{AliceName}},
		{"none", rdf.Triple{S: Bob, P: Knows}, nil},
	}
	Read(t, ds, func(dsg store.DatasetGraph) {
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				act, err := store.Triples(dsg.Default(), test.pattern)
				require.NoError(t, err)
				assert.ElementsMatch(t, test.exp, act)
			})
		}
	})
}

func testNamedGraphs(t *testing.T, ds store.Dataset) {
	Write(t, ds, func(dsg store.DatasetGraph) {
		exists, err := dsg.ContainsGraph(G1)
		require.NoError(t, err)
		assert.False(t, exists)
		_, err = store.AddQuad(dsg, rdf.InGraph(G1, AliceKnowsBob))
		require.NoError(t, err)
		_, err = store.AddQuad(dsg, rdf.InGraph(G2, BobName))
		require.NoError(t, err)
		_, err = store.AddQuad(dsg, rdf.InGraph(rdf.Term{}, AliceName))
		require.NoError(t, err)
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		names, err := dsg.GraphNames()
		require.NoError(t, err)
		assert.Equal(t, []rdf.Term{G1, G2}, names)
		exists, err := dsg.ContainsGraph(rdf.DefaultGraph)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.ElementsMatch(t, []rdf.Quad{
			rdf.InGraph(rdf.DefaultGraph, AliceName),
			rdf.InGraph(G1, AliceKnowsBob),
			rdf.InGraph(G2, BobName),
		}, Quads(t, dsg))
		var inG1 []rdf.Quad
		require.NoError(t, dsg.Find(rdf.Quad{G: G1}, func(q rdf.Quad) bool {
			inG1 = append(inG1, q)
			return true
		}))
		assert.Equal(t, []rdf.Quad{rdf.InGraph(G1, AliceKnowsBob)}, inG1)
		var inDefault []rdf.Quad
		require.NoError(t, dsg.Find(rdf.Quad{G: rdf.DefaultGraph}, func(q rdf.Quad) bool {
			inDefault = append(inDefault, q)
			return true
		}))
		assert.Equal(t, []rdf.Quad{rdf.InGraph(rdf.DefaultGraph, AliceName)}, inDefault)
	})
	Write(t, ds, func(dsg store.DatasetGraph) {
		require.NoError(t, dsg.RemoveGraph(G1))
		removed, err := store.DeleteQuad(dsg, rdf.InGraph(G1, AliceKnowsBob))
		require.NoError(t, err)
		assert.False(t, removed)
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		exists, err := dsg.ContainsGraph(G1)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func testReadTxnDoesNotCreate(t *testing.T, ds store.Dataset) {
	Read(t, ds, func(dsg store.DatasetGraph) {
		g, err := dsg.Named(G1)
		require.NoError(t, err)
		n, err := g.Size()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		exists, err := dsg.ContainsGraph(G1)
		require.NoError(t, err)
		assert.False(t, exists)
	})
	Write(t, ds, func(dsg store.DatasetGraph) {
		_, err := dsg.Named(G1)
		require.NoError(t, err)
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		exists, err := dsg.ContainsGraph(G1)
		require.NoError(t, err)
		assert.True(t, exists, "Named in a write transaction creates the graph")
	})
}

func testClear(t *testing.T, ds store.Dataset) {
	Write(t, ds, func(dsg store.DatasetGraph) {
		_, err := store.AddQuad(dsg, rdf.InGraph(G1, AliceKnowsBob))
		require.NoError(t, err)
		_, err = dsg.Default().Add(AliceName)
		require.NoError(t, err)
	})
	Write(t, ds, func(dsg store.DatasetGraph) {
		g, err := dsg.Named(G1)
		require.NoError(t, err)
		require.NoError(t, g.Clear())
		exists, err := dsg.ContainsGraph(G1)
		require.NoError(t, err)
		assert.True(t, exists, "a cleared graph still exists")
		require.NoError(t, dsg.Clear())
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		assert.Empty(t, Quads(t, dsg))
		names, err := dsg.GraphNames()
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func testTxnStates(t *testing.T, ds store.Dataset) {
	txn, err := ds.Begin(store.ReadTxn)
	require.NoError(t, err)
	assert.Equal(t, store.ReadTxn, txn.Mode())
	assert.Equal(t, store.ErrTxState, txn.Commit())
	assert.Equal(t, store.ErrTxState, txn.Abort())
	require.NoError(t, txn.End())
	assert.Equal(t, store.ErrTxState, txn.End())

	txn, err = ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	assert.Equal(t, store.ErrTxState, txn.Commit())
	assert.Equal(t, store.ErrTxState, txn.Abort())
	require.NoError(t, txn.End())

	// A write that is never committed is aborted by End.
	txn, err = ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	require.NoError(t, txn.End())

	_, err = ds.Begin(store.TxnMode(0))
	assert.Equal(t, store.ErrTxState, err)
}

func testStopIteration(t *testing.T, ds store.Dataset) {
	Write(t, ds, func(dsg store.DatasetGraph) {
		for _, q := range []rdf.Quad{
			rdf.InGraph(rdf.Term{}, AliceName),
			rdf.InGraph(G1, AliceKnowsBob),
			rdf.InGraph(G2, BobName),
		} {
			_, err := store.AddQuad(dsg, q)
			require.NoError(t, err)
		}
	})
	Read(t, ds, func(dsg store.DatasetGraph) {
		calls := 0
		require.NoError(t, dsg.Find(rdf.Quad{}, func(rdf.Quad) bool {
			calls++
			return false
		}))
		assert.Equal(t, 1, calls)
	})
}
