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

// Package store defines the interfaces between the protocol layer and the
// backends that hold RDF datasets.
//
// A backend exposes a Dataset. All access to a Dataset happens inside a Txn
// obtained from Begin; the DatasetGraph returned by Txn.Graph is only valid
// until the Txn ends. Backends that can roll changes back report
// Transactional() == true. The others are wrapped by the txlock package, which
// gives them reader/writer exclusion but no rollback.
package store

import (
	"errors"
	"fmt"

	"github.com/ebay/sparqld/rdf"
)

// TxnMode is the access mode of a transaction.
type TxnMode int

// The possible values of TxnMode.
const (
	ReadTxn TxnMode = iota + 1
	WriteTxn
)

func (m TxnMode) String() string {
	switch m {
	case ReadTxn:
		return "read"
	case WriteTxn:
		return "write"
	}
	return fmt.Sprintf("TxnMode(%d)", int(m))
}

var (
	// ErrTxState is returned when a transaction method is called in a state
	// that doesn't allow it, like committing a read transaction or ending a
	// transaction twice. It indicates a bug in the caller.
	ErrTxState = errors.New("transaction is not in a valid state for this operation")
	// ErrLockPromotion is returned when the holder of a read transaction asks
	// for a write transaction on the same handle. Waiting would deadlock.
	ErrLockPromotion = errors.New("can't promote a read lock to a write lock")
	// ErrReadOnly is returned when modifying a graph inside a read transaction.
	ErrReadOnly = errors.New("dataset is open for reading only")
)

// A Dataset is a collection of graphs that can be accessed transactionally.
type Dataset interface {
	// Begin starts a transaction. It blocks until the transaction can start;
	// there is no timeout.
	Begin(mode TxnMode) (Txn, error)
	// Transactional returns true if Txn.Abort discards the changes made in
	// the transaction.
	Transactional() bool
	// Close releases the resources held by the dataset.
	Close() error
}

// A Txn is a single transaction on a Dataset. Txn values are not safe for
// concurrent use.
type Txn interface {
	Mode() TxnMode
	// Graph returns the view of the dataset for this transaction. It must not
	// be used after End.
	Graph() DatasetGraph
	// Commit makes the changes of a write transaction durable. The
	// transaction must still be ended.
	Commit() error
	// Abort discards the changes of a write transaction, if the backend can.
	// The transaction must still be ended.
	Abort() error
	// End finishes the transaction. A write transaction that was neither
	// committed nor aborted is aborted.
	End() error
}

// A Graph is a set of triples.
type Graph interface {
	// Add inserts the triple; it returns true if the triple was not already
	// present.
	Add(t rdf.Triple) (bool, error)
	// Delete removes the triple; it returns true if the triple was present.
	Delete(t rdf.Triple) (bool, error)
	// Find calls fn for every triple matching the pattern, where zero terms
	// match anything. Iteration stops early if fn returns false. fn must not
	// modify the graph.
	Find(pattern rdf.Triple, fn func(rdf.Triple) bool) error
	// Size returns the number of triples.
	Size() (int, error)
	// Clear removes every triple. The graph continues to exist.
	Clear() error
}

// A DatasetGraph is one default graph plus zero or more named graphs.
type DatasetGraph interface {
	// Default returns the default graph.
	Default() Graph
	// Named returns the named graph. In some backends this creates the graph
	// if it does not exist; use ContainsGraph to test for existence first.
	Named(name rdf.Term) (Graph, error)
	// ContainsGraph returns true if the named graph exists. It does not
	// create the graph.
	ContainsGraph(name rdf.Term) (bool, error)
	// GraphNames returns the names of the named graphs, sorted.
	GraphNames() ([]rdf.Term, error)
	// RemoveGraph deletes a named graph and its triples.
	RemoveGraph(name rdf.Term) error
	// Find calls fn for every quad matching the pattern. A zero G matches the
	// default graph and all the named graphs; rdf.DefaultGraph matches only
	// the default graph. Iteration stops early if fn returns false.
	Find(pattern rdf.Quad, fn func(rdf.Quad) bool) error
	// Clear removes every triple from the default graph and removes every
	// named graph.
	Clear() error
}

// GraphFor returns the default graph if 'name' is zero or the default graph
// term, and the named graph otherwise.
func GraphFor(dsg DatasetGraph, name rdf.Term) (Graph, error) {
	if name.IsZero() || name.IsDefaultGraph() {
		return dsg.Default(), nil
	}
	return dsg.Named(name)
}

// AddQuad adds the quad to the appropriate graph of the dataset.
func AddQuad(dsg DatasetGraph, q rdf.Quad) (bool, error) {
	g, err := GraphFor(dsg, q.G)
	if err != nil {
		return false, err
	}
	return g.Add(q.Triple())
}

// DeleteQuad removes the quad from the appropriate graph of the dataset. It
// does not create the graph if it does not exist.
func DeleteQuad(dsg DatasetGraph, q rdf.Quad) (bool, error) {
	if !q.InDefaultGraph() {
		exists, err := dsg.ContainsGraph(q.G)
		if err != nil || !exists {
			return false, err
		}
	}
	g, err := GraphFor(dsg, q.G)
	if err != nil {
		return false, err
	}
	return g.Delete(q.Triple())
}

// Contains returns true if the graph holds the triple.
func Contains(g Graph, t rdf.Triple) (bool, error) {
	found := false
	err := g.Find(t, func(rdf.Triple) bool {
		found = true
		return false
	})
	return found, err
}

// Triples returns all the triples in the graph matching the pattern.
func Triples(g Graph, pattern rdf.Triple) ([]rdf.Triple, error) {
	var res []rdf.Triple
	err := g.Find(pattern, func(t rdf.Triple) bool {
		res = append(res, t)
		return true
	})
	return res, err
}

// CopyGraph adds every triple of 'src' to 'dst'. It returns the number of
// triples that were not already in 'dst'.
func CopyGraph(dst, src Graph) (int, error) {
	var triples []rdf.Triple
	if err := src.Find(rdf.Triple{}, func(t rdf.Triple) bool {
		triples = append(triples, t)
		return true
	}); err != nil {
		return 0, err
	}
	added := 0
	for _, t := range triples {
		ok, err := dst.Add(t)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// CopyDataset adds every quad of 'src' to 'dst', creating named graphs as
// needed. Empty named graphs in 'src' are created in 'dst'. It returns the
// number of quads that were not already in 'dst'.
func CopyDataset(dst, src DatasetGraph) (int, error) {
	added, err := CopyGraph(dst.Default(), src.Default())
	if err != nil {
		return added, err
	}
	names, err := src.GraphNames()
	if err != nil {
		return added, err
	}
	for _, name := range names {
		from, err := src.Named(name)
		if err != nil {
			return added, err
		}
		to, err := dst.Named(name)
		if err != nil {
			return added, err
		}
		n, err := CopyGraph(to, from)
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}
