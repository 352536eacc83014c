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

// Package memstore is an in-memory RDF dataset. It keeps three btree indexes
// per graph so that any triple pattern can be answered with a range scan.
//
// A memstore is safe for concurrent use, but it has no transactions: each
// method call is atomic on its own and nothing more. Wrap it with txlock to
// serve it as a store.Dataset.
package memstore

import (
	"sort"
	"sync"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
	"github.com/google/btree"
)

// order identifies the arrangement of terms in an index.
type order int

const (
	spo order = iota
	pos
	osp
)

// tripleItem is a triple with its terms rotated into an index's order.
type tripleItem rdf.Triple

// Less is needed to order the btree. The zero Term sorts first, so a pattern
// with trailing zero terms is a valid pivot for a prefix scan.
func (a tripleItem) Less(other btree.Item) bool {
	b := other.(tripleItem)
	if c := rdf.Compare(a.S, b.S); c != 0 {
		return c < 0
	}
	if c := rdf.Compare(a.P, b.P); c != 0 {
		return c < 0
	}
	return rdf.Compare(a.O, b.O) < 0
}

func rotate(t rdf.Triple, o order) tripleItem {
	switch o {
	case pos:
		return tripleItem{S: t.P, P: t.O, O: t.S}
	case osp:
		return tripleItem{S: t.O, P: t.S, O: t.P}
	}
	return tripleItem(t)
}

func unrotate(k tripleItem, o order) rdf.Triple {
	switch o {
	case pos:
		return rdf.Triple{S: k.O, P: k.S, O: k.P}
	case osp:
		return rdf.Triple{S: k.P, P: k.O, O: k.S}
	}
	return rdf.Triple(k)
}

// graph is the unlocked state of a single graph.
type graph struct {
	indexes [3]*btree.BTree
}

func newGraph() *graph {
	return &graph{indexes: [3]*btree.BTree{btree.New(16), btree.New(16), btree.New(16)}}
}

func (g *graph) add(t rdf.Triple) bool {
	if g.indexes[spo].Has(tripleItem(t)) {
		return false
	}
	for o, idx := range g.indexes {
		idx.ReplaceOrInsert(rotate(t, order(o)))
	}
	return true
}

func (g *graph) delete(t rdf.Triple) bool {
	if g.indexes[spo].Delete(tripleItem(t)) == nil {
		return false
	}
	g.indexes[pos].Delete(rotate(t, pos))
	g.indexes[osp].Delete(rotate(t, osp))
	return true
}

func (g *graph) size() int {
	return g.indexes[spo].Len()
}

func (g *graph) clear() {
	for _, idx := range g.indexes {
		idx.Clear(false)
	}
}

// find picks the index whose leading terms are bound in the pattern and scans
// the range sharing that prefix.
func (g *graph) find(pattern rdf.Triple, fn func(rdf.Triple) bool) bool {
	s, p, o := !pattern.S.IsZero(), !pattern.P.IsZero(), !pattern.O.IsZero()
	var ord order
	var prefix int
	switch {
	case s && p:
		ord, prefix = spo, 2
	case s && o:
		ord, prefix = osp, 2
	case s:
		ord, prefix = spo, 1
	case p && o:
		ord, prefix = pos, 2
	case p:
		ord, prefix = pos, 1
	case o:
		ord, prefix = osp, 1
	default:
		ord, prefix = spo, 0
	}
	pivot := rotate(pattern, ord)
	pivot.O = rdf.Term{}
	if prefix < 2 {
		pivot.P = rdf.Term{}
	}
	more := true
	g.indexes[ord].AscendGreaterOrEqual(pivot, func(item btree.Item) bool {
		k := item.(tripleItem)
		if (prefix >= 1 && k.S != pivot.S) || (prefix >= 2 && k.P != pivot.P) {
			return false
		}
		t := unrotate(k, ord)
		if !t.Matches(pattern) {
			return true
		}
		more = fn(t)
		return more
	})
	return more
}

// DatasetGraph is an in-memory store.DatasetGraph.
type DatasetGraph struct {
	lock   sync.RWMutex
	locked struct {
		def   *graph
		named map[rdf.Term]*graph
	}
}

// New returns an empty dataset.
func New() *DatasetGraph {
	dsg := &DatasetGraph{}
	dsg.locked.def = newGraph()
	dsg.locked.named = make(map[rdf.Term]*graph)
	return dsg
}

// Default implements store.DatasetGraph.
func (dsg *DatasetGraph) Default() store.Graph {
	dsg.lock.RLock()
	defer dsg.lock.RUnlock()
	return &graphView{dsg: dsg, g: dsg.locked.def}
}

// Named implements store.DatasetGraph. It creates the graph if it does not
// exist.
func (dsg *DatasetGraph) Named(name rdf.Term) (store.Graph, error) {
	if name.IsZero() || name.IsDefaultGraph() {
		return dsg.Default(), nil
	}
	dsg.lock.Lock()
	defer dsg.lock.Unlock()
	g, exists := dsg.locked.named[name]
	if !exists {
		g = newGraph()
		dsg.locked.named[name] = g
	}
	return &graphView{dsg: dsg, g: g}, nil
}

// ContainsGraph implements store.DatasetGraph.
func (dsg *DatasetGraph) ContainsGraph(name rdf.Term) (bool, error) {
	if name.IsDefaultGraph() {
		return true, nil
	}
	dsg.lock.RLock()
	defer dsg.lock.RUnlock()
	_, exists := dsg.locked.named[name]
	return exists, nil
}

// GraphNames implements store.DatasetGraph.
func (dsg *DatasetGraph) GraphNames() ([]rdf.Term, error) {
	dsg.lock.RLock()
	names := make([]rdf.Term, 0, len(dsg.locked.named))
	for name := range dsg.locked.named {
		names = append(names, name)
	}
	dsg.lock.RUnlock()
	sort.Slice(names, func(i, j int) bool {
		return rdf.Compare(names[i], names[j]) < 0
	})
	return names, nil
}

// RemoveGraph implements store.DatasetGraph.
func (dsg *DatasetGraph) RemoveGraph(name rdf.Term) error {
	dsg.lock.Lock()
	defer dsg.lock.Unlock()
	if name.IsZero() || name.IsDefaultGraph() {
		dsg.locked.def.clear()
		return nil
	}
	delete(dsg.locked.named, name)
	return nil
}

// Find implements store.DatasetGraph. fn must not call back into dsg.
func (dsg *DatasetGraph) Find(pattern rdf.Quad, fn func(rdf.Quad) bool) error {
	emit := func(name rdf.Term) func(rdf.Triple) bool {
		return func(t rdf.Triple) bool {
			return fn(rdf.InGraph(name, t))
		}
	}
	dsg.lock.RLock()
	defer dsg.lock.RUnlock()
	switch {
	case pattern.G.IsDefaultGraph():
		dsg.locked.def.find(pattern.Triple(), emit(rdf.DefaultGraph))
	case !pattern.G.IsZero():
		if g, exists := dsg.locked.named[pattern.G]; exists {
			g.find(pattern.Triple(), emit(pattern.G))
		}
	default:
		if !dsg.locked.def.find(pattern.Triple(), emit(rdf.DefaultGraph)) {
			return nil
		}
		names := make([]rdf.Term, 0, len(dsg.locked.named))
		for name := range dsg.locked.named {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			return rdf.Compare(names[i], names[j]) < 0
		})
		for _, name := range names {
			if !dsg.locked.named[name].find(pattern.Triple(), emit(name)) {
				return nil
			}
		}
	}
	return nil
}

// Clear implements store.DatasetGraph.
func (dsg *DatasetGraph) Clear() error {
	dsg.lock.Lock()
	defer dsg.lock.Unlock()
	dsg.locked.def.clear()
	dsg.locked.named = make(map[rdf.Term]*graph)
	return nil
}

// graphView is the store.Graph for one graph of a DatasetGraph.
type graphView struct {
	dsg *DatasetGraph
	g   *graph
}

func (v *graphView) Add(t rdf.Triple) (bool, error) {
	v.dsg.lock.Lock()
	defer v.dsg.lock.Unlock()
	return v.g.add(t), nil
}

func (v *graphView) Delete(t rdf.Triple) (bool, error) {
	v.dsg.lock.Lock()
	defer v.dsg.lock.Unlock()
	return v.g.delete(t), nil
}

func (v *graphView) Find(pattern rdf.Triple, fn func(rdf.Triple) bool) error {
	v.dsg.lock.RLock()
	defer v.dsg.lock.RUnlock()
	v.g.find(pattern, fn)
	return nil
}

func (v *graphView) Size() (int, error) {
	v.dsg.lock.RLock()
	defer v.dsg.lock.RUnlock()
	return v.g.size(), nil
}

func (v *graphView) Clear() error {
	v.dsg.lock.Lock()
	defer v.dsg.lock.Unlock()
	v.g.clear()
	return nil
}
