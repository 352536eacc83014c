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

package store

import "github.com/ebay/sparqld/rdf"

// ReadOnly returns a view of 'dsg' that fails every modification with
// ErrReadOnly. Unlike dsg.Named, the view's Named never creates a graph.
func ReadOnly(dsg DatasetGraph) DatasetGraph {
	return readOnlyDataset{dsg}
}

type readOnlyDataset struct {
	dsg DatasetGraph
}

func (r readOnlyDataset) Default() Graph {
	return readOnlyGraph{r.dsg.Default()}
}

func (r readOnlyDataset) Named(name rdf.Term) (Graph, error) {
	if name.IsZero() || name.IsDefaultGraph() {
		return r.Default(), nil
	}
	exists, err := r.dsg.ContainsGraph(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return emptyGraph{}, nil
	}
	g, err := r.dsg.Named(name)
	if err != nil {
		return nil, err
	}
	return readOnlyGraph{g}, nil
}

func (r readOnlyDataset) ContainsGraph(name rdf.Term) (bool, error) {
	return r.dsg.ContainsGraph(name)
}

func (r readOnlyDataset) GraphNames() ([]rdf.Term, error) {
	return r.dsg.GraphNames()
}

func (r readOnlyDataset) RemoveGraph(rdf.Term) error {
	return ErrReadOnly
}

func (r readOnlyDataset) Find(pattern rdf.Quad, fn func(rdf.Quad) bool) error {
	return r.dsg.Find(pattern, fn)
}

func (r readOnlyDataset) Clear() error {
	return ErrReadOnly
}

type readOnlyGraph struct {
	g Graph
}

func (r readOnlyGraph) Add(rdf.Triple) (bool, error)    { return false, ErrReadOnly }
func (r readOnlyGraph) Delete(rdf.Triple) (bool, error) { return false, ErrReadOnly }
func (r readOnlyGraph) Clear() error                    { return ErrReadOnly }
func (r readOnlyGraph) Size() (int, error)              { return r.g.Size() }

func (r readOnlyGraph) Find(pattern rdf.Triple, fn func(rdf.Triple) bool) error {
	return r.g.Find(pattern, fn)
}

// emptyGraph stands in for a graph that does not exist.
type emptyGraph struct{}

func (emptyGraph) Add(rdf.Triple) (bool, error)                 { return false, ErrReadOnly }
func (emptyGraph) Delete(rdf.Triple) (bool, error)              { return false, ErrReadOnly }
func (emptyGraph) Clear() error                                 { return ErrReadOnly }
func (emptyGraph) Size() (int, error)                           { return 0, nil }
func (emptyGraph) Find(rdf.Triple, func(rdf.Triple) bool) error { return nil }
