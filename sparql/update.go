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
	"context"
	"fmt"
	"time"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
)

// UpdateError is returned when an update operation can't be applied to the
// dataset as it is, for example when dropping a graph that does not exist
// without SILENT.
type UpdateError struct {
	Op      string
	Message string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// UpdateStats counts the changes made by an update.
type UpdateStats struct {
	Added   int
	Removed int
}

// Apply executes the operations of the update in order against 'dsg', which
// must be writable. It stops at the first error; the caller decides whether
// the changes made so far are kept.
func Apply(ctx context.Context, dsg store.DatasetGraph, u *Update) (UpdateStats, error) {
	var stats UpdateStats
	for _, op := range u.Operations {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := applyOp(ctx, dsg, op, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func applyOp(ctx context.Context, dsg store.DatasetGraph, op Operation, stats *UpdateStats) error {
	switch op := op.(type) {
	case *InsertData:
		return insertQuads(dsg, op.Quads, stats)

	case *DeleteData:
		return deleteQuads(dsg, op.Quads, stats)

	case *Modify:
		view := NewView(dsg, op.Using, op.UsingNamed)
		ev := evaluator{ctx: ctx, view: view}
		defaults, err := view.defaultGraphNames()
		if err != nil {
			return err
		}
		sols, err := ev.group(op.Where, []Binding{{}}, defaults)
		if err != nil {
			return err
		}
		scope := rdf.NewBlankNodeScope(fmt.Sprintf("%p.%d", op, time.Now().UnixNano()))
		deletes := instantiateQuads(op.Delete, sols, scope)
		inserts := instantiateQuads(op.Insert, sols, scope)
		if err := deleteQuads(dsg, deletes, stats); err != nil {
			return err
		}
		return insertQuads(dsg, inserts, stats)

	case *Clear:
		graphs, err := targetGraphs(dsg, "CLEAR", op.Silent, op.Target)
		if err != nil {
			return err
		}
		for _, name := range graphs {
			g, err := store.GraphFor(dsg, name)
			if err != nil {
				return err
			}
			n, err := g.Size()
			if err != nil {
				return err
			}
			if err := g.Clear(); err != nil {
				return err
			}
			stats.Removed += n
		}
		return nil

	case *Drop:
		graphs, err := targetGraphs(dsg, "DROP", op.Silent, op.Target)
		if err != nil {
			return err
		}
		for _, name := range graphs {
			g, err := store.GraphFor(dsg, name)
			if err != nil {
				return err
			}
			n, err := g.Size()
			if err != nil {
				return err
			}
			if err := dsg.RemoveGraph(name); err != nil {
				return err
			}
			stats.Removed += n
		}
		return nil

	case *Create:
		exists, err := dsg.ContainsGraph(op.Graph)
		if err != nil {
			return err
		}
		if exists {
			if op.Silent {
				return nil
			}
			return &UpdateError{Op: "CREATE", Message: fmt.Sprintf("graph %v already exists", op.Graph)}
		}
		_, err = dsg.Named(op.Graph)
		return err
	}
	return fmt.Errorf("unsupported update operation %T", op)
}

// targetGraphs lists the graphs a CLEAR or DROP applies to, with
// rdf.DefaultGraph for the default graph.
func targetGraphs(dsg store.DatasetGraph, opName string, silent bool, ref GraphRef) ([]rdf.Term, error) {
	switch ref.Kind {
	case RefGraph:
		if ref.Graph.IsDefaultGraph() {
			return []rdf.Term{rdf.DefaultGraph}, nil
		}
		exists, err := dsg.ContainsGraph(ref.Graph)
		if err != nil {
			return nil, err
		}
		if !exists {
			if silent {
				return nil, nil
			}
			return nil, &UpdateError{Op: opName, Message: fmt.Sprintf("graph %v does not exist", ref.Graph)}
		}
		return []rdf.Term{ref.Graph}, nil
	case RefDefault:
		return []rdf.Term{rdf.DefaultGraph}, nil
	case RefNamed:
		return dsg.GraphNames()
	case RefAll:
		named, err := dsg.GraphNames()
		if err != nil {
			return nil, err
		}
		return append([]rdf.Term{rdf.DefaultGraph}, named...), nil
	}
	return nil, fmt.Errorf("unknown graph reference %d", ref.Kind)
}

func instantiateQuads(template []QuadPattern, sols []Binding, scope *rdf.BlankNodeScope) []rdf.Quad {
	var res []rdf.Quad
	for i, sol := range sols {
		for _, qp := range template {
			var g rdf.Term
			if qp.Graph.IsVar() {
				bound, ok := sol[qp.Graph.Var]
				if !ok || !bound.IsIRI() {
					continue
				}
				g = bound
			} else {
				g = qp.Graph.Term
			}
			t, ok := instantiate(qp.TriplePattern, sol, scope, i)
			if ok {
				res = append(res, rdf.InGraph(g, t))
			}
		}
	}
	return res
}

func insertQuads(dsg store.DatasetGraph, quads []rdf.Quad, stats *UpdateStats) error {
	for _, q := range quads {
		added, err := store.AddQuad(dsg, q)
		if err != nil {
			return err
		}
		if added {
			stats.Added++
		}
	}
	return nil
}

func deleteQuads(dsg store.DatasetGraph, quads []rdf.Quad, stats *UpdateStats) error {
	for _, q := range quads {
		removed, err := store.DeleteQuad(dsg, q)
		if err != nil {
			return err
		}
		if removed {
			stats.Removed++
		}
	}
	return nil
}
