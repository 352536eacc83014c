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
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/pkg/errors"
)

// Blank node labels must not collide with those of earlier runs of the server
// writing to the same persistent store.
var blankNodeSeed = strconv.FormatInt(time.Now().UnixNano(), 36)

// parseOptions returns the options for reading a document sent with the
// request: relative IRIs resolve against the request URL, and blank nodes are
// scoped to the request.
func parseOptions(a *Action) codec.ParseOptions {
	return codec.ParseOptions{
		Base:       requestURL(a.Request, false),
		BlankNodes: rdf.NewBlankNodeScope(fmt.Sprintf("%s-%d", blankNodeSeed, a.ID)),
	}
}

// bodyFormat returns the syntax of the request body, from its Content-Type.
func bodyFormat(r *http.Request) (*codec.Format, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil, errUnsupportedMediaType("a Content-Type is required: one of %v", codecMediaTypes())
	}
	f := codec.ByMediaType(ct)
	if f == nil {
		return nil, errUnsupportedMediaType("unsupported Content-Type %q: expected one of %v",
			ct, codecMediaTypes())
	}
	return f, nil
}

func codecMediaTypes() []string {
	var res []string
	for _, f := range codec.All() {
		res = append(res, f.MediaType)
	}
	return res
}

// parseFailure turns syntax errors in the document into client errors.
func parseFailure(err error) error {
	var perr *codec.ParseError
	if errors.As(err, &perr) {
		return errBadRequest("%v", perr)
	}
	return err
}

// tripleSink returns an emit function for codec.Format.Parse that adds the
// statements to g. Statements naming a graph are rejected, since the target
// graph was given by the request.
func tripleSink(g store.Graph, added *int) func(rdf.Quad) error {
	return func(q rdf.Quad) error {
		if !q.InDefaultGraph() {
			return errBadRequest("the document names graph %v, but the request addresses a single graph", q.G)
		}
		ok, err := g.Add(q.Triple())
		if ok {
			*added++
		}
		return err
	}
}

// quadSink returns an emit function for codec.Format.Parse that adds the
// statements to the dataset. Triples go to the default graph.
func quadSink(dsg store.DatasetGraph, added *int) func(rdf.Quad) error {
	return func(q rdf.Quad) error {
		ok, err := store.AddQuad(dsg, q)
		if ok {
			*added++
		}
		return err
	}
}

// writeResult is what a write reports to its handler.
type writeResult struct {
	// Whether the target existed before the write, measured inside the write
	// transaction. The default graph and the dataset always exist.
	existed bool
	added   int
	removed int
}

// graphWrite is a request to write a document into one graph.
type graphWrite struct {
	target targetRef
	// Replace the graph's contents rather than add to them.
	overwrite bool
	format    *codec.Format
	body      io.Reader
}

// writeGraph applies the write atomically. A transactional dataset gets the
// document streamed straight into the target and rolls back on a syntax error.
// Otherwise the document is parsed into a buffer first, with no lock held, and
// the dataset is only touched once the whole document is known to be good.
func writeGraph(a *Action, w graphWrite) (writeResult, error) {
	if a.Dataset.Dataset.Transactional() {
		return streamGraph(a, w)
	}
	buf := memstore.New()
	added := 0
	err := w.format.Parse(w.body, parseOptions(a), tripleSink(buf.Default(), &added))
	if err != nil {
		return writeResult{}, parseFailure(err)
	}
	return applyGraph(a, w.target, w.overwrite, buf.Default())
}

func streamGraph(a *Action, w graphWrite) (writeResult, error) {
	var res writeResult
	opts := parseOptions(a)
	err := a.Write(func(store.DatasetGraph) error {
		g, err := openTarget(a, w.target, w.overwrite, &res)
		if err != nil {
			return err
		}
		return parseFailure(w.format.Parse(w.body, opts, tripleSink(g, &res.added)))
	})
	return res, err
}

// applyGraph copies the triples of 'src' into the target graph in one write
// transaction.
func applyGraph(a *Action, ref targetRef, overwrite bool, src store.Graph) (writeResult, error) {
	var res writeResult
	err := a.Write(func(store.DatasetGraph) error {
		g, err := openTarget(a, ref, overwrite, &res)
		if err != nil {
			return err
		}
		res.added, err = store.CopyGraph(g, src)
		return errors.Wrap(err, "copying triples into target")
	})
	return res, err
}

// openTarget resolves the target in the open write transaction, records
// whether it existed, and clears it when overwriting.
func openTarget(a *Action, ref targetRef, overwrite bool, res *writeResult) (store.Graph, error) {
	target, err := a.Target(ref)
	if err != nil {
		return nil, err
	}
	// Must be asked before Graph, which may create the graph.
	res.existed, err = target.Exists()
	if err != nil {
		return nil, err
	}
	g, err := target.Graph()
	if err != nil {
		return nil, err
	}
	if overwrite && res.existed {
		if res.removed, err = g.Size(); err != nil {
			return nil, errors.Wrap(err, "sizing target")
		}
		if err := g.Clear(); err != nil {
			return nil, errors.Wrap(err, "clearing target")
		}
	}
	return g, nil
}

// writeDataset adds the quads of a document to the whole dataset, or replaces
// the dataset's contents with them. It uses the same two strategies as
// writeGraph.
func writeDataset(a *Action, replace bool, format *codec.Format, body io.Reader) (writeResult, error) {
	res := writeResult{existed: true}
	if a.Dataset.Dataset.Transactional() {
		opts := parseOptions(a)
		err := a.Write(func(dsg store.DatasetGraph) error {
			if replace {
				if err := clearDataset(dsg, &res); err != nil {
					return err
				}
			}
			return parseFailure(format.Parse(body, opts, quadSink(dsg, &res.added)))
		})
		return res, err
	}
	buf := memstore.New()
	parsed := 0
	if err := format.Parse(body, parseOptions(a), quadSink(buf, &parsed)); err != nil {
		return res, parseFailure(err)
	}
	return res, applyDataset(a, replace, buf, &res)
}

func applyDataset(a *Action, replace bool, src store.DatasetGraph, res *writeResult) error {
	return a.Write(func(dsg store.DatasetGraph) error {
		if replace {
			if err := clearDataset(dsg, res); err != nil {
				return err
			}
		}
		var err error
		res.added, err = store.CopyDataset(dsg, src)
		return errors.Wrap(err, "copying quads into dataset")
	})
}

func clearDataset(dsg store.DatasetGraph, res *writeResult) error {
	n, err := countQuads(dsg)
	if err != nil {
		return err
	}
	res.removed = n
	return errors.Wrap(dsg.Clear(), "clearing dataset")
}

func countQuads(dsg store.DatasetGraph) (int, error) {
	n := 0
	err := dsg.Find(rdf.Quad{}, func(rdf.Quad) bool {
		n++
		return true
	})
	return n, errors.Wrap(err, "counting quads")
}
