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

// Package boltstore is a durable, transactional RDF dataset kept in a bbolt
// file. Each graph is a bucket holding three index buckets; a bbolt
// transaction is a dataset transaction, so aborted writes leave no trace.
package boltstore

import (
	"bytes"
	"sort"
	"time"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	graphsBucket = []byte("graphs")
	indexNames   = [3][]byte{[]byte("spo"), []byte("pos"), []byte("osp")}
	defaultKey   = appendTerm(nil, rdf.DefaultGraph)
	present      = []byte{1}
)

const (
	spo = iota
	pos
	osp
)

// Dataset is a bbolt backed store.Dataset.
type Dataset struct {
	path string
	db   *bolt.DB
}

// Open opens or creates the dataset file at 'path'.
func Open(path string) (*Dataset, error) {
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening bolt dataset %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(graphsBucket)
		if err != nil {
			return err
		}
		_, err = createGraphBucket(root, defaultKey)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "initializing bolt dataset %s", path)
	}
	return &Dataset{path: path, db: db}, nil
}

// Path returns the location of the dataset file.
func (d *Dataset) Path() string {
	return d.path
}

// Transactional implements store.Dataset.
func (d *Dataset) Transactional() bool {
	return true
}

// Close implements store.Dataset.
func (d *Dataset) Close() error {
	return d.db.Close()
}

// Begin implements store.Dataset. bbolt allows many concurrent readers and a
// single writer; a second writer blocks until the first one finishes.
func (d *Dataset) Begin(mode store.TxnMode) (store.Txn, error) {
	if mode != store.ReadTxn && mode != store.WriteTxn {
		return nil, store.ErrTxState
	}
	tx, err := d.db.Begin(mode == store.WriteTxn)
	if err != nil {
		return nil, errors.Wrap(err, "starting bolt transaction")
	}
	return &txn{tx: tx, mode: mode}, nil
}

type txnState int

const (
	open txnState = iota
	committed
	aborted
	ended
)

type txn struct {
	tx    *bolt.Tx
	mode  store.TxnMode
	state txnState
}

func (t *txn) Mode() store.TxnMode {
	return t.mode
}

func (t *txn) Graph() store.DatasetGraph {
	if t.state != open {
		return nil
	}
	return &datasetGraph{tx: t.tx}
}

func (t *txn) Commit() error {
	if t.state != open || t.mode != store.WriteTxn {
		return store.ErrTxState
	}
	t.state = committed
	return errors.Wrap(t.tx.Commit(), "committing bolt transaction")
}

func (t *txn) Abort() error {
	if t.state != open || t.mode != store.WriteTxn {
		return store.ErrTxState
	}
	t.state = aborted
	return errors.Wrap(t.tx.Rollback(), "aborting bolt transaction")
}

func (t *txn) End() error {
	switch t.state {
	case ended:
		return store.ErrTxState
	case open:
		t.state = ended
		return errors.Wrap(t.tx.Rollback(), "ending bolt transaction")
	}
	t.state = ended
	return nil
}

func createGraphBucket(root *bolt.Bucket, key []byte) (*bolt.Bucket, error) {
	b, err := root.CreateBucketIfNotExists(key)
	if err != nil {
		return nil, err
	}
	for _, name := range indexNames {
		if _, err := b.CreateBucketIfNotExists(name); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// datasetGraph implements store.DatasetGraph within one bbolt transaction.
type datasetGraph struct {
	tx *bolt.Tx
}

func (d *datasetGraph) root() *bolt.Bucket {
	return d.tx.Bucket(graphsBucket)
}

func (d *datasetGraph) Default() store.Graph {
	return &graph{tx: d.tx, bucket: d.root().Bucket(defaultKey)}
}

func (d *datasetGraph) Named(name rdf.Term) (store.Graph, error) {
	if name.IsZero() || name.IsDefaultGraph() {
		return d.Default(), nil
	}
	key := appendTerm(nil, name)
	b := d.root().Bucket(key)
	if b == nil && d.tx.Writable() {
		var err error
		if b, err = createGraphBucket(d.root(), key); err != nil {
			return nil, errors.Wrapf(err, "creating graph %v", name)
		}
	}
	return &graph{tx: d.tx, bucket: b}, nil
}

func (d *datasetGraph) ContainsGraph(name rdf.Term) (bool, error) {
	if name.IsDefaultGraph() {
		return true, nil
	}
	return d.root().Bucket(appendTerm(nil, name)) != nil, nil
}

func (d *datasetGraph) GraphNames() ([]rdf.Term, error) {
	var names []rdf.Term
	c := d.root().Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if v != nil || bytes.Equal(k, defaultKey) {
			continue
		}
		name, _, err := decodeTerm(k)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return rdf.Compare(names[i], names[j]) < 0
	})
	return names, nil
}

func (d *datasetGraph) RemoveGraph(name rdf.Term) error {
	if name.IsZero() || name.IsDefaultGraph() {
		return d.Default().Clear()
	}
	err := d.root().DeleteBucket(appendTerm(nil, name))
	if err == bolt.ErrBucketNotFound {
		return nil
	}
	return err
}

func (d *datasetGraph) Find(pattern rdf.Quad, fn func(rdf.Quad) bool) error {
	var names []rdf.Term
	switch {
	case pattern.G.IsDefaultGraph():
		names = []rdf.Term{rdf.DefaultGraph}
	case !pattern.G.IsZero():
		names = []rdf.Term{pattern.G}
	default:
		named, err := d.GraphNames()
		if err != nil {
			return err
		}
		names = append([]rdf.Term{rdf.DefaultGraph}, named...)
	}
	for _, name := range names {
		b := d.root().Bucket(appendTerm(nil, name))
		if b == nil {
			continue
		}
		more := true
		g := &graph{tx: d.tx, bucket: b}
		err := g.Find(pattern.Triple(), func(t rdf.Triple) bool {
			more = fn(rdf.InGraph(name, t))
			return more
		})
		if err != nil || !more {
			return err
		}
	}
	return nil
}

func (d *datasetGraph) Clear() error {
	names, err := d.GraphNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := d.RemoveGraph(name); err != nil {
			return err
		}
	}
	return d.Default().Clear()
}

// graph implements store.Graph. A nil bucket is a graph that does not exist,
// seen from a read transaction.
type graph struct {
	tx     *bolt.Tx
	bucket *bolt.Bucket
}

func (g *graph) index(i int) *bolt.Bucket {
	return g.bucket.Bucket(indexNames[i])
}

func keyFor(t rdf.Triple, i int) []byte {
	switch i {
	case pos:
		return tripleKey(t.P, t.O, t.S)
	case osp:
		return tripleKey(t.O, t.S, t.P)
	}
	return tripleKey(t.S, t.P, t.O)
}

func (g *graph) Add(t rdf.Triple) (bool, error) {
	if g.bucket == nil || !g.tx.Writable() {
		return false, store.ErrReadOnly
	}
	if g.index(spo).Get(keyFor(t, spo)) != nil {
		return false, nil
	}
	for i := range indexNames {
		if err := g.index(i).Put(keyFor(t, i), present); err != nil {
			return false, errors.Wrap(err, "adding triple")
		}
	}
	return true, nil
}

func (g *graph) Delete(t rdf.Triple) (bool, error) {
	if g.bucket == nil || !g.tx.Writable() {
		return false, store.ErrReadOnly
	}
	if g.index(spo).Get(keyFor(t, spo)) == nil {
		return false, nil
	}
	for i := range indexNames {
		if err := g.index(i).Delete(keyFor(t, i)); err != nil {
			return false, errors.Wrap(err, "deleting triple")
		}
	}
	return true, nil
}

func (g *graph) Find(pattern rdf.Triple, fn func(rdf.Triple) bool) error {
	if g.bucket == nil {
		return nil
	}
	s, p, o := !pattern.S.IsZero(), !pattern.P.IsZero(), !pattern.O.IsZero()
	var idx int
	var prefix []byte
	switch {
	case s && p:
		idx, prefix = spo, appendTerm(appendTerm(nil, pattern.S), pattern.P)
	case s && o:
		idx, prefix = osp, appendTerm(appendTerm(nil, pattern.O), pattern.S)
	case s:
		idx, prefix = spo, appendTerm(nil, pattern.S)
	case p && o:
		idx, prefix = pos, appendTerm(appendTerm(nil, pattern.P), pattern.O)
	case p:
		idx, prefix = pos, appendTerm(nil, pattern.P)
	case o:
		idx, prefix = osp, appendTerm(nil, pattern.O)
	default:
		idx = spo
	}
	c := g.index(idx).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		a, b, cc, err := decodeTripleKey(k)
		if err != nil {
			return err
		}
		var t rdf.Triple
		switch idx {
		case pos:
			t = rdf.Triple{S: cc, P: a, O: b}
		case osp:
			t = rdf.Triple{S: b, P: cc, O: a}
		default:
			t = rdf.Triple{S: a, P: b, O: cc}
		}
		if !t.Matches(pattern) {
			continue
		}
		if !fn(t) {
			return nil
		}
	}
	return nil
}

func (g *graph) Size() (int, error) {
	if g.bucket == nil {
		return 0, nil
	}
	n := 0
	c := g.index(spo).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (g *graph) Clear() error {
	if g.bucket == nil || !g.tx.Writable() {
		return store.ErrReadOnly
	}
	for _, name := range indexNames {
		if err := g.bucket.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return errors.Wrap(err, "clearing graph")
		}
		if _, err := g.bucket.CreateBucket(name); err != nil {
			return errors.Wrap(err, "clearing graph")
		}
	}
	return nil
}
