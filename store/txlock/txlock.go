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

// Package txlock serves a non-transactional store.DatasetGraph as a
// store.Dataset. Transactions are emulated with a multiple-reader,
// single-writer lock: readers share the lock and a writer holds it
// exclusively. Nothing can be rolled back, so Abort only logs.
package txlock

import (
	"sync"
	"time"

	"github.com/ebay/sparqld/store"
	log "github.com/sirupsen/logrus"
)

// Dataset wraps a store.DatasetGraph with a reader/writer lock. It implements
// store.Dataset.
type Dataset struct {
	name string
	dsg  store.DatasetGraph
	lock sync.RWMutex
}

// New returns a Dataset serving 'dsg'. The name is only used in logs and
// metrics.
func New(name string, dsg store.DatasetGraph) *Dataset {
	return &Dataset{name: name, dsg: dsg}
}

// Transactional implements store.Dataset. It returns false, since changes
// can't be undone.
func (d *Dataset) Transactional() bool {
	return false
}

// Close implements store.Dataset.
func (d *Dataset) Close() error {
	return nil
}

// Begin implements store.Dataset. It blocks until the lock is available.
func (d *Dataset) Begin(mode store.TxnMode) (store.Txn, error) {
	l, err := d.acquire(mode)
	if err != nil {
		return nil, err
	}
	return &txn{dataset: d, lock: l}, nil
}

// acquire takes the lock in the given mode. Nested transactions share one
// store.Handle, so a lock is only ever acquired once per transaction.
func (d *Dataset) acquire(mode store.TxnMode) (*heldLock, error) {
	start := time.Now()
	switch mode {
	case store.ReadTxn:
		d.lock.RLock()
	case store.WriteTxn:
		d.lock.Lock()
	default:
		return nil, store.ErrTxState
	}
	metrics.lockWaitSeconds.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	metrics.locksHeld.WithLabelValues(mode.String()).Inc()
	return &heldLock{dataset: d, mode: mode}, nil
}

// heldLock is the lock taken by acquire.
type heldLock struct {
	dataset  *Dataset
	mode     store.TxnMode
	released bool
}

// release unlocks. A second release fails with store.ErrTxState.
func (l *heldLock) release() error {
	if l.released {
		return store.ErrTxState
	}
	l.released = true
	switch l.mode {
	case store.ReadTxn:
		l.dataset.lock.RUnlock()
	case store.WriteTxn:
		l.dataset.lock.Unlock()
	}
	metrics.locksHeld.WithLabelValues(l.mode.String()).Dec()
	return nil
}

type txnState int

const (
	open txnState = iota
	committed
	aborted
	ended
)

// txn is a store.Txn backed by a held lock.
type txn struct {
	dataset *Dataset
	lock    *heldLock
	state   txnState
}

func (t *txn) Mode() store.TxnMode {
	return t.lock.mode
}

func (t *txn) Graph() store.DatasetGraph {
	if t.state == ended {
		return nil
	}
	if t.lock.mode == store.ReadTxn {
		return store.ReadOnly(t.dataset.dsg)
	}
	return t.dataset.dsg
}

func (t *txn) Commit() error {
	if t.state != open || t.lock.mode != store.WriteTxn {
		return store.ErrTxState
	}
	t.state = committed
	return nil
}

func (t *txn) Abort() error {
	if t.state != open || t.lock.mode != store.WriteTxn {
		return store.ErrTxState
	}
	t.state = aborted
	metrics.nonTransactionalAborts.Inc()
	log.WithField("dataset", t.dataset.name).
		Warn("Aborting a write on a non-transactional dataset: changes already made can't be undone")
	return nil
}

func (t *txn) End() error {
	if t.state == ended {
		return store.ErrTxState
	}
	if t.state == open && t.lock.mode == store.WriteTxn {
		if err := t.Abort(); err != nil {
			return err
		}
	}
	t.state = ended
	return t.lock.release()
}
