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
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/ebay/sparqld/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Operation is the protocol operation a request performs.
type Operation int

// The possible values of Operation.
const (
	OpQuery Operation = iota + 1
	OpUpdate
	OpUpload
	OpGSPRead
	OpGSPWrite
	// Dump the whole dataset.
	OpQuadsRead
	// Add to or replace the whole dataset.
	OpQuadsWrite
)

func (op Operation) String() string {
	switch op {
	case OpQuery:
		return "query"
	case OpUpdate:
		return "update"
	case OpUpload:
		return "upload"
	case OpGSPRead:
		return "gsp-read"
	case OpGSPWrite:
		return "gsp-write"
	case OpQuadsRead:
		return "quads-read"
	case OpQuadsWrite:
		return "quads-write"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

type actionState int

const (
	idle actionState = iota
	readActive
	writeActive
	// Committed or aborted, waiting for EndWrite.
	writeFinished
)

func (s actionState) String() string {
	switch s {
	case idle:
		return "idle"
	case readActive:
		return "read-active"
	case writeActive:
		return "write-active"
	case writeFinished:
		return "write-finished"
	}
	return fmt.Sprintf("actionState(%d)", int(s))
}

var lastActionID int64

// An Action is the state of one request: what it was routed to and the
// transaction it holds. Actions are not safe for concurrent use.
//
// Every BeginRead must be paired with an EndRead and every BeginWrite with an
// EndWrite, on every path out of the handler. Read and Write do the pairing.
type Action struct {
	// Unique for the life of the process, increasing.
	ID       int64
	Request  *http.Request
	Response http.ResponseWriter
	Dataset  *DatasetRef
	// The service invoked by name, or nil when the operation was chosen by
	// parameters or direct naming.
	Service *ServiceRef
	Op      Operation
	// The path after the dataset name. For direct naming, the graph's path.
	Trailing string
	// The request parameters, from the query string and a form body, with
	// aliases replaced.
	Params url.Values

	ctx  context.Context
	log  *log.Entry
	resp *statusRecorder

	// The open transaction and its nesting. Nested only for reads inside a
	// write.
	handle *store.Handle
	state  actionState
	// Non-nil exactly when a transaction is open and not yet finished.
	active store.DatasetGraph
}

func newAction(w *statusRecorder, r *http.Request, ds *DatasetRef) *Action {
	id := atomic.AddInt64(&lastActionID, 1)
	return &Action{
		ID:       id,
		Request:  r,
		Response: w,
		Dataset:  ds,
		ctx:      r.Context(),
		log:      log.WithField("id", id),
		resp:     w,
	}
}

// Context returns the request's context.
func (a *Action) Context() context.Context {
	return a.ctx
}

// ActiveGraph returns the dataset graph of the open transaction, or nil.
func (a *Action) ActiveGraph() store.DatasetGraph {
	return a.active
}

// InTransaction returns true between a Begin and its matching End.
func (a *Action) InTransaction() bool {
	return a.state != idle
}

// responseStarted returns true once the status line has been sent, after
// which errors can only be reported in the body.
func (a *Action) responseStarted() bool {
	return a.resp != nil && a.resp.wroteHeader
}

func (a *Action) stateError(op string) error {
	return errors.Wrapf(store.ErrTxState, "%s in state %v", op, a.state)
}

// BeginRead opens a read transaction. Inside a write transaction, it nests
// and the write transaction continues to be used.
func (a *Action) BeginRead() error {
	switch a.state {
	case idle:
		txn, err := a.Dataset.Dataset.Begin(store.ReadTxn)
		if err != nil {
			return errors.Wrap(err, "begin read")
		}
		a.handle = store.Hold(txn)
		a.active = txn.Graph()
		a.state = readActive
	case writeActive:
		// No downgrade: the reader keeps using the write transaction.
		if err := a.handle.Nest(store.ReadTxn); err != nil {
			return errors.Wrap(err, "BeginRead")
		}
	default:
		return a.stateError("BeginRead")
	}
	atomic.AddInt64(&a.Dataset.txns.begins, 1)
	return nil
}

// EndRead closes the read transaction opened by BeginRead.
func (a *Action) EndRead() error {
	if a.state != readActive && !(a.state == writeActive && a.handle.Nested()) {
		return a.stateError("EndRead")
	}
	atomic.AddInt64(&a.Dataset.txns.ends, 1)
	ended, err := a.handle.Release()
	if ended {
		a.state = idle
		a.active = nil
		a.handle = nil
	}
	return errors.Wrap(err, "end read")
}

// BeginWrite opens a write transaction. It fails with store.ErrLockPromotion
// inside a read transaction, since waiting for the write lock there would
// never end.
func (a *Action) BeginWrite() error {
	switch a.state {
	case idle:
	case readActive:
		// A read handle refuses to nest a write.
		return errors.Wrap(a.handle.Nest(store.WriteTxn), "BeginWrite")
	default:
		return a.stateError("BeginWrite")
	}
	txn, err := a.Dataset.Dataset.Begin(store.WriteTxn)
	if err != nil {
		return errors.Wrap(err, "begin write")
	}
	a.handle = store.Hold(txn)
	a.active = txn.Graph()
	a.state = writeActive
	atomic.AddInt64(&a.Dataset.txns.begins, 1)
	return nil
}

// Commit makes the write transaction's changes visible. EndWrite must still
// be called.
func (a *Action) Commit() error {
	if a.state != writeActive || a.handle.Nested() {
		return a.stateError("Commit")
	}
	a.state = writeFinished
	a.active = nil
	return errors.Wrap(a.handle.Txn().Commit(), "commit")
}

// Abort discards the write transaction's changes, as far as the store can.
// EndWrite must still be called.
func (a *Action) Abort() error {
	if a.state != writeActive || a.handle.Nested() {
		return a.stateError("Abort")
	}
	a.state = writeFinished
	a.active = nil
	return errors.Wrap(a.handle.Txn().Abort(), "abort")
}

// EndWrite closes the write transaction. If it was neither committed nor
// aborted, it is aborted here and a warning is logged: the handler failed
// to finish its work.
func (a *Action) EndWrite() error {
	if (a.state != writeActive && a.state != writeFinished) || a.handle.Nested() {
		return a.stateError("EndWrite")
	}
	var abortErr error
	if a.state == writeActive {
		a.log.WithFields(log.Fields{
			"dataset": a.Dataset.Name,
			"op":      a.Op,
		}).Warn("Write transaction ended without commit or abort: aborting")
		metrics.forcedAborts.Inc()
		abortErr = a.handle.Txn().Abort()
	}
	_, endErr := a.handle.Release()
	a.handle = nil
	a.state = idle
	a.active = nil
	atomic.AddInt64(&a.Dataset.txns.ends, 1)
	if abortErr != nil {
		return errors.Wrap(abortErr, "forced abort")
	}
	return errors.Wrap(endErr, "end write")
}

// Read runs fn in a read transaction, which is always ended.
func (a *Action) Read(fn func(dsg store.DatasetGraph) error) (err error) {
	if err := a.BeginRead(); err != nil {
		return err
	}
	defer func() {
		if endErr := a.EndRead(); err == nil {
			err = endErr
		}
	}()
	return fn(a.active)
}

// Write runs fn in a write transaction. It commits if fn succeeds and aborts
// if fn fails. The transaction is always ended, even if fn panics.
func (a *Action) Write(fn func(dsg store.DatasetGraph) error) (err error) {
	if err := a.BeginWrite(); err != nil {
		return err
	}
	defer func() {
		if endErr := a.EndWrite(); err == nil {
			err = endErr
		}
	}()
	if err := fn(a.active); err != nil {
		if abortErr := a.Abort(); abortErr != nil {
			a.log.WithError(abortErr).Warn("Failed to abort write transaction")
		}
		return err
	}
	return a.Commit()
}

// release ends whatever transaction is still open. The dispatcher calls it
// after the handler returns or panics, so a misbehaving handler can't leave
// the dataset locked. It returns an error if anything had to be released.
func (a *Action) release() error {
	if a.state == idle {
		return nil
	}
	state := a.state
	for a.handle.Nested() {
		a.handle.Release()
		atomic.AddInt64(&a.Dataset.txns.ends, 1)
	}
	var err error
	switch a.state {
	case readActive:
		err = a.EndRead()
	case writeActive, writeFinished:
		err = a.EndWrite()
	}
	if err != nil {
		a.log.WithError(err).Warn("Failed to release transaction")
	}
	return errors.Wrapf(store.ErrTxState, "handler returned with the transaction %v", state)
}
