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

// Handle is an open transaction shared by nested Begin calls. The
// transaction is ended when the last of them is released. A read nested in a
// write uses the write transaction; a write nested in a read fails with
// ErrLockPromotion, since waiting for the write lock there would never end.
//
// A Handle is not safe for concurrent use.
type Handle struct {
	txn Txn
	// The number of Begin calls not yet released. Zero once the
	// transaction has been ended.
	depth int
}

// Hold returns a Handle for a transaction that was just begun.
func Hold(txn Txn) *Handle {
	return &Handle{txn: txn, depth: 1}
}

// Txn returns the transaction.
func (h *Handle) Txn() Txn {
	return h.txn
}

// Mode returns the mode of the transaction. A write handle stays a write
// handle after nested reads.
func (h *Handle) Mode() TxnMode {
	return h.txn.Mode()
}

// Nested returns true if Begin calls other than the first are outstanding.
func (h *Handle) Nested() bool {
	return h.depth > 1
}

// Nest records a nested Begin in the given mode.
func (h *Handle) Nest(mode TxnMode) error {
	if h.depth == 0 {
		return ErrTxState
	}
	if mode == WriteTxn && h.txn.Mode() == ReadTxn {
		return ErrLockPromotion
	}
	h.depth++
	return nil
}

// Release undoes one Begin. The last release ends the transaction and
// returns true.
func (h *Handle) Release() (ended bool, err error) {
	if h.depth == 0 {
		return false, ErrTxState
	}
	h.depth--
	if h.depth > 0 {
		return false, nil
	}
	return true, h.txn.End()
}
