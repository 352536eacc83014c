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

package store_test

import (
	"testing"

	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/ebay/sparqld/store/txlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_HandleNesting(t *testing.T) {
	ds := txlock.New("test", memstore.New())

	txn, err := ds.Begin(store.ReadTxn)
	require.NoError(t, err)
	h := store.Hold(txn)
	assert.Equal(t, txn, h.Txn())
	assert.False(t, h.Nested())
	assert.Equal(t, store.ErrLockPromotion, h.Nest(store.WriteTxn))
	require.NoError(t, h.Nest(store.ReadTxn))
	assert.True(t, h.Nested())
	ended, err := h.Release()
	require.NoError(t, err)
	assert.False(t, ended)
	ended, err = h.Release()
	require.NoError(t, err)
	assert.True(t, ended)
	_, err = h.Release()
	assert.Equal(t, store.ErrTxState, err)
	assert.Equal(t, store.ErrTxState, h.Nest(store.ReadTxn))

	txn, err = ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	h = store.Hold(txn)
	require.NoError(t, h.Nest(store.ReadTxn))
	assert.Equal(t, store.WriteTxn, h.Mode())
	require.NoError(t, txn.Commit())
	_, err = h.Release()
	require.NoError(t, err)
	ended, err = h.Release()
	require.NoError(t, err)
	assert.True(t, ended)
}
