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

package txlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/ebay/sparqld/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Dataset {
		return New("test", memstore.New())
	})
}

func Test_AbortCannotRollBack(t *testing.T) {
	ds := New("test", memstore.New())
	assert.False(t, ds.Transactional())
	txn, err := ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	_, err = txn.Graph().Default().Add(storetest.AliceName)
	require.NoError(t, err)
	require.NoError(t, txn.Abort())
	require.NoError(t, txn.End())
	storetest.Read(t, ds, func(dsg store.DatasetGraph) {
		found, err := store.Contains(dsg.Default(), storetest.AliceName)
		require.NoError(t, err)
		assert.True(t, found, "non-transactional abort leaves changes in place")
	})
}

func Test_releaseOnce(t *testing.T) {
	ds := New("test", memstore.New())
	l, err := ds.acquire(store.WriteTxn)
	require.NoError(t, err)
	require.NoError(t, l.release())
	assert.Equal(t, store.ErrTxState, l.release())
	_, err = ds.acquire(store.TxnMode(0))
	assert.Equal(t, store.ErrTxState, err)

	// The lock is free again.
	txn, err := ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	require.NoError(t, txn.End())
	assert.Equal(t, store.ErrTxState, txn.End())
}

func Test_NestedReadsShareOneLock(t *testing.T) {
	ds := New("test", memstore.New())
	txn, err := ds.Begin(store.WriteTxn)
	require.NoError(t, err)
	h := store.Hold(txn)
	require.NoError(t, h.Nest(store.ReadTxn))
	assert.Equal(t, store.WriteTxn, h.Mode(), "no downgrade")
	ended, err := h.Release()
	require.NoError(t, err)
	assert.False(t, ended)
	ended, err = h.Release()
	require.NoError(t, err)
	assert.True(t, ended)

	// Had the nested read taken the lock again, this would block.
	storetest.Read(t, ds, func(store.DatasetGraph) {})
}

func Test_WriterExcludesReaders(t *testing.T) {
	ds := New("test", memstore.New())
	writer, err := ds.Begin(store.WriteTxn)
	require.NoError(t, err)

	var readerDone int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		storetest.Read(t, ds, func(dsg store.DatasetGraph) {
			found, err := store.Contains(dsg.Default(), storetest.AliceName)
			assert.NoError(t, err)
			assert.True(t, found, "reader must see the committed write")
		})
		atomic.StoreInt32(&readerDone, 1)
	}()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&readerDone))
	_, err = writer.Graph().Default().Add(storetest.AliceName)
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	require.NoError(t, writer.End())
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&readerDone))
}
