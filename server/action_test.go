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
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ebay/sparqld/rdf"
	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/boltstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAction(ds *DatasetRef) *Action {
	return newAction(&statusRecorder{ResponseWriter: httptest.NewRecorder()},
		httptest.NewRequest("GET", ds.Name, nil), ds)
}

var actionTriple = rdf.NewTriple(rdf.IRI("http://ex/s"), rdf.IRI("http://ex/p"), rdf.Literal("o", ""))

func newBoltRef(t *testing.T, name string) *DatasetRef {
	t.Helper()
	dataset, err := boltstore.Open(filepath.Join(t.TempDir(), "data.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { dataset.Close() })
	return NewDatasetRef(name, dataset, nil, nil)
}

func assertBalanced(t *testing.T, ds *DatasetRef) {
	t.Helper()
	begins, ends := ds.TxnCounts()
	assert.Equal(t, begins, ends, "transaction begins and ends")
}

func Test_ActionRead(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	assert.False(t, a.InTransaction())
	assert.Nil(t, a.ActiveGraph())
	require.NoError(t, a.BeginRead())
	assert.True(t, a.InTransaction())
	require.NotNil(t, a.ActiveGraph())
	_, err := a.ActiveGraph().Default().Add(actionTriple)
	assert.True(t, errors.Is(err, store.ErrReadOnly), "%v", err)
	require.NoError(t, a.EndRead())
	assert.False(t, a.InTransaction())
	assert.Nil(t, a.ActiveGraph())
	assert.True(t, errors.Is(a.EndRead(), store.ErrTxState))
	begins, ends := ds.TxnCounts()
	assert.Equal(t, int64(1), begins)
	assert.Equal(t, int64(1), ends)
}

func Test_ActionLockPromotion(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	err := a.Read(func(store.DatasetGraph) error {
		return a.BeginWrite()
	})
	assert.True(t, errors.Is(err, store.ErrLockPromotion), "%v", err)
	assert.False(t, a.InTransaction())
	assertBalanced(t, ds)
}

func Test_ActionNestedRead(t *testing.T) {
	refs := map[string]func(t *testing.T) *DatasetRef{
		"memory": func(*testing.T) *DatasetRef { return newRef("/ds") },
		"bolt":   func(t *testing.T) *DatasetRef { return newBoltRef(t, "/ds") },
	}
	for name, newDataset := range refs {
		t.Run(name, func(t *testing.T) {
			ds := newDataset(t)
			a := newTestAction(ds)
			err := a.Write(func(dsg store.DatasetGraph) error {
				if _, err := dsg.Default().Add(actionTriple); err != nil {
					return err
				}
				return a.Read(func(inner store.DatasetGraph) error {
					assert.Equal(t, dsg, inner)
					assert.True(t, errors.Is(a.Commit(), store.ErrTxState), "commit while nested")
					n, err := inner.Default().Size()
					assert.Equal(t, 1, n)
					return err
				})
			})
			require.NoError(t, err)
			begins, ends := ds.TxnCounts()
			assert.Equal(t, int64(2), begins)
			assert.Equal(t, int64(2), ends)

			err = a.Read(func(dsg store.DatasetGraph) error {
				n, err := dsg.Default().Size()
				assert.Equal(t, 1, n)
				return err
			})
			require.NoError(t, err)
		})
	}
}

func Test_ActionStateErrors(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	assert.True(t, errors.Is(a.Commit(), store.ErrTxState))
	assert.True(t, errors.Is(a.Abort(), store.ErrTxState))
	assert.True(t, errors.Is(a.EndWrite(), store.ErrTxState))

	require.NoError(t, a.BeginWrite())
	assert.True(t, errors.Is(a.BeginWrite(), store.ErrTxState))
	assert.True(t, errors.Is(a.EndRead(), store.ErrTxState))
	require.NoError(t, a.Commit())
	assert.True(t, errors.Is(a.Commit(), store.ErrTxState))
	assert.True(t, errors.Is(a.Abort(), store.ErrTxState))
	assert.True(t, errors.Is(a.BeginRead(), store.ErrTxState))
	require.NoError(t, a.EndWrite())
	assertBalanced(t, ds)
}

func Test_ActionForcedAbort(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	require.NoError(t, a.BeginWrite())
	_, err := a.ActiveGraph().Default().Add(actionTriple)
	require.NoError(t, err)
	require.NoError(t, a.EndWrite())
	assert.False(t, a.InTransaction())
	assertBalanced(t, ds)

	// The write lock was released, so another action can write.
	b := newTestAction(ds)
	require.NoError(t, b.Write(func(store.DatasetGraph) error { return nil }))
}

func Test_ActionWriteAbortsOnError(t *testing.T) {
	ds := newBoltRef(t, "/ds")
	a := newTestAction(ds)
	failure := errors.New("handler failed")
	err := a.Write(func(dsg store.DatasetGraph) error {
		_, err := dsg.Default().Add(actionTriple)
		require.NoError(t, err)
		return failure
	})
	assert.Equal(t, failure, err)
	assertBalanced(t, ds)

	err = a.Read(func(dsg store.DatasetGraph) error {
		n, err := dsg.Default().Size()
		assert.Equal(t, 0, n)
		return err
	})
	require.NoError(t, err)
}

func Test_ActionWritePanics(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	assert.Panics(t, func() {
		a.Write(func(store.DatasetGraph) error {
			panic("boom")
		})
	})
	assert.False(t, a.InTransaction())
	assertBalanced(t, ds)
}

func Test_ActionRelease(t *testing.T) {
	ds := newRef("/ds")
	a := newTestAction(ds)
	assert.NoError(t, a.release())

	require.NoError(t, a.BeginRead())
	assert.True(t, errors.Is(a.release(), store.ErrTxState))
	assert.False(t, a.InTransaction())

	require.NoError(t, a.BeginWrite())
	require.NoError(t, a.BeginRead())
	assert.True(t, errors.Is(a.release(), store.ErrTxState))
	assert.False(t, a.InTransaction())
	assertBalanced(t, ds)

	// Nothing is left locked.
	b := newTestAction(ds)
	require.NoError(t, b.Write(func(store.DatasetGraph) error { return nil }))
}
