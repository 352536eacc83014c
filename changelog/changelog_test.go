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

package changelog

import (
	"context"
	"testing"

	"github.com/ebay/sparqld/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func Test_New(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Nop{}, p)

	p, err = New(ctx, &config.ChangeLog{Type: "nop"})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(ctx, Event{Dataset: "/ds"}))
	assert.NoError(t, p.Close())

	_, err = New(ctx, &config.ChangeLog{Type: "carrier-pigeon"})
	assert.EqualError(t, err, `changelog: no implementation for type "carrier-pigeon" (have [nop])`)
}

func Test_Register(t *testing.T) {
	rec := new(recorder)
	Register("test-recorder", func(context.Context, *config.ChangeLog) (Publisher, error) {
		return rec, nil
	})
	defer func() {
		factoriesLock.Lock()
		delete(factories, "test-recorder")
		factoriesLock.Unlock()
	}()
	ctx := context.Background()
	p, err := New(ctx, &config.ChangeLog{Type: "test-recorder"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, Event{Dataset: "/ds", Added: 3}))
	if assert.Len(t, rec.events, 1) {
		assert.Equal(t, 3, rec.events[0].Added)
	}
}
