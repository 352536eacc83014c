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

// Package changelog publishes a summary of every committed write to a dataset,
// so that other systems can follow the changes.
package changelog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ebay/sparqld/config"
)

// An Event describes one committed write.
type Event struct {
	// The dataset name, like "/ds".
	Dataset string `json:"dataset"`
	// The protocol operation, like "update" or "gsp-write".
	Operation string `json:"operation"`
	// The graph written, if the operation addressed a single graph.
	Graph string `json:"graph,omitempty"`
	// The number of triples or quads added and removed. For operations that
	// replace a graph, Removed counts the previous contents.
	Added   int `json:"added"`
	Removed int `json:"removed"`
	// The id of the request that made the change.
	RequestID int64     `json:"requestId"`
	Time      time.Time `json:"time"`
}

// A Publisher sends events somewhere. Publish is called after the write has
// committed, so a failure can't undo the write.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop is a Publisher that discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// A Factory constructs a Publisher from its configuration.
type Factory func(ctx context.Context, cfg *config.ChangeLog) (Publisher, error)

var (
	factoriesLock sync.Mutex
	factories     = map[string]Factory{
		"nop": func(context.Context, *config.ChangeLog) (Publisher, error) {
			return Nop{}, nil
		},
	}
)

// Register makes a Publisher implementation available to New under the given
// type name. Implementations call it from init.
func Register(typ string, factory Factory) {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	factories[typ] = factory
}

// New returns the Publisher described by cfg. A nil cfg gives Nop.
func New(ctx context.Context, cfg *config.ChangeLog) (Publisher, error) {
	if cfg == nil {
		return Nop{}, nil
	}
	factoriesLock.Lock()
	factory, ok := factories[cfg.Type]
	factoriesLock.Unlock()
	if !ok {
		return nil, fmt.Errorf("changelog: no implementation for type %q (have %v)",
			cfg.Type, registeredTypes())
	}
	return factory(ctx, cfg)
}

func registeredTypes() []string {
	factoriesLock.Lock()
	defer factoriesLock.Unlock()
	types := make([]string, 0, len(factories))
	for typ := range factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
