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
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/store"
)

// Counters are monotonic request statistics. They are updated with atomic
// operations and may be read at any time.
type Counters struct {
	requests int64
	good     int64
	bad      int64
}

func (c *Counters) incRequests() { atomic.AddInt64(&c.requests, 1) }
func (c *Counters) incGood()     { atomic.AddInt64(&c.good, 1) }
func (c *Counters) incBad()      { atomic.AddInt64(&c.bad, 1) }

// CounterValues is a snapshot of Counters.
type CounterValues struct {
	Requests int64 `json:"requests"`
	Good     int64 `json:"good"`
	Bad      int64 `json:"bad"`
}

// Values returns the current counts.
func (c *Counters) Values() CounterValues {
	return CounterValues{
		Requests: atomic.LoadInt64(&c.requests),
		Good:     atomic.LoadInt64(&c.good),
		Bad:      atomic.LoadInt64(&c.bad),
	}
}

// txnCounters count transaction boundaries on a dataset. After every request
// has finished, begins must equal ends.
type txnCounters struct {
	begins int64
	ends   int64
}

// ServiceRef is one service endpoint of a dataset. It is immutable once the
// server is running, apart from its counters.
type ServiceRef struct {
	Kind      string
	Endpoints []string
	Active    bool
	Counters  Counters
}

// DatasetRef is a dataset exposed by the server. It is immutable once the
// server is running, apart from its counters.
type DatasetRef struct {
	// The URL path prefix, like "/ds".
	Name     string
	Dataset  store.Dataset
	Services []*ServiceRef
	Policy   *Policy
	// The query time limit when the request doesn't ask for one; 0 for none.
	QueryTimeout time.Duration
	// The longest time limit a request may ask for; 0 for no limit.
	MaxQueryTimeout time.Duration
	// Counts every request routed to the dataset.
	Counters Counters
	txns     txnCounters
}

// NewDatasetRef returns a DatasetRef with services as described in the
// config. If services is empty, the defaults are registered. A nil policy
// means ConfigPolicy.
func NewDatasetRef(name string, dataset store.Dataset, policy *Policy, services []config.Service) *DatasetRef {
	if len(services) == 0 {
		services = config.DefaultServices()
	}
	if policy == nil {
		policy = ConfigPolicy()
	}
	ds := &DatasetRef{
		Name:    name,
		Dataset: dataset,
		Policy:  policy,
	}
	for _, svc := range services {
		ds.Services = append(ds.Services, &ServiceRef{
			Kind:      svc.Kind,
			Endpoints: append([]string(nil), svc.Endpoints...),
			Active:    !svc.Inactive,
		})
	}
	return ds
}

// ServiceByEndpoint returns the service with the given endpoint name, or nil.
func (ds *DatasetRef) ServiceByEndpoint(endpoint string) *ServiceRef {
	for _, svc := range ds.Services {
		for _, ep := range svc.Endpoints {
			if ep == endpoint {
				return svc
			}
		}
	}
	return nil
}

// HasActive returns true if the dataset has an active service of the kind.
func (ds *DatasetRef) HasActive(kind string) bool {
	for _, svc := range ds.Services {
		if svc.Kind == kind && svc.Active {
			return true
		}
	}
	return false
}

// TxnCounts returns how many transactions have begun and ended on the
// dataset, nested ones included.
func (ds *DatasetRef) TxnCounts() (begins, ends int64) {
	return atomic.LoadInt64(&ds.txns.begins), atomic.LoadInt64(&ds.txns.ends)
}

// queryTimeout returns the time limit for a query that asks for 'requested'
// (0 if it didn't ask), or 0 for no limit.
func (ds *DatasetRef) queryTimeout(requested time.Duration) time.Duration {
	timeout := ds.QueryTimeout
	if requested > 0 {
		timeout = requested
	}
	if ds.MaxQueryTimeout > 0 && (timeout == 0 || timeout > ds.MaxQueryTimeout) {
		timeout = ds.MaxQueryTimeout
	}
	return timeout
}

// A Registry maps URL paths onto datasets. It is safe for concurrent use
// since it is never modified after NewRegistry.
type Registry struct {
	byName map[string]*DatasetRef
	// Dataset names, longest first.
	names []string
}

// NewRegistry returns a Registry of the given datasets. Names must be unique.
func NewRegistry(datasets ...*DatasetRef) (*Registry, error) {
	r := &Registry{byName: make(map[string]*DatasetRef, len(datasets))}
	for _, ds := range datasets {
		if !strings.HasPrefix(ds.Name, "/") {
			return nil, fmt.Errorf("dataset name %q must start with '/'", ds.Name)
		}
		if _, dup := r.byName[ds.Name]; dup {
			return nil, fmt.Errorf("dataset %q registered twice", ds.Name)
		}
		r.byName[ds.Name] = ds
		r.names = append(r.names, ds.Name)
	}
	sort.Slice(r.names, func(i, j int) bool {
		if len(r.names[i]) != len(r.names[j]) {
			return len(r.names[i]) > len(r.names[j])
		}
		return r.names[i] < r.names[j]
	})
	return r, nil
}

// Lookup finds the dataset whose name is the longest prefix of the path, on
// a segment boundary. It returns the dataset and the rest of the path after
// the dataset name and the separating slash.
func (r *Registry) Lookup(path string) (ds *DatasetRef, trailing string, ok bool) {
	for _, name := range r.names {
		if name == "/" {
			return r.byName[name], strings.TrimPrefix(path, "/"), true
		}
		if path == name {
			return r.byName[name], "", true
		}
		if strings.HasPrefix(path, name+"/") {
			return r.byName[name], path[len(name)+1:], true
		}
	}
	return nil, "", false
}

// Get returns the dataset with exactly the given name.
func (r *Registry) Get(name string) (*DatasetRef, bool) {
	ds, ok := r.byName[name]
	return ds, ok
}

// Datasets returns every dataset, sorted by name.
func (r *Registry) Datasets() []*DatasetRef {
	res := make([]*DatasetRef, 0, len(r.byName))
	for _, ds := range r.byName {
		res = append(res, ds)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}
