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

	"github.com/ebay/sparqld/config"
)

// A Policy decides which operations a dataset allows. Each predicate can be
// replaced on its own to build a custom policy. A nil predicate denies.
type Policy struct {
	Name          string
	AllowQuery    func(ds *DatasetRef) bool
	AllowUpdate   func(ds *DatasetRef) bool
	AllowGSPRead  func(ds *DatasetRef) bool
	AllowGSPWrite func(ds *DatasetRef) bool
}

func always(*DatasetRef) bool { return true }
func never(*DatasetRef) bool  { return false }

// ReadOnlyPolicy allows queries and graph reads only.
func ReadOnlyPolicy() *Policy {
	return &Policy{
		Name:          config.PolicyReadOnly,
		AllowQuery:    always,
		AllowUpdate:   never,
		AllowGSPRead:  always,
		AllowGSPWrite: never,
	}
}

// ReadWritePolicy allows everything.
func ReadWritePolicy() *Policy {
	return &Policy{
		Name:          config.PolicyReadWrite,
		AllowQuery:    always,
		AllowUpdate:   always,
		AllowGSPRead:  always,
		AllowGSPWrite: always,
	}
}

// ConfigPolicy allows an operation when the dataset has an active service of
// the matching kind. Graph reads are also allowed by an active read-write
// graph store service.
func ConfigPolicy() *Policy {
	return &Policy{
		Name: config.PolicyConfig,
		AllowQuery: func(ds *DatasetRef) bool {
			return ds.HasActive(config.KindQuery)
		},
		AllowUpdate: func(ds *DatasetRef) bool {
			return ds.HasActive(config.KindUpdate)
		},
		AllowGSPRead: func(ds *DatasetRef) bool {
			return ds.HasActive(config.KindGSPRead) || ds.HasActive(config.KindGSPRW)
		},
		AllowGSPWrite: func(ds *DatasetRef) bool {
			return ds.HasActive(config.KindGSPRW)
		},
	}
}

// PolicyByName returns the standard policy with the given config name.
func PolicyByName(name string) (*Policy, error) {
	switch name {
	case config.PolicyReadOnly:
		return ReadOnlyPolicy(), nil
	case config.PolicyReadWrite:
		return ReadWritePolicy(), nil
	case config.PolicyConfig, "":
		return ConfigPolicy(), nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}

// allows evaluates the predicate guarding the operation. Uploads write graphs,
// so they need graph store write permission.
func (p *Policy) allows(ds *DatasetRef, op Operation) bool {
	var pred func(*DatasetRef) bool
	switch op {
	case OpQuery:
		pred = p.AllowQuery
	case OpUpdate:
		pred = p.AllowUpdate
	case OpGSPRead, OpQuadsRead:
		pred = p.AllowGSPRead
	case OpGSPWrite, OpQuadsWrite, OpUpload:
		pred = p.AllowGSPWrite
	}
	return pred != nil && pred(ds)
}
