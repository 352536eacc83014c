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

package main

import (
	"fmt"

	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/server"
	"github.com/ebay/sparqld/store"
	"github.com/ebay/sparqld/store/boltstore"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/ebay/sparqld/store/txlock"
	log "github.com/sirupsen/logrus"
)

// openStore opens the backend described by the config.
func openStore(name string, cfg config.Store) (store.Dataset, error) {
	switch cfg.Type {
	case "memory":
		return txlock.New(name, memstore.New()), nil
	case "bolt":
		ds, err := boltstore.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("unable to open bolt store %v: %v", cfg.Path, err)
		}
		return ds, nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

// openDatasets opens the stores of every configured dataset and registers
// them. The returned close function closes the stores.
func openDatasets(cfg *config.Server) (*server.Registry, func(), error) {
	var opened []store.Dataset
	closeAll := func() {
		for _, ds := range opened {
			if err := ds.Close(); err != nil {
				log.WithError(err).Warn("Error closing dataset")
			}
		}
	}
	refs := make([]*server.DatasetRef, 0, len(cfg.Datasets))
	for _, dsCfg := range cfg.Datasets {
		policy, err := server.PolicyByName(dsCfg.Policy)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("dataset %s: %v", dsCfg.Name, err)
		}
		dataset, err := openStore(dsCfg.Name, dsCfg.Store)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("dataset %s: %v", dsCfg.Name, err)
		}
		opened = append(opened, dataset)
		ref := server.NewDatasetRef(dsCfg.Name, dataset, policy, dsCfg.Services)
		ref.QueryTimeout = dsCfg.QueryTimeout.D()
		ref.MaxQueryTimeout = dsCfg.MaxQueryTimeout.D()
		refs = append(refs, ref)
		log.WithFields(log.Fields{
			"dataset":       dsCfg.Name,
			"store":         dsCfg.Store.Type,
			"policy":        policy.Name,
			"transactional": dataset.Transactional(),
		}).Info("Opened dataset")
	}
	reg, err := server.NewRegistry(refs...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return reg, closeAll, nil
}
