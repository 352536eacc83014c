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

// Command sparqld serves RDF datasets over the SPARQL 1.1 Protocol and the
// Graph Store HTTP Protocol.
package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/ebay/sparqld/changelog"
	_ "github.com/ebay/sparqld/changelog/kafka" // side-effect: registers "kafka" changelog implementation
	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/server"
	"github.com/ebay/sparqld/util/debuglog"
	"github.com/ebay/sparqld/util/parallel"
	"github.com/ebay/sparqld/util/signals"
	"github.com/ebay/sparqld/util/tracing"
	log "github.com/sirupsen/logrus"
)

// How long requests in flight get to finish on shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	cfgFile := flag.String("cfg", "sparqld.json", "Config file (.json, .toml or .yaml)")
	logLevel := flag.String("log", "info", "Minimum level to log")
	logFormat := flag.String("log-format", "text", "Log output format: text or json")
	pprof := flag.String("pprof", "", "If set will start a HTTP server with the pprof endpoints enabled")
	flag.Parse()
	debuglog.Configure(debuglog.Options{Level: *logLevel, Format: *logFormat})

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("Unable to load configuration: %v", err)
	}
	log.Infof("Using config: %+v", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer, err := tracing.New("sparqld", cfg.Tracing)
	if err != nil {
		log.Fatalf("Unable to initialize distributed tracing: %v", err)
	}
	defer tracer.Close()

	if *pprof != "" {
		log.Infof("Starting pprof http endpoint on %s", *pprof)
		go http.ListenAndServe(*pprof, nil)
	}

	changes, err := changelog.New(ctx, cfg.ChangeLog)
	if err != nil {
		log.Fatalf("Unable to initialize change log: %v", err)
	}
	defer changes.Close()

	registry, closeDatasets, err := openDatasets(cfg)
	if err != nil {
		log.Fatalf("Unable to open datasets: %v", err)
	}
	defer closeDatasets()

	srv := server.New(registry, server.Options{
		ChangeLog: changes,
		CORS:      cfg.CORS,
	})
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: srv.Handler(),
	}
	wait := parallel.Go(func() {
		log.Infof("Listening on %v", cfg.HTTPAddress)
		err := httpServer.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	})

	signals.WaitForQuit()
	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Requests were still running at shutdown")
	}
	wait()
	log.Info("sparqld exiting")
}
