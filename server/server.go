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

// Package server implements the SPARQL 1.1 Protocol, the Graph Store HTTP
// Protocol and file upload over a set of datasets.
//
// Every protocol request is routed to a dataset by the longest matching path
// prefix, then to an operation by service name, parameters, content type or
// direct graph naming. Handlers run inside an Action, which owns the request's
// transaction, and report failures by returning errors. ServeHTTP is the only
// place that turns those errors into an HTTP status.
package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/ebay/sparqld/changelog"
	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/util/web"
	"github.com/gorilla/handlers"
	"github.com/julienschmidt/httprouter"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Options configure a Server. The zero value is usable.
type Options struct {
	// Receives an event after every committed write. Defaults to
	// changelog.Nop.
	ChangeLog changelog.Publisher
	// If set, cross-origin requests are allowed as described.
	CORS *config.CORS
}

// Server serves the protocols for the datasets of a Registry.
type Server struct {
	registry *Registry
	changes  changelog.Publisher
	cors     *config.CORS
	started  time.Time
	handlers map[Operation]func(a *Action) error
}

// New returns a Server for the registry's datasets. It doesn't start
// listening; use Handler with an http.Server.
func New(registry *Registry, opts Options) *Server {
	s := &Server{
		registry: registry,
		changes:  opts.ChangeLog,
		cors:     opts.CORS,
		started:  time.Now(),
	}
	if s.changes == nil {
		s.changes = changelog.Nop{}
	}
	s.handlers = map[Operation]func(a *Action) error{
		OpQuery:      s.query,
		OpUpdate:     s.update,
		OpUpload:     s.upload,
		OpGSPRead:    s.gspRead,
		OpGSPWrite:   s.gspWrite,
		OpQuadsRead:  s.quadsRead,
		OpQuadsWrite: s.quadsWrite,
	}
	return s
}

// Registry returns the datasets the server serves.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the complete HTTP handler: the admin routes under "/$/",
// the Prometheus metrics, and the protocol dispatcher for everything else.
func (s *Server) Handler() http.Handler {
	m := httprouter.New()
	// Dataset paths never match a route; leave them as the client sent them.
	m.RedirectTrailingSlash = false
	m.RedirectFixedPath = false

	m.GET("/$/ping", s.ping)
	m.POST("/$/ping", s.ping)
	m.GET("/$/server", s.serverInfo)
	m.GET("/$/stats", s.stats)
	m.GET("/$/stats/*name", s.datasetStats)
	// prometheus metrics
	m.Handler("GET", "/metrics", promhttp.Handler())
	m.NotFound = s

	var h http.Handler = m
	if s.cors != nil {
		opts := []handlers.CORSOption{
			handlers.AllowedOrigins(s.cors.AllowedOrigins),
			handlers.AllowedMethods(methodsGSPRW),
			handlers.ExposedHeaders([]string{"Allow", headerRequestID}),
		}
		if len(s.cors.AllowedHeaders) > 0 {
			opts = append(opts, handlers.AllowedHeaders(s.cors.AllowedHeaders))
		}
		h = handlers.CORS(opts...)(h)
	}
	logger := func(w http.ResponseWriter, r *http.Request) {
		log.Debugf("[HTTP] %v %v", r.Method, r.URL)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(logger)
}

const headerRequestID = "X-Request-Id"

// statusRecorder remembers the status sent, so the dispatcher knows whether
// an error can still be reported with a status code.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	written     int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.written += int64(n)
	return n, err
}

// Flush implements http.Flusher.
func (r *statusRecorder) Flush() {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Status returns the status sent, or 200 if nothing was sent yet.
func (r *statusRecorder) Status() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.status
}

// ServeHTTP dispatches a protocol request. It's the single point where errors
// returned by the handlers are logged, counted and written to the client.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	a := newAction(rec, r, nil)
	rec.Header().Set(headerRequestID, strconv.FormatInt(a.ID, 10))
	var spanOpts []opentracing.StartSpanOption
	if parent, err := opentracing.GlobalTracer().Extract(opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
		spanOpts = append(spanOpts, opentracing.ChildOf(parent))
	}
	span, ctx := opentracing.StartSpanFromContext(r.Context(), "protocol request", spanOpts...)
	defer span.Finish()
	a.ctx = ctx

	err := s.execute(a)
	if err != nil {
		status := web.StatusOf(err)
		if status == http.StatusInternalServerError {
			metrics.internalErrors.Inc()
			a.log.WithError(err).Error("Internal error serving request")
		}
		if a.responseStarted() {
			a.log.WithError(err).Warnf("Unable to report error: status %d already sent", rec.Status())
		} else {
			web.Write(rec, err)
		}
	}

	status := rec.Status()
	span.SetTag("http.status_code", status)
	span.SetTag("op", a.Op.String())
	s.count(a, err == nil && status < http.StatusBadRequest)
	fields := log.Fields{
		"status":   status,
		"op":       a.Op,
		"duration": time.Since(start),
	}
	if a.Dataset != nil {
		fields["dataset"] = a.Dataset.Name
		metrics.requestDuration.WithLabelValues(a.Op.String()).Observe(time.Since(start).Seconds())
	}
	a.log.WithFields(fields).Infof("%v %v", r.Method, r.URL.Path)
}

// execute routes the request and runs its handler. It releases any
// transaction the handler left open and turns panics into errors.
func (s *Server) execute(a *Action) (err error) {
	defer func() {
		if p := recover(); p != nil {
			a.log.WithField("panic", p).Errorf("Handler panicked: %s", debug.Stack())
			err = fmt.Errorf("handler panicked: %v", p)
		}
		if a.Dataset == nil {
			return
		}
		if relErr := a.release(); relErr != nil {
			a.log.WithError(relErr).Error("Handler leaked a transaction")
			if err == nil {
				err = relErr
			}
		}
	}()
	ds, trailing, ok := s.registry.Lookup(a.Request.URL.Path)
	if !ok {
		return errNotFound("no dataset at %s", a.Request.URL.Path)
	}
	a.Dataset = ds
	a.Trailing = trailing
	ds.Counters.incRequests()
	routeErr := route(a)
	if a.Service != nil {
		a.Service.Counters.incRequests()
	}
	if routeErr != nil {
		return routeErr
	}
	metrics.requests.WithLabelValues(ds.Name, a.Op.String()).Inc()

	if a.Request.Method == http.MethodOptions {
		a.Response.Header().Set("Allow", strings.Join(allowedMethods(a), ", "))
		a.Response.WriteHeader(http.StatusOK)
		return nil
	}
	if !ds.Policy.allows(ds, a.Op) {
		return errForbidden("%s is not allowed on dataset %s", a.Op, ds.Name)
	}
	handler, ok := s.handlers[a.Op]
	if !ok {
		return errors.Errorf("no handler for operation %v", a.Op)
	}
	return handler(a)
}

func (s *Server) count(a *Action, good bool) {
	if a.Dataset == nil {
		return
	}
	if good {
		a.Dataset.Counters.incGood()
		if a.Service != nil {
			a.Service.Counters.incGood()
		}
		if a.Op != 0 {
			metrics.requestsGood.WithLabelValues(a.Dataset.Name, a.Op.String()).Inc()
		}
		return
	}
	a.Dataset.Counters.incBad()
	if a.Service != nil {
		a.Service.Counters.incBad()
	}
	if a.Op != 0 {
		metrics.requestsBad.WithLabelValues(a.Dataset.Name, a.Op.String()).Inc()
	}
}

// publish reports a committed write. Failures are logged only: the write
// can't be undone at this point.
func (s *Server) publish(a *Action, graph string, added, removed int) {
	event := changelog.Event{
		Dataset:   a.Dataset.Name,
		Operation: a.Op.String(),
		Graph:     graph,
		Added:     added,
		Removed:   removed,
		RequestID: a.ID,
		Time:      time.Now().UTC(),
	}
	if err := s.changes.Publish(a.Context(), event); err != nil {
		a.log.WithError(err).Warn("Unable to publish change event")
	}
}
