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

// Package config contains the configuration for a sparqld server. The
// configuration is typically loaded from a JSON, TOML, or YAML file on disk.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Server describes the configuration for a sparqld server.
type Server struct {
	// The host:port or :port on which to serve HTTP requests. Required.
	HTTPAddress string `json:"httpAddress" toml:"httpAddress" yaml:"httpAddress"`

	// If non-nil, the configuration for distributed tracing (OpenTracing). If
	// nil, the server will not collect traces.
	Tracing *Tracing `json:"tracing,omitempty" toml:"tracing,omitempty" yaml:"tracing,omitempty"`

	// If non-nil, cross-origin requests are allowed as described. If nil,
	// no CORS headers are sent.
	CORS *CORS `json:"cors,omitempty" toml:"cors,omitempty" yaml:"cors,omitempty"`

	// If non-nil, where to publish a summary of every committed write. If nil,
	// changes are not published.
	ChangeLog *ChangeLog `json:"changeLog,omitempty" toml:"changeLog,omitempty" yaml:"changeLog,omitempty"`

	// The datasets to serve. At least one is required.
	Datasets []Dataset `json:"datasets" toml:"datasets" yaml:"datasets"`
}

// Tracing contains configuration related to distributed execution tracing.
type Tracing struct {
	// Must be "jaeger" (for now).
	Type string `json:"type" toml:"type" yaml:"type"`

	// The URL of a collector that accepts jaeger.thrift over HTTP, such as
	// "http://localhost:14268/api/traces". Required.
	Collector string `json:"collector" toml:"collector" yaml:"collector"`

	// The fraction of requests to trace, from 0 to 1. If 0 (or unset), every
	// request is traced.
	SampleRate float64 `json:"sampleRate,omitempty" toml:"sampleRate,omitempty" yaml:"sampleRate,omitempty"`
}

// CORS configures the Cross-Origin Resource Sharing headers.
type CORS struct {
	// Origins that may make requests. "*" allows any origin. Required.
	AllowedOrigins []string `json:"allowedOrigins" toml:"allowedOrigins" yaml:"allowedOrigins"`

	// Request headers the client may send, beyond the simple ones.
	AllowedHeaders []string `json:"allowedHeaders,omitempty" toml:"allowedHeaders,omitempty" yaml:"allowedHeaders,omitempty"`
}

// ChangeLog describes where committed writes are published.
type ChangeLog struct {
	// Either "kafka" or "nop".
	Type string `json:"type" toml:"type" yaml:"type"`

	// For Kafka, the host:port of the brokers. Required for Kafka.
	Brokers []string `json:"brokers,omitempty" toml:"brokers,omitempty" yaml:"brokers,omitempty"`

	// For Kafka, the topic to publish to. If empty, "sparqld-changes" is used.
	Topic string `json:"topic,omitempty" toml:"topic,omitempty" yaml:"topic,omitempty"`
}

// Dataset describes one dataset and the services it exposes.
type Dataset struct {
	// The URL path the dataset is served under, like "/ds". Required. It must
	// start with a slash and must not end with one.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Where the data is kept. Required.
	Store Store `json:"store" toml:"store" yaml:"store"`

	// Which operations are allowed: "readonly", "readwrite", or "config". With
	// "config", an operation is allowed when a service of its kind is active.
	// If empty, "config" is used.
	Policy string `json:"policy,omitempty" toml:"policy,omitempty" yaml:"policy,omitempty"`

	// The time limit for a query when the request doesn't ask for one. If 0
	// (or unset), queries run until they finish or MaxQueryTimeout passes.
	QueryTimeout Duration `json:"queryTimeout,omitempty" toml:"queryTimeout,omitempty" yaml:"queryTimeout,omitempty"`

	// The longest time limit a request may ask for. If 0 (or unset), there is
	// no upper bound.
	MaxQueryTimeout Duration `json:"maxQueryTimeout,omitempty" toml:"maxQueryTimeout,omitempty" yaml:"maxQueryTimeout,omitempty"`

	// The service endpoints of the dataset. If empty, every kind of service is
	// registered under its usual names.
	Services []Service `json:"services,omitempty" toml:"services,omitempty" yaml:"services,omitempty"`
}

// Store describes the backend holding a dataset.
type Store struct {
	// Either "memory" or "bolt". Memory datasets are lost on restart and can't
	// roll back writes; bolt datasets are persistent and transactional.
	Type string `json:"type" toml:"type" yaml:"type"`

	// For bolt, the database file. Required for bolt; ignored otherwise.
	Path string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`
}

// Service describes a service endpoint of a dataset.
type Service struct {
	// One of "query", "update", "upload", "gsp-r", or "gsp-rw".
	Kind string `json:"kind" toml:"kind" yaml:"kind"`

	// The path segments after the dataset name that invoke the service, like
	// "sparql". Required.
	Endpoints []string `json:"endpoints" toml:"endpoints" yaml:"endpoints"`

	// If true, the service is registered but refuses requests.
	Inactive bool `json:"inactive,omitempty" toml:"inactive,omitempty" yaml:"inactive,omitempty"`
}

// The policy names.
const (
	PolicyReadOnly  = "readonly"
	PolicyReadWrite = "readwrite"
	PolicyConfig    = "config"
)

// The service kinds.
const (
	KindQuery   = "query"
	KindUpdate  = "update"
	KindUpload  = "upload"
	KindGSPRead = "gsp-r"
	KindGSPRW   = "gsp-rw"
)

// ServiceKinds lists the valid values of Service.Kind.
var ServiceKinds = []string{KindQuery, KindUpdate, KindUpload, KindGSPRead, KindGSPRW}

// DefaultServices returns the services registered for a dataset that doesn't
// list any.
func DefaultServices() []Service {
	return []Service{
		{Kind: KindQuery, Endpoints: []string{"sparql", "query"}},
		{Kind: KindUpdate, Endpoints: []string{"update"}},
		{Kind: KindUpload, Endpoints: []string{"upload"}},
		{Kind: KindGSPRead, Endpoints: []string{"get"}},
		{Kind: KindGSPRW, Endpoints: []string{"data"}},
	}
}

// Duration is a time.Duration written as a string like "30s" in config
// files.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It's used by the JSON
// and TOML decoders.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Validate checks the configuration for missing or conflicting settings. It
// fills in the defaults for Policy and Services.
func (cfg *Server) Validate() error {
	if cfg.HTTPAddress == "" {
		return fmt.Errorf("httpAddress is required")
	}
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("at least one dataset is required")
	}
	if cfg.Tracing != nil {
		if cfg.Tracing.Type != "jaeger" {
			return fmt.Errorf("tracing: unknown type %q", cfg.Tracing.Type)
		}
		if cfg.Tracing.Collector == "" {
			return fmt.Errorf("tracing: collector is required")
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing: sampleRate must be between 0 and 1")
		}
	}
	if cfg.CORS != nil && len(cfg.CORS.AllowedOrigins) == 0 {
		return fmt.Errorf("cors: allowedOrigins is required")
	}
	if cfg.ChangeLog != nil {
		switch cfg.ChangeLog.Type {
		case "nop":
		case "kafka":
			if len(cfg.ChangeLog.Brokers) == 0 {
				return fmt.Errorf("changeLog: brokers are required for kafka")
			}
		default:
			return fmt.Errorf("changeLog: unknown type %q", cfg.ChangeLog.Type)
		}
	}
	names := make(map[string]bool, len(cfg.Datasets))
	for i := range cfg.Datasets {
		ds := &cfg.Datasets[i]
		if err := ds.validate(); err != nil {
			return fmt.Errorf("dataset %q: %v", ds.Name, err)
		}
		if names[ds.Name] {
			return fmt.Errorf("dataset %q: defined more than once", ds.Name)
		}
		names[ds.Name] = true
	}
	return nil
}

func (ds *Dataset) validate() error {
	if !strings.HasPrefix(ds.Name, "/") || (len(ds.Name) > 1 && strings.HasSuffix(ds.Name, "/")) {
		return fmt.Errorf("name must start with '/' and must not end with '/'")
	}
	switch ds.Store.Type {
	case "memory":
	case "bolt":
		if ds.Store.Path == "" {
			return fmt.Errorf("store: path is required for bolt")
		}
	default:
		return fmt.Errorf("store: unknown type %q", ds.Store.Type)
	}
	switch ds.Policy {
	case "":
		ds.Policy = PolicyConfig
	case PolicyReadOnly, PolicyReadWrite, PolicyConfig:
	default:
		return fmt.Errorf("unknown policy %q", ds.Policy)
	}
	if ds.QueryTimeout < 0 || ds.MaxQueryTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if ds.MaxQueryTimeout > 0 && ds.QueryTimeout > ds.MaxQueryTimeout {
		return fmt.Errorf("queryTimeout must not exceed maxQueryTimeout")
	}
	if len(ds.Services) == 0 {
		ds.Services = DefaultServices()
		return nil
	}
	endpoints := make(map[string]bool)
	for _, svc := range ds.Services {
		if !validKind(svc.Kind) {
			return fmt.Errorf("service: unknown kind %q", svc.Kind)
		}
		if len(svc.Endpoints) == 0 {
			return fmt.Errorf("service %v: endpoints are required", svc.Kind)
		}
		for _, ep := range svc.Endpoints {
			if ep == "" || strings.Contains(ep, "/") {
				return fmt.Errorf("service %v: invalid endpoint %q", svc.Kind, ep)
			}
			if endpoints[ep] {
				return fmt.Errorf("service %v: endpoint %q is used more than once", svc.Kind, ep)
			}
			endpoints[ep] = true
		}
	}
	return nil
}

func validKind(kind string) bool {
	for _, k := range ServiceKinds {
		if k == kind {
			return true
		}
	}
	return false
}
