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
	metricsutil "github.com/ebay/sparqld/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	requests        *prometheus.CounterVec
	requestsGood    *prometheus.CounterVec
	requestsBad     *prometheus.CounterVec
	requestDuration *prometheus.SummaryVec
	forcedAborts    prometheus.Counter
	internalErrors  prometheus.Counter
	queryTimeouts   *prometheus.CounterVec
}

var metrics serverMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = serverMetrics{
		requests: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      `The number of protocol requests routed to a dataset, by dataset and operation.`,
		}, []string{"dataset", "op"}),
		requestsGood: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "requests_good_total",
			Help:      `The number of protocol requests that succeeded, by dataset and operation.`,
		}, []string{"dataset", "op"}),
		requestsBad: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "requests_bad_total",
			Help:      `The number of protocol requests that failed, by dataset and operation.`,
		}, []string{"dataset", "op"}),
		requestDuration: mr.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  metricsutil.Namespace,
			Subsystem:  "server",
			Name:       "request_seconds",
			Help:       `The time taken to serve protocol requests, by operation.`,
			Objectives: metricsutil.LatencyObjectives,
		}, []string{"op"}),
		forcedAborts: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "forced_aborts_total",
			Help:      `The number of write transactions ended without a commit or abort.`,
		}),
		internalErrors: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "internal_errors_total",
			Help:      `The number of requests that failed with an internal error or a panic.`,
		}),
		queryTimeouts: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "server",
			Name:      "query_timeouts_total",
			Help:      `The number of queries that ran out of time, by whether the results had started.`,
		}, []string{"streaming"}),
	}
}
