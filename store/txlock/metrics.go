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

package txlock

import (
	metricsutil "github.com/ebay/sparqld/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type txlockMetrics struct {
	lockWaitSeconds        *prometheus.SummaryVec
	locksHeld              *prometheus.GaugeVec
	nonTransactionalAborts prometheus.Counter
}

var metrics txlockMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = txlockMetrics{
		lockWaitSeconds: mr.NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  metricsutil.Namespace,
			Subsystem:  "txlock",
			Name:       "wait_seconds",
			Help:       `The time spent waiting to acquire a dataset lock, by mode.`,
			Objectives: metricsutil.LatencyObjectives,
		}, []string{"mode"}),
		locksHeld: mr.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "txlock",
			Name:      "held",
			Help:      `The number of dataset locks currently held, by mode.`,
		}, []string{"mode"}),
		nonTransactionalAborts: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "txlock",
			Name:      "aborts_total",
			Help:      `The number of write transactions aborted on datasets that can't roll back.`,
		}),
	}
}
