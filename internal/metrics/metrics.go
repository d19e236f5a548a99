/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the prometheus collectors docfleetd registers for
// its build queue and worker pool.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles the gauges and histograms docfleetd updates as builds
// move through the queue and executor.
type Collectors struct {
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge
	BuildDuration *prometheus.HistogramVec
	SweepDuration prometheus.Histogram
	BuildsTotal   *prometheus.CounterVec
}

// NewCollectors constructs a Collectors bundle without registering it.
func NewCollectors() *Collectors {
	return &Collectors{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docfleet",
			Name:      "queue_depth",
			Help:      "Number of build jobs currently queued but not dispatched.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docfleet",
			Name:      "active_workers",
			Help:      "Number of worker goroutines currently executing a build.",
		}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docfleet",
			Name:      "build_duration_seconds",
			Help:      "Wall-clock duration of build executions, by terminal status.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"status"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docfleet",
			Name:      "auto_build_sweep_duration_seconds",
			Help:      "Duration of a single auto-build monitor sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docfleet",
			Name:      "builds_total",
			Help:      "Count of build jobs by terminal status and trigger.",
		}, []string{"status", "trigger"}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration (a programmer error, not a runtime condition).
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.QueueDepth, c.ActiveWorkers, c.BuildDuration, c.SweepDuration, c.BuildsTotal)
}
