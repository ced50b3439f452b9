// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "logkit"
	subsystem = "audit"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var _ prometheus.Collector = &Metrics{}

// Metrics counts audited operations. A nil *Metrics discards every observation.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "The total number of audited operations",
		}, []string{"event", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(namespace, subsystem, "duration_seconds"),
			Help:    "Histogram of the duration of audited operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
	}
}

func (m *Metrics) Describe(d chan<- *prometheus.Desc) {
	m.events.Describe(d)
	m.duration.Describe(d)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.events.Collect(ch)
	m.duration.Collect(ch)
}

func (m *Metrics) observe(event Event, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeFailure
	}
	m.events.WithLabelValues(event.String(), outcome).Inc()
	m.duration.WithLabelValues(event.String()).Observe(elapsed.Seconds())
}
