// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prioritylock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reclaim reasons, used as the "reason" label on the reclaim counter.
const (
	reclaimReasonAge          = "age"
	reclaimReasonHolderExited = "holder_exited"
)

// Metrics holds the Prometheus instruments for the lock. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Acquisitions prometheus.Counter
	Timeouts     prometheus.Counter
	Reclaims     *prometheus.CounterVec
	WaitSeconds  prometheus.Histogram
	HoldSeconds  prometheus.Histogram
}

// NewMetrics creates the lock metrics and registers them with
// registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		Acquisitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "backlog_priority_lock_acquisitions_total",
			Help: "Total number of successful priority lock acquisitions",
		}),
		Timeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "backlog_priority_lock_timeouts_total",
			Help: "Total number of priority lock acquisitions that timed out",
		}),
		Reclaims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "backlog_priority_lock_reclaims_total",
			Help: "Total number of stale priority lock markers reclaimed",
		}, []string{"reason"}),
		WaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backlog_priority_lock_wait_seconds",
			Help:    "Time spent waiting to acquire the priority lock",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		HoldSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "backlog_priority_lock_hold_seconds",
			Help:    "Time the priority lock was held",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) acquired(waited time.Duration) {
	if m == nil {
		return
	}
	m.Acquisitions.Inc()
	m.WaitSeconds.Observe(waited.Seconds())
}

func (m *Metrics) timedOut() {
	if m == nil {
		return
	}
	m.Timeouts.Inc()
}

func (m *Metrics) reclaimed(reason string) {
	if m == nil {
		return
	}
	m.Reclaims.WithLabelValues(reason).Inc()
}

func (m *Metrics) released(held time.Duration) {
	if m == nil {
		return
	}
	m.HoldSeconds.Observe(held.Seconds())
}
