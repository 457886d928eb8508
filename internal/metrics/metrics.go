// Copyright (c) 2026 FluentCall, Inc.
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

// Package metrics is the Prometheus exposition surface: counters for
// dispatch outcomes and usage-decision reasons, gauges for concurrent
// bridge sessions, a histogram for scheduler tick duration, and a gauge
// for scheduler backlog. Scraping and dashboards are out of core scope;
// this package only registers and exposes the series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the core emits, registered against a
// private prometheus.Registry rather than the global default — so
// building more than one (as tests that construct independent
// components do) never collides on a duplicate-registration panic.
type Registry struct {
	registry *prometheus.Registry

	dispatchOutcomes     *prometheus.CounterVec
	usageDecisions       *prometheus.CounterVec
	schedulerTickSeconds prometheus.Histogram
	schedulerBacklog     prometheus.Gauge
	bridgeSessionsActive prometheus.Gauge
	bridgeSessionsCap    prometheus.Gauge
}

// New builds and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		dispatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecore_dispatch_outcomes_total",
			Help: "Call Dispatcher outcomes by result.",
		}, []string{"outcome"}),
		usageDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecore_usage_decisions_total",
			Help: "Usage Engine permission decisions by reason.",
		}, []string{"reason"}),
		schedulerTickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicecore_scheduler_tick_duration_seconds",
			Help:    "Wall time to process one scheduler tick.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}),
		schedulerBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicecore_scheduler_backlog",
			Help: "Due scheduled calls found at the start of the most recent tick.",
		}),
		bridgeSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicecore_bridge_sessions_active",
			Help: "Concurrent Media Bridge sessions in progress.",
		}),
		bridgeSessionsCap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicecore_bridge_sessions_capacity",
			Help: "Configured concurrent Media Bridge session limit.",
		}),
	}

	reg.MustRegister(
		r.dispatchOutcomes,
		r.usageDecisions,
		r.schedulerTickSeconds,
		r.schedulerBacklog,
		r.bridgeSessionsActive,
		r.bridgeSessionsCap,
	)
	return r
}

// RecordDispatchOutcome is called once per Dispatch attempt (spec.md
// §4.6); outcome is a short label like "success", "telephony_rejected",
// or "no_caller_id".
func (r *Registry) RecordDispatchOutcome(outcome string) {
	if r == nil {
		return
	}
	r.dispatchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordUsageDecision is called once per CheckPermission call; reason is
// "ok" for a permit, otherwise the Decision.Reason code ("TRIAL_EXHAUSTED",
// "WEEKLY_LIMIT", "MONTHLY_LIMIT", "SUBSCRIPTION_REQUIRED").
func (r *Registry) RecordUsageDecision(reason string) {
	if r == nil {
		return
	}
	r.usageDecisions.WithLabelValues(reason).Inc()
}

// ObserveSchedulerTick records one tick's processing time and the
// backlog size it started with.
func (r *Registry) ObserveSchedulerTick(seconds float64, backlog int) {
	if r == nil {
		return
	}
	r.schedulerTickSeconds.Observe(seconds)
	r.schedulerBacklog.Set(float64(backlog))
}

// SetBridgeSessions reports the Media Bridge limiter's current
// occupancy; callers sample media.Limiter.InUse()/Capacity() on an
// interval and push the pair here.
func (r *Registry) SetBridgeSessions(inUse, capacity int) {
	if r == nil {
		return
	}
	r.bridgeSessionsActive.Set(float64(inUse))
	r.bridgeSessionsCap.Set(float64(capacity))
}

// Handler serves the Prometheus exposition format over plain net/http;
// api/http wraps it for the gin router with gin.WrapH.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
