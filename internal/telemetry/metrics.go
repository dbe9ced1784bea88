/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and optional OTLP tracing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TimelineResolutionsTotal counts timeline resolutions by station and outcome
	// (ok, no_content, error).
	TimelineResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_timeline_resolutions_total",
		Help: "Timeline resolutions by station and outcome.",
	}, []string{"station", "outcome"})

	// ResolveDuration observes end-to-end fallback resolution latency.
	ResolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minionradio_resolve_duration_seconds",
		Help:    "Duration of resolve_with_fallback calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"station"})

	// AvailabilityChecksTotal counts availability probes by source type and result.
	AvailabilityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_availability_checks_total",
		Help: "Availability checks by source type and result.",
	}, []string{"source_type", "result"})

	// TrackSkipsTotal counts persisted skip records by station.
	TrackSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_track_skips_total",
		Help: "Tracks marked unavailable, by station.",
	}, []string{"station"})

	// EmergencyFallbacksTotal counts resolutions that degraded to the emergency track.
	EmergencyFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_emergency_fallbacks_total",
		Help: "Resolutions that returned the emergency track.",
	}, []string{"station"})

	// ScheduleBuildDuration observes daily schedule build latency per station.
	ScheduleBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minionradio_schedule_build_duration_seconds",
		Help:    "Duration of daily schedule builds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"station"})

	// ScheduleRowsTotal counts scheduled track rows written by builds.
	ScheduleRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_schedule_rows_total",
		Help: "Scheduled track rows produced by daily builds.",
	}, []string{"station"})

	// ScheduleBuildErrorsTotal counts failed builds by station and stage.
	ScheduleBuildErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_schedule_build_errors_total",
		Help: "Daily schedule build failures by station and stage.",
	}, []string{"station", "stage"})

	// NowPlayingLookupsTotal counts schedule point lookups by outcome (hit, miss).
	NowPlayingLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_now_playing_lookups_total",
		Help: "Schedule now-playing lookups by outcome.",
	}, []string{"outcome"})

	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_api_requests_total",
		Help: "HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minionradio_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minionradio_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// DatabaseQueryDuration observes gorm operation latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "minionradio_db_query_duration_seconds",
		Help:    "Database operation duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minionradio_db_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minionradio_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
