package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_failed_total",
		Help: "Total number of failed reservation attempts",
	}, []string{"reason"})

	ReservationsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_released_total",
		Help: "Total number of reservations released",
	}, []string{"reason"})

	ReservationsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_committed_total",
		Help: "Total number of reservations committed on settlement",
	})

	ReserveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reserve_latency_seconds",
		Help:    "Latency of reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of expiry sweep runs",
	})

	SweepReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_released_total",
		Help: "Total number of reservations released by the sweeper",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of expiry sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Total number of order settlements processed",
	}, []string{"outcome"})

	ReconciliationsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciliations_enqueued_total",
		Help: "Total number of orders flagged for manual reconciliation",
	})

	InvalidReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invalid_releases_total",
		Help: "Total number of releases clamped because reserved stock was lower than requested",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
