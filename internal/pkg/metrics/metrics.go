// Package metrics provides Prometheus metrics for the credfort backend (RED +
// authentication outcomes). Scrapeable at /metrics; dashboards and alerts can
// rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credfort"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// LoginAttemptsTotal counts login calls by outcome (ok, invalid_credentials, locked, ...).
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// LockoutsTriggeredTotal counts attempts that tripped the lockout threshold.
	LockoutsTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_triggered_total",
			Help:      "Total number of login attempts that triggered an account lockout.",
		},
	)

	// RegistrationsTotal counts registration calls by outcome.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PasswordRotationsTotal counts password rotation calls by outcome.
	PasswordRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "password_rotations_total",
			Help:      "Total number of password rotation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// HashDurationSeconds observes credential hashing latency; argon2 dominates
	// login latency.
	HashDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hash_duration_seconds",
			Help:      "Password hashing duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 8), // 10ms to ~1.3s
		},
	)
)
