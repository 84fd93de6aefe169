// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package observability

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Package-level counters so the auth and access services can record events
// without holding a Server. They only show up on registries passed to
// NewMetrics.
var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_auth_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	renewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_auth_renewals_total",
			Help: "Total number of access token renewals by result",
		},
		[]string{"result"},
	)

	logoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_auth_logouts_total",
			Help: "Total number of refresh token revocations by operation and result",
		},
		[]string{"operation", "result"},
	)

	accessMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_access_mutations_total",
			Help: "Total number of grant mutations by association kind and operation",
		},
		[]string{"kind", "operation"},
	)
)

// RecordLogin counts a login attempt.
func RecordLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// RecordRenewal counts an access token renewal attempt.
func RecordRenewal(result string) {
	renewalsTotal.WithLabelValues(result).Inc()
}

// RecordLogout counts a logout or administrative revoke.
func RecordLogout(operation, result string) {
	logoutsTotal.WithLabelValues(operation, result).Inc()
}

// RecordAccessMutation counts a grant, revoke or replace on an association.
func RecordAccessMutation(kind, operation string) {
	accessMutationsTotal.WithLabelValues(kind, operation).Inc()
}

// Metrics contains the HTTP metrics owned by a Server.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the HTTP metrics and registers them, together with the
// package-level auth and access counters, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(loginsTotal)
	reg.MustRegister(renewalsTotal)
	reg.MustRegister(logoutsTotal)
	reg.MustRegister(accessMutationsTotal)

	return m
}
