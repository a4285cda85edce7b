// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "authz",
		Name:      "decisions_total",
		Help:      "Authorization decisions by identity class, level and outcome",
	}, []string{"class", "level", "outcome"}) // outcome: "allowed", "denied", "error"

	decisionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "authz",
		Name:      "decision_duration_seconds",
		Help:      "Time spent translating a request",
		Buckets:   prometheus.DefBuckets,
	}, []string{"class", "level"})

	lookupDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "authz",
		Name:      "lookup_duration_seconds",
		Help:      "Latency of user and bucket metadata lookups",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
)

func init() {
	debug.Registry().MustRegister(decisionsTotal, decisionDuration, lookupDuration)
}

func observeDecision(class Class, level Level, res Result, err error, elapsed time.Duration) {
	outcome := "denied"
	switch {
	case err != nil:
		outcome = "error"
	case res.Authorized:
		outcome = "allowed"
	}
	decisionsTotal.WithLabelValues(string(class), string(level), outcome).Inc()
	decisionDuration.WithLabelValues(string(class), string(level)).Observe(elapsed.Seconds())
}
