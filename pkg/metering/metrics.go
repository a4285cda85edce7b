// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"errors"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/authz"
	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"
	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "metering",
		Name:      "events_total",
		Help:      "Usage events recorded by operation and status",
	}, []string{"operation", "status"}) // status: "ok", "rejected", "error"

	pushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "metering",
		Name:      "push_duration_seconds",
		Help:      "Time spent recording one usage event",
		Buckets:   prometheus.DefBuckets,
	})

	queriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "metering",
		Name:      "queries_total",
		Help:      "Metrics queries by level and outcome",
	}, []string{"level", "outcome"}) // outcome: "ok", "invalid", "denied", "error"

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "metering",
		Name:      "query_duration_seconds",
		Help:      "Time spent answering a metrics query",
		Buckets:   prometheus.DefBuckets,
	}, []string{"level"})
)

func init() {
	debug.Registry().MustRegister(eventsTotal, pushDuration, queriesTotal, queryDuration)
}

func observePush(op schema.Operation, err error, elapsed time.Duration) {
	label := string(op)
	if !op.Valid() {
		label = "unknown"
	}
	status := "ok"
	switch {
	case errors.Is(err, ErrUnknownOperation), errors.Is(err, ErrInvalidEvent):
		status = "rejected"
	case err != nil:
		status = "error"
	}
	eventsTotal.WithLabelValues(label, status).Inc()
	pushDuration.Observe(elapsed.Seconds())
}

func observeQuery(level authz.Level, err error, elapsed time.Duration) {
	label := string(level)
	if _, perr := authz.ParseLevel(label); perr != nil {
		label = "unknown"
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidTimeRange):
		outcome = "invalid"
	case errors.Is(err, ErrAccessDenied):
		outcome = "denied"
	case err != nil:
		outcome = "error"
	}
	queriesTotal.WithLabelValues(label, outcome).Inc()
	queryDuration.WithLabelValues(label).Observe(elapsed.Seconds())
}
