// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "ingest",
		Name:      "messages_total",
		Help:      "Kafka usage messages by result",
	}, []string{"result"}) // result: "recorded", "malformed", "rejected", "retry"

	sessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "ingest",
		Name:      "sessions_total",
		Help:      "Consumer group sessions by outcome",
	}, []string{"outcome"})
)

func init() {
	debug.Registry().MustRegister(messagesTotal, sessionsTotal)
}
