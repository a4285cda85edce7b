// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapmeter",
		Subsystem: "counterstore",
		Name:      "commands_total",
		Help:      "Total number of store commands executed",
	}, []string{"backend", "command", "status"}) // status: "ok", "error"

	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "counterstore",
		Name:      "command_duration_seconds",
		Help:      "Time spent executing store commands",
		Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"backend", "command"})

	pipelineSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapmeter",
		Subsystem: "counterstore",
		Name:      "pipeline_commands",
		Help:      "Number of commands per pipeline",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"backend"})
)

func init() {
	debug.Registry().MustRegister(commandsTotal, commandDuration, pipelineSize)
}

func observeCommand(backend, command string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if _, known := arity[command]; !known {
		command = "unknown"
	}
	commandsTotal.WithLabelValues(backend, command, status).Inc()
	commandDuration.WithLabelValues(backend, command).Observe(elapsed.Seconds())
}
