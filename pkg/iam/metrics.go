// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package iam

import (
	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var verificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "zapmeter",
	Subsystem: "iam",
	Name:      "verifications_total",
	Help:      "Request signature verifications by outcome",
}, []string{"outcome"}) // outcome: "authed", "rejected", "error"

func init() {
	debug.Registry().MustRegister(verificationsTotal)
}
