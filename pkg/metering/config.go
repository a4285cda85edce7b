// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"fmt"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"
)

// Config holds metering configuration.
type Config struct {
	// Namespace prefixes every store key.
	// Default: "s3".
	Namespace string `mapstructure:"namespace"`

	// ReportingInterval is the granularity timestamps are floored to.
	// Must be a whole number of minutes.
	// Default: 15 minutes.
	ReportingInterval time.Duration `mapstructure:"reporting_interval"`

	// ServiceName is the resource ID service-level metrics are recorded under.
	// Default: the namespace.
	ServiceName string `mapstructure:"service_name"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Namespace:         schema.DefaultNamespace,
		ReportingInterval: schema.DefaultReportingInterval,
		ServiceName:       schema.DefaultNamespace,
	}
}

// Validate applies defaults and rejects values that would corrupt the key space.
func (c *Config) Validate() error {
	if c.Namespace == "" {
		c.Namespace = schema.DefaultNamespace
	}
	if c.ReportingInterval <= 0 {
		c.ReportingInterval = schema.DefaultReportingInterval
	}
	if c.ServiceName == "" {
		c.ServiceName = c.Namespace
	}
	if strings.Contains(c.Namespace, ":") {
		return fmt.Errorf("namespace %q must not contain ':'", c.Namespace)
	}
	if strings.Contains(c.ServiceName, ":") {
		return fmt.Errorf("service_name %q must not contain ':'", c.ServiceName)
	}
	if c.ReportingInterval%time.Minute != 0 {
		return fmt.Errorf("reporting_interval %s must be a whole number of minutes", c.ReportingInterval)
	}
	return nil
}
