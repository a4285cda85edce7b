// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the metering key space shared by the recorder,
// the query path and every counter store backend: resource types, metric
// names, the store key format and reporting-boundary timestamps.
package schema

import (
	"strings"
	"time"
)

// DefaultNamespace is the deployment-wide key prefix.
const DefaultNamespace = "s3"

// DefaultReportingInterval is the granularity metrics are recorded at.
const DefaultReportingInterval = 15 * time.Minute

// ResourceType is the resource class a metric is recorded against.
type ResourceType string

const (
	ResourceBucket  ResourceType = "bucket"
	ResourceAccount ResourceType = "account"
	ResourceUser    ResourceType = "user"
	ResourceService ResourceType = "service"
)

// Valid reports whether r is one of the known resource types.
func (r ResourceType) Valid() bool {
	switch r {
	case ResourceBucket, ResourceAccount, ResourceUser, ResourceService:
		return true
	}
	return false
}

// Level metrics hold a running value. The current value lives in a scalar
// counter and every change is snapshotted into a sorted set scored by time.
const (
	MetricStorageUtilized = "storageUtilized"
	MetricNumberOfObjects = "numberOfObjects"
)

// Event metrics are sorted sets whose members carry deltas.
const (
	MetricIncomingBytes = "incomingBytes"
	MetricOutgoingBytes = "outgoingBytes"
)

// CounterMetric returns the scalar metric holding the current value of a
// level metric.
func CounterMetric(metric string) string {
	return metric + "Counter"
}

// MetricKey identifies one metric of one resource. The zero value is not
// usable; construct with NewMetricKey.
type MetricKey struct {
	resourceType ResourceType
	resourceID   string
	metric       string
}

// NewMetricKey builds a MetricKey.
func NewMetricKey(resourceType ResourceType, resourceID, metric string) MetricKey {
	return MetricKey{
		resourceType: resourceType,
		resourceID:   resourceID,
		metric:       metric,
	}
}

// Key renders the store key "<namespace>:<resourceType>:<resourceId>:<metricName>".
func (k MetricKey) Key(namespace string) string {
	var b strings.Builder
	b.Grow(len(namespace) + len(k.resourceType) + len(k.resourceID) + len(k.metric) + 3)
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(string(k.resourceType))
	b.WriteByte(':')
	b.WriteString(k.resourceID)
	b.WriteByte(':')
	b.WriteString(k.metric)
	return b.String()
}

func (k MetricKey) String() string {
	return k.Key(DefaultNamespace)
}

// NormalizeTimestamp floors t to the reporting boundary and returns it in
// milliseconds since epoch.
func NormalizeTimestamp(t time.Time, interval time.Duration) int64 {
	ms := t.UnixMilli()
	iv := interval.Milliseconds()
	if iv <= 0 {
		return ms
	}
	return ms - ms%iv
}
