// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"
)

// Event is one usage event reported by the storage service.
type Event struct {
	Operation schema.Operation `json:"operation"`
	Bucket    string           `json:"bucket,omitempty"`
	AccountID string           `json:"account_id"`        // canonical ID of the bucket owner
	UserID    string           `json:"user_id,omitempty"` // set when an IAM user made the request
	Timestamp time.Time        `json:"timestamp"`         // zero means now

	StorageDelta  int64 `json:"storage_delta,omitempty"` // bytes added (+) or removed (-)
	ObjectDelta   int64 `json:"object_delta,omitempty"`
	IncomingBytes int64 `json:"incoming_bytes,omitempty"`
	OutgoingBytes int64 `json:"outgoing_bytes,omitempty"`
}

// TimeRange is an inclusive range of millisecond timestamps.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Metrics is the usage of one resource over a time range.
type Metrics struct {
	Level     string    `json:"level"`
	Resource  string    `json:"resource"`
	TimeRange TimeRange `json:"timeRange"`

	// StorageUtilized and NumberOfObjects hold the level at the start and
	// at the end of the range.
	StorageUtilized [2]int64 `json:"storageUtilized"`
	NumberOfObjects [2]int64 `json:"numberOfObjects"`

	IncomingBytes int64            `json:"incomingBytes"`
	OutgoingBytes int64            `json:"outgoingBytes"`
	Operations    map[string]int64 `json:"operations"` // "<namespace>:<operation>" -> count
}
