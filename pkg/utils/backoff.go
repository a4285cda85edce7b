// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"math/rand/v2"
	"time"
)

// JitterUp adds random jitter that only increases the duration.
//
// Example: JitterUp(time.Minute, 0.25) returns 60s-75s (+0-25%)
func JitterUp(base time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return base
	}
	return base + time.Duration(rand.Float64()*float64(base)*fraction)
}

// Backoff produces doubling, upward-jittered delays between Base and Max.
// It is not safe for concurrent use.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration // 0 means 64x Base
	Fraction float64       // jitter fraction passed to JitterUp

	attempt int
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	limit := b.Max
	if limit <= 0 {
		limit = b.Base * 64
	}
	d := b.Base << min(b.attempt, 30)
	if d <= 0 || d > limit {
		d = limit
	} else {
		b.attempt++
	}
	return min(JitterUp(d, b.Fraction), limit+time.Duration(float64(limit)*b.Fraction))
}

// Reset starts the sequence over after a success.
func (b *Backoff) Reset() {
	b.attempt = 0
}
