// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"errors"
	"fmt"

	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"
)

// ErrUnknownLevel is returned by ParseLevel for an unrecognised level name.
var ErrUnknownLevel = errors.New("authz: unknown level")

// Level is the resource granularity of a metrics query.
type Level string

const (
	LevelAccounts Level = "accounts"
	LevelUsers    Level = "users"
	LevelBuckets  Level = "buckets"
	LevelService  Level = "service"
)

// Levels lists every supported level.
var Levels = []Level{LevelAccounts, LevelUsers, LevelBuckets, LevelService}

// ParseLevel validates a level received from a caller.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// Valid reports whether l is one of Levels.
func (l Level) Valid() bool {
	switch l {
	case LevelAccounts, LevelUsers, LevelBuckets, LevelService:
		return true
	}
	return false
}

// ResourceType returns the key segment counters for this level are stored under.
func (l Level) ResourceType() schema.ResourceType {
	switch l {
	case LevelAccounts:
		return schema.ResourceAccount
	case LevelUsers:
		return schema.ResourceUser
	case LevelBuckets:
		return schema.ResourceBucket
	case LevelService:
		return schema.ResourceService
	}
	panic(fmt.Sprintf("authz: unknown level %q", string(l)))
}
