// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package counterstore provides scalar counters and score-ordered sets with
// the data-access contract of a Redis-style key/value store.
//
// Three backends implement Store:
//
//   - MemoryStore: in-process, single scheduler goroutine, btree-ordered sets
//   - LevelStore: same scheduler over a local goleveldb database
//   - RedisStore: an external Redis server via go-redis pipelines
//
// Every backend honours the same logical contract: per-key ordering,
// inclusive score ranges, and deduplication of sorted members by the full
// (score, value) pair.
package counterstore

import (
	"context"
	"errors"
)

var (
	// ErrInvalidScore is returned for a score or range bound that is not a number,
	// "-inf" or "+inf".
	ErrInvalidScore = errors.New("counterstore: score is not a valid float")

	// ErrNotInteger is returned when incrementing a value that is not an integer.
	ErrNotInteger = errors.New("counterstore: value is not an integer")

	// ErrOverflow is returned when an increment or decrement would leave the
	// int64 range. The stored value is left unchanged.
	ErrOverflow = errors.New("counterstore: increment or decrement would overflow")

	// ErrWrongType is returned when a scalar command targets a sorted set or
	// the reverse.
	ErrWrongType = errors.New("counterstore: operation against a key holding the wrong kind of value")

	// ErrUnknownCommand is returned in a batch result for an unsupported command.
	ErrUnknownCommand = errors.New("counterstore: unknown command")

	// ErrWrongArgs is returned in a batch result when a command has the wrong arity.
	ErrWrongArgs = errors.New("counterstore: wrong number of arguments")

	// ErrClosed is returned by operations issued after Close.
	ErrClosed = errors.New("counterstore: store is closed")
)

// Store is the counter store contract.
//
// Absent values are reported with found == false, never with an error.
// For sorted sets, found == false means the key was never written, while
// found == true with an empty slice means nothing fell inside the range.
type Store interface {
	// Set stores value and returns it.
	Set(ctx context.Context, key, value string) (string, error)

	// Get returns the value at key.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// GetInt returns the integer at key, or 0 when the key was never written.
	GetInt(ctx context.Context, key string) (int64, error)

	// Incr adds one and returns the value before the increment.
	Incr(ctx context.Context, key string) (int64, error)

	// IncrBy adds delta and returns the value after the increment.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Decr subtracts one and returns the value before the decrement.
	Decr(ctx context.Context, key string) (int64, error)

	// DecrBy subtracts delta and returns the value after the decrement.
	DecrBy(ctx context.Context, key string, delta int64) (int64, error)

	// ZAdd inserts (score, value) unless the identical pair already exists
	// and returns value.
	ZAdd(ctx context.Context, key string, score float64, value string) (string, error)

	// ZRangeByScore returns values with min <= score <= max in ascending
	// score order. Bounds accept "-inf" and "+inf".
	ZRangeByScore(ctx context.Context, key, min, max string) (values []string, found bool, err error)

	// ZRevRangeByScore returns values with min <= score <= max in descending
	// score order; equal scores are ordered by descending value.
	ZRevRangeByScore(ctx context.Context, key, max, min string) (values []string, found bool, err error)

	// ZRemRangeByScore removes members with min <= score <= max and returns
	// how many were removed. A set left empty no longer exists.
	ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error)

	// Pipeline runs cmds in order as one unit and returns one Result per
	// command. A failing command never prevents later ones from running.
	// The returned error is reserved for failures of the batch as a whole.
	Pipeline(ctx context.Context, cmds []Command) ([]Result, error)

	// Close releases the backend.
	Close() error
}

// Command names accepted by Pipeline.
const (
	CmdSet              = "set"
	CmdGet              = "get"
	CmdIncr             = "incr"
	CmdIncrBy           = "incrby"
	CmdDecr             = "decr"
	CmdDecrBy           = "decrby"
	CmdZAdd             = "zadd"
	CmdZRangeByScore    = "zrangebyscore"
	CmdZRevRangeByScore = "zrevrangebyscore"
	CmdZRemRangeByScore = "zremrangebyscore"
)

// Command is one batch entry: a command name and its string arguments, in
// the same positional order as the Store method.
type Command struct {
	Name string
	Args []string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Result is the outcome of one batch command.
//
// Val holds string for set/get/zadd, int64 for the incr/decr family and
// []string for range queries. Val is nil for an absent get and for a range
// query on a key that was never written.
type Result struct {
	Val any
	Err error
}

// arity is the exact number of arguments each command takes.
var arity = map[string]int{
	CmdSet:              2,
	CmdGet:              1,
	CmdIncr:             1,
	CmdIncrBy:           2,
	CmdDecr:             1,
	CmdDecrBy:           2,
	CmdZAdd:             3,
	CmdZRangeByScore:    3,
	CmdZRevRangeByScore: 3,
	CmdZRemRangeByScore: 3,
}

func checkArity(cmd Command) error {
	n, ok := arity[cmd.Name]
	if !ok {
		return ErrUnknownCommand
	}
	if len(cmd.Args) != n {
		return ErrWrongArgs
	}
	return nil
}
