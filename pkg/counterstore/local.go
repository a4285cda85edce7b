// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"context"
	"math"
	"strconv"
	"time"
)

// backend is the storage engine behind a LocalStore. It is only ever
// called from the scheduler goroutine and needs no locking of its own.
type backend interface {
	get(key string) (string, bool, error)
	set(key, value string) error
	// zadd inserts m unless the identical pair is already present.
	zadd(key string, m member) error
	// zrange returns members with lo <= score <= hi in ascending score order.
	// found is false when the key holds no sorted set at all.
	zrange(key string, lo, hi float64) (ms []member, found bool, err error)
	// zrem removes members with lo <= score <= hi and drops the set once empty.
	zrem(key string, lo, hi float64) (int64, error)
	close() error
}

// LocalStore is a process-local Store. All operations, including whole
// pipelines, execute as tasks on one scheduler goroutine, so a pipeline is
// never interleaved with another caller's operations.
type LocalStore struct {
	name    string
	backend backend
	sched   *scheduler
}

var _ Store = (*LocalStore)(nil)

// NewMemoryStore returns a LocalStore that keeps everything in memory.
func NewMemoryStore() *LocalStore {
	return newLocalStore(BackendMemory, newMemoryBackend())
}

func newLocalStore(name string, b backend) *LocalStore {
	return &LocalStore{
		name:    name,
		backend: b,
		sched:   newScheduler(),
	}
}

func (s *LocalStore) Set(ctx context.Context, key, value string) (string, error) {
	return asString(s.do(ctx, Cmd(CmdSet, key, value)))
}

func (s *LocalStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.do(ctx, Cmd(CmdGet, key))
	if err != nil || v == nil {
		return "", false, err
	}
	return v.(string), true, nil
}

func (s *LocalStore) GetInt(ctx context.Context, key string) (int64, error) {
	return getInt(ctx, s, key)
}

func (s *LocalStore) Incr(ctx context.Context, key string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdIncr, key)))
}

func (s *LocalStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdIncrBy, key, strconv.FormatInt(delta, 10))))
}

func (s *LocalStore) Decr(ctx context.Context, key string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdDecr, key)))
}

func (s *LocalStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdDecrBy, key, strconv.FormatInt(delta, 10))))
}

func (s *LocalStore) ZAdd(ctx context.Context, key string, score float64, value string) (string, error) {
	return asString(s.do(ctx, Cmd(CmdZAdd, key, FormatScore(score), value)))
}

func (s *LocalStore) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, bool, error) {
	return asRange(s.do(ctx, Cmd(CmdZRangeByScore, key, min, max)))
}

func (s *LocalStore) ZRevRangeByScore(ctx context.Context, key, max, min string) ([]string, bool, error) {
	return asRange(s.do(ctx, Cmd(CmdZRevRangeByScore, key, max, min)))
}

func (s *LocalStore) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdZRemRangeByScore, key, min, max)))
}

func (s *LocalStore) Pipeline(ctx context.Context, cmds []Command) ([]Result, error) {
	pipelineSize.WithLabelValues(s.name).Observe(float64(len(cmds)))
	return schedule(ctx, s.sched, func() []Result {
		out := make([]Result, len(cmds))
		for i, cmd := range cmds {
			out[i] = s.execute(cmd)
		}
		return out
	})
}

// Close stops the scheduler after running queued operations and closes
// the backend.
func (s *LocalStore) Close() error {
	s.sched.close()
	return s.backend.close()
}

func (s *LocalStore) do(ctx context.Context, cmd Command) (any, error) {
	res, err := schedule(ctx, s.sched, func() Result {
		return s.execute(cmd)
	})
	if err != nil {
		return nil, err
	}
	return res.Val, res.Err
}

func (s *LocalStore) execute(cmd Command) Result {
	start := time.Now()
	res := s.dispatch(cmd)
	observeCommand(s.name, cmd.Name, res.Err, time.Since(start))
	return res
}

func (s *LocalStore) dispatch(cmd Command) Result {
	if err := checkArity(cmd); err != nil {
		return Result{Err: err}
	}
	a := cmd.Args

	switch cmd.Name {
	case CmdSet:
		if err := s.backend.set(a[0], a[1]); err != nil {
			return Result{Err: err}
		}
		return Result{Val: a[1]}

	case CmdGet:
		v, found, err := s.backend.get(a[0])
		if err != nil || !found {
			return Result{Err: err}
		}
		return Result{Val: v}

	case CmdIncr:
		return s.incrBy(a[0], 1, true)

	case CmdDecr:
		return s.incrBy(a[0], -1, true)

	case CmdIncrBy, CmdDecrBy:
		delta, err := strconv.ParseInt(a[1], 10, 64)
		if err != nil {
			return Result{Err: ErrNotInteger}
		}
		if cmd.Name == CmdDecrBy {
			if delta == math.MinInt64 {
				return Result{Err: ErrOverflow}
			}
			delta = -delta
		}
		return s.incrBy(a[0], delta, false)

	case CmdZAdd:
		score, err := parseScore(a[1])
		if err != nil {
			return Result{Err: err}
		}
		if err := s.backend.zadd(a[0], member{score: score, value: a[2]}); err != nil {
			return Result{Err: err}
		}
		return Result{Val: a[2]}

	case CmdZRangeByScore:
		lo, hi, err := parseRange(a[1], a[2])
		if err != nil {
			return Result{Err: err}
		}
		ms, found, err := s.backend.zrange(a[0], lo, hi)
		if err != nil || !found {
			return Result{Err: err}
		}
		return Result{Val: values(ms)}

	case CmdZRevRangeByScore:
		lo, hi, err := parseRange(a[2], a[1])
		if err != nil {
			return Result{Err: err}
		}
		ms, found, err := s.backend.zrange(a[0], lo, hi)
		if err != nil || !found {
			return Result{Err: err}
		}
		sortDescending(ms)
		return Result{Val: values(ms)}

	case CmdZRemRangeByScore:
		lo, hi, err := parseRange(a[1], a[2])
		if err != nil {
			return Result{Err: err}
		}
		n, err := s.backend.zrem(a[0], lo, hi)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Val: n}
	}
	return Result{Err: ErrUnknownCommand}
}

// incrBy applies delta, zero-initialising an absent key. It returns the
// previous value when returnPrev is set, else the new value.
func (s *LocalStore) incrBy(key string, delta int64, returnPrev bool) Result {
	cur, found, err := s.backend.get(key)
	if err != nil {
		return Result{Err: err}
	}
	var n int64
	if found {
		n, err = strconv.ParseInt(cur, 10, 64)
		if err != nil {
			return Result{Err: ErrNotInteger}
		}
	}
	if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
		return Result{Err: ErrOverflow}
	}
	next := n + delta
	if err := s.backend.set(key, strconv.FormatInt(next, 10)); err != nil {
		return Result{Err: err}
	}
	if returnPrev {
		return Result{Val: n}
	}
	return Result{Val: next}
}

func asString(v any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func asInt(v any, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, _ := v.(int64)
	return n, nil
}

func asRange(v any, err error) ([]string, bool, error) {
	if err != nil || v == nil {
		return nil, false, err
	}
	return v.([]string), true, nil
}

// getInt is the get-or-default accessor shared by every backend: an absent
// key reads as zero.
func getInt(ctx context.Context, s Store, key string) (int64, error) {
	v, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	return n, nil
}
