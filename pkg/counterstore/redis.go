// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisMemberSeparator splits the score prefix from the value in stored
// members. Redis deduplicates sorted-set members by value alone; prefixing
// the canonical score makes the stored member unique per (score, value)
// pair, which is the dedup rule every backend follows.
const redisMemberSeparator = "|"

// RedisStore is a Store backed by a Redis server.
//
// Single operations are sent as a one-command pipeline; Pipeline batches
// are wrapped in MULTI/EXEC so no other client's commands interleave.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Set(ctx context.Context, key, value string) (string, error) {
	return asString(s.do(ctx, Cmd(CmdSet, key, value)))
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.do(ctx, Cmd(CmdGet, key))
	if err != nil || v == nil {
		return "", false, err
	}
	return v.(string), true, nil
}

func (s *RedisStore) GetInt(ctx context.Context, key string) (int64, error) {
	return getInt(ctx, s, key)
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdIncr, key)))
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdIncrBy, key, strconv.FormatInt(delta, 10))))
}

func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdDecr, key)))
}

func (s *RedisStore) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdDecrBy, key, strconv.FormatInt(delta, 10))))
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, value string) (string, error) {
	return asString(s.do(ctx, Cmd(CmdZAdd, key, FormatScore(score), value)))
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key, min, max string) ([]string, bool, error) {
	return asRange(s.do(ctx, Cmd(CmdZRangeByScore, key, min, max)))
}

func (s *RedisStore) ZRevRangeByScore(ctx context.Context, key, max, min string) ([]string, bool, error) {
	return asRange(s.do(ctx, Cmd(CmdZRevRangeByScore, key, max, min)))
}

func (s *RedisStore) ZRemRangeByScore(ctx context.Context, key, min, max string) (int64, error) {
	return asInt(s.do(ctx, Cmd(CmdZRemRangeByScore, key, min, max)))
}

func (s *RedisStore) Pipeline(ctx context.Context, cmds []Command) ([]Result, error) {
	pipelineSize.WithLabelValues(BackendRedis).Observe(float64(len(cmds)))
	if len(cmds) == 0 {
		return []Result{}, nil
	}
	return s.exec(ctx, s.client.TxPipeline(), cmds)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) do(ctx context.Context, cmd Command) (any, error) {
	results, err := s.exec(ctx, s.client.Pipeline(), []Command{cmd})
	if err != nil {
		return nil, err
	}
	return results[0].Val, results[0].Err
}

func (s *RedisStore) exec(ctx context.Context, pipe redis.Pipeliner, cmds []Command) ([]Result, error) {
	start := time.Now()
	readers := make([]func() Result, len(cmds))
	for i, cmd := range cmds {
		readers[i] = queue(ctx, pipe, cmd)
	}

	if _, err := pipe.Exec(ctx); err != nil && !isReplyError(err) {
		return nil, err
	}

	elapsed := time.Since(start)
	out := make([]Result, len(cmds))
	for i, read := range readers {
		out[i] = read()
		observeCommand(BackendRedis, cmds[i].Name, out[i].Err, elapsed)
	}
	return out, nil
}

// isReplyError reports whether err came back from the server for an
// individual command, as opposed to a transport or context failure that
// sank the whole batch.
func isReplyError(err error) bool {
	var re redis.Error
	return errors.As(err, &re)
}

// queue adds cmd to pipe and returns a function that reads its result
// after Exec. Validation failures are reported without touching Redis.
func queue(ctx context.Context, pipe redis.Pipeliner, cmd Command) func() Result {
	fail := func(err error) func() Result {
		return func() Result { return Result{Err: err} }
	}
	if err := checkArity(cmd); err != nil {
		return fail(err)
	}
	a := cmd.Args

	switch cmd.Name {
	case CmdSet:
		c := pipe.Set(ctx, a[0], a[1], 0)
		return func() Result {
			if err := c.Err(); err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			return Result{Val: a[1]}
		}

	case CmdGet:
		c := pipe.Get(ctx, a[0])
		return func() Result {
			v, err := c.Result()
			if errors.Is(err, redis.Nil) {
				return Result{}
			}
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			return Result{Val: v}
		}

	case CmdIncr, CmdDecr:
		var c *redis.IntCmd
		prev := int64(-1)
		if cmd.Name == CmdIncr {
			c = pipe.Incr(ctx, a[0])
		} else {
			c = pipe.Decr(ctx, a[0])
			prev = 1
		}
		return func() Result {
			n, err := c.Result()
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			// INCR/DECR reply with the new value; the contract returns the old one.
			return Result{Val: n + prev}
		}

	case CmdIncrBy, CmdDecrBy:
		delta, err := strconv.ParseInt(a[1], 10, 64)
		if err != nil {
			return fail(ErrNotInteger)
		}
		if cmd.Name == CmdDecrBy && delta == math.MinInt64 {
			return fail(ErrOverflow)
		}
		var c *redis.IntCmd
		if cmd.Name == CmdIncrBy {
			c = pipe.IncrBy(ctx, a[0], delta)
		} else {
			c = pipe.DecrBy(ctx, a[0], delta)
		}
		return func() Result {
			n, err := c.Result()
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			return Result{Val: n}
		}

	case CmdZAdd:
		score, err := parseScore(a[1])
		if err != nil {
			return fail(err)
		}
		c := pipe.ZAdd(ctx, a[0], redis.Z{Score: score, Member: encodeRedisMember(score, a[2])})
		return func() Result {
			if err := c.Err(); err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			return Result{Val: a[2]}
		}

	case CmdZRangeByScore, CmdZRevRangeByScore:
		min, max := a[1], a[2]
		if cmd.Name == CmdZRevRangeByScore {
			min, max = a[2], a[1]
		}
		lo, hi, err := parseRange(min, max)
		if err != nil {
			return fail(err)
		}
		exists := pipe.Exists(ctx, a[0])
		rng := pipe.ZRangeByScoreWithScores(ctx, a[0], &redis.ZRangeBy{
			Min: redisBound(lo),
			Max: redisBound(hi),
		})
		rev := cmd.Name == CmdZRevRangeByScore
		return func() Result {
			n, err := exists.Result()
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			zs, err := rng.Result()
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			if n == 0 {
				return Result{}
			}
			ms := make([]member, len(zs))
			for i, z := range zs {
				raw, _ := z.Member.(string)
				ms[i] = member{score: z.Score, value: decodeRedisMember(raw)}
			}
			if rev {
				sortDescending(ms)
			}
			return Result{Val: values(ms)}
		}

	case CmdZRemRangeByScore:
		lo, hi, err := parseRange(a[1], a[2])
		if err != nil {
			return fail(err)
		}
		if lo > hi {
			return func() Result { return Result{Val: int64(0)} }
		}
		c := pipe.ZRemRangeByScore(ctx, a[0], redisBound(lo), redisBound(hi))
		return func() Result {
			n, err := c.Result()
			if err != nil {
				return Result{Err: mapRedisErr(err)}
			}
			return Result{Val: n}
		}
	}
	return fail(ErrUnknownCommand)
}

func encodeRedisMember(score float64, value string) string {
	return FormatScore(score) + redisMemberSeparator + value
}

func decodeRedisMember(raw string) string {
	if i := strings.Index(raw, redisMemberSeparator); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func redisBound(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return PosInf
	case math.IsInf(f, -1):
		return NegInf
	}
	return FormatScore(f)
}

func mapRedisErr(err error) error {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "WRONGTYPE"):
		return fmt.Errorf("%w: %s", ErrWrongType, msg)
	case strings.Contains(msg, "would overflow"):
		return fmt.Errorf("%w: %s", ErrOverflow, msg)
	case strings.Contains(msg, "not an integer"):
		return fmt.Errorf("%w: %s", ErrNotInteger, msg)
	}
	return err
}
