// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package metering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/counterstore"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/schema"
)

var (
	// ErrUnknownOperation is returned for events whose operation is not metered.
	ErrUnknownOperation = errors.New("metering: unknown operation")

	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("metering: invalid event")
)

// Recorder writes usage events to a counter store.
type Recorder struct {
	store counterstore.Store
	cfg   Config
	now   func() time.Time
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store counterstore.Store, cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Recorder{store: store, cfg: cfg, now: time.Now}, nil
}

// target is one resource an event is recorded against.
type target struct {
	resourceType schema.ResourceType
	id           string
}

// snapshot is a level metric whose post-update value comes back at index
// of the first batch.
type snapshot struct {
	index int
	key   string
}

// PushMetric records ev against its bucket, account, user and the service.
//
// Event metrics (operation count, incoming and outgoing bytes) are added as
// members at the normalized timestamp. Level metrics (storage, objects) are
// adjusted on their counters, then the resulting level replaces the
// interval's snapshot.
func (r *Recorder) PushMetric(ctx context.Context, ev Event) error {
	start := time.Now()
	err := r.push(ctx, ev)
	observePush(ev.Operation, err, time.Since(start))
	if err != nil {
		logger.Ctx(ctx).Debug().Err(err).
			Str("operation", string(ev.Operation)).
			Str("bucket", ev.Bucket).
			Msg("failed to record event")
	}
	return err
}

func (r *Recorder) push(ctx context.Context, ev Event) error {
	if !ev.Operation.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, ev.Operation)
	}
	if ev.AccountID == "" {
		return fmt.Errorf("%w: missing account", ErrInvalidEvent)
	}
	if ev.IncomingBytes < 0 || ev.OutgoingBytes < 0 {
		return fmt.Errorf("%w: negative transfer size", ErrInvalidEvent)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	score := counterstore.FormatMillis(schema.NormalizeTimestamp(ts, r.cfg.ReportingInterval))

	var (
		cmds      []counterstore.Command
		snapshots []snapshot
	)
	for _, t := range r.targets(ev) {
		cmds = append(cmds, counterstore.Cmd(counterstore.CmdZAdd, r.key(t, string(ev.Operation)), score, schema.EncodeInt(1)))
		if ev.IncomingBytes > 0 {
			cmds = append(cmds, counterstore.Cmd(counterstore.CmdZAdd, r.key(t, schema.MetricIncomingBytes), score, schema.EncodeInt(ev.IncomingBytes)))
		}
		if ev.OutgoingBytes > 0 {
			cmds = append(cmds, counterstore.Cmd(counterstore.CmdZAdd, r.key(t, schema.MetricOutgoingBytes), score, schema.EncodeInt(ev.OutgoingBytes)))
		}
		for _, lvl := range []struct {
			metric string
			delta  int64
		}{
			{schema.MetricStorageUtilized, ev.StorageDelta},
			{schema.MetricNumberOfObjects, ev.ObjectDelta},
		} {
			if lvl.delta == 0 {
				continue
			}
			snapshots = append(snapshots, snapshot{index: len(cmds), key: r.key(t, lvl.metric)})
			cmds = append(cmds, adjust(r.key(t, schema.CounterMetric(lvl.metric)), lvl.delta))
		}
	}

	results, err := r.run(ctx, cmds)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return nil
	}

	// One snapshot per interval: the newest level replaces the previous one.
	snaps := make([]counterstore.Command, 0, 2*len(snapshots))
	for _, s := range snapshots {
		level, ok := results[s.index].Val.(int64)
		if !ok {
			return fmt.Errorf("record event: unexpected counter reply %T", results[s.index].Val)
		}
		snaps = append(snaps,
			counterstore.Cmd(counterstore.CmdZRemRangeByScore, s.key, score, score),
			counterstore.Cmd(counterstore.CmdZAdd, s.key, score, schema.EncodeInt(level)),
		)
	}
	_, err = r.run(ctx, snaps)
	return err
}

func (r *Recorder) targets(ev Event) []target {
	targets := make([]target, 0, 4)
	if ev.Bucket != "" {
		targets = append(targets, target{schema.ResourceBucket, ev.Bucket})
	}
	targets = append(targets, target{schema.ResourceAccount, ev.AccountID})
	if ev.UserID != "" {
		targets = append(targets, target{schema.ResourceUser, ev.UserID})
	}
	return append(targets, target{schema.ResourceService, r.cfg.ServiceName})
}

func (r *Recorder) key(t target, metric string) string {
	return schema.NewMetricKey(t.resourceType, t.id, metric).Key(r.cfg.Namespace)
}

func (r *Recorder) run(ctx context.Context, cmds []counterstore.Command) ([]counterstore.Result, error) {
	results, err := r.store.Pipeline(ctx, cmds)
	if err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}
	for i, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("record event: %s %s: %w", cmds[i].Name, cmds[i].Args[0], res.Err)
		}
	}
	return results, nil
}

func adjust(key string, delta int64) counterstore.Command {
	if delta < 0 {
		return counterstore.Cmd(counterstore.CmdDecrBy, key, strconv.FormatInt(-delta, 10))
	}
	return counterstore.Cmd(counterstore.CmdIncrBy, key, strconv.FormatInt(delta, 10))
}
