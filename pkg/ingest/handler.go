// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/metering"

	"github.com/IBM/sarama"
	"golang.org/x/time/rate"
)

// Recorder records one usage event.
type Recorder interface {
	PushMetric(ctx context.Context, ev metering.Event) error
}

// Handler is a sarama.ConsumerGroupHandler that records usage events.
//
// Malformed and rejected events are logged and marked so they are not
// retried. Any other recording failure ends the claim without marking the
// message; the group session restarts from the last committed offset and
// the message is delivered again.
type Handler struct {
	rec     Recorder
	limiter *rate.Limiter

	// failed is set when a claim ends on a recording failure. sarama
	// closes the session without surfacing the error from Consume.
	failed atomic.Bool
}

var _ sarama.ConsumerGroupHandler = (*Handler)(nil)

// NewHandler creates a handler recording at most maxPerSecond events per
// second. A zero limit disables throttling.
func NewHandler(rec Recorder, maxPerSecond float64) *Handler {
	limit := rate.Inf
	burst := 0
	if maxPerSecond > 0 {
		limit = rate.Limit(maxPerSecond)
		burst = max(1, int(maxPerSecond))
	}
	return &Handler{
		rec:     rec,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (h *Handler) Setup(sess sarama.ConsumerGroupSession) error {
	logger.Info().
		Str("member_id", sess.MemberID()).
		Int32("generation", sess.GenerationID()).
		Interface("claims", sess.Claims()).
		Msg("usage consumer session started")
	return nil
}

func (h *Handler) Cleanup(sess sarama.ConsumerGroupSession) error {
	logger.Debug().Str("member_id", sess.MemberID()).Msg("usage consumer session ended")
	return nil
}

func (h *Handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.limiter.Wait(ctx); err != nil {
				return nil // session is ending
			}
			if err := h.handle(ctx, msg); err != nil {
				h.failed.Store(true)
				messagesTotal.WithLabelValues("retry").Inc()
				logger.Error().Err(err).
					Str("topic", msg.Topic).
					Int32("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("failed to record usage event, will retry")
				return err
			}
			sess.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

// takeFailure reports whether a claim failed since the last call.
func (h *Handler) takeFailure() bool {
	return h.failed.Swap(false)
}

// handle records msg. A nil error means the message is done with.
func (h *Handler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	l := logger.Component("ingest").With().
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()
	ctx = logger.WithLogger(ctx, &l)

	ev, err := decodeEvent(msg)
	if err != nil {
		messagesTotal.WithLabelValues("malformed").Inc()
		l.Warn().Err(err).Msg("skipping malformed usage event")
		return nil
	}

	err = h.rec.PushMetric(ctx, ev)
	switch {
	case err == nil:
		messagesTotal.WithLabelValues("recorded").Inc()
		return nil
	case errors.Is(err, metering.ErrUnknownOperation), errors.Is(err, metering.ErrInvalidEvent):
		messagesTotal.WithLabelValues("rejected").Inc()
		l.Warn().Err(err).
			Str("operation", string(ev.Operation)).
			Msg("skipping rejected usage event")
		return nil
	}
	return err
}

// decodeEvent parses a JSON event. Events without a timestamp take the
// message timestamp.
func decodeEvent(msg *sarama.ConsumerMessage) (metering.Event, error) {
	var ev metering.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return metering.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Timestamp.IsZero() && !msg.Timestamp.IsZero() {
		ev.Timestamp = msg.Timestamp
	}
	return ev, nil
}
