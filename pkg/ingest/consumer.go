// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/utils"

	"github.com/IBM/sarama"
)

const maxRetryBackoff = time.Minute

var errRecordFailed = errors.New("session ended on a recording failure")

// Consumer feeds usage events from a Kafka topic into a Recorder.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *Handler
	backoff *utils.Backoff
}

// NewConsumer joins the consumer group described by cfg.
func NewConsumer(cfg Config, rec Recorder) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group creation failed: %w", err)
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group", cfg.Group).
		Float64("max_events_per_second", cfg.MaxEventsPerSecond).
		Msg("kafka usage consumer connected")

	return newConsumer(group, cfg, NewHandler(rec, cfg.MaxEventsPerSecond)), nil
}

func newConsumer(group sarama.ConsumerGroup, cfg Config, h *Handler) *Consumer {
	return &Consumer{
		group:   group,
		topic:   cfg.Topic,
		handler: h,
		backoff: &utils.Backoff{Base: cfg.RetryBackoff, Max: maxRetryBackoff, Fraction: 0.25},
	}
}

// Run consumes until ctx is cancelled or the group is closed. Failed
// sessions are retried after a growing, jittered backoff that resets once
// a session ends cleanly.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			logger.Warn().Err(err).Msg("kafka consumer error")
		}
	}()

	for {
		err := c.group.Consume(ctx, []string{c.topic}, c.handler)
		failed := c.handler.takeFailure()
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil || failed:
			sessionsTotal.WithLabelValues("error").Inc()
			if err == nil {
				err = errRecordFailed
			}
			logger.Warn().Err(err).Str("topic", c.topic).Msg("kafka session failed, rejoining")
			select {
			case <-time.After(c.backoff.Next()):
			case <-ctx.Done():
				return nil
			}
		default:
			sessionsTotal.WithLabelValues("ok").Inc()
			c.backoff.Reset()
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}
