// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// Config configures the Kafka usage-event consumer.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`

	// Topic carries JSON usage events (default: "s3-usage").
	Topic string `mapstructure:"topic"`

	// Group is the consumer group ID (default: "zapmeter").
	Group string `mapstructure:"group"`

	// InitialOffset is where a new group starts: "oldest" or "newest" (default: "newest").
	InitialOffset string `mapstructure:"initial_offset"`

	// MaxEventsPerSecond throttles recording. 0 means unlimited.
	MaxEventsPerSecond float64 `mapstructure:"max_events_per_second"`

	// RetryBackoff is the pause before rejoining the group after a failed session (default: 2s).
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// TLS enables TLS for broker connections.
	TLS bool `mapstructure:"tls"`

	// TLSSkipVerify skips TLS certificate verification (for testing).
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`

	// SASLEnabled enables SASL authentication.
	SASLEnabled bool `mapstructure:"sasl_enabled"`

	// SASLMechanism is the SASL mechanism (PLAIN, SCRAM-SHA-256, SCRAM-SHA-512).
	SASLMechanism string `mapstructure:"sasl_mechanism"`

	SASLUsername string `mapstructure:"sasl_username"`
	SASLPassword string `mapstructure:"sasl_password"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(brokers []string) Config {
	return Config{
		Brokers:       brokers,
		Topic:         "s3-usage",
		Group:         "zapmeter",
		InitialOffset: "newest",
		RetryBackoff:  2 * time.Second,
	}
}

// Validate applies defaults and checks required fields.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("at least one Kafka broker is required")
	}
	if c.Topic == "" {
		c.Topic = "s3-usage"
	}
	if c.Group == "" {
		c.Group = "zapmeter"
	}
	if c.InitialOffset == "" {
		c.InitialOffset = "newest"
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	if c.MaxEventsPerSecond < 0 {
		return fmt.Errorf("max_events_per_second must not be negative, got %v", c.MaxEventsPerSecond)
	}
	switch c.InitialOffset {
	case "oldest", "newest":
	default:
		return fmt.Errorf("initial_offset must be \"oldest\" or \"newest\", got %q", c.InitialOffset)
	}
	return nil
}

// saramaConfig translates c into a consumer-group configuration.
func (c Config) saramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "zapmeter"
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	if c.InitialOffset == "oldest" {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		config.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if c.TLS {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: c.TLSSkipVerify,
		}
	}

	if c.SASLEnabled {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = c.SASLUsername
		config.Net.SASL.Password = c.SASLPassword

		switch c.SASLMechanism {
		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{mechanism: scram.SHA256}
			}
		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{mechanism: scram.SHA512}
			}
		default:
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}
	return config
}

// scramClient implements sarama.SCRAMClient.
type scramClient struct {
	mechanism    scram.HashGeneratorFcn
	conversation *scram.ClientConversation
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.mechanism.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.conversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.conversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conversation.Done()
}
