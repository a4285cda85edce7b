// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeeDigitalWorks/zapmeter/pkg/debug"
	"github.com/LeeDigitalWorks/zapmeter/pkg/ingest"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/metering"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume usage events from Kafka",
	Long: `Join a Kafka consumer group and record every JSON usage event on the
topic. Metrics and health endpoints are served on --debug_addr.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	f := ingestCmd.Flags()
	f.String("store_backend", "", "Counter store backend (memory, leveldb, redis); overrides store.backend")
	f.StringSlice("brokers", nil, "Kafka broker addresses; overrides kafka.brokers")
	f.String("topic", "", "Kafka topic; overrides kafka.topic")
	f.String("group", "", "Consumer group ID; overrides kafka.group")
	f.Float64("max_events_per_second", 0, "Recording rate limit (0 = unlimited); overrides kafka.max_events_per_second")
	f.String("debug_addr", ":8095", "Debug HTTP address (metrics, health)")

	viper.BindPFlag("debug_addr", f.Lookup("debug_addr"))
}

// loadKafkaConfig reads "kafka" and applies explicitly set flags on top.
func loadKafkaConfig(cmd *cobra.Command) (ingest.Config, error) {
	cfg := ingest.DefaultConfig(nil)
	if viper.IsSet("kafka") {
		if err := viper.UnmarshalKey("kafka", &cfg); err != nil {
			return cfg, fmt.Errorf("parse kafka config: %w", err)
		}
	}
	f := cmd.Flags()
	if f.Changed("brokers") {
		cfg.Brokers, _ = f.GetStringSlice("brokers")
	}
	if f.Changed("topic") {
		cfg.Topic, _ = f.GetString("topic")
	}
	if f.Changed("group") {
		cfg.Group, _ = f.GetString("group")
	}
	if f.Changed("max_events_per_second") {
		cfg.MaxEventsPerSecond, _ = f.GetFloat64("max_events_per_second")
	}
	return cfg, cfg.Validate()
}

func runIngest(cmd *cobra.Command, args []string) error {
	flags := NewFlagLoader(cmd)
	debug.SetNotReady()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := flags.String("debug_addr")
		logger.Info().Str("addr", addr).Msg("debug server listening")
		if err := debug.Serve(ctx, addr); err != nil {
			logger.Error().Err(err).Msg("debug server stopped")
		}
	}()

	meterCfg, err := loadMeteringConfig()
	if err != nil {
		return err
	}
	kafkaCfg, err := loadKafkaConfig(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := metering.NewRecorder(store, meterCfg)
	if err != nil {
		return err
	}
	consumer, err := ingest.NewConsumer(kafkaCfg, rec)
	if err != nil {
		return err
	}
	defer consumer.Close()

	debug.SetReady()
	logger.Info().Str("topic", kafkaCfg.Topic).Str("group", kafkaCfg.Group).Msg("ingesting usage events")
	err = consumer.Run(ctx)
	debug.SetNotReady()
	logger.Info().Msg("ingest stopped")
	return err
}
