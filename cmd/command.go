// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/LeeDigitalWorks/zapmeter/pkg/env"
	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
	"github.com/LeeDigitalWorks/zapmeter/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "zapmeter",
	Short: "ZapMeter - usage metering for object storage",
	Long: `ZapMeter records per-bucket, per-account, per-user and service-wide
usage counters at a fixed reporting granularity and answers signed,
scope-limited metrics queries over that history.`,
	PersistentPreRunE: initialize,
	SilenceUsage:      true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", "", "Directory for configuration files")
	rootCmd.PersistentFlags().String("log_level", "info", "Log level (debug, info, warn, error, fatal)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log_level"))
}

// initialize loads zapmeter.{yaml,toml,json} and applies process-wide settings.
func initialize(cmd *cobra.Command, args []string) error {
	if _, err := utils.LoadConfiguration("zapmeter", false); err != nil {
		return err
	}
	if err := env.Load(); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
