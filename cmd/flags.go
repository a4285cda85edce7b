// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmd provides the zapmeter CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FlagLoader reads settings with CLI flag precedence: an explicitly set
// flag wins, otherwise viper's env > config file > default applies under
// the same key.
type FlagLoader struct {
	cmd *cobra.Command
}

// NewFlagLoader creates a FlagLoader for the given cobra command.
func NewFlagLoader(cmd *cobra.Command) *FlagLoader {
	return &FlagLoader{cmd: cmd}
}

func load[T any](f *FlagLoader, name string, fromFlag func(*pflag.FlagSet, string) (T, error), fromViper func(string) T) T {
	flags := f.cmd.Flags()
	if flags.Changed(name) {
		if v, err := fromFlag(flags, name); err == nil {
			return v
		}
	}
	return fromViper(name)
}

func (f *FlagLoader) String(name string) string {
	return load(f, name, (*pflag.FlagSet).GetString, viper.GetString)
}

func (f *FlagLoader) StringSlice(name string) []string {
	return load(f, name, (*pflag.FlagSet).GetStringSlice, viper.GetStringSlice)
}
