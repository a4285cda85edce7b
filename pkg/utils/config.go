// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: store.backend is read from
// ZAPMETER_STORE_BACKEND.
const EnvPrefix = "ZAPMETER"

var (
	ConfigurationFileDirectory string
)

// LoadConfiguration merges <name>.{yaml,toml,json,...} into viper, looking
// in ConfigurationFileDirectory first and then the standard locations. It
// returns the file used, or "" when none was found and required is false.
func LoadConfiguration(name string, required bool) (string, error) {
	viper.SetConfigName(name)
	if ConfigurationFileDirectory != "" {
		viper.AddConfigPath(ExpandPath(ConfigurationFileDirectory))
	}
	viper.AddConfigPath("$HOME/.zapmeter")
	viper.AddConfigPath("/usr/local/etc/zapmeter/")
	viper.AddConfigPath("/etc/zapmeter/")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.MergeInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case errors.As(err, &notFound) && !required:
		log.Info().Str("name", name).Msg("no config file, using defaults and environment")
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load config %s: %w", name, err)
	}
	log.Info().Str("file", viper.ConfigFileUsed()).Msg("loaded config file")
	return viper.ConfigFileUsed(), nil
}
