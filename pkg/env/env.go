// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package env records which deployment environment the process runs in.
package env

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Environment is a deployment environment.
type Environment string

const (
	Local      Environment = "local"
	Production Environment = "production"
	Testing    Environment = "testing"
)

// Env is the current environment. It stays Local until Load succeeds.
var Env = Local

func IsLocal() bool      { return Env == Local }
func IsProduction() bool { return Env == Production }
func IsTesting() bool    { return Env == Testing }

// Parse accepts the environment names case-insensitively; "" is Local.
func Parse(s string) (Environment, error) {
	switch e := Environment(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return Local, nil
	case Local, Production, Testing:
		return e, nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// Load reads the "env" key (ZAPMETER_ENV). Call it after the
// configuration file has been merged. Env is left unchanged on error.
func Load() error {
	e, err := Parse(viper.GetString("env"))
	if err != nil {
		return err
	}
	Env = e
	return nil
}
