// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading "~" and environment variables and makes
// the result absolute.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			path = filepath.Join(usr.HomeDir, strings.TrimPrefix(path[1:], "/"))
		}
	}
	path = os.ExpandEnv(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// PrepareDataDir expands path, creates it if missing and checks that files
// can be created in it. It returns the expanded path.
func PrepareDataDir(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("data directory: %w", os.ErrInvalid)
	}
	dir := ExpandPath(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", dir, os.ErrInvalid)
	}

	probe, err := os.CreateTemp(dir, ".zapmeter-probe-*")
	if err != nil {
		return "", fmt.Errorf("data directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return dir, nil
}
