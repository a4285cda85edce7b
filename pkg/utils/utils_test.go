// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Backoff
// =============================================================================

func TestJitterUp(t *testing.T) {
	t.Parallel()

	for range 100 {
		d := JitterUp(time.Second, 0.25)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
	assert.Equal(t, time.Minute, JitterUp(time.Minute, 0))
	assert.Equal(t, time.Minute, JitterUp(time.Minute, -1))
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	b := &Backoff{Base: time.Second, Max: 5 * time.Second}
	var got []time.Duration
	for range 5 {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second,
	}, got)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoff_Jittered(t *testing.T) {
	t.Parallel()

	b := &Backoff{Base: 100 * time.Millisecond, Fraction: 0.5}
	for range 20 {
		d := b.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 9600*time.Millisecond)
	}
}

// =============================================================================
// Paths
// =============================================================================

func TestExpandPath(t *testing.T) {
	t.Setenv("ZAPMETER_TEST_DIR", "/var/lib/zapmeter")

	assert.Equal(t, "/var/lib/zapmeter/data", ExpandPath("$ZAPMETER_TEST_DIR/data"))

	usr, err := user.Current()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(usr.HomeDir, "meter"), ExpandPath("~/meter"))
	assert.Equal(t, usr.HomeDir, ExpandPath("~"))
}

func TestPrepareDataDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	dir, err := PrepareDataDir(filepath.Join(root, "a", "b"))
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file left behind")

	file := filepath.Join(root, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = PrepareDataDir(file)
	assert.Error(t, err)

	_, err = PrepareDataDir("")
	assert.ErrorIs(t, err, os.ErrInvalid)
}

// =============================================================================
// Configuration
// =============================================================================

func TestLoadConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zapmeter-test.yaml"), []byte("namespace: archive\n"), 0o644))

	prev := ConfigurationFileDirectory
	ConfigurationFileDirectory = dir
	t.Cleanup(func() { ConfigurationFileDirectory = prev })

	used, err := LoadConfiguration("zapmeter-test", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zapmeter-test.yaml"), used)
	assert.Equal(t, "archive", viper.GetString("namespace"))

	used, err = LoadConfiguration("does-not-exist", false)
	require.NoError(t, err)
	assert.Empty(t, used)

	_, err = LoadConfiguration("does-not-exist", true)
	assert.Error(t, err)
}
