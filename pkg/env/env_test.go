// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Environment
		wantErr bool
	}{
		{in: "", want: Local},
		{in: "local", want: Local},
		{in: " Production ", want: Production},
		{in: "TESTING", want: Testing},
		{in: "staging", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoad(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("env", "")
		Env = Local
	})

	require.NoError(t, Load())
	assert.True(t, IsLocal())

	viper.Set("env", string(Production))
	require.NoError(t, Load())
	assert.True(t, IsProduction())
	assert.False(t, IsLocal())

	viper.Set("env", "staging")
	assert.Error(t, Load())
	assert.True(t, IsProduction(), "failed load must not change the environment")

	viper.Set("env", string(Testing))
	require.NoError(t, Load())
	assert.True(t, IsTesting())
}
