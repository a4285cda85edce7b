// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeScore_PreservesOrder(t *testing.T) {
	scores := []float64{
		math.Inf(-1), -1e300, -1000, -1.5, -1, -math.SmallestNonzeroFloat64,
		0, math.SmallestNonzeroFloat64, 0.25, 1, 1.5, 1000, 1.7e12, 1e300, math.Inf(1),
	}
	encoded := make([][]byte, len(scores))
	for i, f := range scores {
		encoded[i] = encodeScore(f)
		assert.Equal(t, f, decodeScore(encoded[i]))
	}
	assert.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))
}

func TestEncodeScore_NegativeZero(t *testing.T) {
	assert.Equal(t, encodeScore(0), encodeScore(math.Copysign(0, -1)))
}

func TestOpenLevelStore_Persists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s, err := OpenLevelStore(dir, true)
	require.NoError(t, err)
	_, err = s.IncrBy(ctx, "counter", 42)
	require.NoError(t, err)
	_, err = s.ZAdd(ctx, "z", 100, "snapshot")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenLevelStore(dir, false)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.GetInt(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	got, found, err := s.ZRevRangeByScore(ctx, "z", PosInf, NegInf)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"snapshot"}, got)
}

func TestLevelBackend_KeysDoNotBleed(t *testing.T) {
	s := openLevel(t)
	ctx := context.Background()

	_, err := s.ZAdd(ctx, "a", 1, "x")
	require.NoError(t, err)
	_, err = s.ZAdd(ctx, "ab", 1, "y")
	require.NoError(t, err)

	got, _, err := s.ZRangeByScore(ctx, "a", NegInf, PosInf)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
}
