// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestScheduler_RunsTasksInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newScheduler()
	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		require.NoError(t, s.submit(func() {
			got = append(got, i)
			wg.Done()
		}))
	}
	wg.Wait()
	s.close()

	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestScheduler_CloseDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := newScheduler()
	block := make(chan struct{})
	require.NoError(t, s.submit(func() { <-block }))

	ran := 0
	for i := 0; i < 10; i++ {
		require.NoError(t, s.submit(func() { ran++ }))
	}

	closed := make(chan struct{})
	go func() {
		s.close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned before queued tasks ran")
	case <-time.After(20 * time.Millisecond):
	}

	close(block)
	<-closed
	assert.Equal(t, 10, ran)
	assert.ErrorIs(t, s.submit(func() {}), ErrClosed)

	// Closing twice is harmless.
	s.close()
}

func TestSchedule_RecoversPanic(t *testing.T) {
	s := newScheduler()
	defer s.close()

	_, err := schedule(context.Background(), s, func() int {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The scheduler keeps working after a panicking task.
	v, err := schedule(context.Background(), s, func() int { return 7 })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSchedule_CancelledContextAbandonsWait(t *testing.T) {
	s := newScheduler()
	defer s.close()

	block := make(chan struct{})
	require.NoError(t, s.submit(func() { <-block }))

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		_, err := schedule(ctx, s, func() int {
			close(ran)
			return 1
		})
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// The abandoned task still runs once the scheduler reaches it.
	close(block)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("abandoned task never ran")
	}
}

func TestSchedule_AlreadyCancelled(t *testing.T) {
	s := newScheduler()
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := schedule(ctx, s, func() int {
		called = true
		return 0
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLocalStore_ClosedStore(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewMemoryStore()
	_, err := s.Set(context.Background(), "k", "v")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = s.Pipeline(context.Background(), []Command{Cmd(CmdGet, "k")})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBackend_NegativeZeroFolds(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	negZero := 0.0
	negZero = -negZero
	_, err := s.ZAdd(ctx, "z", negZero, "v")
	require.NoError(t, err)
	_, err = s.ZAdd(ctx, "z", 0, "v")
	require.NoError(t, err)

	got, _, err := s.ZRangeByScore(ctx, "z", "0", "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, got)
}

func TestSortDescending(t *testing.T) {
	ms := []member{
		{1, "b"},
		{2, "9"},
		{2, "10"},
		{1, "a"},
		{3, "x"},
	}
	sortDescending(ms)
	assert.Equal(t, []string{"x", "10", "9", "b", "a"}, values(ms))
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"-inf", false},
		{"+inf", false},
		{"inf", false},
		{"-INF", false},
		{"1.5", false},
		{"-20", false},
		{"abc", true},
		{"", true},
		{"NaN", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := parseBound(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScore)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := parseScore("+inf")
	assert.ErrorIs(t, err, ErrInvalidScore, "infinity is a bound, not a score")
}
