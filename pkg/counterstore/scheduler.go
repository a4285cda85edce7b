// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package counterstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/LeeDigitalWorks/zapmeter/pkg/logger"
)

// scheduler runs tasks one at a time, in submission order, on a single
// goroutine. Submission never blocks: the queue is unbounded.
type scheduler struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newScheduler() *scheduler {
	s := &scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *scheduler) submit(task func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *scheduler) run() {
	defer close(s.done)
	for range s.wake {
		for {
			s.mu.Lock()
			batch := s.queue
			s.queue = nil
			closed := s.closed
			s.mu.Unlock()

			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
			for _, task := range batch {
				task()
			}
		}
	}
}

// close rejects new tasks, runs everything already queued and waits for
// the goroutine to exit.
func (s *scheduler) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

type outcome[T any] struct {
	val T
	err error
}

// schedule queues fn and waits for its result. Cancelling ctx abandons the
// wait; fn still runs in order.
func schedule[T any](ctx context.Context, s *scheduler, fn func() T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ch := make(chan outcome[T], 1)
	err := s.submit(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Msg("counterstore: task panicked")
				ch <- outcome[T]{err: fmt.Errorf("counterstore: task panicked: %v", r)}
			}
		}()
		ch <- outcome[T]{val: fn()}
	})
	if err != nil {
		return zero, err
	}

	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
