// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package debug exposes process metrics, pprof and health endpoints for
// long-running zapmeter commands.
package debug

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ready atomic.Bool

	readyCheckMu sync.RWMutex
	readyCheck   func() bool

	// globalRegistry holds zapmeter's own collectors.
	globalRegistry = prometheus.NewRegistry()
)

func SetReady()    { ready.Store(true) }
func SetNotReady() { ready.Store(false) }

// SetReadyCheck registers an extra condition for IsReady.
func SetReadyCheck(check func() bool) {
	readyCheckMu.Lock()
	defer readyCheckMu.Unlock()
	readyCheck = check
}

// IsReady is true once SetReady was called and the registered check, if
// any, passes.
func IsReady() bool {
	if !ready.Load() {
		return false
	}
	readyCheckMu.RLock()
	check := readyCheck
	readyCheckMu.RUnlock()
	return check == nil || check()
}

// Registry returns the registerer zapmeter packages add their metrics to.
func Registry() prometheus.Registerer {
	return globalRegistry
}

// Gatherer returns the combined default and zapmeter gatherers.
func Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{prometheus.DefaultGatherer, globalRegistry}
}

// NewMux builds the debug mux: /metrics, /health, /ready and /debug/pprof.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return mux
}

// Serve runs the debug server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
