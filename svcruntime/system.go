// Copyright (c) 2022 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package svcruntime provides the process-wide runtime that background work
// such as topic delivery runs on.
package svcruntime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrShutdown is returned by Go once the system is shutting down.
var ErrShutdown = errors.New("runtime system is shut down")

// System runs background tasks until it is shut down. Tasks receive a
// context that is cancelled on shutdown.
type System struct {
	name   string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu       sync.RWMutex
	stopping atomic.Bool
	tasks    atomic.Int64
}

// Option customizes a System.
type Option func(*System)

// Logger sets the logger for task failures and shutdown.
func Logger(logger *zap.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// New starts a System.
func New(name string, opts ...Option) *System {
	ctx, cancel := context.WithCancel(context.Background())
	s := &System{
		name:   name,
		logger: zap.NewNop(),
		ctx:    ctx,
		cancel: cancel,
		group:  new(errgroup.Group),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("runtime", name))
	return s
}

// Name identifies the system in logs.
func (s *System) Name() string { return s.name }

// Go runs f in the background. It fails with ErrShutdown once Shutdown has
// been called.
func (s *System) Go(f func(ctx context.Context) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopping.Load() {
		return ErrShutdown
	}

	s.tasks.Inc()
	s.group.Go(func() error {
		defer s.tasks.Dec()
		err := f(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Background task failed.", zap.Error(err))
			return err
		}
		return nil
	})
	return nil
}

// Running is the number of tasks that have not returned yet.
func (s *System) Running() int64 { return s.tasks.Load() }

// Shutdown cancels every task and waits for them to return. It returns the
// first task failure, or an error if ctx expires first. Later calls wait
// again and return the same result.
func (s *System) Shutdown(ctx context.Context, reason string) error {
	s.mu.Lock()
	first := !s.stopping.Swap(true)
	s.mu.Unlock()
	if first {
		s.logger.Info("Shutting down runtime.", zap.String("reason", reason),
			zap.Int64("tasks", s.tasks.Load()))
	}
	s.cancel()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return svcerrors.DeadlineExceededErrorf(
			"runtime %q did not shut down in time: %d tasks still running", s.name, s.tasks.Load())
	}
}
