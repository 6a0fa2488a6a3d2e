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

package svclifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/svcclient/internal/errorsync"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

// Runtime is the process-wide system that background work runs on. It is
// always shut down by a Manager that owns it, whatever happened before.
type Runtime interface {
	// Shutdown stops the runtime. ctx expires when the shutdown timeout
	// elapses.
	Shutdown(ctx context.Context, reason string) error
}

// StopHook releases a resource. ctx expires when the shutdown timeout
// elapses.
type StopHook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   StopHook
}

// Manager coordinates process shutdown.
//
// Stop moves it through
//
//	Running -> StoppingResources -> StoppingRuntime -> Stopped
//
// or into StoppedWithError from either stopping phase. Stop hooks run
// concurrently first. Recoverable hook failures are logged and otherwise
// ignored. Unrecoverable ones are remembered and returned after the runtime
// has been shut down, which happens regardless of what the hooks did.
type Manager struct {
	runtime  Runtime
	deadline time.Duration
	opts     options

	state atomic.Int32

	hooksMu sync.Mutex
	hooks   []namedHook

	// done closes once the outcome of the first Stop is known. err is
	// immutable afterwards.
	done chan struct{}
	err  error

	scope  tally.Scope
	logger *zap.Logger
}

// New builds a Manager that shuts down the given runtime after its stop
// hooks. Stop fails with a *ShutdownTimeoutError if shutdown takes longer
// than the shutdown timeout plus the grace margin.
func New(runtime Runtime, opts ...Option) *Manager {
	if runtime == nil {
		panic("a runtime is required, use NewResourceOnly without one")
	}
	m := newManager(opts)
	m.runtime = runtime
	m.deadline = m.opts.timeout + m.opts.grace
	return m
}

// NewResourceOnly builds a Manager for processes whose runtime is owned
// elsewhere. It runs stop hooks only and gives them ResourceOnlyTimeout.
func NewResourceOnly(opts ...Option) *Manager {
	m := newManager(opts)
	m.opts.timeout = ResourceOnlyTimeout
	m.deadline = ResourceOnlyTimeout
	return m
}

func newManager(opts []Option) *Manager {
	options := defaultOptions
	for _, opt := range opts {
		opt.apply(&options)
	}
	return &Manager{
		opts:   options,
		done:   make(chan struct{}),
		scope:  options.scope,
		logger: options.logger,
	}
}

// State returns the current shutdown state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Done returns a channel that closes when Stop has an outcome.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// RegisterStopHook adds a hook to run on Stop. Hooks can only be added
// while the Manager is running.
func (m *Manager) RegisterStopHook(name string, hook StopHook) error {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()

	if s := m.State(); s != Running {
		return svcerrors.FailedPreconditionErrorf(
			"cannot register stop hook %q: manager is %v", name, s)
	}
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
	return nil
}

// Stop shuts everything down and blocks until that finishes or the deadline
// elapses.
//
// It returns nil if the runtime shut down and no hook failed fatally. If a
// hook failed fatally, that error is returned even when the runtime shut down
// fine or failed as well. If only the runtime failed, its error is returned.
// Calling Stop again returns the outcome of the first call.
func (m *Manager) Stop() error {
	if !m.state.CAS(int32(Running), int32(StoppingResources)) {
		<-m.done
		return m.err
	}

	start := m.opts.clock.Now()
	m.logger.Info("Stopping.",
		zap.String("reason", m.opts.reason),
		zap.Duration("deadline", m.deadline))

	timer := m.opts.clock.Timer(m.deadline)
	defer timer.Stop()

	result := make(chan error, 1)
	go func() { result <- m.stop() }()

	var err error
	select {
	case err = <-result:
	case <-timer.C():
		stuck := m.State()
		err = &ShutdownTimeoutError{Deadline: m.deadline, State: stuck}
		m.logger.Error("Shutdown timed out.", zap.Stringer("state", stuck), zap.Error(err))
		m.count("timeout")
	}

	m.err = err
	if err != nil {
		m.state.Store(int32(StoppedWithError))
	} else {
		m.state.Store(int32(Stopped))
	}
	close(m.done)

	m.logger.Info("Stopped.",
		zap.Duration("elapsed", m.opts.clock.Now().Sub(start)),
		zap.Stringer("state", m.State()),
		zap.Error(err))
	return err
}

// stop runs both phases and returns the final outcome.
func (m *Manager) stop() error {
	ctx, cancel := m.withTimeout(m.opts.timeout)
	defer cancel(nil)

	out := m.stopResources(ctx)

	if m.runtime == nil {
		m.count(out.result())
		return out.err()
	}

	m.state.CAS(int32(StoppingResources), int32(StoppingRuntime))
	rtErr := m.runtime.Shutdown(ctx, m.opts.reason)

	switch {
	case rtErr != nil && out.fatal():
		m.logger.Error("Runtime shutdown failed after a fatal stop hook failure.",
			zap.Error(rtErr))
		m.count("error")
		return out.err()
	case rtErr != nil:
		m.logger.Error("Runtime shutdown failed.", zap.Error(rtErr))
		m.count("error")
		return rtErr
	}
	m.count(out.result())
	return out.err()
}

// stopResources runs every stop hook concurrently and classifies failures.
func (m *Manager) stopResources(ctx context.Context) outcome {
	m.hooksMu.Lock()
	hooks := append([]namedHook(nil), m.hooks...)
	m.hooksMu.Unlock()

	var ew errorsync.ErrorWaiter
	for _, h := range hooks {
		h := h
		ew.Submit(h.name, func() error { return h.fn(ctx) })
	}

	var fatal error
	for _, f := range ew.Wait() {
		severity := m.opts.classifier(f.Err)
		m.scope.Tagged(map[string]string{
			"hook":     f.Name,
			"severity": severity.String(),
		}).Counter("stop_hook_failures").Inc(1)

		if severity == Unrecoverable {
			m.logger.Error("Stop hook failed fatally, shutdown continues.",
				zap.String("hook", f.Name), zap.Error(f.Err))
			fatal = multierr.Append(fatal, f.Err)
			continue
		}
		m.logger.Warn("Stop hook failed, ignoring.",
			zap.String("hook", f.Name), zap.Error(f.Err))
	}

	if fatal != nil {
		return fatalPending{cause: fatal}
	}
	return recovered{}
}

// withTimeout returns a context that is cancelled when d elapses on the
// Manager's clock.
func (m *Manager) withTimeout(d time.Duration) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(context.Background())
	timer := m.opts.clock.Timer(d)
	go func() {
		select {
		case <-timer.C():
			cancel(context.DeadlineExceeded)
		case <-ctx.Done():
			timer.Stop()
		}
	}()
	return ctx, cancel
}

func (m *Manager) count(result string) {
	m.scope.Tagged(map[string]string{"result": result}).Counter("stops").Inc(1)
}

// outcome is the result of the resource phase: either every failure was
// recovered, or a fatal error is pending until the runtime is down.
type outcome interface {
	fatal() bool
	err() error
	result() string
}

type recovered struct{}

func (recovered) fatal() bool    { return false }
func (recovered) err() error     { return nil }
func (recovered) result() string { return "success" }

type fatalPending struct{ cause error }

func (fatalPending) fatal() bool    { return true }
func (f fatalPending) err() error   { return f.cause }
func (fatalPending) result() string { return "fatal" }
