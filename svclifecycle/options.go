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
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/svcclient/internal/clock"
	"go.uber.org/zap"
)

const (
	// DefaultShutdownTimeout bounds runtime shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultGraceMargin is added to the shutdown timeout to form the
	// deadline of Stop.
	DefaultGraceMargin = 5 * time.Second

	// ResourceOnlyTimeout is the deadline of Stop for managers that do not
	// own a runtime.
	ResourceOnlyTimeout = 10 * time.Second
)

// Option customizes a Manager.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(opts *options) { f(opts) }

type options struct {
	timeout    time.Duration
	grace      time.Duration
	reason     string
	logger     *zap.Logger
	scope      tally.Scope
	clock      clock.Clock
	classifier Classifier
}

var defaultOptions = options{
	timeout:    DefaultShutdownTimeout,
	grace:      DefaultGraceMargin,
	reason:     "stop requested",
	logger:     zap.NewNop(),
	scope:      tally.NoopScope,
	clock:      clock.Real,
	classifier: DefaultClassifier,
}

// ShutdownTimeout sets how long the runtime is given to shut down.
func ShutdownTimeout(d time.Duration) Option {
	return optionFunc(func(opts *options) {
		opts.timeout = d
	})
}

// GraceMargin sets how much longer than the shutdown timeout Stop waits
// before it gives up.
func GraceMargin(d time.Duration) Option {
	return optionFunc(func(opts *options) {
		opts.grace = d
	})
}

// Reason is passed to the runtime when it is shut down.
func Reason(reason string) Option {
	return optionFunc(func(opts *options) {
		opts.reason = reason
	})
}

// Logger sets the logger for shutdown progress and hook failures.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logger
	})
}

// Scope sets a Tally scope for shutdown metrics.
func Scope(scope tally.Scope) Option {
	return optionFunc(func(opts *options) {
		opts.scope = scope
	})
}

// WithClock drives shutdown deadlines from the given clock.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(opts *options) {
		opts.clock = c
	})
}

// WithClassifier decides which stop hook failures are fatal.
func WithClassifier(c Classifier) Option {
	return optionFunc(func(opts *options) {
		opts.classifier = c
	})
}
