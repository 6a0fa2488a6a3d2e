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
	"errors"
	"fmt"
	"time"

	"go.uber.org/svcclient/internal/errorsync"
	"go.uber.org/svcclient/svcerrors"
)

// Severity classifies a stop hook failure.
type Severity int

const (
	// Recoverable failures are logged and shutdown carries on as if the
	// hook had succeeded.
	Recoverable Severity = iota

	// Unrecoverable failures are remembered and returned from Stop once the
	// runtime has been shut down.
	Unrecoverable
)

func (s Severity) String() string {
	if s == Unrecoverable {
		return "fatal"
	}
	return "non_fatal"
}

// Classifier decides how severe a stop hook failure is.
type Classifier func(error) Severity

// DefaultClassifier treats errors marked with Fatal and panics in stop hooks
// as unrecoverable.
func DefaultClassifier(err error) Severity {
	if IsFatal(err) {
		return Unrecoverable
	}
	var perr *errorsync.PanicError
	if errors.As(err, &perr) {
		return Unrecoverable
	}
	return Recoverable
}

// Fatal marks err as unrecoverable. It returns nil for a nil err.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }
func (e *fatalError) Fatal() bool   { return true }

// IsFatal reports whether err, or an error it wraps, has a Fatal method that
// returns true.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

// ShutdownTimeoutError is returned by Stop when shutdown does not complete
// before its deadline.
type ShutdownTimeoutError struct {
	// Deadline is how long Stop waited.
	Deadline time.Duration

	// State is the phase shutdown was stuck in.
	State State
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("shutdown did not complete within %v: still %v", e.Deadline, e.State)
}

// SvcError classifies the timeout as deadline exceeded.
func (e *ShutdownTimeoutError) SvcError() *svcerrors.Status {
	return svcerrors.Newf(svcerrors.CodeDeadlineExceeded, "%s", e.Error())
}
