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

package svcerrors

import (
	"bytes"
	"errors"
	"fmt"
)

// Newf returns a new Status. It returns nil for CodeOK.
func Newf(code Code, format string, args ...interface{}) *Status {
	if code == CodeOK {
		return nil
	}

	var err error
	if len(args) == 0 {
		err = errors.New(format)
	} else {
		err = fmt.Errorf(format, args...)
	}
	return &Status{code: code, err: err}
}

// Wrap returns a Status with the given code whose message and unwrap chain
// come from err. It returns nil for a nil err or CodeOK.
func Wrap(code Code, err error) *Status {
	if err == nil || code == CodeOK {
		return nil
	}
	return &Status{code: code, err: &wrapError{err: err}}
}

// svcError is implemented by errors that can describe themselves as a
// Status without being one.
type svcError interface {
	SvcError() *Status
}

// FromError returns the Status for the provided error.
//
// If the error:
//
//   - is nil, return nil
//   - is or wraps a Status, return that Status
//   - is or wraps an error with a 'SvcError() *Status' method, return its Status
//
// Otherwise, return a wrapped error with CodeUnknown.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}
	if st, ok := fromError(err); ok {
		return st
	}
	return &Status{code: CodeUnknown, err: &wrapError{err: err}}
}

func fromError(err error) (st *Status, ok bool) {
	if errors.As(err, &st) {
		return st, true
	}
	var serr svcError
	if errors.As(err, &serr) {
		return serr.SvcError(), true
	}
	return nil, false
}

// IsStatus reports whether err is, wraps or describes itself as a Status.
func IsStatus(err error) bool {
	_, ok := fromError(err)
	return ok
}

// CodeOf returns the code of err, CodeOK for nil, CodeUnknown for foreign
// errors.
func CodeOf(err error) Code {
	return FromError(err).Code()
}

// Status is the typed failure of a remote call.
type Status struct {
	code    Code
	name    string
	err     error
	details []byte
}

// WithName returns a copy of the Status carrying an application error name.
func (s *Status) WithName(name string) *Status {
	if s == nil {
		return nil
	}
	return &Status{code: s.code, name: name, err: s.err, details: s.details}
}

// WithDetails returns a copy of the Status carrying opaque detail bytes.
func (s *Status) WithDetails(details []byte) *Status {
	if s == nil {
		return nil
	}
	if len(details) == 0 {
		details = nil
	}
	return &Status{code: s.code, name: s.name, err: s.err, details: details}
}

// Code returns the error code for this Status.
func (s *Status) Code() Code {
	if s == nil {
		return CodeOK
	}
	return s.code
}

// Name returns the application error name, if any.
func (s *Status) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Message returns the error message for this Status.
func (s *Status) Message() string {
	if s == nil || s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Details returns the error details for this Status.
func (s *Status) Details() []byte {
	if s == nil {
		return nil
	}
	return s.details
}

// Unwrap supports errors.Unwrap.
func (s *Status) Unwrap() error {
	if s == nil {
		return nil
	}
	return errors.Unwrap(s.err)
}

// Error implements the error interface.
func (s *Status) Error() string {
	buffer := bytes.NewBuffer(nil)
	_, _ = buffer.WriteString(`code:`)
	_, _ = buffer.WriteString(s.code.String())
	if s.name != "" {
		_, _ = buffer.WriteString(` name:`)
		_, _ = buffer.WriteString(s.name)
	}
	if msg := s.Message(); msg != "" {
		_, _ = buffer.WriteString(` message:`)
		_, _ = buffer.WriteString(msg)
	}
	return buffer.String()
}

type wrapError struct {
	err error
}

func (e *wrapError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *wrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// InvalidArgumentErrorf returns a Status with CodeInvalidArgument.
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return Newf(CodeInvalidArgument, format, args...)
}

// FailedPreconditionErrorf returns a Status with CodeFailedPrecondition.
func FailedPreconditionErrorf(format string, args ...interface{}) error {
	return Newf(CodeFailedPrecondition, format, args...)
}

// InternalErrorf returns a Status with CodeInternal.
func InternalErrorf(format string, args ...interface{}) error {
	return Newf(CodeInternal, format, args...)
}

// UnavailableErrorf returns a Status with CodeUnavailable.
func UnavailableErrorf(format string, args ...interface{}) error {
	return Newf(CodeUnavailable, format, args...)
}

// DeadlineExceededErrorf returns a Status with CodeDeadlineExceeded.
func DeadlineExceededErrorf(format string, args ...interface{}) error {
	return Newf(CodeDeadlineExceeded, format, args...)
}
