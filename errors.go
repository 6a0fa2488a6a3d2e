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

package svcclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/svcclient/svcerrors"
)

// UnknownMethodError is returned when a call is requested by a name the
// descriptor does not declare.
type UnknownMethodError struct {
	Service string
	Method  string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("service %q has no call named %q", e.Service, e.Method)
}

// SvcError classifies the error as unimplemented.
func (e *UnknownMethodError) SvcError() *svcerrors.Status {
	return svcerrors.Newf(svcerrors.CodeUnimplemented, "%s", e.Error())
}

// UnknownTopicError is returned when a topic is requested by a name the
// descriptor does not declare.
type UnknownTopicError struct {
	Service string
	Topic   string
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("service %q has no topic named %q", e.Service, e.Topic)
}

// SvcError classifies the error as unimplemented.
func (e *UnknownTopicError) SvcError() *svcerrors.Status {
	return svcerrors.Newf(svcerrors.CodeUnimplemented, "%s", e.Error())
}

// ArityMismatchError is returned when a call is bound with a different
// number of arguments than its path template declares.
type ArityMismatchError struct {
	Service string
	Method  string
	Want    int
	Got     int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("call %q of service %q takes %d arguments, got %d", e.Method, e.Service, e.Want, e.Got)
}

// SvcError classifies the error as an invalid argument.
func (e *ArityMismatchError) SvcError() *svcerrors.Status {
	return svcerrors.Newf(svcerrors.CodeInvalidArgument, "%s", e.Error())
}

// ErrBrokerUnavailable is returned when a topic is bound but no topic
// factory was configured.
var ErrBrokerUnavailable error = brokerUnavailableError{}

type brokerUnavailableError struct{}

func (brokerUnavailableError) Error() string {
	return "no message broker is configured for topics"
}

func (e brokerUnavailableError) SvcError() *svcerrors.Status {
	return svcerrors.Newf(svcerrors.CodeUnavailable, "%s", e.Error())
}

// TransportError wraps a failure to reach a service or to encode or decode
// a message for it. It is never retried.
type TransportError struct {
	Service   string
	Procedure string
	Err       error
}

func newTransportError(service, procedure string, err error) *TransportError {
	return &TransportError{Service: service, Procedure: procedure, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("call %q of service %q failed: %v", e.Procedure, e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SvcError reports the code of the underlying error. Context errors map to
// their codes and anything else is unknown.
func (e *TransportError) SvcError() *svcerrors.Status {
	switch {
	case errors.Is(e.Err, context.DeadlineExceeded):
		return svcerrors.Wrap(svcerrors.CodeDeadlineExceeded, e)
	case errors.Is(e.Err, context.Canceled):
		return svcerrors.Wrap(svcerrors.CodeCancelled, e)
	}
	return svcerrors.Wrap(svcerrors.FromError(e.Err).Code(), e)
}
