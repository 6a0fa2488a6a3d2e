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
	"fmt"
	"strconv"
	"strings"
)

// Code classifies a failed call. The values line up with gRPC status codes.
type Code int

const (
	// CodeOK means no error.
	CodeOK Code = 0
	// CodeCancelled means the caller gave up on the operation.
	CodeCancelled Code = 1
	// CodeUnknown is used when nothing more specific is known.
	CodeUnknown Code = 2
	// CodeInvalidArgument means the caller supplied a bad argument, regardless
	// of system state.
	CodeInvalidArgument Code = 3
	// CodeDeadlineExceeded means the deadline expired first.
	CodeDeadlineExceeded Code = 4
	// CodeNotFound means a requested entity does not exist.
	CodeNotFound Code = 5
	// CodeAlreadyExists means the entity being created already exists.
	CodeAlreadyExists Code = 6
	// CodePermissionDenied means the identified caller may not do this.
	CodePermissionDenied Code = 7
	// CodeResourceExhausted means a quota or capacity ran out.
	CodeResourceExhausted Code = 8
	// CodeFailedPrecondition means the system is not in a state that allows
	// the operation. Do not retry until the state is fixed.
	CodeFailedPrecondition Code = 9
	// CodeAborted means a concurrency conflict aborted the operation.
	CodeAborted Code = 10
	// CodeOutOfRange means the operation went past a valid range.
	CodeOutOfRange Code = 11
	// CodeUnimplemented means the operation is not supported.
	CodeUnimplemented Code = 12
	// CodeInternal means an invariant of the system is broken.
	CodeInternal Code = 13
	// CodeUnavailable means the target cannot be reached right now. Usually
	// transient.
	CodeUnavailable Code = 14
	// CodeDataLoss means unrecoverable loss or corruption.
	CodeDataLoss Code = 15
	// CodeUnauthenticated means the caller could not be identified.
	CodeUnauthenticated Code = 16
)

var (
	_codeToString = map[Code]string{
		CodeOK:                 "ok",
		CodeCancelled:          "cancelled",
		CodeUnknown:            "unknown",
		CodeInvalidArgument:    "invalid-argument",
		CodeDeadlineExceeded:   "deadline-exceeded",
		CodeNotFound:           "not-found",
		CodeAlreadyExists:      "already-exists",
		CodePermissionDenied:   "permission-denied",
		CodeResourceExhausted:  "resource-exhausted",
		CodeFailedPrecondition: "failed-precondition",
		CodeAborted:            "aborted",
		CodeOutOfRange:         "out-of-range",
		CodeUnimplemented:      "unimplemented",
		CodeInternal:           "internal",
		CodeUnavailable:        "unavailable",
		CodeDataLoss:           "data-loss",
		CodeUnauthenticated:    "unauthenticated",
	}
	_stringToCode = make(map[string]Code, len(_codeToString))
)

func init() {
	for code, s := range _codeToString {
		_stringToCode[s] = code
	}
}

// String returns the dashed name of the code, or its number when unknown.
func (c Code) String() string {
	if s, ok := _codeToString[c]; ok {
		return s
	}
	return strconv.Itoa(int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	if s, ok := _codeToString[c]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unknown code: %d", int(c))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Code) UnmarshalText(text []byte) error {
	code, ok := _stringToCode[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("unknown code string: %s", string(text))
	}
	*c = code
	return nil
}
