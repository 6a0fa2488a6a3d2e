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

import "net/http"

var (
	_codeToStatusCode = map[Code]int{
		CodeOK:                 http.StatusOK,
		CodeCancelled:          499,
		CodeUnknown:            http.StatusInternalServerError,
		CodeInvalidArgument:    http.StatusBadRequest,
		CodeDeadlineExceeded:   http.StatusGatewayTimeout,
		CodeNotFound:           http.StatusNotFound,
		CodeAlreadyExists:      http.StatusConflict,
		CodePermissionDenied:   http.StatusForbidden,
		CodeResourceExhausted:  http.StatusTooManyRequests,
		CodeFailedPrecondition: http.StatusBadRequest,
		CodeAborted:            http.StatusConflict,
		CodeOutOfRange:         http.StatusBadRequest,
		CodeUnimplemented:      http.StatusNotImplemented,
		CodeInternal:           http.StatusInternalServerError,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeDataLoss:           http.StatusInternalServerError,
		CodeUnauthenticated:    http.StatusUnauthorized,
	}

	// first entry wins when several codes share a status
	_statusCodeToCode = map[int]Code{
		http.StatusOK:                  CodeOK,
		http.StatusBadRequest:          CodeInvalidArgument,
		http.StatusUnauthorized:        CodeUnauthenticated,
		http.StatusForbidden:           CodePermissionDenied,
		http.StatusNotFound:            CodeNotFound,
		http.StatusConflict:            CodeAborted,
		http.StatusTooManyRequests:     CodeResourceExhausted,
		499:                            CodeCancelled,
		http.StatusInternalServerError: CodeUnknown,
		http.StatusNotImplemented:      CodeUnimplemented,
		http.StatusServiceUnavailable:  CodeUnavailable,
		http.StatusGatewayTimeout:      CodeDeadlineExceeded,
	}
)

// HTTPStatus returns the HTTP status code that carries the given Code.
func HTTPStatus(code Code) int {
	if s, ok := _codeToStatusCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// CodeFromHTTPStatus does a best-effort conversion from an HTTP status code.
// Unmapped 4xx statuses become CodeInvalidArgument and everything else
// CodeUnknown.
func CodeFromHTTPStatus(status int) Code {
	if code, ok := _statusCodeToCode[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return CodeInvalidArgument
	}
	return CodeUnknown
}
