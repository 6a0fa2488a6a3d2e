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
	"net/http"
	"net/url"
)

// HTTP headers used to send call metadata.
const (
	// Name of the calling service. This corresponds to ServiceInfo.Name.
	CallerHeader = "Rpc-Caller"

	// Instance of the calling service. This corresponds to
	// ServiceInfo.InstanceID.
	CallerInstanceHeader = "Rpc-Caller-Instance"

	// Name of the service to which the request is being sent.
	ServiceHeader = "Rpc-Service"

	// Name of the call being made.
	ProcedureHeader = "Rpc-Procedure"

	// Unique identifier of a single request.
	RequestIDHeader = "Rpc-Request-Id"

	// Amount of time (in milliseconds) within which the request is expected
	// to finish.
	TTLMSHeader = "Context-TTL-MS"
)

// Request is an outgoing call, fully bound and ready to be sent.
type Request struct {
	// Caller is the name of the calling service.
	Caller string

	// Service is the name of the service being called.
	Service string

	// Procedure is the name of the call.
	Procedure string

	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Response is what a Transport received. Non-2xx responses are not errors
// at this level.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends unary requests.
type Transport interface {
	// Send returns an error only if no response was received.
	Send(ctx context.Context, req *Request) (*Response, error)
}

// ServiceLocator finds the base URL of a service by name.
type ServiceLocator interface {
	// Locate returns false if the service is not known.
	Locate(ctx context.Context, service string) (*url.URL, bool, error)
}

// StreamDialer opens message streams for streamed calls.
type StreamDialer interface {
	DialStream(ctx context.Context, req *Request) (StreamConn, error)
}

// StreamConn is an open message stream. Send and Receive may be called
// concurrently with each other but not with themselves.
type StreamConn interface {
	Send(msg []byte) error
	Receive() ([]byte, error)
	Close() error
}
