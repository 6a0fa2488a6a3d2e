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

package svcclienttest

//go:generate mockgen -destination=mocks.go -package=svcclienttest go.uber.org/svcclient Transport,ServiceLocator,TopicFactory,Topic,Subscription,StreamDialer,StreamConn

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/svcclient"
)

// RecordingTransport is a Transport that records every request and answers
// with a handler function.
type RecordingTransport struct {
	handle func(*svcclient.Request) (*svcclient.Response, error)

	mu       sync.Mutex
	requests []*svcclient.Request
}

var _ svcclient.Transport = (*RecordingTransport)(nil)

// NewRecordingTransport builds a RecordingTransport. A nil handler answers
// every request with an empty 200 response.
func NewRecordingTransport(handle func(*svcclient.Request) (*svcclient.Response, error)) *RecordingTransport {
	if handle == nil {
		handle = func(*svcclient.Request) (*svcclient.Response, error) {
			return &svcclient.Response{StatusCode: http.StatusOK, Header: make(http.Header)}, nil
		}
	}
	return &RecordingTransport{handle: handle}
}

// Send records the request and calls the handler.
func (t *RecordingTransport) Send(ctx context.Context, req *svcclient.Request) (*svcclient.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.handle(req)
}

// Requests returns the requests sent so far.
func (t *RecordingTransport) Requests() []*svcclient.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*svcclient.Request(nil), t.requests...)
}

// JSONResponse builds a response with a JSON body. It panics if v cannot be
// encoded.
func JSONResponse(status int, v interface{}) *svcclient.Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &svcclient.Response{StatusCode: status, Header: h, Body: body}
}
