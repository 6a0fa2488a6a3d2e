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

package svchttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/internal/testtime"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcerrors"
)

func newRequest(t *testing.T, method, rawURL string, body []byte) *svcclient.Request {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &svcclient.Request{
		Caller:    "caller",
		Service:   "items",
		Procedure: "getItem",
		Method:    method,
		URL:       u,
		Header:    http.Header{svcclient.ServiceHeader: {"items"}},
		Body:      body,
	}
}

func TestSend(t *testing.T) {
	type received struct {
		method, path, query string
		header              http.Header
		body                []byte
	}
	requests := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- received{r.Method, r.URL.Path, r.URL.RawQuery, r.Header, body}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"42"}`)
	}))
	defer server.Close()

	tracer := mocktracer.New()
	transport := NewTransport(svcconfig.Default().HTTP, Tracer(tracer))

	ctx, cancel := context.WithTimeout(context.Background(), testtime.Second)
	defer cancel()
	res, err := transport.Send(ctx, newRequest(t, "POST", server.URL+"/items?x=1", []byte(`{"name":"x"}`)))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":"42"}`, string(res.Body))

	got := <-requests
	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "/items", got.path)
	assert.Equal(t, "x=1", got.query)
	assert.Equal(t, `{"name":"x"}`, string(got.body))
	assert.Equal(t, "items", got.header.Get(svcclient.ServiceHeader))

	ttl, err := strconv.Atoi(got.header.Get(svcclient.TTLMSHeader))
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= int(testtime.Second/time.Millisecond), "ttl %d", ttl)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "getItem", span.OperationName)
	assert.Equal(t, "items", span.Tag("rpc.service"))
	assert.Equal(t, "caller", span.Tag("rpc.caller"))
	assert.Equal(t, uint16(http.StatusCreated), span.Tag("http.status_code"))
	assert.NotEmpty(t, got.header.Get("Mockpfx-Ids-Traceid"), "trace context is propagated")
}

func TestSendErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"code":"not-found"}`)
	}))
	defer server.Close()

	tracer := mocktracer.New()
	res, err := NewTransport(svcconfig.Default().HTTP, Tracer(tracer)).
		Send(context.Background(), newRequest(t, "GET", server.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, `{"code":"not-found"}`, string(res.Body))

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Nil(t, spans[0].Tag("error"), "client errors do not mark the span")
}

func TestSendFailures(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	transport := NewTransport(svcconfig.Default().HTTP, Tracer(mocktracer.New()))

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*testtime.Millisecond)
		defer cancel()
		_, err := transport.Send(ctx, newRequest(t, "GET", server.URL, nil))
		assert.Equal(t, context.DeadlineExceeded, err)
	})

	t.Run("request timeout", func(t *testing.T) {
		cfg := svcconfig.Default().HTTP
		cfg.RequestTimeout = 20 * testtime.Millisecond
		_, err := NewTransport(cfg, Tracer(mocktracer.New())).
			Send(context.Background(), newRequest(t, "GET", server.URL, nil))
		assert.Equal(t, context.DeadlineExceeded, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		unreachable := httptest.NewServer(http.NotFoundHandler())
		unreachable.Close()
		_, err := transport.Send(context.Background(), newRequest(t, "GET", unreachable.URL, nil))
		assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err))
	})

	t.Run("no URL", func(t *testing.T) {
		_, err := transport.Send(context.Background(), &svcclient.Request{})
		assert.Equal(t, svcerrors.CodeInvalidArgument, svcerrors.CodeOf(err))
	})
}

func TestStop(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))
	defer server.Close()

	transport := NewTransport(svcconfig.Default().HTTP, Tracer(mocktracer.New()))
	done := make(chan error, 1)
	go func() {
		_, err := transport.Send(context.Background(), newRequest(t, "GET", server.URL, nil))
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*testtime.Millisecond)
	defer cancel()
	err := transport.Stop(ctx)
	assert.Equal(t, svcerrors.CodeDeadlineExceeded, svcerrors.CodeOf(err), "a call is still in flight")

	_, err = transport.Send(context.Background(), newRequest(t, "GET", server.URL, nil))
	assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err), "stopped transports reject calls")

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, transport.Stop(context.Background()))
}
