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

// Package svchttp sends unary service calls over HTTP.
package svchttp

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	opentracinglog "github.com/opentracing/opentracing-go/log"
	"go.uber.org/atomic"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

var _ svcclient.Transport = (*Transport)(nil)

// Option customizes a Transport.
type Option interface {
	apply(*Transport)
}

type optionFunc func(*Transport)

func (f optionFunc) apply(t *Transport) { f(t) }

// Tracer sets the tracer for outgoing calls. Defaults to the global tracer.
func Tracer(tracer opentracing.Tracer) Option {
	return optionFunc(func(t *Transport) { t.tracer = tracer })
}

// Logger sets the transport's logger.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(t *Transport) { t.logger = logger })
}

// Client replaces the HTTP client built from configuration.
func Client(client *http.Client) Option {
	return optionFunc(func(t *Transport) { t.client = client })
}

// Transport sends requests with a shared net/http client. It is safe for
// concurrent use.
type Transport struct {
	client         *http.Client
	requestTimeout time.Duration
	tracer         opentracing.Tracer
	logger         *zap.Logger

	// mu guards stopping against new calls joining inflight.
	mu       sync.RWMutex
	stopping atomic.Bool
	inflight sync.WaitGroup
}

// NewTransport builds a Transport from cfg.
func NewTransport(cfg svcconfig.HTTP, opts ...Option) *Transport {
	t := &Transport{
		requestTimeout: cfg.RequestTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(t)
	}
	if t.client == nil {
		t.client = buildClient(cfg)
	}
	return t
}

func buildClient(cfg svcconfig.HTTP) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.DialTimeout,
				KeepAlive: cfg.KeepAlive,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
		},
	}
}

// Send makes the HTTP request. Non-2xx responses are returned, not turned
// into errors.
func (t *Transport) Send(ctx context.Context, req *svcclient.Request) (*svcclient.Response, error) {
	if req == nil || req.URL == nil {
		return nil, svcerrors.InvalidArgumentErrorf("request for http transport has no URL")
	}
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.inflight.Done()

	if _, ok := ctx.Deadline(); !ok && t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	hreq, err := http.NewRequest(req.Method, req.URL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, svcerrors.InvalidArgumentErrorf("invalid request for %q: %v", req.Procedure, err)
	}
	hreq.Header = req.Header.Clone()
	if hreq.Header == nil {
		hreq.Header = make(http.Header)
	}
	if deadline, ok := ctx.Deadline(); ok {
		ttl := deadline.Sub(start)
		hreq.Header.Set(svcclient.TTLMSHeader, strconv.FormatInt(int64(ttl/time.Millisecond), 10))
	}

	ctx, span := t.startSpan(ctx, hreq, req, start)
	defer span.Finish()

	res, err := t.roundTrip(ctx, hreq)
	if err != nil {
		ext.Error.Set(span, true)
		span.LogFields(opentracinglog.String("event", err.Error()))
		return nil, err
	}
	ext.HTTPStatusCode.Set(span, uint16(res.StatusCode))
	if res.StatusCode >= 500 {
		ext.Error.Set(span, true)
	}
	return res, nil
}

func (t *Transport) enter() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stopping.Load() {
		return svcerrors.UnavailableErrorf("http transport is stopped")
	}
	t.inflight.Add(1)
	return nil
}

func (t *Transport) roundTrip(ctx context.Context, hreq *http.Request) (*svcclient.Response, error) {
	hres, err := t.client.Do(hreq.WithContext(ctx))
	if err != nil {
		// Prefer the context's error over the client's wrapped one.
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}
		switch err {
		case context.DeadlineExceeded, context.Canceled:
			return nil, err
		}
		return nil, svcerrors.Wrap(svcerrors.CodeUnavailable, err)
	}
	defer hres.Body.Close()

	body, err := io.ReadAll(hres.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, svcerrors.Wrap(svcerrors.CodeUnavailable, err)
	}
	return &svcclient.Response{
		StatusCode: hres.StatusCode,
		Header:     hres.Header,
		Body:       body,
	}, nil
}

func (t *Transport) startSpan(
	ctx context.Context,
	hreq *http.Request,
	req *svcclient.Request,
	start time.Time,
) (context.Context, opentracing.Span) {
	tracer := t.tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	var parent opentracing.SpanContext
	if parentSpan := opentracing.SpanFromContext(ctx); parentSpan != nil {
		parent = parentSpan.Context()
	}
	span := tracer.StartSpan(
		req.Procedure,
		opentracing.StartTime(start),
		opentracing.ChildOf(parent),
		opentracing.Tags{
			"rpc.caller":    req.Caller,
			"rpc.service":   req.Service,
			"rpc.transport": "http",
		},
	)
	ext.PeerService.Set(span, req.Service)
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPMethod.Set(span, hreq.Method)
	ext.HTTPUrl.Set(span, hreq.URL.String())

	if err := tracer.Inject(
		span.Context(),
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(hreq.Header),
	); err != nil {
		t.logger.Debug("Failed to inject tracing headers.", zap.Error(err))
	}
	return opentracing.ContextWithSpan(ctx, span), span
}

// Stop rejects new calls, waits for calls in flight to finish and closes
// idle connections. It fails if ctx expires first.
func (t *Transport) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopping.Store(true)
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	defer t.client.CloseIdleConnections()
	select {
	case <-done:
		t.logger.Debug("Stopped HTTP transport.")
		return nil
	case <-ctx.Done():
		return svcerrors.DeadlineExceededErrorf("http transport has calls in flight: %v", ctx.Err())
	}
}
