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
	"sync"
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

const (
	_successfulOutbound = "Made outbound call."
	_errorOutbound      = "Error making outbound call."
	_successStreamOpen  = "Successfully created stream."
	_errorStreamOpen    = "Error creating stream."
)

// observer records logs and metrics for every call made by a Binder.
type observer struct {
	logger *zap.Logger
	scope  tally.Scope
	now    func() time.Time

	mu    sync.RWMutex
	edges map[edgeKey]*edge
}

type edgeKey struct{ service, procedure string }

// edge holds the metrics of one service and procedure pair.
type edge struct {
	logger    *zap.Logger
	calls     tally.Counter
	successes tally.Counter
	latency   tally.Timer
	scope     tally.Scope
}

func newObserver(logger *zap.Logger, scope tally.Scope) *observer {
	return &observer{
		logger: logger,
		scope:  scope,
		now:    time.Now,
		edges:  make(map[edgeKey]*edge),
	}
}

func (o *observer) edge(service, procedure string) *edge {
	key := edgeKey{service, procedure}

	o.mu.RLock()
	e, ok := o.edges[key]
	o.mu.RUnlock()
	if ok {
		return e
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.edges[key]; ok {
		return e
	}
	scope := o.scope.Tagged(map[string]string{
		"service":   service,
		"procedure": procedure,
	})
	e = &edge{
		logger:    o.logger.With(zap.String("service", service), zap.String("procedure", procedure)),
		calls:     scope.Counter("calls"),
		successes: scope.Counter("successes"),
		latency:   scope.Timer("latency"),
		scope:     scope,
	}
	o.edges[key] = e
	return e
}

// begin starts observing a call.
func (o *observer) begin(service, procedure string) call {
	e := o.edge(service, procedure)
	e.calls.Inc(1)
	return call{edge: e, started: o.now(), now: o.now}
}

// A call is a single observed request along an edge.
type call struct {
	edge    *edge
	started time.Time
	now     func() time.Time
}

func (c call) End(err error, fields ...zap.Field) {
	c.end(err, _successfulOutbound, _errorOutbound, fields...)
}

func (c call) EndStreamOpen(err error, fields ...zap.Field) {
	c.end(err, _successStreamOpen, _errorStreamOpen, fields...)
}

func (c call) end(err error, successMsg, errorMsg string, fields ...zap.Field) {
	elapsed := c.now().Sub(c.started)
	c.edge.latency.Record(elapsed)

	fields = append(fields, zap.Duration("latency", elapsed))
	if err == nil {
		c.edge.successes.Inc(1)
		c.edge.logger.Debug(successMsg, fields...)
		return
	}

	st := svcerrors.FromError(err)
	fault := svcerrors.FaultOf(st)
	c.edge.scope.Tagged(map[string]string{
		"error": st.Code().String(),
		"fault": fault.String(),
	}).Counter("failures").Inc(1)

	fields = append(fields,
		zap.Error(err),
		zap.String("errorCode", st.Code().String()),
		zap.String("errorFault", fault.String()),
	)
	if st.Name() != "" {
		fields = append(fields, zap.String("errorName", st.Name()))
	}
	if fault == svcerrors.ServerFault {
		c.edge.logger.Warn(errorMsg, fields...)
		return
	}
	c.edge.logger.Info(errorMsg, fields...)
}
