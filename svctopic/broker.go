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

// Package svctopic is an in-process message broker for descriptor topics.
//
// Every message published to a topic is delivered once to each subscriber
// group, to one subscriber of the group chosen round robin. Delivery runs on
// a runtime such as svcruntime.System.
package svctopic

import (
	"context"
	"errors"
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcencoding"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = svcerrors.Newf(svcerrors.CodeUnavailable, "message broker is closed")

// Runner runs background work. *svcruntime.System is a Runner.
type Runner interface {
	Go(func(ctx context.Context) error) error
}

// Option customizes a Broker.
type Option func(*Broker)

// Buffer sets how many undelivered messages each group holds before Publish
// blocks.
func Buffer(n int) Option {
	return func(b *Broker) { b.buffer = n }
}

// Logger sets the logger for delivery failures.
func Logger(logger *zap.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// Scope sets a Tally scope for broker metrics.
func Scope(scope tally.Scope) Option {
	return func(b *Broker) { b.scope = scope }
}

// Broker is a svcclient.TopicFactory that delivers messages in process.
type Broker struct {
	runner Runner
	buffer int
	logger *zap.Logger
	scope  tally.Scope

	mu     sync.Mutex
	closed bool
	topics map[string]*topic

	deliveries sync.WaitGroup
}

var _ svcclient.TopicFactory = (*Broker)(nil)

// NewBroker builds a Broker that delivers on runner.
func NewBroker(runner Runner, opts ...Option) *Broker {
	b := &Broker{
		runner: runner,
		buffer: 64,
		logger: zap.NewNop(),
		scope:  tally.NoopScope,
		topics: make(map[string]*topic),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Topic returns the topic with the descriptor's ID, creating it on first
// use. Descriptors sharing an ID share the topic.
func (b *Broker) Topic(td svcclient.TopicDescriptor) (svcclient.Topic, error) {
	if td.ID == "" {
		return nil, svcerrors.InvalidArgumentErrorf("topic %q has no ID", td.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	t, ok := b.topics[td.ID]
	if !ok {
		codec := td.Message
		if codec == nil {
			codec = svcencoding.JSON
		}
		scope := b.scope.Tagged(map[string]string{"topic": td.ID})
		t = &topic{
			broker:    b,
			id:        td.ID,
			codec:     codec,
			groups:    make(map[string]*group),
			scope:     scope,
			published: scope.Counter("published"),
		}
		b.topics[td.ID] = t
	}
	return t, nil
}

// Close stops accepting messages, lets queued messages drain and waits for
// delivery to finish or ctx to expire.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := make([]*topic, 0, len(b.topics))
	for _, t := range b.topics {
		topics = append(topics, t)
	}
	b.mu.Unlock()

	for _, t := range topics {
		t.close()
	}

	done := make(chan struct{})
	go func() {
		b.deliveries.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return svcerrors.DeadlineExceededErrorf("message broker did not drain in time: %v", ctx.Err())
	}
}

func (b *Broker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type topic struct {
	broker    *Broker
	id        string
	codec     svcencoding.Serializer
	scope     tally.Scope
	published tally.Counter

	mu     sync.RWMutex
	groups map[string]*group
}

func (t *topic) ID() string { return t.id }

// Publish hands the message to every subscriber group. It blocks while a
// group's buffer is full.
func (t *topic) Publish(ctx context.Context, message interface{}) error {
	payload, err := t.codec.Marshal(message)
	if err != nil {
		return svcerrors.InvalidArgumentErrorf("failed to encode message for topic %q: %v", t.id, err)
	}
	if t.broker.isClosed() {
		return ErrClosed
	}

	t.mu.RLock()
	groups := make([]*group, 0, len(t.groups))
	for _, g := range t.groups {
		groups = append(groups, g)
	}
	t.mu.RUnlock()

	for _, g := range groups {
		if err := g.enqueue(ctx, payload); err != nil {
			return err
		}
	}
	t.published.Inc(1)
	return nil
}

// Subscribe adds handler to the named group, starting the group's delivery
// on first use.
func (t *topic) Subscribe(name string, handler svcclient.MessageHandler) (svcclient.Subscription, error) {
	if handler == nil {
		return nil, svcerrors.InvalidArgumentErrorf("a handler is required to subscribe to topic %q", t.id)
	}

	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	if t.broker.closed {
		return nil, ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[name]
	if !ok {
		g = t.newGroup(name)
		t.broker.deliveries.Add(1)
		err := t.broker.runner.Go(func(ctx context.Context) error {
			defer t.broker.deliveries.Done()
			g.deliver(ctx)
			return nil
		})
		if err != nil {
			t.broker.deliveries.Done()
			return nil, svcerrors.Wrap(svcerrors.CodeUnavailable, err)
		}
		t.groups[name] = g
	}
	return g.add(handler), nil
}

func (t *topic) close() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, g := range t.groups {
		g.close()
	}
}

func (t *topic) newGroup(name string) *group {
	scope := t.scope.Tagged(map[string]string{"group": name})
	return &group{
		topic:     t,
		name:      name,
		queue:     make(chan []byte, t.broker.buffer),
		logger:    t.broker.logger.With(zap.String("topic", t.id), zap.String("group", name)),
		delivered: scope.Counter("delivered"),
		failures:  scope.Counter("delivery_failures"),
		dropped:   scope.Counter("dropped"),
	}
}

// group is a set of subscribers that share the topic's messages.
type group struct {
	topic  *topic
	name   string
	logger *zap.Logger

	delivered tally.Counter
	failures  tally.Counter
	dropped   tally.Counter

	// queueMu guards sends on queue against close.
	queueMu sync.RWMutex
	closed  bool
	queue   chan []byte

	subsMu sync.RWMutex
	subs   []*subscription
	next   atomic.Uint64
}

func (g *group) enqueue(ctx context.Context, payload []byte) error {
	g.queueMu.RLock()
	defer g.queueMu.RUnlock()
	if g.closed {
		return ErrClosed
	}
	select {
	case g.queue <- payload:
		return nil
	case <-ctx.Done():
		return svcerrors.Wrap(svcerrors.CodeDeadlineExceeded, ctx.Err())
	}
}

func (g *group) close() {
	g.queueMu.Lock()
	defer g.queueMu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.queue)
	}
}

func (g *group) add(handler svcclient.MessageHandler) *subscription {
	s := &subscription{group: g, handler: handler}
	g.subsMu.Lock()
	g.subs = append(g.subs, s)
	g.subsMu.Unlock()
	return s
}

func (g *group) remove(s *subscription) {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	for i, sub := range g.subs {
		if sub == s {
			g.subs = append(g.subs[:i:i], g.subs[i+1:]...)
			return
		}
	}
}

// pick chooses the next subscriber, or nil if there are none.
func (g *group) pick() *subscription {
	g.subsMu.RLock()
	defer g.subsMu.RUnlock()
	if len(g.subs) == 0 {
		return nil
	}
	i := g.next.Inc() - 1
	return g.subs[i%uint64(len(g.subs))]
}

// deliver hands queued messages to subscribers until the queue is closed
// and drained or ctx is cancelled.
func (g *group) deliver(ctx context.Context) {
	for {
		select {
		case payload, ok := <-g.queue:
			if !ok {
				return
			}
			g.dispatch(ctx, payload)
		case <-ctx.Done():
			return
		}
	}
}

func (g *group) dispatch(ctx context.Context, payload []byte) {
	sub := g.pick()
	if sub == nil {
		g.dropped.Inc(1)
		g.logger.Debug("Dropped message for group without subscribers.")
		return
	}

	msg := svcclient.NewMessage(g.topic.id, payload, g.topic.codec)
	if err := sub.handle(ctx, msg); err != nil {
		g.failures.Inc(1)
		g.logger.Warn("Subscriber failed to handle message.", zap.Error(err))
		return
	}
	g.delivered.Inc(1)
}

type subscription struct {
	group   *group
	handler svcclient.MessageHandler
	closed  atomic.Bool
}

func (s *subscription) handle(ctx context.Context, msg svcclient.Message) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = svcerrors.InternalErrorf("subscriber panicked: %v", v)
		}
	}()
	return s.handler(ctx, msg)
}

// Close removes the subscription from its group.
func (s *subscription) Close() error {
	if !s.closed.CAS(false, true) {
		return errors.New("subscription already closed")
	}
	s.group.remove(s)
	return nil
}
