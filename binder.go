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
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// BinderConfig configures a Binder.
type BinderConfig struct {
	// ServiceInfo identifies the calling service. An instance ID is
	// generated if it has none.
	ServiceInfo ServiceInfo

	Transport Transport
	Locator   ServiceLocator

	// Topics is optional. Without it binding a topic fails with
	// ErrBrokerUnavailable.
	Topics TopicFactory

	// Streams is optional. Without it streamed calls cannot be opened.
	Streams StreamDialer

	// Resolver defaults to DefaultResolver.
	Resolver Resolver

	Logger *zap.Logger
	Scope  tally.Scope
}

// Binder constructs clients from descriptors. It is safe for concurrent
// use and is usually shared by the whole process.
type Binder struct {
	info     ServiceInfo
	resolver Resolver
	topics   TopicFactory
	deps     CallDeps
	logger   *zap.Logger
}

// NewBinder builds a Binder.
//
// It panics if the configuration has no service name, transport or locator.
func NewBinder(cfg BinderConfig) *Binder {
	if cfg.ServiceInfo.Name == "" {
		panic("a service name is required")
	}
	if cfg.Transport == nil {
		panic("a transport is required")
	}
	if cfg.Locator == nil {
		panic("a service locator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := cfg.Scope
	if scope == nil {
		scope = tally.NoopScope
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = DefaultResolver
	}

	info := cfg.ServiceInfo.withDefaults()
	logger = logger.With(zap.String("caller", info.Name))
	return &Binder{
		info:     info,
		resolver: resolver,
		topics:   cfg.Topics,
		logger:   logger,
		deps: CallDeps{
			ServiceInfo: info,
			Transport:   cfg.Transport,
			Locator:     cfg.Locator,
			Streams:     cfg.Streams,
			Logger:      logger,
			Scope:       scope,
			observer:    newObserver(logger, scope),
		},
	}
}

// ServiceInfo is the identity attached to every request.
func (b *Binder) ServiceInfo() ServiceInfo { return b.info }

// Resolve resolves d with the Binder's resolver.
func (b *Binder) Resolve(d *Descriptor) *Descriptor { return b.resolver.Resolve(d) }

// BindCall binds a call of d with the Binder's capabilities.
func (b *Binder) BindCall(d *Descriptor, method string, args ...interface{}) (*ServiceCall, error) {
	return BindCall(b.resolver.Resolve(d), method, args, b.deps)
}

// BindTopic binds a topic of d with the Binder's topic factory.
func (b *Binder) BindTopic(d *Descriptor, name string) (Topic, error) {
	return BindTopic(b.resolver.Resolve(d), name, b.topics)
}

// NewClientContext resolves d and returns a fresh context for it.
func (b *Binder) NewClientContext(d *Descriptor) *ClientContext {
	resolved := b.resolver.Resolve(d)
	b.logger.Debug("Implementing client.",
		zap.String("service", resolved.Name()),
		zap.Int("calls", len(resolved.calls)),
		zap.Int("topics", len(resolved.topics)))
	return newClientContext(resolved, b.deps, b.topics)
}

// Implement resolves d and hands a fresh ClientContext to construct, which
// builds the client.
//
//	type ItemsClient struct{ cc *svcclient.ClientContext }
//
//	items := svcclient.Implement(binder, itemsDescriptor,
//	  func(cc *svcclient.ClientContext) *ItemsClient {
//	    return &ItemsClient{cc: cc}
//	  })
func Implement[S any](b *Binder, d *Descriptor, construct func(*ClientContext) S) S {
	return construct(b.NewClientContext(d))
}
