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

// Package svcfactory assembles a ready-to-use Binder from configuration and
// owns everything it needs until Stop.
//
//	f, err := svcfactory.NewFromYAML("orders", file)
//	if err != nil {
//		return err
//	}
//	defer f.Stop()
//
//	items := svcclient.Implement(f.Binder(), itemsDescriptor, newItemsClient)
package svcfactory

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svchttp"
	"go.uber.org/svcclient/svclifecycle"
	"go.uber.org/svcclient/svclocator"
	"go.uber.org/svcclient/svcruntime"
	"go.uber.org/svcclient/svctopic"
	"go.uber.org/svcclient/svcwebsocket"
	"go.uber.org/zap"
)

// Names of the stop hooks a Factory registers, in registration order.
const (
	HTTPTransportHook   = "http-transport"
	WebSocketDialerHook = "websocket-dialer"
	TopicBrokerHook     = "topic-broker"
)

// Option customizes a Factory.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	logger     *zap.Logger
	scope      tally.Scope
	tracer     opentracing.Tracer
	locator    svcclient.ServiceLocator
	resolver   svcclient.Resolver
	lifecycle  []svclifecycle.Option
	loadConfig []svcconfig.Option
}

// Logger replaces the logger built from the logging configuration.
func Logger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) { o.logger = logger })
}

// Scope sets the Tally scope for calls and shutdown.
func Scope(scope tally.Scope) Option {
	return optionFunc(func(o *options) { o.scope = scope })
}

// Tracer sets the tracer for HTTP calls.
func Tracer(tracer opentracing.Tracer) Option {
	return optionFunc(func(o *options) { o.tracer = tracer })
}

// Locator is consulted before the services listed in the configuration.
func Locator(locator svcclient.ServiceLocator) Option {
	return optionFunc(func(o *options) { o.locator = locator })
}

// Resolver replaces svcclient.DefaultResolver.
func Resolver(resolver svcclient.Resolver) Option {
	return optionFunc(func(o *options) { o.resolver = resolver })
}

// LifecycleOptions are passed on to the shutdown manager after the ones
// derived from configuration.
func LifecycleOptions(opts ...svclifecycle.Option) Option {
	return optionFunc(func(o *options) { o.lifecycle = append(o.lifecycle, opts...) })
}

// ConfigOptions are used by NewFromYAML when loading the configuration.
func ConfigOptions(opts ...svcconfig.Option) Option {
	return optionFunc(func(o *options) { o.loadConfig = append(o.loadConfig, opts...) })
}

// Factory owns the transport, stream dialer, topic broker and runtime of a
// process, and the shutdown manager that stops them.
type Factory struct {
	config svcconfig.Config
	logger *zap.Logger

	runtime   *svcruntime.System
	transport *svchttp.Transport
	dialer    *svcwebsocket.Dialer
	broker    *svctopic.Broker

	binder    *svcclient.Binder
	lifecycle *svclifecycle.Manager
}

// New builds a Factory that owns its runtime. Stop shuts the runtime down
// after the other resources.
func New(cfg svcconfig.Config, opts ...Option) (*Factory, error) {
	return build(cfg, nil, opts)
}

// NewWithRuntime builds a Factory on a runtime owned by someone else. Stop
// releases the Factory's resources only and leaves the runtime running.
func NewWithRuntime(cfg svcconfig.Config, runtime *svcruntime.System, opts ...Option) (*Factory, error) {
	if runtime == nil {
		panic("a runtime is required, use New to have the factory own one")
	}
	return build(cfg, runtime, opts)
}

// NewFromYAML loads the configuration from r and builds a Factory with New.
// A non-empty serviceName overrides the configured service name.
func NewFromYAML(serviceName string, r io.Reader, opts ...Option) (*Factory, error) {
	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}
	loadOpts := o.loadConfig
	if serviceName != "" {
		loadOpts = append(loadOpts, svcconfig.ServiceName(serviceName))
	}
	cfg, err := svcconfig.LoadYAML(r, loadOpts...)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

func build(cfg svcconfig.Config, external *svcruntime.System, opts []Option) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = newLogger(cfg.Logging); err != nil {
			return nil, err
		}
	}
	logger = logger.With(zap.String("service", cfg.Service))
	scope := o.scope
	if scope == nil {
		scope = tally.NoopScope
	}

	locator, err := newLocator(cfg, o.locator)
	if err != nil {
		return nil, err
	}

	f := &Factory{config: cfg, logger: logger, runtime: external}
	if f.runtime == nil {
		f.runtime = svcruntime.New(cfg.Service, svcruntime.Logger(logger))
	}

	transportOpts := []svchttp.Option{svchttp.Logger(logger.Named("http"))}
	if o.tracer != nil {
		transportOpts = append(transportOpts, svchttp.Tracer(o.tracer))
	}
	f.transport = svchttp.NewTransport(cfg.HTTP, transportOpts...)

	binderCfg := svcclient.BinderConfig{
		ServiceInfo: svcclient.ServiceInfo{Name: cfg.Service},
		Transport:   f.transport,
		Locator:     locator,
		Resolver:    o.resolver,
		Logger:      logger,
		Scope:       scope,
	}
	if !cfg.WebSocket.Disabled {
		f.dialer = svcwebsocket.NewDialer(cfg.WebSocket, logger.Named("websocket"))
		binderCfg.Streams = f.dialer
	}
	if cfg.Topics.Enabled {
		f.broker = svctopic.NewBroker(f.runtime,
			svctopic.Buffer(cfg.Topics.Buffer),
			svctopic.Logger(logger.Named("topics")),
			svctopic.Scope(scope.SubScope("topics")))
		binderCfg.Topics = f.broker
	}
	f.binder = svcclient.NewBinder(binderCfg)

	lifecycleOpts := append([]svclifecycle.Option{
		svclifecycle.ShutdownTimeout(cfg.Shutdown.Timeout),
		svclifecycle.GraceMargin(cfg.Shutdown.Grace),
		svclifecycle.Logger(logger.Named("lifecycle")),
		svclifecycle.Scope(scope.SubScope("lifecycle")),
	}, o.lifecycle...)
	if external == nil {
		f.lifecycle = svclifecycle.New(f.runtime, lifecycleOpts...)
	} else {
		f.lifecycle = svclifecycle.NewResourceOnly(lifecycleOpts...)
	}

	if err := f.registerStopHooks(); err != nil {
		return nil, err
	}

	logger.Info("Built service client factory.",
		zap.Bool("streams", f.dialer != nil),
		zap.Bool("topics", f.broker != nil),
		zap.Bool("ownsRuntime", external == nil))
	return f, nil
}

func (f *Factory) registerStopHooks() error {
	if err := f.lifecycle.RegisterStopHook(HTTPTransportHook, f.transport.Stop); err != nil {
		return err
	}
	if f.dialer != nil {
		if err := f.lifecycle.RegisterStopHook(WebSocketDialerHook, f.dialer.Stop); err != nil {
			return err
		}
	}
	if f.broker != nil {
		if err := f.lifecycle.RegisterStopHook(TopicBrokerHook, f.broker.Close); err != nil {
			return err
		}
	}
	return nil
}

// newLocator chains the given locator in front of the configured services.
func newLocator(cfg svcconfig.Config, first svcclient.ServiceLocator) (svcclient.ServiceLocator, error) {
	configured, err := svclocator.FromConfig(cfg.Services)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return configured, nil
	}
	return svclocator.Chain{first, configured}, nil
}

// Config is the configuration the Factory was built from.
func (f *Factory) Config() svcconfig.Config { return f.config }

// Logger is the process logger.
func (f *Factory) Logger() *zap.Logger { return f.logger }

// Binder builds clients that use the Factory's resources.
func (f *Factory) Binder() *svcclient.Binder { return f.binder }

// Lifecycle is the shutdown manager. Register further stop hooks on it to
// have them run with the Factory's own.
func (f *Factory) Lifecycle() *svclifecycle.Manager { return f.lifecycle }

// Runtime is the system that background work runs on.
func (f *Factory) Runtime() *svcruntime.System { return f.runtime }

// Topics is the in-process broker, or nil if topics are disabled.
func (f *Factory) Topics() *svctopic.Broker { return f.broker }

// Stop releases every resource and, if the Factory owns it, shuts the
// runtime down. See svclifecycle.Manager.Stop for the outcome.
func (f *Factory) Stop() error {
	err := f.lifecycle.Stop()
	f.logger.Sync()
	return err
}
