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

// Package svcfx provides a svcfactory.Factory to Fx applications and stops
// it with the application.
package svcfx

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/fx"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcfactory"
	"go.uber.org/zap"
)

// Module provides a *svcfactory.Factory and its *svcclient.Binder. It
// requires a svcconfig.Config.
var Module = fx.Options(
	fx.Provide(NewFactory),
)

// Params defines the dependencies of this module.
type Params struct {
	fx.In

	Config    svcconfig.Config
	Lifecycle fx.Lifecycle

	Logger *zap.Logger        `optional:"true"`
	Scope  tally.Scope        `optional:"true"`
	Tracer opentracing.Tracer `optional:"true"`

	// Locator is consulted before the configured services.
	Locator svcclient.ServiceLocator `optional:"true"`
}

// Result defines the values produced by this module.
type Result struct {
	fx.Out

	Factory *svcfactory.Factory
	Binder  *svcclient.Binder
}

// NewFactory builds a Factory and stops it when the application stops.
func NewFactory(p Params) (Result, error) {
	var opts []svcfactory.Option
	if p.Logger != nil {
		opts = append(opts, svcfactory.Logger(p.Logger))
	}
	if p.Scope != nil {
		opts = append(opts, svcfactory.Scope(p.Scope))
	}
	if p.Tracer != nil {
		opts = append(opts, svcfactory.Tracer(p.Tracer))
	}
	if p.Locator != nil {
		opts = append(opts, svcfactory.Locator(p.Locator))
	}

	f, err := svcfactory.New(p.Config, opts...)
	if err != nil {
		return Result{}, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return f.Stop()
		},
	})
	return Result{
		Factory: f,
		Binder:  f.Binder(),
	}, nil
}
