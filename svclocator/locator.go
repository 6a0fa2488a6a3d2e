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

// Package svclocator finds services by name.
package svclocator

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcconfig"
)

// Static maps every service to a single base URL.
type Static map[string]*url.URL

var _ svcclient.ServiceLocator = Static(nil)

// NewStatic parses a map of service names to base URLs.
func NewStatic(urls map[string]string) (Static, error) {
	s := make(Static, len(urls))
	var err error
	for name, raw := range urls {
		u, perr := url.Parse(raw)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("service %q: %v", name, perr))
			continue
		}
		s[name] = u
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Locate returns the URL of the service.
func (s Static) Locate(_ context.Context, service string) (*url.URL, bool, error) {
	u, ok := s[service]
	return u, ok, nil
}

// RoundRobin rotates over several base URLs per service.
type RoundRobin struct {
	services map[string]*ring
}

type ring struct {
	urls []*url.URL
	next atomic.Uint64
}

var _ svcclient.ServiceLocator = (*RoundRobin)(nil)

// NewRoundRobin builds a RoundRobin from parsed URLs. Services without URLs
// are not located.
func NewRoundRobin(services map[string][]*url.URL) *RoundRobin {
	rr := &RoundRobin{services: make(map[string]*ring, len(services))}
	for name, urls := range services {
		if len(urls) == 0 {
			continue
		}
		rr.services[name] = &ring{urls: append([]*url.URL(nil), urls...)}
	}
	return rr
}

// FromConfig builds a RoundRobin from the services section of a
// configuration.
func FromConfig(services map[string]svcconfig.Service) (*RoundRobin, error) {
	parsed := make(map[string][]*url.URL, len(services))
	var err error
	for name, svc := range services {
		for _, raw := range svc.URLs {
			u, perr := url.Parse(raw)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("service %q: %v", name, perr))
				continue
			}
			parsed[name] = append(parsed[name], u)
		}
	}
	if err != nil {
		return nil, err
	}
	return NewRoundRobin(parsed), nil
}

// Locate returns the next URL of the service.
func (rr *RoundRobin) Locate(_ context.Context, service string) (*url.URL, bool, error) {
	r, ok := rr.services[service]
	if !ok {
		return nil, false, nil
	}
	i := r.next.Inc() - 1
	return r.urls[i%uint64(len(r.urls))], true, nil
}

// Chain asks each locator in turn and returns the first one that knows the
// service. Errors stop the search.
type Chain []svcclient.ServiceLocator

var _ svcclient.ServiceLocator = Chain(nil)

// Locate returns the first match.
func (c Chain) Locate(ctx context.Context, service string) (*url.URL, bool, error) {
	for _, l := range c {
		u, ok, err := l.Locate(ctx, service)
		if err != nil || ok {
			return u, ok, err
		}
	}
	return nil, false, nil
}
