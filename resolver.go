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

import "go.uber.org/svcclient/svcencoding"

// Resolver fills in metadata a Descriptor leaves open. Resolution is pure
// and idempotent: resolving a resolved descriptor yields an equal one.
type Resolver interface {
	Resolve(*Descriptor) *Descriptor
}

// DefaultResolver attaches the JSON error serializer.
var DefaultResolver = NewResolver(svcencoding.JSONErrors)

// NewResolver returns a Resolver that gives every call and topic without an
// error serializer the provided one.
func NewResolver(defaultErrors ErrorSerializer) Resolver {
	if defaultErrors == nil {
		defaultErrors = svcencoding.JSONErrors
	}
	return resolver{errors: defaultErrors}
}

type resolver struct {
	errors ErrorSerializer
}

func (r resolver) Resolve(d *Descriptor) *Descriptor {
	resolved := &Descriptor{
		name:       d.name,
		calls:      make([]CallDescriptor, len(d.calls)),
		topics:     make([]TopicDescriptor, len(d.topics)),
		callIndex:  make(map[string]int, len(d.callIndex)),
		topicIndex: make(map[string]int, len(d.topicIndex)),
	}
	for i, c := range d.calls {
		if c.Errors == nil {
			c.Errors = r.errors
		}
		if c.Headers != nil {
			c.Headers = c.Headers.Clone()
		}
		resolved.calls[i] = c
	}
	for i, t := range d.topics {
		if t.Errors == nil {
			t.Errors = r.errors
		}
		resolved.topics[i] = t
	}
	for k, v := range d.callIndex {
		resolved.callIndex[k] = v
	}
	for k, v := range d.topicIndex {
		resolved.topicIndex[k] = v
	}
	return resolved
}
