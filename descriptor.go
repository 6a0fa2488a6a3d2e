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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/svcclient/svcencoding"
)

// Serializer and ErrorSerializer are re-exported so that descriptors can be
// declared without importing svcencoding.
type (
	Serializer      = svcencoding.Serializer
	ErrorSerializer = svcencoding.ErrorSerializer
	ErrorBody       = svcencoding.ErrorBody
)

// CallKind distinguishes request/response calls from streamed calls.
type CallKind int

const (
	// Unary calls send one request and receive one response.
	Unary CallKind = iota

	// Streamed calls open a bidirectional message stream.
	Streamed
)

func (k CallKind) String() string {
	switch k {
	case Unary:
		return "unary"
	case Streamed:
		return "streamed"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// CallDescriptor describes one remote call of a service.
type CallDescriptor struct {
	Name   string
	Method string
	Path   PathTemplate
	Kind   CallKind

	// Request encodes the request body. Calls without one send no body.
	Request Serializer

	// Response decodes successful response bodies. Calls without one
	// ignore the body.
	Response Serializer

	// Errors decodes failed responses. It is filled in by a Resolver.
	Errors ErrorSerializer

	// Headers are sent with every request of this call.
	Headers http.Header
}

// CallOption customizes a CallDescriptor built by RestCall or StreamCall.
type CallOption func(*CallDescriptor)

// WithRequestSerializer sets the request body serializer.
func WithRequestSerializer(s Serializer) CallOption {
	return func(c *CallDescriptor) { c.Request = s }
}

// WithResponseSerializer sets the response body serializer.
func WithResponseSerializer(s Serializer) CallOption {
	return func(c *CallDescriptor) { c.Response = s }
}

// WithErrorSerializer pins the error serializer of a call so that
// resolution leaves it alone.
func WithErrorSerializer(s ErrorSerializer) CallOption {
	return func(c *CallDescriptor) { c.Errors = s }
}

// WithStaticHeader adds a header sent with every request of the call.
func WithStaticHeader(key, value string) CallOption {
	return func(c *CallDescriptor) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Add(key, value)
	}
}

// RestCall declares a unary call from a pattern of the form
//
//	GET /items/{id}?page
//
// The verb is optional. Without one the call uses POST if it has a request
// serializer and GET otherwise. Responses decode as JSON unless a response
// serializer is given.
func RestCall(name, pattern string, opts ...CallOption) CallDescriptor {
	method, path := splitPattern(pattern)
	c := CallDescriptor{
		Name:     name,
		Method:   method,
		Path:     templateOf(path),
		Kind:     Unary,
		Response: svcencoding.JSON,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.Method == "" {
		c.Method = http.MethodGet
		if c.Request != nil {
			c.Method = http.MethodPost
		}
	}
	return c
}

// StreamCall declares a streamed call. Messages in both directions use JSON
// unless serializers are given.
func StreamCall(name, path string, opts ...CallOption) CallDescriptor {
	c := CallDescriptor{
		Name:     name,
		Method:   http.MethodGet,
		Path:     templateOf(path),
		Kind:     Streamed,
		Request:  svcencoding.JSON,
		Response: svcencoding.JSON,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func splitPattern(pattern string) (method, path string) {
	pattern = strings.TrimSpace(pattern)
	if i := strings.IndexByte(pattern, ' '); i > 0 && !strings.HasPrefix(pattern, "/") {
		return strings.ToUpper(pattern[:i]), strings.TrimSpace(pattern[i+1:])
	}
	return "", pattern
}

// TopicDescriptor describes a publish/subscribe topic of a service.
type TopicDescriptor struct {
	Name    string
	ID      string
	Message Serializer
	Errors  ErrorSerializer
}

// NewTopic declares a topic whose messages use the given serializer, or JSON
// if it is nil.
func NewTopic(name, id string, message Serializer) TopicDescriptor {
	if message == nil {
		message = svcencoding.JSON
	}
	return TopicDescriptor{Name: name, ID: id, Message: message}
}

// Descriptor is the immutable description of a remote service: its name,
// its calls and its topics.
type Descriptor struct {
	name   string
	calls  []CallDescriptor
	topics []TopicDescriptor

	callIndex  map[string]int
	topicIndex map[string]int
}

// DescriptorOption adds entries to a Descriptor.
type DescriptorOption func(*descriptorBuilder)

type descriptorBuilder struct {
	calls  []CallDescriptor
	topics []TopicDescriptor
}

// WithCall adds calls to the descriptor.
func WithCall(calls ...CallDescriptor) DescriptorOption {
	return func(b *descriptorBuilder) { b.calls = append(b.calls, calls...) }
}

// WithTopic adds topics to the descriptor.
func WithTopic(topics ...TopicDescriptor) DescriptorOption {
	return func(b *descriptorBuilder) { b.topics = append(b.topics, topics...) }
}

// NewDescriptor builds a Descriptor for the named service.
func NewDescriptor(name string, opts ...DescriptorOption) (*Descriptor, error) {
	if name == "" {
		return nil, errors.New("a service name is required")
	}

	var b descriptorBuilder
	for _, opt := range opts {
		opt(&b)
	}

	d := &Descriptor{
		name:       name,
		calls:      b.calls,
		topics:     b.topics,
		callIndex:  make(map[string]int, len(b.calls)),
		topicIndex: make(map[string]int, len(b.topics)),
	}

	var err error
	for i, c := range d.calls {
		switch {
		case c.Name == "":
			err = multierr.Append(err, fmt.Errorf("call %d of service %q has no name", i, name))
			continue
		case c.Path.String() == "":
			err = multierr.Append(err, fmt.Errorf("call %q of service %q has no path", c.Name, name))
		case c.Path.err != nil:
			err = multierr.Append(err, fmt.Errorf("call %q of service %q: %v", c.Name, name, c.Path.err))
		}
		if _, ok := d.callIndex[c.Name]; ok {
			err = multierr.Append(err, fmt.Errorf("call %q of service %q is declared more than once", c.Name, name))
			continue
		}
		d.callIndex[c.Name] = i
	}
	for i, t := range d.topics {
		if t.Name == "" {
			err = multierr.Append(err, fmt.Errorf("topic %d of service %q has no name", i, name))
			continue
		}
		if _, ok := d.topicIndex[t.Name]; ok {
			err = multierr.Append(err, fmt.Errorf("topic %q of service %q is declared more than once", t.Name, name))
			continue
		}
		d.topicIndex[t.Name] = i
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on error. It is meant for
// package-level descriptor declarations.
func MustDescriptor(name string, opts ...DescriptorOption) *Descriptor {
	d, err := NewDescriptor(name, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name is the name under which the service is located.
func (d *Descriptor) Name() string { return d.name }

// Calls returns a copy of the call list in declared order.
func (d *Descriptor) Calls() []CallDescriptor {
	return append([]CallDescriptor(nil), d.calls...)
}

// Topics returns a copy of the topic list in declared order.
func (d *Descriptor) Topics() []TopicDescriptor {
	return append([]TopicDescriptor(nil), d.topics...)
}

// Call looks up a call by name.
func (d *Descriptor) Call(name string) (CallDescriptor, bool) {
	i, ok := d.callIndex[name]
	if !ok {
		return CallDescriptor{}, false
	}
	return d.calls[i], true
}

// Topic looks up a topic by name.
func (d *Descriptor) Topic(name string) (TopicDescriptor, bool) {
	i, ok := d.topicIndex[name]
	if !ok {
		return TopicDescriptor{}, false
	}
	return d.topics[i], true
}

// Resolved reports whether every call and topic has an error serializer.
func (d *Descriptor) Resolved() bool {
	for _, c := range d.calls {
		if c.Errors == nil {
			return false
		}
	}
	for _, t := range d.topics {
		if t.Errors == nil {
			return false
		}
	}
	return true
}
