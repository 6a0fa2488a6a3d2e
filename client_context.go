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

// ClientContext hands a client constructor the calls and topics of one
// resolved descriptor. It is immutable and safe for concurrent use.
type ClientContext struct {
	descriptor *Descriptor
	calls      map[string]callBinder
	topics     map[string]topicBinder
}

type (
	callBinder  func(args []interface{}) (*ServiceCall, error)
	topicBinder func() (Topic, error)
)

func newClientContext(resolved *Descriptor, deps CallDeps, topics TopicFactory) *ClientContext {
	cc := &ClientContext{
		descriptor: resolved,
		calls:      make(map[string]callBinder, len(resolved.calls)),
		topics:     make(map[string]topicBinder, len(resolved.topics)),
	}
	for _, c := range resolved.calls {
		name := c.Name
		cc.calls[name] = func(args []interface{}) (*ServiceCall, error) {
			return BindCall(resolved, name, args, deps)
		}
	}
	for _, t := range resolved.topics {
		name := t.Name
		cc.topics[name] = func() (Topic, error) {
			return BindTopic(resolved, name, topics)
		}
	}
	return cc
}

// Descriptor is the resolved descriptor the context was built from.
func (cc *ClientContext) Descriptor() *Descriptor { return cc.descriptor }

// ServiceCall binds the named call to args. Every invocation binds afresh.
func (cc *ClientContext) ServiceCall(method string, args ...interface{}) (*ServiceCall, error) {
	bind, ok := cc.calls[method]
	if !ok {
		return nil, &UnknownMethodError{Service: cc.descriptor.Name(), Method: method}
	}
	return bind(args)
}

// MustServiceCall is like ServiceCall but panics on error. Generated
// clients whose calls are checked against the descriptor use it.
func (cc *ClientContext) MustServiceCall(method string, args ...interface{}) *ServiceCall {
	call, err := cc.ServiceCall(method, args...)
	if err != nil {
		panic(err)
	}
	return call
}

// Topic returns a handle for the named topic.
func (cc *ClientContext) Topic(name string) (Topic, error) {
	bind, ok := cc.topics[name]
	if !ok {
		return nil, &UnknownTopicError{Service: cc.descriptor.Name(), Topic: name}
	}
	return bind()
}
