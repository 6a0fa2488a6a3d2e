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
	"context"
	"fmt"
)

// TopicFactory creates handles for topics declared by descriptors.
type TopicFactory interface {
	Topic(TopicDescriptor) (Topic, error)
}

// Topic is a handle for publishing to and subscribing on a topic.
type Topic interface {
	// ID is the broker-level identifier of the topic.
	ID() string

	Publish(ctx context.Context, message interface{}) error

	// Subscribe delivers every message published after the call to exactly
	// one subscriber of the group.
	Subscribe(group string, handler MessageHandler) (Subscription, error)
}

// MessageHandler handles a single topic message.
type MessageHandler func(context.Context, Message) error

// Subscription is an active subscription.
type Subscription interface {
	// Close stops delivery to the subscription.
	Close() error
}

// Message is a message received from a topic.
type Message struct {
	topic   string
	payload []byte
	codec   Serializer
}

// NewMessage builds a Message for delivery. Brokers call this.
func NewMessage(topicID string, payload []byte, codec Serializer) Message {
	return Message{topic: topicID, payload: payload, codec: codec}
}

// TopicID is the topic the message was published to.
func (m Message) TopicID() string { return m.topic }

// Payload is the encoded message.
func (m Message) Payload() []byte { return m.payload }

// Decode decodes the payload into out.
func (m Message) Decode(out interface{}) error {
	if m.codec == nil {
		return fmt.Errorf("message on topic %q has no serializer", m.topic)
	}
	return m.codec.Unmarshal(m.payload, out)
}

// BindTopic returns a handle for the named topic of d.
//
// It fails with an UnknownTopicError if d has no such topic and with
// ErrBrokerUnavailable if factory is nil.
func BindTopic(d *Descriptor, name string, factory TopicFactory) (Topic, error) {
	td, ok := d.Topic(name)
	if !ok {
		return nil, &UnknownTopicError{Service: d.Name(), Topic: name}
	}
	if factory == nil {
		return nil, fmt.Errorf("topic %q of service %q: %w", name, d.Name(), ErrBrokerUnavailable)
	}
	return factory.Topic(td)
}
