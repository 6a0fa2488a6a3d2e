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
	"sync"

	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

// Stream is an open streamed call. Messages sent are encoded with the
// call's request serializer and messages received are decoded with its
// response serializer.
type Stream struct {
	conn     StreamConn
	request  Serializer
	response Serializer

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// Stream opens a stream for a streamed call.
func (c *ServiceCall) Stream(ctx context.Context) (_ *Stream, err error) {
	if c.desc.Kind != Streamed {
		return nil, svcerrors.Newf(svcerrors.CodeFailedPrecondition,
			"call %q of service %q is %v, use Invoke", c.desc.Name, c.service, c.desc.Kind)
	}
	if c.deps.Streams == nil {
		return nil, svcerrors.Newf(svcerrors.CodeUnavailable,
			"no stream dialer is configured for call %q of service %q", c.desc.Name, c.service)
	}

	obs := c.observer.begin(c.service, c.desc.Name)
	var target string
	defer func() { obs.EndStreamOpen(err, zap.String("url", target)) }()

	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	target = req.URL.String()
	conn, err := c.deps.Streams.DialStream(ctx, req)
	if err != nil {
		return nil, c.transportError(err)
	}

	return &Stream{
		conn:     conn,
		request:  c.desc.Request,
		response: c.desc.Response,
	}, nil
}

// Send encodes and sends a message.
func (s *Stream) Send(msg interface{}) error {
	b, err := s.request.Marshal(msg)
	if err != nil {
		return svcerrors.Newf(svcerrors.CodeInvalidArgument, "failed to encode stream message: %v", err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.Send(b)
}

// Receive waits for the next message and decodes it into out.
func (s *Stream) Receive(out interface{}) error {
	s.recvMu.Lock()
	b, err := s.conn.Receive()
	s.recvMu.Unlock()
	if err != nil {
		return err
	}
	if err := s.response.Unmarshal(b, out); err != nil {
		return svcerrors.Newf(svcerrors.CodeInvalidArgument, "failed to decode stream message: %v", err)
	}
	return nil
}

// Close closes the stream.
func (s *Stream) Close() error {
	return s.conn.Close()
}
