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

// Package svcwebsocket opens streamed calls as WebSocket connections.
package svcwebsocket

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

var _ svcclient.StreamDialer = (*Dialer)(nil)

// closeWait bounds how long writing a close frame may take.
const closeWait = time.Second

// Dialer opens WebSocket connections and tracks them until they are
// closed.
type Dialer struct {
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
	conns   map[*conn]struct{}
}

// NewDialer builds a Dialer from cfg.
func NewDialer(cfg svcconfig.WebSocket, logger *zap.Logger) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
		},
		logger: logger,
		conns:  make(map[*conn]struct{}),
	}
}

// DialStream connects to the request's URL, switching http and https to ws
// and wss. The request's headers are sent with the handshake.
func (d *Dialer) DialStream(ctx context.Context, req *svcclient.Request) (svcclient.StreamConn, error) {
	if req == nil || req.URL == nil {
		return nil, svcerrors.InvalidArgumentErrorf("stream request has no URL")
	}
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return nil, svcerrors.UnavailableErrorf("websocket dialer is stopped")
	}

	u := *req.URL
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	ws, res, err := d.dialer.DialContext(ctx, u.String(), req.Header)
	if err != nil {
		if res != nil {
			return nil, svcerrors.Newf(svcerrors.CodeFromHTTPStatus(res.StatusCode),
				"websocket handshake with %q failed with status %d", req.Service, res.StatusCode)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, svcerrors.Wrap(svcerrors.CodeUnavailable, err)
	}

	c := &conn{ws: ws, dialer: d}
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		ws.Close()
		return nil, svcerrors.UnavailableErrorf("websocket dialer is stopped")
	}
	d.conns[c] = struct{}{}
	d.mu.Unlock()
	return c, nil
}

// Stop closes every open connection with a normal close frame.
func (d *Dialer) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	conns := make([]*conn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	deadline := time.Now().Add(closeWait)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.closeWith(deadline))
	}
	if len(conns) > 0 {
		d.logger.Debug("Closed websocket streams.", zap.Int("streams", len(conns)))
	}
	return err
}

func (d *Dialer) forget(c *conn) {
	d.mu.Lock()
	delete(d.conns, c)
	d.mu.Unlock()
}

type conn struct {
	ws     *websocket.Conn
	dialer *Dialer

	closeOnce sync.Once
	closeErr  error
}

func (c *conn) Send(msg []byte) error {
	return wrapError(c.ws.WriteMessage(websocket.BinaryMessage, msg))
}

// Receive returns io.EOF once the peer closes the stream normally.
func (c *conn) Receive() ([]byte, error) {
	for {
		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			return nil, wrapError(err)
		}
		switch kind {
		case websocket.BinaryMessage, websocket.TextMessage:
			return msg, nil
		}
	}
}

func (c *conn) Close() error {
	return c.closeWith(time.Now().Add(closeWait))
}

func (c *conn) closeWith(deadline time.Time) error {
	c.closeOnce.Do(func() {
		c.dialer.forget(c)
		// The close frame is best effort: the peer may have closed first.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && err != websocket.ErrCloseSent {
			c.dialer.logger.Debug("Failed to send websocket close frame.", zap.Error(err))
		}
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if closeErr, ok := err.(*websocket.CloseError); ok {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway:
			return io.EOF
		case websocket.CloseInternalServerErr:
			return svcerrors.InternalErrorf("stream closed: %v", closeErr.Text)
		}
		return svcerrors.Newf(svcerrors.CodeUnknown, "stream closed: %v", closeErr)
	}
	return svcerrors.Wrap(svcerrors.CodeUnavailable, err)
}
