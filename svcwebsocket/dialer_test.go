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

package svcwebsocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/internal/testtime"
	"go.uber.org/svcclient/svcclienttest"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/svcclient/svclocator"
)

// echoServer echoes binary messages until it receives "bye", then closes
// the stream normally. Close codes it receives are sent to closes.
func echoServer(t *testing.T, closes chan<- int) *httptest.Server {
	var upgrader websocket.Upgrader
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(svcclient.ProcedureHeader) == "" {
			http.Error(w, "missing procedure", http.StatusBadRequest)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			kind, msg, err := ws.ReadMessage()
			if err != nil {
				if closeErr, ok := err.(*websocket.CloseError); ok && closes != nil {
					closes <- closeErr.Code
				}
				return
			}
			if string(msg) == "bye" {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(testtime.Second))
				return
			}
			if err := ws.WriteMessage(kind, msg); err != nil {
				return
			}
		}
	}))
}

func streamRequest(t *testing.T, rawURL string) *svcclient.Request {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &svcclient.Request{
		Service:   "items",
		Procedure: "watchItems",
		URL:       u,
		Header:    http.Header{svcclient.ProcedureHeader: {"watchItems"}},
	}
}

func TestDialStreamEcho(t *testing.T) {
	server := echoServer(t, nil)
	defer server.Close()

	d := NewDialer(svcconfig.Default().WebSocket, nil)
	conn, err := d.DialStream(context.Background(), streamRequest(t, server.URL+"/watch"))
	require.NoError(t, err)

	require.NoError(t, conn.Send([]byte("hello")))
	msg, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))

	require.NoError(t, conn.Send([]byte("bye")))
	_, err = conn.Receive()
	assert.Equal(t, io.EOF, err, "normal closure ends the stream")
	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "closing twice is fine")
}

func TestDialStreamFailures(t *testing.T) {
	server := echoServer(t, nil)
	defer server.Close()
	d := NewDialer(svcconfig.Default().WebSocket, nil)

	t.Run("rejected handshake", func(t *testing.T) {
		req := streamRequest(t, server.URL)
		req.Header = nil
		_, err := d.DialStream(context.Background(), req)
		assert.Equal(t, svcerrors.CodeInvalidArgument, svcerrors.CodeOf(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()
		_, err := d.DialStream(context.Background(), streamRequest(t, closed.URL))
		assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err))
	})

	t.Run("no URL", func(t *testing.T) {
		_, err := d.DialStream(context.Background(), &svcclient.Request{})
		assert.Equal(t, svcerrors.CodeInvalidArgument, svcerrors.CodeOf(err))
	})
}

func TestStopClosesStreams(t *testing.T) {
	closes := make(chan int, 2)
	server := echoServer(t, closes)
	defer server.Close()

	d := NewDialer(svcconfig.Default().WebSocket, nil)
	for i := 0; i < 2; i++ {
		_, err := d.DialStream(context.Background(), streamRequest(t, server.URL))
		require.NoError(t, err)
	}

	require.NoError(t, d.Stop(context.Background()))
	for i := 0; i < 2; i++ {
		select {
		case code := <-closes:
			assert.Equal(t, websocket.CloseNormalClosure, code)
		case <-time.After(testtime.Second):
			t.Fatal("server did not see the stream close")
		}
	}

	_, err := d.DialStream(context.Background(), streamRequest(t, server.URL))
	assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err))
}

type event struct {
	Name string `json:"name"`
}

func TestStreamedCall(t *testing.T) {
	server := echoServer(t, nil)
	defer server.Close()

	locator, err := svclocator.NewStatic(map[string]string{"items": server.URL + "/api"})
	require.NoError(t, err)

	binder := svcclient.NewBinder(svcclient.BinderConfig{
		ServiceInfo: svcclient.ServiceInfo{Name: "caller"},
		Transport:   svcclienttest.NewRecordingTransport(nil),
		Locator:     locator,
		Streams:     NewDialer(svcconfig.Default().WebSocket, nil),
	})
	desc := svcclient.MustDescriptor("items",
		svcclient.WithCall(svcclient.StreamCall("watchItems", "/items/watch")))

	call, err := binder.BindCall(desc, "watchItems")
	require.NoError(t, err)
	stream, err := call.Stream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, stream.Send(event{Name: "created"}))
	var got event
	require.NoError(t, stream.Receive(&got))
	assert.Equal(t, event{Name: "created"}, got)
}
