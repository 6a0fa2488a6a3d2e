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

package svcclient_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcclienttest"
	"go.uber.org/svcclient/svcerrors"
)

func TestStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := svcclienttest.NewMockStreamConn(ctrl)
	dialer := svcclienttest.NewMockStreamDialer(ctrl)

	dialer.EXPECT().DialStream(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *svcclient.Request) (svcclient.StreamConn, error) {
			assert.Equal(t, "http://items.local/api/items/watch", req.URL.String())
			assert.Equal(t, "watchItems", req.Header.Get(svcclient.ProcedureHeader))
			return conn, nil
		})
	gomock.InOrder(
		conn.EXPECT().Send([]byte(`{"id":1,"name":"a"}`)).Return(nil),
		conn.EXPECT().Receive().Return([]byte(`{"id":2,"name":"b"}`), nil),
		conn.EXPECT().Receive().Return(nil, io.EOF),
		conn.EXPECT().Close().Return(nil),
	)

	binder := svcclient.NewBinder(svcclient.BinderConfig{
		ServiceInfo: svcclient.ServiceInfo{Name: "caller"},
		Transport:   svcclienttest.NewMockTransport(ctrl),
		Locator:     newLocator(ctrl, "http://items.local/api"),
		Streams:     dialer,
	})

	call, err := binder.BindCall(itemsDescriptor, "watchItems")
	require.NoError(t, err)
	stream, err := call.Stream(context.Background())
	require.NoError(t, err)

	require.NoError(t, stream.Send(item{ID: 1, Name: "a"}))

	var got item
	require.NoError(t, stream.Receive(&got))
	assert.Equal(t, item{ID: 2, Name: "b"}, got)
	assert.Equal(t, io.EOF, stream.Receive(&got))
	assert.NoError(t, stream.Close())
}

func TestStreamFailures(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("unary call", func(t *testing.T) {
		binder := newBinder(t, svcclienttest.NewRecordingTransport(nil), nil)
		call, err := binder.BindCall(itemsDescriptor, "getItem", 1)
		require.NoError(t, err)
		_, err = call.Stream(context.Background())
		assert.Equal(t, svcerrors.CodeFailedPrecondition, svcerrors.CodeOf(err))
	})

	t.Run("no dialer", func(t *testing.T) {
		binder := newBinder(t, svcclienttest.NewRecordingTransport(nil), nil)
		call, err := binder.BindCall(itemsDescriptor, "watchItems")
		require.NoError(t, err)
		_, err = call.Stream(context.Background())
		assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err))
	})

	t.Run("dial failure", func(t *testing.T) {
		dialer := svcclienttest.NewMockStreamDialer(ctrl)
		dialer.EXPECT().DialStream(gomock.Any(), gomock.Any()).Return(nil, errors.New("handshake failed"))

		binder := svcclient.NewBinder(svcclient.BinderConfig{
			ServiceInfo: svcclient.ServiceInfo{Name: "caller"},
			Transport:   svcclienttest.NewMockTransport(ctrl),
			Locator:     newLocator(ctrl, "http://items.local"),
			Streams:     dialer,
		})
		call, err := binder.BindCall(itemsDescriptor, "watchItems")
		require.NoError(t, err)

		_, err = call.Stream(context.Background())
		var terr *svcclient.TransportError
		assert.True(t, errors.As(err, &terr))
	})
}
