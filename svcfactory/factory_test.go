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

package svcfactory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/internal/testtime"
	"go.uber.org/svcclient/svcconfig"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/svcclient/svclifecycle"
	"go.uber.org/svcclient/svcruntime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var itemsDescriptor = svcclient.MustDescriptor("items",
	svcclient.WithCall(
		svcclient.RestCall("getItem", "GET /items/{id}"),
	),
	svcclient.WithTopic(
		svcclient.NewTopic("itemCreated", "items.created", nil),
	),
)

type itemsClient struct {
	cc *svcclient.ClientContext
}

func (c itemsClient) GetItem(ctx context.Context, id string) (item, error) {
	var out item
	call, err := c.cc.ServiceCall("getItem", id)
	if err != nil {
		return out, err
	}
	return out, call.Invoke(ctx, nil, &out)
}

func itemsServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "orders", r.Header.Get(svcclient.CallerHeader))
		id := strings.TrimPrefix(r.URL.Path, "/v1/items/")
		if id == "missing" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "not-found", "message": "no such item"})
			return
		}
		json.NewEncoder(w).Encode(item{ID: id, Name: "widget"})
	}))
}

func TestNewFromYAML(t *testing.T) {
	server := itemsServer(t)
	defer server.Close()

	yaml := fmt.Sprintf(`
service: ignored
services:
  items: %s/v1
topics:
  enabled: true
`, server.URL)

	tracer := mocktracer.New()
	f, err := NewFromYAML("orders", strings.NewReader(yaml), Logger(zap.NewNop()), Tracer(tracer))
	require.NoError(t, err)
	assert.Equal(t, "orders", f.Config().Service)
	assert.Equal(t, "orders", f.Binder().ServiceInfo().Name)
	require.NotNil(t, f.Topics())

	client := svcclient.Implement(f.Binder(), itemsDescriptor, func(cc *svcclient.ClientContext) itemsClient {
		return itemsClient{cc: cc}
	})

	ctx, cancel := context.WithTimeout(context.Background(), testtime.Second)
	defer cancel()

	got, err := client.GetItem(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, item{ID: "42", Name: "widget"}, got)
	assert.Len(t, tracer.FinishedSpans(), 1)

	_, err = client.GetItem(ctx, "missing")
	assert.Equal(t, svcerrors.CodeNotFound, svcerrors.CodeOf(err))

	require.NoError(t, f.Stop())
	assert.Equal(t, svclifecycle.Stopped, f.Lifecycle().State())
	assert.Equal(t, svcruntime.ErrShutdown, f.Runtime().Go(func(context.Context) error { return nil }),
		"the factory shuts down the runtime it owns")

	_, err = client.GetItem(ctx, "42")
	assert.Equal(t, svcerrors.CodeUnavailable, svcerrors.CodeOf(err), "stopped transports reject calls")
	assert.NoError(t, f.Stop(), "a second Stop returns the first outcome")
}

func TestTopicsThroughFactory(t *testing.T) {
	cfg := svcconfig.Default()
	cfg.Service = "orders"
	cfg.Topics.Enabled = true

	f, err := New(cfg, Logger(zap.NewNop()))
	require.NoError(t, err)

	topic, err := f.Binder().BindTopic(itemsDescriptor, "itemCreated")
	require.NoError(t, err)

	received := make(chan item, 1)
	_, err = topic.Subscribe("audit", func(_ context.Context, msg svcclient.Message) error {
		var it item
		if err := msg.Decode(&it); err != nil {
			return err
		}
		received <- it
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, topic.Publish(context.Background(), item{ID: "7"}))

	select {
	case it := <-received:
		assert.Equal(t, "7", it.ID)
	case <-time.After(testtime.Second):
		t.Fatal("message was not delivered")
	}
	require.NoError(t, f.Stop())
}

func TestTopicsDisabled(t *testing.T) {
	cfg := svcconfig.Default()
	cfg.Service = "orders"
	cfg.WebSocket.Disabled = true

	f, err := New(cfg, Logger(zap.NewNop()))
	require.NoError(t, err)
	defer f.Stop()

	assert.Nil(t, f.Topics())
	_, err = f.Binder().BindTopic(itemsDescriptor, "itemCreated")
	assert.ErrorIs(t, err, svcclient.ErrBrokerUnavailable)
}

func TestStopHooks(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	scope := tally.NewTestScope("", nil)

	cfg := svcconfig.Default()
	cfg.Service = "orders"
	cfg.Topics.Enabled = true

	f, err := New(cfg, Logger(zap.New(core)), Scope(scope),
		LifecycleOptions(svclifecycle.Reason("test over")))
	require.NoError(t, err)

	errCleanup := svclifecycle.Fatal(fmt.Errorf("cache flush failed"))
	require.NoError(t, f.Lifecycle().RegisterStopHook("cache", func(context.Context) error {
		return errCleanup
	}))

	assert.Equal(t, errCleanup, f.Stop())
	assert.Equal(t, svclifecycle.StoppedWithError, f.Lifecycle().State())

	stopping := logs.FilterMessage("Stopping.").AllUntimed()
	require.Len(t, stopping, 1)
	assert.Equal(t, "test over", stopping[0].ContextMap()["reason"])

	var failures int64
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() == "lifecycle.stop_hook_failures" {
			failures += c.Value()
			assert.Equal(t, "cache", c.Tags()["hook"])
		}
	}
	assert.Equal(t, int64(1), failures, "the factory's own hooks stop cleanly")
}

func TestNewWithRuntime(t *testing.T) {
	system := svcruntime.New("shared")
	defer system.Shutdown(context.Background(), "test over")

	cfg := svcconfig.Default()
	cfg.Service = "orders"
	cfg.Topics.Enabled = true

	f, err := NewWithRuntime(cfg, system, Logger(zap.NewNop()))
	require.NoError(t, err)
	assert.Same(t, system, f.Runtime())

	require.NoError(t, f.Stop())
	assert.NoError(t, system.Go(func(context.Context) error { return nil }),
		"the runtime belongs to someone else and keeps running")

	assert.Panics(t, func() { NewWithRuntime(cfg, nil) })
}

func TestLocatorOption(t *testing.T) {
	server := itemsServer(t)
	defer server.Close()

	cfg := svcconfig.Default()
	cfg.Service = "orders"
	cfg.Services = map[string]svcconfig.Service{"items": {URLs: []string{"http://unused.invalid"}}}

	var located []string
	locator := locatorFunc(func(_ context.Context, service string) (string, bool) {
		located = append(located, service)
		return server.URL + "/v1", service == "items"
	})

	f, err := New(cfg, Logger(zap.NewNop()), Locator(locator))
	require.NoError(t, err)
	defer f.Stop()

	client := svcclient.Implement(f.Binder(), itemsDescriptor, func(cc *svcclient.ClientContext) itemsClient {
		return itemsClient{cc: cc}
	})
	got, err := client.GetItem(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, []string{"items"}, located)
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		msg     string
		give    string
		wantErr string
	}{
		{
			msg:     "missing service name",
			give:    "logging: {level: info}",
			wantErr: "service name is required",
		},
		{
			msg:     "bad service URL",
			give:    "service: orders\nservices: {items: 'ftp://items'}",
			wantErr: "items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := NewFromYAML("", strings.NewReader(tt.give), Logger(zap.NewNop()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := New(svcconfig.Config{}, Logger(zap.NewNop()))
	assert.Error(t, err, "configurations are validated")
}

type locatorFunc func(ctx context.Context, service string) (string, bool)

func (f locatorFunc) Locate(ctx context.Context, service string) (*url.URL, bool, error) {
	raw, ok := f(ctx, service)
	if !ok {
		return nil, false, nil
	}
	u, err := url.Parse(raw)
	return u, err == nil, err
}
