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

// Package svcconfig loads the configuration of a client process from YAML.
//
// A complete configuration looks like
//
//	service: checkout
//	logging:
//	  level: info
//	http:
//	  dialTimeout: 2s
//	  maxIdleConnsPerHost: 64
//	websocket:
//	  handshakeTimeout: 10s
//	services:
//	  items: http://items.internal:8080
//	  payments:
//	    urls:
//	      - http://payments-1.internal:8080
//	      - http://payments-2.internal:8080
//	topics:
//	  enabled: true
//	  buffer: 128
//	shutdown:
//	  timeout: 10s
//	  grace: 5s
//
// String values may reference environment variables as ${NAME} or
// ${NAME:default}.
package svcconfig

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Config is the configuration of a client process.
type Config struct {
	// Service is the name of this process's service. It is sent as the
	// caller of every request.
	Service string `config:"service,interpolate"`

	Logging   Logging   `config:"logging"`
	HTTP      HTTP      `config:"http"`
	WebSocket WebSocket `config:"websocket"`

	// Services maps service names to their endpoints. Names YAML reads as
	// booleans or numbers (y, no, off, 1) must be quoted.
	Services map[string]Service `config:"services"`

	Topics   Topics   `config:"topics"`
	Shutdown Shutdown `config:"shutdown"`
}

// Logging configures the process logger.
type Logging struct {
	Level LogLevel `config:"level"`

	// Development switches to a human-friendly console encoder.
	Development bool `config:"development"`
}

// HTTP configures the HTTP transport.
type HTTP struct {
	DialTimeout         time.Duration `config:"dialTimeout"`
	KeepAlive           time.Duration `config:"keepAlive"`
	MaxIdleConnsPerHost int           `config:"maxIdleConnsPerHost"`
	IdleConnTimeout     time.Duration `config:"idleConnTimeout"`

	// RequestTimeout applies to calls whose context has no deadline. Zero
	// leaves them unbounded.
	RequestTimeout time.Duration `config:"requestTimeout"`
}

// WebSocket configures the dialer for streamed calls.
type WebSocket struct {
	Disabled         bool          `config:"disabled"`
	HandshakeTimeout time.Duration `config:"handshakeTimeout"`
	ReadBufferSize   int           `config:"readBufferSize"`
	WriteBufferSize  int           `config:"writeBufferSize"`
}

// Service lists the base URLs of a remote service. Requests rotate over
// them.
type Service struct {
	URLs []string
}

// Topics configures the in-process message broker.
type Topics struct {
	Enabled bool `config:"enabled"`

	// Buffer is the number of undelivered messages a subscriber group holds
	// before Publish blocks.
	Buffer int `config:"buffer"`
}

// Shutdown configures process shutdown.
type Shutdown struct {
	Timeout time.Duration `config:"timeout"`
	Grace   time.Duration `config:"grace"`
}

// Default returns the configuration used for everything a file leaves out.
func Default() Config {
	return Config{
		Logging: Logging{Level: LogLevel(zapcore.InfoLevel)},
		HTTP: HTTP{
			DialTimeout:         2 * time.Second,
			KeepAlive:           30 * time.Second,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     90 * time.Second,
		},
		WebSocket: WebSocket{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		Topics: Topics{Buffer: 64},
		Shutdown: Shutdown{
			Timeout: 10 * time.Second,
			Grace:   5 * time.Second,
		},
	}
}
