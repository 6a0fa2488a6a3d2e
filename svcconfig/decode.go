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

package svcconfig

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/uber-go/mapdecode"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

const _tagName = "config"

// Option customizes loading.
type Option func(*loadOptions)

type loadOptions struct {
	lookup  func(string) (string, bool)
	service string
}

// WithLookup resolves ${NAME} references with the given function instead of
// the process environment.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.lookup = lookup }
}

// ServiceName overrides the service name found in the configuration.
func ServiceName(name string) Option {
	return func(o *loadOptions) { o.service = name }
}

// LoadYAML reads a Config from YAML.
func LoadYAML(r io.Reader, opts ...Option) (Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(b, &data); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %v", err)
	}
	return Load(data, opts...)
}

// Load decodes a Config from a map[string]interface{} or
// map[interface{}]interface{}, fills in defaults and validates the result.
func Load(data interface{}, opts ...Option) (Config, error) {
	options := loadOptions{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Default()
	if data != nil {
		if err := checkServiceNames(data); err != nil {
			return Config{}, err
		}
		err := mapdecode.Decode(&cfg, data,
			mapdecode.TagName(_tagName),
			mapdecode.DecodeHook(interpolateHook(options.lookup)))
		if err != nil {
			return Config{}, fmt.Errorf("failed to decode configuration: %v", err)
		}
	}
	if options.service != "" {
		cfg.Service = options.service
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// checkServiceNames rejects service names that YAML parsed as something
// other than a string, such as an unquoted y or off.
func checkServiceNames(data interface{}) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Map {
		return nil
	}
	key := reflect.ValueOf("services")
	if !key.Type().ConvertibleTo(v.Type().Key()) {
		return nil
	}
	services := v.MapIndex(key.Convert(v.Type().Key()))
	if !services.IsValid() {
		return nil
	}
	if services.Kind() == reflect.Interface {
		services = services.Elem()
	}
	if services.Kind() != reflect.Map || services.Type().Key().Kind() == reflect.String {
		return nil
	}

	var err error
	for _, k := range services.MapKeys() {
		name := k.Interface()
		if _, ok := name.(string); !ok {
			err = multierr.Append(err, fmt.Errorf(
				"service name %v is not a string: quote it in YAML", name))
		}
	}
	return err
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var err error
	if c.Service == "" {
		err = multierr.Append(err, fmt.Errorf("service name is required"))
	}
	for name, svc := range c.Services {
		if len(svc.URLs) == 0 {
			err = multierr.Append(err, fmt.Errorf("service %q has no URLs", name))
		}
		for _, raw := range svc.URLs {
			if uerr := validateURL(raw); uerr != nil {
				err = multierr.Append(err, fmt.Errorf("service %q: %v", name, uerr))
			}
		}
	}
	for _, d := range []struct {
		name  string
		value int64
	}{
		{"http.dialTimeout", int64(c.HTTP.DialTimeout)},
		{"http.keepAlive", int64(c.HTTP.KeepAlive)},
		{"http.maxIdleConnsPerHost", int64(c.HTTP.MaxIdleConnsPerHost)},
		{"http.idleConnTimeout", int64(c.HTTP.IdleConnTimeout)},
		{"http.requestTimeout", int64(c.HTTP.RequestTimeout)},
		{"websocket.handshakeTimeout", int64(c.WebSocket.HandshakeTimeout)},
		{"websocket.readBufferSize", int64(c.WebSocket.ReadBufferSize)},
		{"websocket.writeBufferSize", int64(c.WebSocket.WriteBufferSize)},
		{"topics.buffer", int64(c.Topics.Buffer)},
		{"shutdown.timeout", int64(c.Shutdown.Timeout)},
		{"shutdown.grace", int64(c.Shutdown.Grace)},
	} {
		if d.value < 0 {
			err = multierr.Append(err, fmt.Errorf("%v must not be negative", d.name))
		}
	}
	return err
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// LogLevel is a zap level that decodes from its name.
type LogLevel zapcore.Level

// Level returns the zap level.
func (l LogLevel) Level() zapcore.Level { return zapcore.Level(l) }

func (l LogLevel) String() string { return zapcore.Level(l).String() }

// mapdecode doesn't support encoding.TextUnmarshaler by default so we have to
// do this manually.
func (l *LogLevel) Decode(into mapdecode.Into) error {
	var s string
	if err := into(&s); err != nil {
		return fmt.Errorf("could not decode Zap log level: %v", err)
	}
	if err := (*zapcore.Level)(l).UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("could not decode Zap log level: %v", err)
	}
	return nil
}

// Decode accepts a single URL, a list of URLs or a mapping with a "urls"
// key.
func (s *Service) Decode(into mapdecode.Into) error {
	var single string
	if err := into(&single); err == nil {
		s.URLs = []string{single}
		return nil
	}

	var list []string
	if err := into(&list); err == nil {
		s.URLs = list
		return nil
	}

	var full struct {
		URLs []string `config:"urls"`
	}
	if err := into(&full); err != nil {
		return fmt.Errorf("failed to decode service: %v", err)
	}
	s.URLs = full.URLs
	return nil
}

// interpolateHook expands ${NAME} and ${NAME:default} in every string that
// is decoded.
func interpolateHook(lookup func(string) (string, bool)) mapdecode.DecodeHookFunc {
	return func(from, to reflect.Type, data reflect.Value) (reflect.Value, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		s, err := interpolate(data.String(), lookup)
		if err != nil {
			return data, err
		}
		return reflect.ValueOf(s), nil
	}
}

func interpolate(s string, lookup func(string) (string, bool)) (string, error) {
	var sb strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			sb.WriteString(s)
			return sb.String(), nil
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated variable reference in %q", s)
		}
		end += start

		sb.WriteString(s[:start])
		ref := s[start+2 : end]
		name, def, hasDefault := strings.Cut(ref, ":")
		if name == "" {
			return "", fmt.Errorf("empty variable reference in %q", s)
		}
		switch v, ok := lookup(name); {
		case ok:
			sb.WriteString(v)
		case hasDefault:
			sb.WriteString(def)
		default:
			return "", fmt.Errorf("variable %q is not set and has no default", name)
		}
		s = s[end+1:]
	}
}
