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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/uber-go/mapdecode"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcencoding"
	"gopkg.in/yaml.v2"
)

// descriptorFile is the YAML form of a service descriptor.
//
//	name: items
//	calls:
//	  - name: getItem
//	    route: GET /items/{id}
//	  - name: createItem
//	    route: POST /items
//	    body: true
//	  - name: watchItems
//	    route: /items/watch
//	    stream: true
//	topics:
//	  - name: itemCreated
//	    id: items.created
type descriptorFile struct {
	Name   string      `config:"name"`
	Calls  []callFile  `config:"calls"`
	Topics []topicFile `config:"topics"`
}

type callFile struct {
	Name   string `config:"name"`
	Route  string `config:"route"`
	Stream bool   `config:"stream"`

	// Body marks calls that send a request body.
	Body bool `config:"body"`

	// Encoding is json (the default) or raw.
	Encoding string            `config:"encoding"`
	Headers  map[string]string `config:"headers"`
}

type topicFile struct {
	Name     string `config:"name"`
	ID       string `config:"id"`
	Encoding string `config:"encoding"`
}

func loadDescriptor(r io.Reader, service string) (*svcclient.Descriptor, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %v", err)
	}

	var f descriptorFile
	if err := mapdecode.Decode(&f, data, mapdecode.TagName("config")); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %v", err)
	}
	if service != "" {
		f.Name = service
	}
	return f.build()
}

func (f descriptorFile) build() (*svcclient.Descriptor, error) {
	var opts []svcclient.DescriptorOption
	for _, c := range f.Calls {
		serializer, err := serializerFor(c.Encoding)
		if err != nil {
			return nil, fmt.Errorf("call %q: %v", c.Name, err)
		}
		callOpts := []svcclient.CallOption{svcclient.WithResponseSerializer(serializer)}
		if c.Body {
			callOpts = append(callOpts, svcclient.WithRequestSerializer(serializer))
		}
		for k, v := range c.Headers {
			callOpts = append(callOpts, svcclient.WithStaticHeader(k, v))
		}

		if c.Stream {
			opts = append(opts, svcclient.WithCall(svcclient.StreamCall(c.Name, c.Route, callOpts...)))
		} else {
			opts = append(opts, svcclient.WithCall(svcclient.RestCall(c.Name, c.Route, callOpts...)))
		}
	}
	for _, t := range f.Topics {
		serializer, err := serializerFor(t.Encoding)
		if err != nil {
			return nil, fmt.Errorf("topic %q: %v", t.Name, err)
		}
		opts = append(opts, svcclient.WithTopic(svcclient.NewTopic(t.Name, t.ID, serializer)))
	}
	return svcclient.NewDescriptor(f.Name, opts...)
}

func serializerFor(encoding string) (svcclient.Serializer, error) {
	switch strings.ToLower(encoding) {
	case "", "json":
		return svcencoding.JSON, nil
	case "raw":
		return svcencoding.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
