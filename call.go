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
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/svcclient/svcencoding"
	"go.uber.org/svcclient/svcerrors"
	"go.uber.org/zap"
)

// CallDeps are the capabilities a bound call uses when it is invoked.
type CallDeps struct {
	ServiceInfo ServiceInfo
	Transport   Transport
	Locator     ServiceLocator

	// Streams is required only by streamed calls.
	Streams StreamDialer

	Logger *zap.Logger
	Scope  tally.Scope

	observer *observer
}

func (deps CallDeps) observe() *observer {
	if deps.observer != nil {
		return deps.observer
	}
	logger, scope := deps.Logger, deps.Scope
	if logger == nil {
		logger = zap.NewNop()
	}
	if scope == nil {
		scope = tally.NoopScope
	}
	return newObserver(logger, scope)
}

// ServiceCall is a call bound to its arguments. It performs no I/O until it
// is invoked and may be invoked any number of times, concurrently.
type ServiceCall struct {
	service string
	desc    CallDescriptor
	path    string
	query   string
	header  http.Header

	deps     CallDeps
	observer *observer
}

// BindCall binds the named call of d to args.
//
// It fails with an UnknownMethodError if d has no such call and with an
// ArityMismatchError if args does not match the call's path template.
func BindCall(d *Descriptor, method string, args []interface{}, deps CallDeps) (*ServiceCall, error) {
	desc, ok := d.Call(method)
	if !ok {
		return nil, &UnknownMethodError{Service: d.Name(), Method: method}
	}
	if want := desc.Path.Arity(); want != len(args) {
		return nil, &ArityMismatchError{
			Service: d.Name(),
			Method:  method,
			Want:    want,
			Got:     len(args),
		}
	}

	path, query, err := desc.Path.expand(args)
	if err != nil {
		return nil, svcerrors.Newf(svcerrors.CodeInvalidArgument,
			"call %q of service %q: %v", method, d.Name(), err)
	}

	return &ServiceCall{
		service:  d.Name(),
		desc:     desc,
		path:     path,
		query:    query,
		header:   desc.Headers.Clone(),
		deps:     deps,
		observer: deps.observe(),
	}, nil
}

// Descriptor returns the descriptor of the bound call.
func (c *ServiceCall) Descriptor() CallDescriptor { return c.desc }

// Method is the HTTP verb of the call.
func (c *ServiceCall) Method() string { return c.desc.Method }

// Path is the expanded request path including its query string.
func (c *ServiceCall) Path() string {
	if c.query == "" {
		return c.path
	}
	return c.path + "?" + c.query
}

// WithHeader returns a copy of the call that sends an additional header.
func (c *ServiceCall) WithHeader(key, value string) *ServiceCall {
	cp := *c
	cp.header = c.header.Clone()
	if cp.header == nil {
		cp.header = make(http.Header)
	}
	cp.header.Add(key, value)
	return &cp
}

// Invoke sends request and decodes a successful response into responseOut.
//
// Failed responses are decoded by the call's error serializer and returned
// as they come out of it. Failures to reach the service or to encode or
// decode bodies are returned as a *TransportError.
func (c *ServiceCall) Invoke(ctx context.Context, request, responseOut interface{}) (err error) {
	if c.desc.Kind != Unary {
		return svcerrors.Newf(svcerrors.CodeFailedPrecondition,
			"call %q of service %q is %v, use Stream", c.desc.Name, c.service, c.desc.Kind)
	}

	obs := c.observer.begin(c.service, c.desc.Name)
	var requestID string
	defer func() { obs.End(err, zap.String("requestID", requestID)) }()

	req, err := c.newRequest(ctx)
	if err != nil {
		return err
	}
	requestID = req.Header.Get(RequestIDHeader)

	if c.desc.Request != nil {
		req.Body, err = c.desc.Request.Marshal(request)
		if err != nil {
			return c.transportError(svcerrors.Newf(svcerrors.CodeInvalidArgument,
				"failed to encode request body: %v", err))
		}
		req.Header.Set("Content-Type", c.desc.Request.ContentType())
	} else if request != nil {
		return svcerrors.Newf(svcerrors.CodeInvalidArgument,
			"call %q of service %q does not take a request body", c.desc.Name, c.service)
	}

	res, err := c.deps.Transport.Send(ctx, req)
	if err != nil {
		return c.transportError(err)
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if responseOut == nil || c.desc.Response == nil || len(res.Body) == 0 {
			return nil
		}
		if err := c.desc.Response.Unmarshal(res.Body, responseOut); err != nil {
			return c.transportError(svcerrors.Newf(svcerrors.CodeInvalidArgument,
				"failed to decode response body: %v", err))
		}
		return nil
	}

	return c.decodeError(res)
}

func (c *ServiceCall) decodeError(res *Response) error {
	errs := c.desc.Errors
	if errs == nil {
		errs = svcencoding.JSONErrors
	}
	err := errs.DeserializeError(ErrorBody{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        res.Body,
	})
	if err == nil {
		return svcerrors.Newf(svcerrors.CodeFromHTTPStatus(res.StatusCode),
			"call %q of service %q failed with status %d", c.desc.Name, c.service, res.StatusCode)
	}
	return err
}

// newRequest locates the service and builds a request without a body.
func (c *ServiceCall) newRequest(ctx context.Context) (*Request, error) {
	base, ok, err := c.deps.Locator.Locate(ctx, c.service)
	if err != nil {
		return nil, c.transportError(err)
	}
	if !ok {
		return nil, c.transportError(svcerrors.Newf(svcerrors.CodeUnavailable,
			"service %q not found", c.service))
	}

	u := *base
	u.RawPath = strings.TrimSuffix(base.EscapedPath(), "/") + c.path
	u.Path, err = url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, c.transportError(err)
	}
	u.RawQuery = c.query

	header := c.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	info := c.deps.ServiceInfo
	header.Set(CallerHeader, info.Name)
	if info.InstanceID != "" {
		header.Set(CallerInstanceHeader, info.InstanceID)
	}
	header.Set(ServiceHeader, c.service)
	header.Set(ProcedureHeader, c.desc.Name)
	header.Set(RequestIDHeader, uuid.New().String())
	if c.desc.Response != nil {
		header.Set("Accept", c.desc.Response.ContentType())
	}

	return &Request{
		Caller:    info.Name,
		Service:   c.service,
		Procedure: c.desc.Name,
		Method:    c.desc.Method,
		URL:       &u,
		Header:    header,
	}, nil
}

func (c *ServiceCall) transportError(err error) error {
	return newTransportError(c.service, c.desc.Name, err)
}
