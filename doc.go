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

// Package svcclient builds clients for remote services from descriptors.
//
// A Descriptor names a service and lists its calls and topics. Calls are
// REST-style: an HTTP verb, a path template such as /items/{id}?page, and
// serializers for the request, the response and failures. Topics are
// publish/subscribe channels served by a message broker.
//
// A Binder holds the capabilities clients need: a Transport that sends
// requests, a ServiceLocator that finds services by name, and optionally a
// TopicFactory and a StreamDialer. Implement resolves a descriptor, builds
// a ClientContext for it and hands that to a constructor that returns the
// client:
//
//	items := svcclient.Implement(binder, itemsDescriptor, newItemsClient)
//
// Binding a call checks the method name and the argument count and
// performs no I/O. Invoking the bound call locates the service, sends the
// request and decodes the response or the typed failure.
//
// Process shutdown is coordinated by package svclifecycle, and package
// svcfactory wires all of the default collaborators together.
package svcclient
