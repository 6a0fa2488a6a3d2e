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

import "github.com/google/uuid"

// ServiceInfo identifies the service that owns the clients.
type ServiceInfo struct {
	Name       string
	InstanceID string

	// ACLs are the calls this service accepts. Clients do not use them;
	// they travel with the identity for registries that do.
	ACLs []ServiceACL
}

// ServiceACL grants access to calls matching a method and a path pattern.
// An empty Method matches every method.
type ServiceACL struct {
	Method      string
	PathPattern string
}

// NewServiceInfo returns the identity of a service instance with a fresh
// instance ID.
func NewServiceInfo(name string, acls ...ServiceACL) ServiceInfo {
	return ServiceInfo{
		Name:       name,
		InstanceID: uuid.New().String(),
		ACLs:       acls,
	}
}

func (si ServiceInfo) withDefaults() ServiceInfo {
	if si.InstanceID == "" {
		si.InstanceID = uuid.New().String()
	}
	return si
}
