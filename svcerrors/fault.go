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

package svcerrors

// Fault attributes a failure to one side of a call.
type Fault int

const (
	// UnknownFault is used for codes that blame neither side.
	UnknownFault Fault = iota
	// ClientFault means the caller should change its request.
	ClientFault
	// ServerFault means the callee or the network misbehaved.
	ServerFault
)

func (f Fault) String() string {
	switch f {
	case ClientFault:
		return "client"
	case ServerFault:
		return "server"
	default:
		return "unknown"
	}
}

// FaultOf attributes err to the client or the server based on its code.
func FaultOf(err error) Fault {
	switch CodeOf(err) {
	case CodeCancelled,
		CodeInvalidArgument,
		CodeNotFound,
		CodeAlreadyExists,
		CodePermissionDenied,
		CodeFailedPrecondition,
		CodeAborted,
		CodeOutOfRange,
		CodeUnauthenticated,
		CodeUnimplemented,
		CodeResourceExhausted:
		return ClientFault

	case CodeUnknown,
		CodeDeadlineExceeded,
		CodeInternal,
		CodeUnavailable,
		CodeDataLoss:
		return ServerFault
	}
	return UnknownFault
}
