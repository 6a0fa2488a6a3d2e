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

package svclifecycle

import "fmt"

// State is a stage of a Manager's shutdown.
type State int32

const (
	// Running is the state of a Manager that has not been stopped.
	Running State = iota

	// StoppingResources means stop hooks are running.
	StoppingResources

	// StoppingRuntime means the runtime is being shut down.
	StoppingRuntime

	// Stopped means shutdown completed without error.
	Stopped

	// StoppedWithError means shutdown failed or timed out.
	StoppedWithError
)

var stateToName = map[State]string{
	Running:           "running",
	StoppingResources: "stopping-resources",
	StoppingRuntime:   "stopping-runtime",
	Stopped:           "stopped",
	StoppedWithError:  "stopped-with-error",
}

func (s State) String() string {
	if name, ok := stateToName[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
