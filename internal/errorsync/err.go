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

// Package errorsync runs named tasks concurrently and collects their
// failures.
package errorsync

import (
	"fmt"
	"sort"
	"sync"
)

// Failure is the error returned by a named task.
type Failure struct {
	Name string
	Err  error

	index int
}

// PanicError is reported for a task that panicked.
type PanicError struct {
	Name  string
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%q panicked: %v", e.Name, e.Value)
}

// ErrorWaiter is similar to a WaitGroup except it allows collecting failures
// from subtasks.
type ErrorWaiter struct {
	wait     sync.WaitGroup
	lock     sync.Mutex
	next     int
	failures []Failure
}

// Submit runs f in its own goroutine and returns immediately. A panic in f
// is recovered and reported as a *PanicError.
func (ew *ErrorWaiter) Submit(name string, f func() error) {
	ew.lock.Lock()
	index := ew.next
	ew.next++
	ew.lock.Unlock()

	ew.wait.Add(1)
	go func() {
		defer ew.wait.Done()
		if err := run(name, f); err != nil {
			ew.lock.Lock()
			ew.failures = append(ew.failures, Failure{Name: name, Err: err, index: index})
			ew.lock.Unlock()
		}
	}()
}

func run(name string, f func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Name: name, Value: v}
		}
	}()
	return f()
}

// Wait waits until all submitted tasks have finished and returns their
// failures in submission order.
func (ew *ErrorWaiter) Wait() []Failure {
	ew.wait.Wait()

	ew.lock.Lock()
	defer ew.lock.Unlock()
	failures := append([]Failure(nil), ew.failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	return failures
}
