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

package clock

import (
	"container/heap"
	"runtime"
	"sync"
	"time"
)

// FakeClock only moves forward when told to. Timers armed on it fire
// synchronously from Add.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers timerHeap
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a fake clock positioned at the Unix epoch.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Now returns the current fake time.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// Timer arms a timer that fires once the clock has advanced by d.
func (fc *FakeClock) Timer(d time.Duration) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	t := &fakeTimer{
		c:     make(chan time.Time, 1),
		at:    fc.now.Add(d),
		clock: fc,
		index: -1,
	}
	if d <= 0 {
		t.c <- fc.now
		return t
	}
	heap.Push(&fc.timers, t)
	return t
}

// Pending reports the number of armed timers that have not fired yet.
func (fc *FakeClock) Pending() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.timers)
}

// Add advances the clock, firing every timer that comes due on the way.
func (fc *FakeClock) Add(d time.Duration) {
	fc.mu.Lock()
	end := fc.now.Add(d)
	for len(fc.timers) > 0 && !fc.timers[0].at.After(end) {
		t := heap.Pop(&fc.timers).(*fakeTimer)
		fc.now = t.at
		t.fire()
	}
	fc.now = end
	fc.mu.Unlock()
	runtime.Gosched()
}

type fakeTimer struct {
	c     chan time.Time
	at    time.Time
	clock *FakeClock
	index int
}

func (t *fakeTimer) C() <-chan time.Time { return t.c }

func (t *fakeTimer) fire() {
	select {
	case t.c <- t.at:
	default:
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.clock.timers, t.index)
	return true
}

// timerHeap orders timers by due time.
type timerHeap []*fakeTimer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*fakeTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	t := old[len(old)-1]
	*h = old[:len(old)-1]
	t.index = -1
	return t
}
