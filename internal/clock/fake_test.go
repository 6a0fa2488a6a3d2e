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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAdd(t *testing.T) {
	clock := NewFake()
	start := clock.Now()
	clock.Add(time.Second)
	assert.Equal(t, time.Second, clock.Now().Sub(start))
}

func TestFakeTimerFiresWhenDue(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(time.Second)
	assert.Equal(t, 1, clock.Pending())

	clock.Add(999 * time.Millisecond)
	select {
	case <-timer.C():
		assert.Fail(t, "timer fired early")
	default:
	}

	clock.Add(time.Millisecond)
	select {
	case got := <-timer.C():
		assert.Equal(t, time.Unix(1, 0), got)
	default:
		assert.Fail(t, "timer did not fire")
	}
	assert.Equal(t, 0, clock.Pending())
}

func TestFakeTimerStop(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(60 * time.Second)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, clock.Pending())
}

func TestFakeTimerZeroDuration(t *testing.T) {
	clock := NewFake()
	timer := clock.Timer(0)
	select {
	case <-timer.C():
	default:
		assert.Fail(t, "zero duration timer should fire immediately")
	}
	assert.False(t, timer.Stop())
}

func TestRealTimer(t *testing.T) {
	timer := Real.Timer(time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		assert.Fail(t, "test timed out")
	}
}
