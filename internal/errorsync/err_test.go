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

package errorsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWaiter(t *testing.T) {
	one := errors.New("1")
	two := errors.New("2")

	tests := []struct {
		desc string
		errs []error
		want []error
	}{
		{"nothing", nil, nil},
		{"empty list", []error{}, nil},
		{"no errors", []error{nil, nil, nil}, nil},
		{"single error", []error{nil, one, nil}, []error{one}},
		{"multiple errors", []error{nil, one, two, nil}, []error{one, two}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var ew ErrorWaiter
			for i, err := range tt.errs {
				err := err
				ew.Submit(string(rune('a'+i)), func() error { return err })
			}

			var got []error
			for _, f := range ew.Wait() {
				got = append(got, f.Err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrorWaiterNamesFailures(t *testing.T) {
	var ew ErrorWaiter
	ew.Submit("ok", func() error { return nil })
	ew.Submit("broken", func() error { return errors.New("great sadness") })

	failures := ew.Wait()
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Name)
	assert.EqualError(t, failures[0].Err, "great sadness")
}

func TestErrorWaiterRecoversPanics(t *testing.T) {
	var ew ErrorWaiter
	ew.Submit("boom", func() error { panic("kaboom") })

	failures := ew.Wait()
	require.Len(t, failures, 1)

	var perr *PanicError
	require.True(t, errors.As(failures[0].Err, &perr))
	assert.Equal(t, "boom", perr.Name)
	assert.Equal(t, "kaboom", perr.Value)
	assert.Equal(t, `"boom" panicked: kaboom`, perr.Error())
}
