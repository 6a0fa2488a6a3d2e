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

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesMarshalText(t *testing.T) {
	for code := range _codeToString {
		t.Run(code.String(), func(t *testing.T) {
			text, err := code.MarshalText()
			require.NoError(t, err)
			var got Code
			require.NoError(t, got.UnmarshalText(text))
			assert.Equal(t, code, got)
		})
	}
}

func TestCodesInJSON(t *testing.T) {
	type body struct {
		Code Code `json:"code"`
	}
	b, err := json.Marshal(body{Code: CodeNotFound})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"not-found"}`, string(b))

	var got body
	require.NoError(t, json.Unmarshal([]byte(`{"code":"Unavailable"}`), &got))
	assert.Equal(t, CodeUnavailable, got.Code)
}

func TestCodesMapOneToOne(t *testing.T) {
	require.Equal(t, len(_codeToString), len(_stringToCode))
	for code, s := range _codeToString {
		assert.Equal(t, code, _stringToCode[s])
	}
}

func TestCodesFailures(t *testing.T) {
	badCode := Code(100)
	assert.Equal(t, "100", badCode.String())
	_, err := badCode.MarshalText()
	assert.Error(t, err)
	assert.Error(t, badCode.UnmarshalText([]byte("200")))
}
