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

package svcencoding

import (
	"net/http"
	"testing"

	"github.com/gogo/protobuf/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/svcclient/svcerrors"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestJSON(t *testing.T) {
	assert.Equal(t, "application/json", JSON.ContentType())

	b, err := JSON.Marshal(item{ID: 42, Name: "widget"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"name":"widget"}`, string(b))

	var got item
	require.NoError(t, JSON.Unmarshal(b, &got))
	assert.Equal(t, item{ID: 42, Name: "widget"}, got)

	got = item{}
	assert.NoError(t, JSON.Unmarshal(nil, &got), "empty body decodes to zero value")
	assert.Equal(t, item{}, got)
}

func TestRaw(t *testing.T) {
	tests := []struct {
		msg  string
		give interface{}
		want []byte
	}{
		{msg: "bytes", give: []byte("abc"), want: []byte("abc")},
		{msg: "string", give: "abc", want: []byte("abc")},
		{msg: "nil", give: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, err := Raw.Marshal(tt.give)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Raw.Marshal(42)
	assert.Error(t, err)

	var out []byte
	require.NoError(t, Raw.Unmarshal([]byte("xyz"), &out))
	assert.Equal(t, []byte("xyz"), out)

	var s string
	require.NoError(t, Raw.Unmarshal([]byte("xyz"), &s))
	assert.Equal(t, "xyz", s)

	assert.Error(t, Raw.Unmarshal([]byte("xyz"), &item{}))
}

func TestProto(t *testing.T) {
	b, err := Proto.Marshal(&types.StringValue{Value: "hello"})
	require.NoError(t, err)

	var got types.StringValue
	require.NoError(t, Proto.Unmarshal(b, &got))
	assert.Equal(t, "hello", got.Value)

	_, err = Proto.Marshal(item{})
	assert.Error(t, err)
	assert.Error(t, Proto.Unmarshal(b, &item{}))
}

func TestJSONErrorsRoundTrip(t *testing.T) {
	give := svcerrors.Newf(svcerrors.CodeNotFound, "no item 42").
		WithName("ItemMissing").
		WithDetails([]byte{1, 2})

	body := JSONErrors.SerializeError(give)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.Equal(t, "application/json", body.ContentType)

	err := JSONErrors.DeserializeError(body)
	st := svcerrors.FromError(err)
	assert.Equal(t, svcerrors.CodeNotFound, st.Code())
	assert.Equal(t, "ItemMissing", st.Name())
	assert.Equal(t, "no item 42", st.Message())
	assert.Equal(t, []byte{1, 2}, st.Details())
}

func TestJSONErrorsDeserialize(t *testing.T) {
	tests := []struct {
		msg         string
		give        ErrorBody
		wantCode    svcerrors.Code
		wantMessage string
	}{
		{
			msg: "structured body overrides status",
			give: ErrorBody{
				StatusCode:  http.StatusBadRequest,
				ContentType: "application/json; charset=utf-8",
				Body:        []byte(`{"code":"out-of-range","message":"page 9"}`),
			},
			wantCode:    svcerrors.CodeOutOfRange,
			wantMessage: "page 9",
		},
		{
			msg: "message without code uses status",
			give: ErrorBody{
				StatusCode:  http.StatusForbidden,
				ContentType: "application/problem+json",
				Body:        []byte(`{"message":"nope"}`),
			},
			wantCode:    svcerrors.CodePermissionDenied,
			wantMessage: "nope",
		},
		{
			msg: "plain text",
			give: ErrorBody{
				StatusCode:  http.StatusServiceUnavailable,
				ContentType: "text/plain",
				Body:        []byte("try later\n"),
			},
			wantCode:    svcerrors.CodeUnavailable,
			wantMessage: "try later",
		},
		{
			msg: "json content type but not an error payload",
			give: ErrorBody{
				StatusCode:  http.StatusNotFound,
				ContentType: "application/json",
				Body:        []byte(`{"id":1}`),
			},
			wantCode:    svcerrors.CodeNotFound,
			wantMessage: `{"id":1}`,
		},
		{
			msg:         "empty body",
			give:        ErrorBody{StatusCode: http.StatusBadGateway},
			wantCode:    svcerrors.CodeUnknown,
			wantMessage: "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			st := svcerrors.FromError(JSONErrors.DeserializeError(tt.give))
			assert.Equal(t, tt.wantCode, st.Code())
			assert.Equal(t, tt.wantMessage, st.Message())
		})
	}
}

func TestJSONErrorsSerializeForeignError(t *testing.T) {
	body := JSONErrors.SerializeError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, body.StatusCode)
	assert.JSONEq(t, `{"code":"unknown","message":"`+assert.AnError.Error()+`"}`, string(body.Body))
}
