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
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/svcclient/svcerrors"
)

// JSONErrors is the default ErrorSerializer. It writes
//
//	{"code":"not-found","name":"...","message":"...","details":"<base64>"}
//
// with the HTTP status matching the code. Bodies that are not structured
// errors are read as plain text and classified by HTTP status alone.
var JSONErrors ErrorSerializer = jsonErrors{}

type jsonErrors struct{}

type errorPayload struct {
	Code    *svcerrors.Code `json:"code,omitempty"`
	Name    string          `json:"name,omitempty"`
	Message string          `json:"message,omitempty"`
	Details []byte          `json:"details,omitempty"`
}

func (jsonErrors) SerializeError(err error) ErrorBody {
	st := svcerrors.FromError(err)
	code := st.Code()
	payload := errorPayload{
		Code:    &code,
		Name:    st.Name(),
		Message: st.Message(),
		Details: st.Details(),
	}
	body, mErr := json.Marshal(payload)
	if mErr != nil {
		// only reachable with an unknown code; fall back to plain text
		return ErrorBody{
			StatusCode:  http.StatusInternalServerError,
			ContentType: "text/plain",
			Body:        []byte(st.Message()),
		}
	}
	return ErrorBody{
		StatusCode:  svcerrors.HTTPStatus(code),
		ContentType: "application/json",
		Body:        body,
	}
}

func (jsonErrors) DeserializeError(body ErrorBody) error {
	code := svcerrors.CodeFromHTTPStatus(body.StatusCode)
	if code == svcerrors.CodeOK {
		code = svcerrors.CodeUnknown
	}

	if isJSON(body.ContentType) {
		var payload errorPayload
		if err := json.Unmarshal(body.Body, &payload); err == nil && (payload.Code != nil || payload.Message != "") {
			if payload.Code != nil && *payload.Code != svcerrors.CodeOK {
				code = *payload.Code
			}
			return svcerrors.Newf(code, "%s", payload.Message).
				WithName(payload.Name).
				WithDetails(payload.Details)
		}
	}

	msg := strings.TrimSuffix(string(body.Body), "\n")
	if msg == "" {
		msg = http.StatusText(body.StatusCode)
	}
	return svcerrors.Newf(code, "%s", msg)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
