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

import "fmt"

// Raw passes bytes through untouched. It marshals []byte and string values
// and unmarshals into *[]byte or *string.
var Raw Serializer = rawSerializer{}

type rawSerializer struct{}

func (rawSerializer) ContentType() string { return "application/octet-stream" }

func (rawSerializer) Marshal(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("raw serializer cannot marshal %T", v)
	}
}

func (rawSerializer) Unmarshal(data []byte, v interface{}) error {
	switch out := v.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = append((*out)[:0], data...)
		return nil
	case *string:
		*out = string(data)
		return nil
	default:
		return fmt.Errorf("raw serializer cannot unmarshal into %T", v)
	}
}
