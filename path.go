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

package svcclient

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// PathTemplate is a parsed call path such as
//
//	/items/{id}/reviews?page&size
//
// Path parameters occupy a whole segment. Query parameters follow the '?'
// and are separated by '&'. Arguments bind to path parameters first and
// then to query parameters, in declared order. A trailing slash is kept;
// repeated slashes collapse to one.
type PathTemplate struct {
	raw           string
	segments      []pathSegment
	query         []string
	trailingSlash bool

	// err is set when the template came from RestCall or StreamCall and
	// failed to parse. NewDescriptor reports it.
	err error
}

type pathSegment struct {
	value string
	param bool
}

// ParsePathTemplate parses a path template.
func ParsePathTemplate(s string) (PathTemplate, error) {
	tmpl := PathTemplate{raw: s}

	path, query := s, ""
	if i := strings.IndexByte(s, '?'); i >= 0 {
		path, query = s[:i], s[i+1:]
	}
	if !strings.HasPrefix(path, "/") {
		return PathTemplate{}, fmt.Errorf("path template %q must start with '/'", s)
	}

	tmpl.trailingSlash = len(path) > 1 && strings.HasSuffix(path, "/")

	seen := make(map[string]struct{})
	addParam := func(name string) error {
		if name == "" {
			return fmt.Errorf("path template %q has an empty parameter name", s)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("path template %q declares parameter %q more than once", s, name)
		}
		seen[name] = struct{}{}
		return nil
	}

	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		open, closed := strings.HasPrefix(seg, "{"), strings.HasSuffix(seg, "}")
		switch {
		case open && closed:
			name := seg[1 : len(seg)-1]
			if err := addParam(name); err != nil {
				return PathTemplate{}, err
			}
			tmpl.segments = append(tmpl.segments, pathSegment{value: name, param: true})
		case open || closed || strings.ContainsAny(seg, "{}"):
			return PathTemplate{}, fmt.Errorf("path template %q has a malformed segment %q", s, seg)
		default:
			tmpl.segments = append(tmpl.segments, pathSegment{value: seg})
		}
	}

	if query != "" {
		for _, name := range strings.Split(query, "&") {
			if err := addParam(name); err != nil {
				return PathTemplate{}, err
			}
			tmpl.query = append(tmpl.query, name)
		}
	}
	return tmpl, nil
}

func templateOf(s string) PathTemplate {
	tmpl, err := ParsePathTemplate(s)
	if err != nil {
		return PathTemplate{raw: s, err: err}
	}
	return tmpl
}

// String returns the template as written.
func (t PathTemplate) String() string { return t.raw }

// Params lists parameter names in binding order.
func (t PathTemplate) Params() []string {
	var params []string
	for _, seg := range t.segments {
		if seg.param {
			params = append(params, seg.value)
		}
	}
	return append(params, t.query...)
}

// Arity is the number of arguments the template binds.
func (t PathTemplate) Arity() int {
	n := len(t.query)
	for _, seg := range t.segments {
		if seg.param {
			n++
		}
	}
	return n
}

// Expand substitutes args into the template and returns the request path
// with its query string.
//
// A nil argument omits its query parameter; path parameters may not be nil.
func (t PathTemplate) Expand(args []interface{}) (string, error) {
	path, query, err := t.expand(args)
	if err != nil {
		return "", err
	}
	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

// expand returns the escaped path and the encoded query separately.
func (t PathTemplate) expand(args []interface{}) (escapedPath, rawQuery string, err error) {
	if t.err != nil {
		return "", "", t.err
	}
	if len(args) != t.Arity() {
		return "", "", fmt.Errorf("path template %q takes %d arguments, got %d", t.raw, t.Arity(), len(args))
	}

	var (
		sb strings.Builder
		i  int
	)
	for _, seg := range t.segments {
		sb.WriteByte('/')
		if !seg.param {
			sb.WriteString(seg.value)
			continue
		}
		v, ok, err := formatArg(args[i])
		if err != nil {
			return "", "", fmt.Errorf("path parameter %q: %v", seg.value, err)
		}
		if !ok {
			return "", "", fmt.Errorf("path parameter %q may not be nil", seg.value)
		}
		sb.WriteString(url.PathEscape(v))
		i++
	}
	if sb.Len() == 0 || t.trailingSlash {
		sb.WriteByte('/')
	}

	if len(t.query) == 0 {
		return sb.String(), "", nil
	}

	// url.Values.Encode sorts keys; build by hand to keep declared order.
	var qs []string
	for _, name := range t.query {
		v, ok, err := formatArg(args[i])
		i++
		if err != nil {
			return "", "", fmt.Errorf("query parameter %q: %v", name, err)
		}
		if !ok {
			continue
		}
		qs = append(qs, url.QueryEscape(name)+"="+url.QueryEscape(v))
	}
	return sb.String(), strings.Join(qs, "&"), nil
}

// formatArg renders an argument. ok is false for nil values.
func formatArg(arg interface{}) (s string, ok bool, err error) {
	if arg == nil {
		return "", false, nil
	}
	if v := reflect.ValueOf(arg); v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", false, nil
		}
	}

	switch a := arg.(type) {
	case string:
		return a, true, nil
	case encoding.TextMarshaler:
		b, err := a.MarshalText()
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	case fmt.Stringer:
		return a.String(), true, nil
	}

	if v := reflect.ValueOf(arg); v.Kind() == reflect.Ptr {
		arg = v.Elem().Interface()
	}
	return fmt.Sprint(arg), true, nil
}
