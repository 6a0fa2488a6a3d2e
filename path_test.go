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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathTemplate(t *testing.T) {
	tests := []struct {
		msg     string
		give    string
		params  []string
		wantErr string
	}{
		{msg: "root", give: "/"},
		{msg: "literal", give: "/items"},
		{msg: "path param", give: "/items/{id}", params: []string{"id"}},
		{
			msg:    "path and query",
			give:   "/items/{id}/reviews/{rid}?page&size",
			params: []string{"id", "rid", "page", "size"},
		},
		{msg: "query only", give: "/search?q", params: []string{"q"}},
		{msg: "relative", give: "items", wantErr: "must start with '/'"},
		{msg: "empty name", give: "/items/{}", wantErr: "empty parameter name"},
		{msg: "empty query name", give: "/items?a&", wantErr: "empty parameter name"},
		{msg: "duplicate", give: "/items/{id}?id", wantErr: `declares parameter "id" more than once`},
		{msg: "unclosed", give: "/items/{id", wantErr: "malformed segment"},
		{msg: "partial", give: "/items/x{id}", wantErr: "malformed segment"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			tmpl, err := ParsePathTemplate(tt.give)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.params, tmpl.Params())
			assert.Equal(t, len(tt.params), tmpl.Arity())
			assert.Equal(t, tt.give, tmpl.String())
		})
	}
}

type itemID int

func (i itemID) String() string { return "item-" + string(rune('0'+int(i))) }

func TestPathTemplateExpand(t *testing.T) {
	page := 2
	var noPage *int

	tests := []struct {
		msg     string
		tmpl    string
		args    []interface{}
		want    string
		wantErr string
	}{
		{msg: "no params", tmpl: "/items", want: "/items"},
		{msg: "root", tmpl: "/", want: "/"},
		{msg: "trailing slash kept", tmpl: "/items/", want: "/items/"},
		{msg: "trailing slash after param", tmpl: "/items/{id}/?page", args: []interface{}{3, 1}, want: "/items/3/?page=1"},
		{msg: "repeated slashes collapse", tmpl: "//items//{id}", args: []interface{}{3}, want: "/items/3"},
		{msg: "int", tmpl: "/items/{id}", args: []interface{}{42}, want: "/items/42"},
		{msg: "string escaped", tmpl: "/items/{id}", args: []interface{}{"a b/c"}, want: "/items/a%20b%2Fc"},
		{msg: "stringer", tmpl: "/items/{id}", args: []interface{}{itemID(7)}, want: "/items/item-7"},
		{msg: "text marshaler", tmpl: "/hosts/{ip}", args: []interface{}{net.ParseIP("10.0.0.1")}, want: "/hosts/10.0.0.1"},
		{
			msg:  "query in declared order",
			tmpl: "/items/{id}?size&page",
			args: []interface{}{1, 10, &page},
			want: "/items/1?size=10&page=2",
		},
		{
			msg:  "nil query omitted",
			tmpl: "/items?page&q",
			args: []interface{}{noPage, "x y"},
			want: "/items?q=x+y",
		},
		{msg: "all query nil", tmpl: "/items?page", args: []interface{}{nil}, want: "/items"},
		{msg: "nil path param", tmpl: "/items/{id}", args: []interface{}{nil}, wantErr: `path parameter "id" may not be nil`},
		{msg: "too few", tmpl: "/items/{id}", wantErr: "takes 1 arguments, got 0"},
		{msg: "too many", tmpl: "/items", args: []interface{}{1}, wantErr: "takes 0 arguments, got 1"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			tmpl, err := ParsePathTemplate(tt.tmpl)
			require.NoError(t, err)

			got, err := tmpl.Expand(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRestCallMalformedPath(t *testing.T) {
	c := RestCall("bad", "GET /items/{id")
	_, err := c.Path.Expand([]interface{}{1})
	assert.Error(t, err)
}
