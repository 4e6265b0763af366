package rules

import (
	"testing"

	"xhrsaver/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestEngine_Match(t *testing.T) {
	e := New(model.InterceptConfig{TargetURL: "/atlas/v1/purchase-history/v2/details", TargetMethod: "POST"})

	testCases := []struct {
		name   string
		method string
		url    string
		want   bool
	}{
		{name: "exact", method: "POST", url: "https://host/atlas/v1/purchase-history/v2/details", want: true},
		{name: "lower_method", method: "post", url: "https://host/atlas/v1/purchase-history/v2/details?x=1", want: true},
		{name: "relative_url", method: "Post", url: "/atlas/v1/purchase-history/v2/details", want: true},
		{name: "wrong_method", method: "GET", url: "https://host/atlas/v1/purchase-history/v2/details", want: false},
		{name: "url_case_sensitive", method: "POST", url: "https://host/ATLAS/v1/purchase-history/v2/details", want: false},
		{name: "other_path", method: "POST", url: "https://host/atlas/v1/purchase-history/v2/summary", want: false},
		{name: "empty_method", method: "", url: "https://host/atlas/v1/purchase-history/v2/details", want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Match(tc.method, tc.url))
		})
	}
}

func TestEngine_NilAndEmpty(t *testing.T) {
	var e *Engine
	assert.False(t, e.Match("POST", "/x"))
	assert.False(t, New(model.InterceptConfig{TargetMethod: "POST"}).Match("POST", "/x"))
}

func TestEngine_URLPattern(t *testing.T) {
	e := New(model.InterceptConfig{TargetURL: "/a*b?c", TargetMethod: "POST"})
	assert.Equal(t, `*/a\*b\?c*`, e.URLPattern())
}
