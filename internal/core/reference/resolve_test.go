package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name    string
	Score   float64
	private string //nolint:unused // exercises the underscore/private denial path
}

func TestResolve(t *testing.T) {
	value := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "x"},
			map[string]interface{}{"name": "y"},
		},
		"meta":    map[string]string{"lang": "en"},
		"doc":     &doc{Name: "report", Score: 0.9},
		"_secret": "hidden",
	}

	path := func(segs ...Segment) []Segment { return segs }
	key := func(k string) Segment { return Segment{Kind: SegmentKey, Key: k} }
	idx := func(i int) Segment { return Segment{Kind: SegmentIndex, Index: i} }

	tests := []struct {
		name   string
		path   []Segment
		want   interface{}
		wantOK bool
	}{
		{"empty path returns value", nil, value, true},
		{"nested key and index", path(key("items"), idx(0), key("name")), "x", true},
		{"typed map key", path(key("meta"), key("lang")), "en", true},
		{"struct field through pointer", path(key("doc"), key("Name")), "report", true},
		{"lowercase struct field upcased", path(key("doc"), key("score")), 0.9, true},
		{"missing key", path(key("nope")), nil, false},
		{"index out of range", path(key("items"), idx(5)), nil, false},
		{"negative index", path(key("items"), idx(-1)), nil, false},
		{"index into map", path(key("meta"), idx(0)), nil, false},
		{"key into slice", path(key("items"), key("name")), nil, false},
		{"underscore key denied", path(key("_secret")), nil, false},
		{"unexported struct field denied", path(key("doc"), key("private")), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(value, tt.path)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestResolve_NilValue(t *testing.T) {
	got, ok := Resolve(nil, []Segment{{Kind: SegmentKey, Key: "a"}})
	assert.False(t, ok)
	assert.Nil(t, got)
}
