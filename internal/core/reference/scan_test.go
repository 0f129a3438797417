package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Match
	}{
		{
			name: "plain text",
			text: "no references here",
			want: nil,
		},
		{
			name: "bare output reference",
			text: "@loader.docs",
			want: []Match{{Ref: Ref{Node: "loader", Output: "docs"}, Start: 0, End: 12}},
		},
		{
			name: "dotted and indexed path",
			text: "@loader.docs.items[0].name",
			want: []Match{{
				Ref: Ref{
					Node:   "loader",
					Output: "docs",
					Path: []Segment{
						{Kind: SegmentKey, Key: "items"},
						{Kind: SegmentIndex, Index: 0},
						{Kind: SegmentKey, Key: "name"},
					},
				},
				Start: 0,
				End:   26,
			}},
		},
		{
			name: "embedded in surrounding text",
			text: "summarize @loader.docs please",
			want: []Match{{Ref: Ref{Node: "loader", Output: "docs"}, Start: 10, End: 22}},
		},
		{
			name: "multiple references in one string",
			text: "@a.out and @b.out",
			want: []Match{
				{Ref: Ref{Node: "a", Output: "out"}, Start: 0, End: 6},
				{Ref: Ref{Node: "b", Output: "out"}, Start: 11, End: 17},
			},
		},
		{
			name: "adjacent references",
			text: "@a.out@b.out",
			want: []Match{
				{Ref: Ref{Node: "a", Output: "out"}, Start: 0, End: 6},
				{Ref: Ref{Node: "b", Output: "out"}, Start: 6, End: 12},
			},
		},
		{
			name: "slug with hyphen",
			text: "@OpenAIModel-x3f.text",
			want: []Match{{Ref: Ref{Node: "OpenAIModel-x3f", Output: "text"}, Start: 0, End: 21}},
		},
		{
			name: "missing output is plain text",
			text: "user@example no ref",
			want: nil,
		},
		{
			name: "bare at sign",
			text: "ping @ pong",
			want: nil,
		},
		{
			name: "unterminated bracket ends the path",
			text: "@a.out[12",
			want: []Match{{Ref: Ref{Node: "a", Output: "out"}, Start: 0, End: 6}},
		},
		{
			name: "non numeric index ends the path",
			text: "@a.out[x]",
			want: []Match{{Ref: Ref{Node: "a", Output: "out"}, Start: 0, End: 6}},
		},
		{
			name: "trailing dot stays text",
			text: "see @a.out.",
			want: []Match{{Ref: Ref{Node: "a", Output: "out"}, Start: 4, End: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(tt.text)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i], got[i])
			}
		})
	}
}

func TestRef_String(t *testing.T) {
	text := "@loader.docs.items[12].name"
	matches := Scan(text)
	require.Len(t, matches, 1)
	assert.Equal(t, text, matches[0].Ref.String())
}

func TestHasRef(t *testing.T) {
	assert.True(t, HasRef("prefix @a.out suffix"))
	assert.False(t, HasRef("plain text"))
}
