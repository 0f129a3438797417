// Package reference implements the inline expression language that lets one
// vertex's textual parameters point at another vertex's output, e.g.
// "@loader.docs.items[0].text". A reference is an ephemeral parse result;
// it is never persisted.
package reference

import (
	"strconv"
	"strings"
)

// SegmentKind distinguishes the two ways a path can address into a value.
type SegmentKind int

const (
	// SegmentKey addresses a map key or an exported struct field
	SegmentKey SegmentKind = iota
	// SegmentIndex addresses a slice or array element
	SegmentIndex
)

// Segment is one step of a dotted/indexed path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// Ref points at a named output of another vertex, with an optional path
// into that output's value.
type Ref struct {
	Node   string
	Output string
	Path   []Segment
}

// Match is a Ref together with the span of text it was parsed from, so
// multiple references inside one string can be substituted in place.
type Match struct {
	Ref   Ref
	Start int // byte offset of the leading '@'
	End   int // byte offset just past the last consumed character
}

// String renders the reference back in its source form.
func (r Ref) String() string {
	var b strings.Builder
	b.WriteByte('@')
	b.WriteString(r.Node)
	b.WriteByte('.')
	b.WriteString(r.Output)
	for _, seg := range r.Path {
		if seg.Kind == SegmentKey {
			b.WriteByte('.')
			b.WriteString(seg.Key)
		} else {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}
