package reference

// Scan extracts every well-formed reference from text, in order of
// appearance. The scanner is tolerant: anything that does not parse as a
// complete "@node.output" head is left as plain text, and a malformed path
// tail (an unterminated or non-numeric bracket, a trailing dot) simply ends
// the reference before the bad tail instead of failing.
func Scan(text string) []Match {
	var matches []Match
	for i := 0; i < len(text); {
		if text[i] != '@' {
			i++
			continue
		}
		m, ok := scanRef(text, i)
		if !ok {
			i++
			continue
		}
		matches = append(matches, m)
		i = m.End
	}
	return matches
}

// HasRef reports whether text contains at least one well-formed reference.
func HasRef(text string) bool {
	return len(Scan(text)) > 0
}

// scanRef attempts to parse one reference starting at the '@' at offset
// start. It requires "@ident.ident"; the optional path is consumed greedily
// while it stays well formed.
func scanRef(text string, start int) (Match, bool) {
	i := start + 1
	node, i, ok := scanIdent(text, i)
	if !ok {
		return Match{}, false
	}
	if i >= len(text) || text[i] != '.' {
		return Match{}, false
	}
	output, j, ok := scanIdent(text, i+1)
	if !ok {
		return Match{}, false
	}
	i = j

	var path []Segment
	for i < len(text) {
		switch text[i] {
		case '.':
			key, j, ok := scanIdent(text, i+1)
			if !ok {
				// Trailing dot is plain text, not part of the reference.
				return Match{Ref: Ref{Node: node, Output: output, Path: path}, Start: start, End: i}, true
			}
			path = append(path, Segment{Kind: SegmentKey, Key: key})
			i = j
		case '[':
			idx, j, ok := scanIndex(text, i)
			if !ok {
				return Match{Ref: Ref{Node: node, Output: output, Path: path}, Start: start, End: i}, true
			}
			path = append(path, Segment{Kind: SegmentIndex, Index: idx})
			i = j
		default:
			return Match{Ref: Ref{Node: node, Output: output, Path: path}, Start: start, End: i}, true
		}
	}
	return Match{Ref: Ref{Node: node, Output: output, Path: path}, Start: start, End: i}, true
}

// scanIdent consumes an identifier: a letter or underscore, then letters,
// digits, underscores or hyphens. Hyphens admit the "Type-suffix" slugs the
// editor assigns to nodes.
func scanIdent(text string, i int) (string, int, bool) {
	if i >= len(text) || !isIdentStart(text[i]) {
		return "", i, false
	}
	j := i + 1
	for j < len(text) && isIdentPart(text[j]) {
		j++
	}
	return text[i:j], j, true
}

// scanIndex consumes "[N]" starting at the '[' at offset i.
func scanIndex(text string, i int) (int, int, bool) {
	j := i + 1
	n := 0
	digits := 0
	for j < len(text) && text[j] >= '0' && text[j] <= '9' {
		n = n*10 + int(text[j]-'0')
		digits++
		j++
	}
	if digits == 0 || j >= len(text) || text[j] != ']' {
		return 0, i, false
	}
	return n, j + 1, true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}
