package search

import (
	"strings"

	"github.com/colonnade-fm/colonnade/internal/fs"
)

// Query describes one search session. Immutable once submitted; a newer
// Submit discards it.
type Query struct {
	Text          string
	Root          string
	SearchContent bool
}

// IsEmpty reports whether the query has nothing to match.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// ContentMatch is the three-state outcome of content matching: a file the
// engine never inspected (search disabled, over the size cap, binary, or
// unreadable) reports NotChecked rather than a false negative.
type ContentMatch int

const (
	ContentNotChecked ContentMatch = iota
	ContentNoMatch
	ContentMatched
)

func (m ContentMatch) String() string {
	switch m {
	case ContentMatched:
		return "matched"
	case ContentNoMatch:
		return "no-match"
	default:
		return "not-checked"
	}
}

// Result is one search hit. At least one of MatchedByName or
// Content==ContentMatched holds; an entry matching both ways is emitted
// once with both set.
type Result struct {
	Path          string
	Entry         fs.Entry
	MatchedByName bool
	Content       ContentMatch
}

// MatchedByContent reports a confirmed content hit.
func (r Result) MatchedByContent() bool { return r.Content == ContentMatched }

// matchFold reports whether s contains sub case-insensitively. sub must
// already be lower-cased by the caller.
func matchFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
