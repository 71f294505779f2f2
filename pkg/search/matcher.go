package search

import (
	"strings"
	"unicode"

	"github.com/vanderheijden86/modeltree/pkg/document"
)

// MatchKind tells which value kind produced a result.
type MatchKind int

const (
	StringMatch MatchKind = iota + 1
	NumberMatch
	BooleanMatch
	DateMatch
	NullMatch
)

func (k MatchKind) String() string {
	switch k {
	case StringMatch:
		return "string-match"
	case NumberMatch:
		return "number-match"
	case BooleanMatch:
		return "boolean-match"
	case DateMatch:
		return "date-match"
	case NullMatch:
		return "null-match"
	}
	return "unknown-match"
}

// MatchKindOf maps a value kind to its result kind. Containers have none.
func MatchKindOf(k document.Kind) (MatchKind, bool) {
	switch k {
	case document.KindString:
		return StringMatch, true
	case document.KindNumber:
		return NumberMatch, true
	case document.KindBoolean:
		return BooleanMatch, true
	case document.KindDate:
		return DateMatch, true
	case document.KindNull:
		return NullMatch, true
	}
	return 0, false
}

// Span is a half-open rune range [Start, End) in a rendered value.
type Span struct {
	Start, End int
}

// Matcher finds query occurrences in the rendered text of a value.
type Matcher interface {
	Match(text, query string) []Span
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(text, query string) []Span

func (f MatcherFunc) Match(text, query string) []Span { return f(text, query) }

// Substring matches every non-overlapping occurrence of the query, left to
// right. With fold set, case is ignored.
func Substring(fold bool) Matcher {
	return MatcherFunc(func(text, query string) []Span {
		if query == "" {
			return nil
		}
		t, q := runes(text, fold), runes(query, fold)
		var spans []Span
		for i := 0; i+len(q) <= len(t); {
			if equalRunes(t[i:i+len(q)], q) {
				spans = append(spans, Span{Start: i, End: i + len(q)})
				i += len(q)
				continue
			}
			i++
		}
		return spans
	})
}

// Literal matches only when the query equals the whole rendered value, as
// for booleans ("true") and null ("null").
func Literal(fold bool) Matcher {
	return MatcherFunc(func(text, query string) []Span {
		if query == "" {
			return nil
		}
		if text == query || (fold && strings.EqualFold(text, query)) {
			return []Span{{Start: 0, End: len([]rune(text))}}
		}
		return nil
	})
}

// runes lowers rune by rune so offsets stay aligned with the original text.
func runes(s string, fold bool) []rune {
	rs := []rune(s)
	if fold {
		for i, r := range rs {
			rs[i] = unicode.ToLower(r)
		}
	}
	return rs
}

func equalRunes(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// defaultMatchers returns the matcher set used when nothing is registered.
func defaultMatchers(caseSensitive bool) map[document.Kind]Matcher {
	fold := !caseSensitive
	return map[document.Kind]Matcher{
		document.KindString:  Substring(fold),
		document.KindNumber:  Substring(fold),
		document.KindDate:    Substring(fold),
		document.KindBoolean: Literal(fold),
		document.KindNull:    Literal(fold),
	}
}
