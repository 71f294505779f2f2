// Package modelpath addresses elements inside a document tree.
//
// A Path is an ordered list of segments. String segments select a key of an
// object container, integer segments select an index of an array container.
// The empty path addresses the root.
//
// Paths render in a dot/bracket notation:
//
//	$                 root
//	settings.theme    object keys
//	items[2].name     array index then key
//	["odd.key"][0]    keys that are not plain identifiers are quoted
package modelpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned by Parse for malformed path strings.
var ErrSyntax = errors.New("invalid path syntax")

// Segment is a single step in a Path.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns an object-key segment.
func Key(k string) Segment {
	return Segment{key: k}
}

// Index returns an array-index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment addresses an array element.
func (s Segment) IsIndex() bool { return s.isIndex }

// Key returns the object key. Only meaningful when !IsIndex().
func (s Segment) Key() string { return s.key }

// Index returns the array index. Only meaningful when IsIndex().
func (s Segment) Index() int { return s.index }

// String renders the segment the way it appears inside a path, without the
// leading separator.
func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	if isIdent(s.key) {
		return s.key
	}
	return "[" + strconv.Quote(s.key) + "]"
}

// Path addresses a node relative to the tree root.
type Path []Segment

// Root is the empty path.
var Root = Path(nil)

// New builds a path from keys (string) and indices (int). It panics on any
// other element type; it is meant for literals in tests and call sites.
func New(parts ...any) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			p = append(p, Key(v))
		case int:
			p = append(p, Index(v))
		default:
			panic(fmt.Sprintf("modelpath.New: unsupported segment %T", part))
		}
	}
	return p
}

// IsRoot reports whether p addresses the root.
func (p Path) IsRoot() bool { return len(p) == 0 }

// Append returns a new path with seg appended. p is never modified.
func (p Path) Append(seg ...Segment) Path {
	out := make(Path, 0, len(p)+len(seg))
	out = append(out, p...)
	return append(out, seg...)
}

// Parent returns the path without its last segment. The parent of the root
// is the root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment. ok is false for the root.
func (p Path) Last() (seg Segment, ok bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both paths address the same location.
func (p Path) Equal(other Path) bool {
	return len(p) == len(other) && p.HasPrefix(other)
}

// String renders the path in dot/bracket notation. The root renders as "$".
func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	var b strings.Builder
	for i, seg := range p {
		if i > 0 && !seg.isIndex && isIdent(seg.key) {
			b.WriteByte('.')
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Parse reads a path written by Path.String. A leading "$" is optional.
func Parse(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return Root, nil
	}

	var p Path
	for i := 0; i < len(s); {
		switch s[i] {
		case '.':
			if i == len(s)-1 || s[i+1] == '.' || s[i+1] == '[' {
				return nil, fmt.Errorf("%w: empty key at offset %d in %q", ErrSyntax, i, s)
			}
			i++
		case '[':
			end, seg, err := parseBracket(s, i)
			if err != nil {
				return nil, err
			}
			p = append(p, seg)
			i = end
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			p = append(p, Key(s[i:j]))
			i = j
		}
	}
	return p, nil
}

// parseBracket parses "[3]" or "[\"key\"]" starting at s[start] == '['.
// It returns the offset just past the closing bracket.
func parseBracket(s string, start int) (int, Segment, error) {
	rest := s[start+1:]
	if strings.HasPrefix(rest, `"`) {
		// Find the closing quote honouring escapes.
		for j := 1; j < len(rest); j++ {
			if rest[j] == '\\' {
				j++
				continue
			}
			if rest[j] == '"' {
				key, err := strconv.Unquote(rest[:j+1])
				if err != nil {
					return 0, Segment{}, fmt.Errorf("%w: %v", ErrSyntax, err)
				}
				if j+1 >= len(rest) || rest[j+1] != ']' {
					return 0, Segment{}, fmt.Errorf("%w: missing ] after quoted key in %q", ErrSyntax, s)
				}
				return start + 1 + j + 2, Key(key), nil
			}
		}
		return 0, Segment{}, fmt.Errorf("%w: unterminated quoted key in %q", ErrSyntax, s)
	}

	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, Segment{}, fmt.Errorf("%w: missing ] in %q", ErrSyntax, s)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil || n < 0 {
		return 0, Segment{}, fmt.Errorf("%w: bad index %q", ErrSyntax, rest[:end])
	}
	return start + 1 + end + 1, Index(n), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '-':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
