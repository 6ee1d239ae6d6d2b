package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SegmentKind discriminates path segments.
type SegmentKind int

const (
	SegmentLiteral SegmentKind = iota
	SegmentIndex
	SegmentWildcard
)

// Segment is one step of a document path: a literal key, an array index, or
// a wildcard covering every element or key at that level.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

func Literal(key string) Segment { return Segment{Kind: SegmentLiteral, Key: key} }
func Index(i int) Segment        { return Segment{Kind: SegmentIndex, Index: i} }
func Wildcard() Segment          { return Segment{Kind: SegmentWildcard} }

// Path addresses a node in a Value tree relative to its root. Rule paths are
// parsed once at construction time; the evaluation walk never re-parses
// strings.
type Path []Segment

// ParsePath parses doc-path expressions of the pact matching-rule shape:
// "$", "$.a.b", "$.items[0].id", "$.items[*]", "$.*", "$['a key']".
func ParsePath(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s[0] != '$' {
		return nil, errors.Errorf("invalid path %q: must start with '$'", raw)
	}
	s = s[1:]

	var path Path
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			if len(s) == 0 {
				return nil, errors.Errorf("invalid path %q: trailing '.'", raw)
			}
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			key := s[:end]
			if key == "" {
				return nil, errors.Errorf("invalid path %q: empty segment", raw)
			}
			if key == "*" {
				path = append(path, Wildcard())
			} else {
				path = append(path, Literal(key))
			}
			s = s[end:]
		case '[':
			closing := strings.IndexByte(s, ']')
			if closing < 0 {
				return nil, errors.Errorf("invalid path %q: unterminated '['", raw)
			}
			inner := s[1:closing]
			s = s[closing+1:]
			switch {
			case inner == "*":
				path = append(path, Wildcard())
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"'):
				if inner[len(inner)-1] != inner[0] {
					return nil, errors.Errorf("invalid path %q: unterminated quote", raw)
				}
				path = append(path, Literal(inner[1:len(inner)-1]))
			default:
				idx, err := strconv.Atoi(inner)
				if err != nil || idx < 0 {
					return nil, errors.Errorf("invalid path %q: bad index %q", raw, inner)
				}
				path = append(path, Index(idx))
			}
		default:
			return nil, errors.Errorf("invalid path %q: unexpected %q", raw, s[0])
		}
	}
	return path, nil
}

// MustParsePath is ParsePath for statically known paths.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range p {
		switch seg.Kind {
		case SegmentLiteral:
			if strings.ContainsAny(seg.Key, ".[]* '\"") {
				fmt.Fprintf(&b, "['%s']", seg.Key)
			} else {
				b.WriteByte('.')
				b.WriteString(seg.Key)
			}
		case SegmentIndex:
			fmt.Fprintf(&b, "[%d]", seg.Index)
		case SegmentWildcard:
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// Child returns a new path extended with seg; the receiver is not mutated.
func (p Path) Child(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Matches reports whether a (possibly wildcarded) rule path selects the
// given concrete path. Wildcards span exactly one segment.
func (p Path) Matches(concrete Path) bool {
	if len(p) != len(concrete) {
		return false
	}
	for i, seg := range p {
		if !seg.matches(concrete[i]) {
			return false
		}
	}
	return true
}

// PrefixOf reports whether the rule path selects some node strictly below
// every node the concrete path could reach, i.e. concrete is a prefix of p.
func (p Path) PrefixOf(concrete Path) bool {
	if len(p) <= len(concrete) {
		return false
	}
	for i, seg := range concrete {
		if !p[i].matches(seg) {
			return false
		}
	}
	return true
}

func (s Segment) matches(concrete Segment) bool {
	switch s.Kind {
	case SegmentWildcard:
		return true
	case SegmentLiteral:
		return concrete.Kind == SegmentLiteral && concrete.Key == s.Key
	case SegmentIndex:
		return concrete.Kind == SegmentIndex && concrete.Index == s.Index
	}
	return false
}
