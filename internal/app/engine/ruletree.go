package engine

import (
	"fmt"
)

// RuleEntry is the rule set attached at one path: matchers with their
// combination mode, plus generators.
type RuleEntry struct {
	Matchers   []MatcherSpec
	Combine    Combination
	Generators []GeneratorSpec
}

type ruleNode struct {
	path  Path
	entry RuleEntry
}

// RuleTree is a sparse, path-keyed rule set over a value tree. Paths may
// carry wildcard segments; they are resolved against the shape of the actual
// value during application. RuleTrees are immutable once handed to an
// InteractionRecord and safe for concurrent read-only use.
type RuleTree struct {
	nodes []ruleNode
}

func NewRuleTree() *RuleTree {
	return &RuleTree{}
}

func (t *RuleTree) Empty() bool {
	return t == nil || len(t.nodes) == 0
}

// Add attaches an entry at the given path string, parsed once here.
func (t *RuleTree) Add(path string, entry RuleEntry) error {
	if len(entry.Matchers) == 0 && len(entry.Generators) == 0 {
		return &MalformedSpecError{Kind: "rule", Reason: fmt.Sprintf("entry at %q has neither matchers nor generators", path)}
	}
	parsed, err := ParsePath(path)
	if err != nil {
		return err
	}
	t.addParsed(parsed, entry)
	return nil
}

func (t *RuleTree) addParsed(path Path, entry RuleEntry) {
	for i := range t.nodes {
		if samePath(t.nodes[i].path, path) {
			t.nodes[i].entry.Matchers = append(t.nodes[i].entry.Matchers, entry.Matchers...)
			t.nodes[i].entry.Generators = append(t.nodes[i].entry.Generators, entry.Generators...)
			if len(entry.Matchers) > 0 {
				t.nodes[i].entry.Combine = entry.Combine
			}
			return
		}
	}
	t.nodes = append(t.nodes, ruleNode{path: path, entry: entry})
}

// AddMatchers attaches matchers at path with the given combination mode.
func (t *RuleTree) AddMatchers(path string, combine Combination, specs ...MatcherSpec) error {
	return t.Add(path, RuleEntry{Matchers: specs, Combine: combine})
}

// AddGenerators attaches generators at path.
func (t *RuleTree) AddGenerators(path string, specs ...GeneratorSpec) error {
	return t.Add(path, RuleEntry{Generators: specs})
}

// Walk visits every rule node. Used by the pact-file codec.
func (t *RuleTree) Walk(fn func(path Path, entry RuleEntry)) {
	if t == nil {
		return
	}
	for _, n := range t.nodes {
		fn(n.path, n.entry)
	}
}

func samePath(a, b Path) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchersAt collects the matchers of every rule path selecting the concrete
// path. More than one rule path can select a node (a literal plus a
// wildcard); their matchers join into one group under the last group's mode.
func (t *RuleTree) matchersAt(concrete Path) ([]MatcherSpec, Combination, bool) {
	var specs []MatcherSpec
	combine := CombineAND
	found := false
	for _, n := range t.nodes {
		if len(n.entry.Matchers) == 0 {
			continue
		}
		if n.path.Matches(concrete) {
			specs = append(specs, n.entry.Matchers...)
			combine = n.entry.Combine
			found = true
		}
	}
	return specs, combine, found
}

func (t *RuleTree) generatorsAt(concrete Path) []GeneratorSpec {
	for _, n := range t.nodes {
		if len(n.entry.Generators) > 0 && n.path.Matches(concrete) {
			return n.entry.Generators
		}
	}
	return nil
}

// hasMatcherBelow reports whether some rule path with matchers selects a node
// strictly below the concrete path.
func (t *RuleTree) hasMatcherBelow(concrete Path) bool {
	for _, n := range t.nodes {
		if len(n.entry.Matchers) > 0 && n.path.PrefixOf(concrete) {
			return true
		}
	}
	return false
}

// wildcardChildRuled reports whether a matcher rule selects the children of
// this node through a wildcard segment. Such rules describe "every element",
// so the actual collection is not held to the template's length.
func (t *RuleTree) wildcardChildRuled(concrete Path) bool {
	for _, n := range t.nodes {
		if len(n.entry.Matchers) == 0 || !n.path.PrefixOf(concrete) {
			continue
		}
		if n.path[len(concrete)].Kind == SegmentWildcard {
			return true
		}
	}
	return false
}

// ApplyMatchers walks the expected and actual trees in lockstep, applying
// the matchers selected at each concrete position and falling back to
// structural equality on subtrees no rule targets. The walk never
// short-circuits: the result aggregates every failing sub-path.
func ApplyMatchers(t *RuleTree, expected, actual Value) MatchResult {
	if t.Empty() {
		return resultOf(diffValues(Path{}, expected, actual))
	}
	var out []Mismatch
	applyMatchers(t, Path{}, expected, actual, false, &out)
	return resultOf(out)
}

func applyMatchers(t *RuleTree, at Path, expected, actual Value, underRule bool, out *[]Mismatch) {
	specs, combine, ruled := t.matchersAt(at)
	if ruled {
		*out = append(*out, evaluateCombined(specs, combine, expected, actual, at)...)
		underRule = true
	}

	if !t.hasMatcherBelow(at) {
		// Nothing deeper is ruled: unruled subtrees compare structurally,
		// ruled ones are already covered by the matcher applied above.
		if !underRule {
			*out = append(*out, diffValues(at, expected, actual)...)
		}
		return
	}

	switch act := actual.(type) {
	case *Mapping:
		exp, ok := expected.(*Mapping)
		if !ok {
			if !underRule {
				*out = append(*out, mismatchAt(at, fmt.Sprintf("expected %s, got mapping", expected.Kind()), expected, actual))
			}
			return
		}
		act.Entries(func(key, val Value) bool {
			ck, _ := canonicalKey(key)
			child := at.Child(Literal(ck))
			template, exists := exp.Get(key)
			if !exists {
				// Wildcard and eachValue style rules take the element as its
				// own template.
				template = val
				if !underRule && !pathRuled(t, child) {
					*out = append(*out, mismatchAt(child, "unexpected entry", nil, val))
					return true
				}
			}
			applyMatchers(t, child, template, val, underRule, out)
			return true
		})
		exp.Entries(func(key, val Value) bool {
			if _, exists := act.Get(key); exists {
				return true
			}
			ck, _ := canonicalKey(key)
			child := at.Child(Literal(ck))
			if !underRule || pathRuled(t, child) || t.hasMatcherBelow(child) {
				// A ruled path with no corresponding node is a non-match.
				*out = append(*out, mismatchAt(child, "expected entry is missing", val, nil))
			}
			return true
		})
	case Sequence:
		exp, ok := expected.(Sequence)
		if !ok {
			if !underRule {
				*out = append(*out, mismatchAt(at, fmt.Sprintf("expected %s, got sequence", expected.Kind()), expected, actual))
			}
			return
		}
		if !underRule && !t.wildcardChildRuled(at) && len(exp) != len(act) {
			*out = append(*out, mismatchAt(at, fmt.Sprintf("expected %d elements, got %d", len(exp), len(act)), expected, actual))
		}
		for i, item := range act {
			template := item
			if len(exp) > 0 {
				template = templateElement(exp, i)
			}
			applyMatchers(t, at.Child(Index(i)), template, item, underRule, out)
		}
	default:
		if !underRule {
			*out = append(*out, diffValues(at, expected, actual)...)
		}
	}
}

func pathRuled(t *RuleTree, concrete Path) bool {
	_, _, ruled := t.matchersAt(concrete)
	return ruled
}

// ApplyGenerators walks the template and replaces every node a generator
// rule selects with freshly resolved output; unruled nodes pass through
// unchanged. Wildcard paths resolve independently per matching element.
func ApplyGenerators(t *RuleTree, template Value, ctx *GenerationContext) (Value, error) {
	if t.Empty() {
		return template, nil
	}
	return applyGenerators(t, Path{}, template, ctx)
}

func applyGenerators(t *RuleTree, at Path, template Value, ctx *GenerationContext) (Value, error) {
	if gens := t.generatorsAt(at); len(gens) > 0 {
		// One generator per path; the loader rejects multiples.
		return Resolve(gens[0], ctx)
	}

	switch tpl := template.(type) {
	case *Mapping:
		out := NewMapping()
		var walkErr error
		tpl.Entries(func(key, val Value) bool {
			ck, _ := canonicalKey(key)
			replaced, err := applyGenerators(t, at.Child(Literal(ck)), val, ctx)
			if err != nil {
				walkErr = err
				return false
			}
			walkErr = out.Set(key, replaced)
			return walkErr == nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
		return out, nil
	case Sequence:
		out := make(Sequence, len(tpl))
		for i, item := range tpl {
			replaced, err := applyGenerators(t, at.Child(Index(i)), item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = replaced
		}
		return out, nil
	case *Record:
		fields, err := applyGenerators(t, at, tpl.Fields, ctx)
		if err != nil {
			return nil, err
		}
		return &Record{Name: tpl.Name, Fields: fields.(*Mapping)}, nil
	default:
		return template, nil
	}
}
