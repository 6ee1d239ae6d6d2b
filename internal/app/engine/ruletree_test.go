package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTreeAddRejectsBadInput(t *testing.T) {
	tree := NewRuleTree()
	assert.Error(t, tree.Add("not a path", RuleEntry{Matchers: []MatcherSpec{TypeMatcher()}}))
	assert.Error(t, tree.Add("$.a", RuleEntry{}))
}

func TestRuleTreeMergesSamePath(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$.a", CombineAND, TypeMatcher()))
	require.NoError(t, tree.AddMatchers("$.a", CombineAND, NotEmptyMatcher()))

	var paths []string
	tree.Walk(func(path Path, entry RuleEntry) {
		paths = append(paths, path.String())
		assert.Len(t, entry.Matchers, 2)
	})
	assert.Equal(t, []string{"$.a"}, paths)
}

func TestApplyMatchersEmptyTreeFallsBackToEquality(t *testing.T) {
	expected := hostValue(t, map[string]interface{}{"a": 1})
	actual := hostValue(t, map[string]interface{}{"a": 2})

	result := ApplyMatchers(NewRuleTree(), expected, actual)
	require.False(t, result.Matched)
	assert.Equal(t, "$.a", result.Mismatches[0].Path)
}

func TestApplyMatchersRuledPathOverridesEquality(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$.id", CombineAND, TypeMatcher()))

	expected := hostValue(t, map[string]interface{}{"id": 1, "name": "a"})
	actual := hostValue(t, map[string]interface{}{"id": 999, "name": "a"})

	result := ApplyMatchers(tree, expected, actual)
	assert.True(t, result.Matched)
}

func TestApplyMatchersUnruledSiblingStillCompared(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$.id", CombineAND, TypeMatcher()))

	expected := hostValue(t, map[string]interface{}{"id": 1, "name": "a"})
	actual := hostValue(t, map[string]interface{}{"id": 999, "name": "b"})

	result := ApplyMatchers(tree, expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.name", result.Mismatches[0].Path)
}

func TestApplyMatchersWildcardExpandsAgainstActual(t *testing.T) {
	tree := NewRuleTree()
	idRule, err := RegexMatcher(`[0-9]+`)
	require.NoError(t, err)
	require.NoError(t, tree.AddMatchers("$.items[*].id", CombineAND, idRule))

	expected := hostValue(t, map[string]interface{}{
		"items": []interface{}{map[string]interface{}{"id": "1"}},
	})
	actual := hostValue(t, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "42"},
			map[string]interface{}{"id": "abc"},
		},
	})

	result := ApplyMatchers(tree, expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.items[1].id", result.Mismatches[0].Path)
}

func TestApplyMatchersReportsEveryFailure(t *testing.T) {
	tree := NewRuleTree()
	digits, err := RegexMatcher(`[0-9]+`)
	require.NoError(t, err)
	require.NoError(t, tree.AddMatchers("$.a", CombineAND, digits))
	require.NoError(t, tree.AddMatchers("$.b", CombineAND, digits))

	expected := hostValue(t, map[string]interface{}{"a": "1", "b": "2"})
	actual := hostValue(t, map[string]interface{}{"a": "x", "b": "y"})

	result := ApplyMatchers(tree, expected, actual)
	require.False(t, result.Matched)
	assert.Len(t, result.Mismatches, 2)
}

func TestApplyMatchersMissingRuledEntry(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$.id", CombineAND, TypeMatcher()))

	expected := hostValue(t, map[string]interface{}{"id": 1})
	actual := NewMapping()

	result := ApplyMatchers(tree, expected, actual)
	require.False(t, result.Matched)
	assert.Equal(t, "$.id", result.Mismatches[0].Path)
}

func TestApplyMatchersORCombination(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$.val", CombineOR, IntegerMatcher(), NullMatcher()))

	expected := hostValue(t, map[string]interface{}{"val": 1})

	okActual := hostValue(t, map[string]interface{}{"val": nil})
	assert.True(t, ApplyMatchers(tree, expected, okActual).Matched)

	badActual := hostValue(t, map[string]interface{}{"val": "x"})
	result := ApplyMatchers(tree, expected, badActual)
	require.False(t, result.Matched)
	assert.Len(t, result.Mismatches, 2)
}

func TestApplyMatchersRootRule(t *testing.T) {
	tree := NewRuleTree()
	require.NoError(t, tree.AddMatchers("$", CombineAND, TypeMatcher()))

	result := ApplyMatchers(tree, String("template"), String("anything"))
	assert.True(t, result.Matched)

	result = ApplyMatchers(tree, String("template"), Integer(1))
	assert.False(t, result.Matched)
}

func TestApplyGeneratorsReplacesRuledPaths(t *testing.T) {
	tree := NewRuleTree()
	gen, err := RandomIntGenerator(10, 10)
	require.NoError(t, err)
	require.NoError(t, tree.AddGenerators("$.id", gen))

	template := hostValue(t, map[string]interface{}{"id": 1, "name": "fixed"})
	out, err := ApplyGenerators(tree, template, NewGenerationContext(1))
	require.NoError(t, err)

	m := out.(*Mapping)
	id, _ := m.GetString("id")
	assert.Equal(t, Integer(10), id)
	name, _ := m.GetString("name")
	assert.Equal(t, String("fixed"), name)
}

func TestApplyGeneratorsWildcardResolvesPerElement(t *testing.T) {
	tree := NewRuleTree()
	gen, err := RandomHexadecimalGenerator(8)
	require.NoError(t, err)
	require.NoError(t, tree.AddGenerators("$.items[*].id", gen))

	template := hostValue(t, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "aaaa"},
			map[string]interface{}{"id": "aaaa"},
		},
	})

	out, err := ApplyGenerators(tree, template, NewGenerationContext(1))
	require.NoError(t, err)

	items, _ := out.(*Mapping).GetString("items")
	seq := items.(Sequence)
	first, _ := seq[0].(*Mapping).GetString("id")
	second, _ := seq[1].(*Mapping).GetString("id")
	assert.Len(t, string(first.(String)), 8)
	assert.Len(t, string(second.(String)), 8)
	assert.NotEqual(t, first, second)
}

func TestApplyGeneratorsEmptyTreePassesThrough(t *testing.T) {
	template := hostValue(t, map[string]interface{}{"a": 1})
	out, err := ApplyGenerators(NewRuleTree(), template, NewGenerationContext(1))
	require.NoError(t, err)
	assert.True(t, Equal(template, out))
}
