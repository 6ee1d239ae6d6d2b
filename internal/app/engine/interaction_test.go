package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionRecordLifecycle(t *testing.T) {
	record := NewInteraction("a request for an account")
	record.Given("an account exists", map[string]interface{}{"id": 7})

	require.NoError(t, record.WithTemplate(PartResponse, TargetBody, map[string]interface{}{"id": 7, "name": "savings"}))

	rules := NewRuleTree()
	require.NoError(t, rules.AddMatchers("$.id", CombineAND, TypeMatcher()))
	require.NoError(t, record.WithRules(PartResponse, TargetBody, rules))

	result, err := record.Match(PartResponse, TargetBody, map[string]interface{}{"id": 99, "name": "savings"})
	require.NoError(t, err)
	assert.True(t, result.Matched)

	result, err = record.Match(PartResponse, TargetBody, map[string]interface{}{"id": 99, "name": "current"})
	require.NoError(t, err)
	require.False(t, result.Matched)
	assert.Equal(t, "$.name", result.Mismatches[0].Path)
}

func TestInteractionRecordMatchWithoutTemplate(t *testing.T) {
	record := NewInteraction("empty")
	_, err := record.Match(PartResponse, TargetBody, map[string]interface{}{})
	assert.Error(t, err)
}

func TestInteractionRecordRejectsUnknownTarget(t *testing.T) {
	record := NewInteraction("bad target")
	assert.Error(t, record.WithTemplate(PartRequest, Target("cookie"), "x"))
	assert.Error(t, record.WithRules(PartRequest, Target("cookie"), NewRuleTree()))
}

func TestInteractionRecordSealsOnPactAdd(t *testing.T) {
	record := NewInteraction("sealed")
	require.NoError(t, record.WithTemplate(PartResponse, TargetBody, "x"))

	pact := NewPact("consumer", "provider")
	pact.Add(record)

	assert.True(t, record.Sealed())
	assert.Error(t, record.WithTemplate(PartResponse, TargetBody, "y"))
	assert.Error(t, record.WithRules(PartResponse, TargetBody, NewRuleTree()))

	// matching still works after sealing
	result, err := record.Match(PartResponse, TargetBody, "x")
	require.NoError(t, err)
	assert.True(t, result.Matched)
}

func TestInteractionRecordGenerate(t *testing.T) {
	record := NewInteraction("generated id")
	require.NoError(t, record.WithTemplate(PartResponse, TargetBody, map[string]interface{}{"id": 1}))

	rules := NewRuleTree()
	gen, err := RandomIntGenerator(5, 5)
	require.NoError(t, err)
	require.NoError(t, rules.AddGenerators("$.id", gen))
	require.NoError(t, record.WithRules(PartResponse, TargetBody, rules))

	out, err := record.Generate(PartResponse, TargetBody, NewGenerationContext(1))
	require.NoError(t, err)
	id, _ := out.(*Mapping).GetString("id")
	assert.Equal(t, Integer(5), id)
}

func TestInteractionRecordTargets(t *testing.T) {
	record := NewInteraction("multi target")
	require.NoError(t, record.WithTemplate(PartRequest, TargetPath, "/accounts"))
	require.NoError(t, record.WithTemplate(PartRequest, TargetBody, map[string]interface{}{}))
	require.NoError(t, record.WithTemplate(PartResponse, TargetStatus, 200))

	assert.Equal(t, []Target{TargetPath, TargetBody}, record.Targets(PartRequest))
	assert.Equal(t, []Target{TargetStatus}, record.Targets(PartResponse))
}

func TestInteractionStore(t *testing.T) {
	store := &InteractionStore{}

	a := NewInteraction("first")
	b := NewInteraction("second")
	store.Store(a)
	store.Store(b)

	got, ok := store.Load("first")
	require.True(t, ok)
	assert.Same(t, a, got)

	all := store.All()
	assert.Len(t, all, 2)

	// storing under the same description replaces
	replacement := NewInteraction("first")
	store.Store(replacement)
	got, _ = store.Load("first")
	assert.Same(t, replacement, got)

	store.Clear()
	assert.Empty(t, store.All())
}

func TestPactAggregatesInteractions(t *testing.T) {
	pact := NewPact("my-consumer", "my-provider")
	assert.Equal(t, "my-consumer", pact.Consumer)
	assert.Equal(t, "my-provider", pact.Provider)

	pact.Add(NewInteraction("one"))
	pact.Add(NewInteraction("two"))

	assert.Len(t, pact.Interactions(), 2)
	_, ok := pact.Interaction("one")
	assert.True(t, ok)
	_, ok = pact.Interaction("missing")
	assert.False(t, ok)
}
