package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostValue(t *testing.T, host interface{}) Value {
	t.Helper()
	v, err := FromHost(host)
	require.NoError(t, err)
	return v
}

func TestEvaluateEquality(t *testing.T) {
	result := Evaluate(EqualityMatcher(), Integer(5), Integer(5))
	assert.True(t, result.Matched)

	result = Evaluate(EqualityMatcher(), Integer(5), Integer(6))
	require.False(t, result.Matched)
	assert.Equal(t, "$", result.Mismatches[0].Path)
}

func TestEvaluateEqualityDiffsNestedLeaves(t *testing.T) {
	expected := hostValue(t, map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": "x", "d": "y"}})
	actual := hostValue(t, map[string]interface{}{"a": 1, "b": map[string]interface{}{"c": "x", "d": "z"}})

	result := Evaluate(EqualityMatcher(), expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.b.d", result.Mismatches[0].Path)
}

func TestEvaluateRegex(t *testing.T) {
	spec, err := RegexMatcher(`\d{3}`)
	require.NoError(t, err)

	for _, tt := range []struct {
		name    string
		actual  Value
		matched bool
	}{
		{"full match", String("123"), true},
		{"longer string", String("1234"), false},
		{"substring only", String("abc123"), false},
		{"not a string", Integer(123), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(spec, String("123"), tt.actual)
			assert.Equal(t, tt.matched, result.Matched)
		})
	}
}

func TestEvaluateType(t *testing.T) {
	for _, tt := range []struct {
		name     string
		expected Value
		actual   Value
		matched  bool
	}{
		{"same scalar kind", Integer(1), Integer(999), true},
		{"numeric class", Integer(1), mustDecimal(t, "2.5"), true},
		{"kind mismatch", Integer(1), String("x"), false},
		{"string vs string", String("template"), String("other"), true},
		{"bool vs string", Bool(true), String("true"), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(TypeMatcher(), tt.expected, tt.actual)
			assert.Equal(t, tt.matched, result.Matched)
		})
	}
}

func TestEvaluateTypeRecursesContainers(t *testing.T) {
	expected := hostValue(t, map[string]interface{}{"id": 1, "name": "a"})
	actual := hostValue(t, map[string]interface{}{"id": "oops", "name": "b"})

	result := Evaluate(TypeMatcher(), expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.id", result.Mismatches[0].Path)
}

func TestEvaluateTypeReusesLastTemplateElement(t *testing.T) {
	expected := Sequence{Integer(1)}
	actual := Sequence{Integer(10), Integer(20), String("x")}

	result := Evaluate(TypeMatcher(), expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$[2]", result.Mismatches[0].Path)
}

func TestEvaluateTypeBounds(t *testing.T) {
	spec, err := TypeMatcherWithBounds(2, 3)
	require.NoError(t, err)

	expected := Sequence{Integer(1)}
	assert.True(t, Evaluate(spec, expected, Sequence{Integer(1), Integer(2)}).Matched)
	assert.False(t, Evaluate(spec, expected, Sequence{Integer(1)}).Matched)
	assert.False(t, Evaluate(spec, expected, Sequence{Integer(1), Integer(2), Integer(3), Integer(4)}).Matched)
}

func TestEvaluateInclude(t *testing.T) {
	for _, tt := range []struct {
		name     string
		expected Value
		actual   Value
		matched  bool
	}{
		{"substring", String("world"), String("hello world"), true},
		{"missing substring", String("mars"), String("hello world"), false},
		{"sequence element", Integer(2), Sequence{Integer(1), Integer(2)}, true},
		{"missing element", Integer(9), Sequence{Integer(1), Integer(2)}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(IncludeMatcher(), tt.expected, tt.actual)
			assert.Equal(t, tt.matched, result.Matched)
		})
	}
}

func TestEvaluateIncludeMappingKey(t *testing.T) {
	m := NewMapping()
	require.NoError(t, m.Set(String("present"), Integer(1)))
	assert.True(t, Evaluate(IncludeMatcher(), String("present"), m).Matched)
	assert.False(t, Evaluate(IncludeMatcher(), String("absent"), m).Matched)
}

func TestEvaluateNumericMatchers(t *testing.T) {
	integral := mustDecimal(t, "3.0")
	fractional := mustDecimal(t, "3.5")

	assert.True(t, Evaluate(IntegerMatcher(), nil, Integer(3)).Matched)
	assert.True(t, Evaluate(IntegerMatcher(), nil, integral).Matched)
	assert.False(t, Evaluate(IntegerMatcher(), nil, fractional).Matched)
	assert.False(t, Evaluate(IntegerMatcher(), nil, String("3")).Matched)

	assert.True(t, Evaluate(DecimalMatcher(), nil, fractional).Matched)
	assert.False(t, Evaluate(DecimalMatcher(), nil, Integer(3)).Matched)

	assert.True(t, Evaluate(NumberMatcher(), nil, Integer(3)).Matched)
	assert.True(t, Evaluate(NumberMatcher(), nil, fractional).Matched)
	assert.False(t, Evaluate(NumberMatcher(), nil, String("3")).Matched)
}

func TestEvaluateTemporalMatchers(t *testing.T) {
	date, err := DateMatcher("yyyy-MM-dd")
	require.NoError(t, err)
	assert.True(t, Evaluate(date, nil, String("2024-05-01")).Matched)
	assert.False(t, Evaluate(date, nil, String("01/05/2024")).Matched)
	assert.False(t, Evaluate(date, nil, Integer(20240501)).Matched)

	ts, err := TimestampMatcher("yyyy-MM-dd'T'HH:mm:ss")
	require.NoError(t, err)
	assert.True(t, Evaluate(ts, nil, String("2024-05-01T13:45:30")).Matched)
	assert.False(t, Evaluate(ts, nil, String("2024-05-01")).Matched)
}

func TestEvaluateNullAndBoolean(t *testing.T) {
	assert.True(t, Evaluate(NullMatcher(), nil, Null{}).Matched)
	assert.False(t, Evaluate(NullMatcher(), nil, Integer(0)).Matched)

	assert.True(t, Evaluate(BooleanMatcher(), nil, Bool(false)).Matched)
	assert.True(t, Evaluate(BooleanMatcher(), nil, String("true")).Matched)
	assert.False(t, Evaluate(BooleanMatcher(), nil, String("yes")).Matched)
}

func TestEvaluateContentType(t *testing.T) {
	jsonSpec, err := ContentTypeMatcher("application/json")
	require.NoError(t, err)
	assert.True(t, Evaluate(jsonSpec, nil, String(`{"a":1}`)).Matched)
	assert.False(t, Evaluate(jsonSpec, nil, String(`{"a":`)).Matched)

	xmlSpec, err := ContentTypeMatcher("application/xml")
	require.NoError(t, err)
	assert.True(t, Evaluate(xmlSpec, nil, String(`<doc/>`)).Matched)
	assert.False(t, Evaluate(xmlSpec, nil, String(`plain text`)).Matched)
}

func TestEvaluateValues(t *testing.T) {
	spec, err := ValuesMatcher(IntegerMatcher())
	require.NoError(t, err)

	actual := hostValue(t, map[string]interface{}{"a": 1, "b": 2})
	assert.True(t, Evaluate(spec, nil, actual).Matched)

	actual = hostValue(t, map[string]interface{}{"a": 1, "b": "x"})
	result := Evaluate(spec, nil, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.b", result.Mismatches[0].Path)
}

func TestEvaluateEachKey(t *testing.T) {
	keyRule, err := RegexMatcher(`[a-z]+`)
	require.NoError(t, err)
	spec, err := EachKeyMatcher(keyRule)
	require.NoError(t, err)

	assert.True(t, Evaluate(spec, nil, hostValue(t, map[string]interface{}{"abc": 1, "def": 2})).Matched)

	result := Evaluate(spec, nil, hostValue(t, map[string]interface{}{"abc": 1, "DEF": 2}))
	require.False(t, result.Matched)
	assert.Equal(t, "$.DEF", result.Mismatches[0].Path)
}

func TestEvaluateEachValue(t *testing.T) {
	spec, err := EachValueMatcher(TypeMatcher())
	require.NoError(t, err)

	// elements act as their own templates, so a type rule passes per element
	assert.True(t, Evaluate(spec, nil, hostValue(t, map[string]interface{}{"a": 1, "b": "x"})).Matched)

	numeric, err := EachValueMatcher(IntegerMatcher())
	require.NoError(t, err)
	result := Evaluate(numeric, nil, hostValue(t, map[string]interface{}{"a": 1, "b": "x"}))
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 1)
	assert.Equal(t, "$.b", result.Mismatches[0].Path)
}

func TestEvaluateNotEmpty(t *testing.T) {
	assert.True(t, Evaluate(NotEmptyMatcher(), nil, String("x")).Matched)
	assert.True(t, Evaluate(NotEmptyMatcher(), nil, Integer(0)).Matched)
	assert.False(t, Evaluate(NotEmptyMatcher(), nil, String("")).Matched)
	assert.False(t, Evaluate(NotEmptyMatcher(), nil, Sequence{}).Matched)
	assert.False(t, Evaluate(NotEmptyMatcher(), nil, Null{}).Matched)
	assert.False(t, Evaluate(NotEmptyMatcher(), nil, NewMapping()).Matched)
}

func TestEvaluateSemver(t *testing.T) {
	assert.True(t, Evaluate(SemverMatcher(), nil, String("1.2.3")).Matched)
	assert.True(t, Evaluate(SemverMatcher(), nil, String("1.2.3-rc.1")).Matched)
	assert.False(t, Evaluate(SemverMatcher(), nil, String("1.2")).Matched)
	assert.False(t, Evaluate(SemverMatcher(), nil, String("v1.2.3")).Matched)
	assert.False(t, Evaluate(SemverMatcher(), nil, Integer(1)).Matched)
}

func TestEvaluateStatusCode(t *testing.T) {
	success, err := StatusCodeMatcher(StatusSuccess)
	require.NoError(t, err)
	assert.True(t, Evaluate(success, nil, Integer(204)).Matched)
	assert.False(t, Evaluate(success, nil, Integer(404)).Matched)

	errClass, err := StatusCodeMatcher(StatusError)
	require.NoError(t, err)
	assert.True(t, Evaluate(errClass, nil, Integer(404)).Matched)
	assert.True(t, Evaluate(errClass, nil, Integer(500)).Matched)
	assert.False(t, Evaluate(errClass, nil, Integer(200)).Matched)

	list, err := StatusCodeListMatcher(200, 201)
	require.NoError(t, err)
	assert.True(t, Evaluate(list, nil, Integer(201)).Matched)
	assert.False(t, Evaluate(list, nil, Integer(202)).Matched)
}

func TestEvaluateArrayContains(t *testing.T) {
	spec, err := ArrayContainsMatcher(ArrayVariant{Index: 0, Value: String("b")})
	require.NoError(t, err)

	actual := Sequence{String("a"), String("b"), String("c")}
	assert.True(t, Evaluate(spec, nil, actual).Matched)

	assert.False(t, Evaluate(spec, nil, Sequence{String("a"), String("c")}).Matched)
}

func TestEvaluateArrayContainsStartIndex(t *testing.T) {
	spec, err := ArrayContainsMatcher(ArrayVariant{Index: 2, Value: String("a")})
	require.NoError(t, err)

	// the match must occur at or after the start index
	assert.False(t, Evaluate(spec, nil, Sequence{String("a"), String("b")}).Matched)
	assert.True(t, Evaluate(spec, nil, Sequence{String("x"), String("y"), String("a")}).Matched)
}

func TestEvaluateArrayContainsWithRules(t *testing.T) {
	rules := NewRuleTree()
	idRule, err := RegexMatcher(`[0-9]+`)
	require.NoError(t, err)
	require.NoError(t, rules.AddMatchers("$.id", CombineAND, idRule))

	template := hostValue(t, map[string]interface{}{"id": "1"})
	spec, err := ArrayContainsMatcher(ArrayVariant{Index: 0, Value: template, Rules: rules})
	require.NoError(t, err)

	matching := Sequence{hostValue(t, map[string]interface{}{"id": "42"})}
	assert.True(t, Evaluate(spec, nil, matching).Matched)

	nonMatching := Sequence{hostValue(t, map[string]interface{}{"id": "abc"})}
	assert.False(t, Evaluate(spec, nil, nonMatching).Matched)
}

func TestEvaluateCombinedOR(t *testing.T) {
	integer := IntegerMatcher()
	null := NullMatcher()

	mismatches := evaluateCombined([]MatcherSpec{integer, null}, CombineOR, nil, Null{}, Path{})
	assert.Empty(t, mismatches)

	mismatches = evaluateCombined([]MatcherSpec{integer, null}, CombineOR, nil, String("x"), Path{})
	assert.Len(t, mismatches, 2)
}

func TestEvaluateCombinedANDReportsAll(t *testing.T) {
	regex, err := RegexMatcher(`\d+`)
	require.NoError(t, err)

	mismatches := evaluateCombined([]MatcherSpec{regex, NotEmptyMatcher()}, CombineAND, nil, String("abc"), Path{})
	assert.Len(t, mismatches, 1)

	mismatches = evaluateCombined([]MatcherSpec{regex, IntegerMatcher()}, CombineAND, nil, String("abc"), Path{})
	assert.Len(t, mismatches, 2)
}

func TestEvaluateNeverShortCircuits(t *testing.T) {
	expected := hostValue(t, map[string]interface{}{"a": 1, "b": 2, "c": 3})
	actual := hostValue(t, map[string]interface{}{"a": 9, "b": 2, "c": 8})

	result := Evaluate(EqualityMatcher(), expected, actual)
	require.False(t, result.Matched)
	require.Len(t, result.Mismatches, 2)
	assert.Equal(t, "$.a", result.Mismatches[0].Path)
	assert.Equal(t, "$.c", result.Mismatches[1].Path)
}
