package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherKindFromName(t *testing.T) {
	for name, want := range map[string]MatcherKind{
		"equality":      MatchEquality,
		"regex":         MatchRegex,
		"type":          MatchType,
		"include":       MatchInclude,
		"integer":       MatchInteger,
		"decimal":       MatchDecimal,
		"number":        MatchNumber,
		"timestamp":     MatchTimestamp,
		"time":          MatchTime,
		"date":          MatchDate,
		"null":          MatchNull,
		"boolean":       MatchBoolean,
		"contentType":   MatchContentType,
		"values":        MatchValues,
		"arrayContains": MatchArrayContains,
		"statusCode":    MatchStatusCode,
		"notEmpty":      MatchNotEmpty,
		"semver":        MatchSemver,
		"eachKey":       MatchEachKey,
		"eachValue":     MatchEachValue,
	} {
		got, err := MatcherKindFromName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
		assert.Equal(t, name, got.String())
	}
}

func TestMatcherKindFromNameUnknown(t *testing.T) {
	_, err := MatcherKindFromName("telepathy")
	require.Error(t, err)
	var unsupported *UnsupportedMatcherError
	assert.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestRegexMatcherValidation(t *testing.T) {
	spec, err := RegexMatcher(`\d{3}`)
	require.NoError(t, err)
	assert.Equal(t, `\d{3}`, spec.RegexPattern())

	_, err = RegexMatcher(`(`)
	require.Error(t, err)
	var malformed *MalformedSpecError
	assert.ErrorAs(t, err, &malformed)

	_, err = RegexMatcher("")
	assert.Error(t, err)
}

func TestRegexMatcherAnchorsFullMatch(t *testing.T) {
	spec, err := RegexMatcher(`\d{3}`)
	require.NoError(t, err)

	assert.True(t, spec.Pattern.MatchString("123"))
	assert.False(t, spec.Pattern.MatchString("1234"))
	assert.False(t, spec.Pattern.MatchString("a123"))
}

func TestTypeMatcherWithBoundsValidation(t *testing.T) {
	spec, err := TypeMatcherWithBounds(1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Min)
	assert.Equal(t, 5, spec.Max)

	_, err = TypeMatcherWithBounds(5, 1)
	assert.Error(t, err)
}

func TestTemporalMatcherDefaults(t *testing.T) {
	ts, err := TimestampMatcher("")
	require.NoError(t, err)
	assert.Equal(t, "yyyy-MM-dd'T'HH:mm:ssZ", ts.Format)

	tm, err := TimeMatcher("")
	require.NoError(t, err)
	assert.Equal(t, "HH:mm:ss", tm.Format)

	d, err := DateMatcher("")
	require.NoError(t, err)
	assert.Equal(t, "yyyy-MM-dd", d.Format)
}

func TestTemporalMatcherRejectsUnknownTokens(t *testing.T) {
	_, err := DateMatcher("QQQQ-oh-no")
	assert.Error(t, err)
}

func TestContentTypeMatcherValidation(t *testing.T) {
	spec, err := ContentTypeMatcher("application/json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", spec.Format)

	_, err = ContentTypeMatcher("not a media type")
	assert.Error(t, err)
	_, err = ContentTypeMatcher("")
	assert.Error(t, err)
}

func TestNestedRuleMatchersRequireRules(t *testing.T) {
	_, err := ValuesMatcher()
	assert.Error(t, err)
	_, err = EachKeyMatcher()
	assert.Error(t, err)
	_, err = EachValueMatcher()
	assert.Error(t, err)

	spec, err := EachValueMatcher(IntegerMatcher())
	require.NoError(t, err)
	assert.Len(t, spec.Rules, 1)
}

func TestArrayContainsMatcherValidation(t *testing.T) {
	_, err := ArrayContainsMatcher()
	assert.Error(t, err)

	_, err = ArrayContainsMatcher(ArrayVariant{Index: -1, Value: Integer(1)})
	assert.Error(t, err)

	spec, err := ArrayContainsMatcher(ArrayVariant{Index: 0, Value: Integer(1)})
	require.NoError(t, err)
	assert.Len(t, spec.Variants, 1)
}

func TestStatusCodeMatcherValidation(t *testing.T) {
	spec, err := StatusCodeMatcher(StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, spec.StatusClass)

	_, err = StatusCodeMatcher("fabulous")
	assert.Error(t, err)

	list, err := StatusCodeListMatcher(200, 201)
	require.NoError(t, err)
	assert.Equal(t, []int{200, 201}, list.StatusCodes)

	_, err = StatusCodeListMatcher()
	assert.Error(t, err)
	_, err = StatusCodeListMatcher(99)
	assert.Error(t, err)
}
