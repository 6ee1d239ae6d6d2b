package engine

import (
	"fmt"
	"mime"
	"regexp"
)

// MatcherKind enumerates every supported matching rule. The set is closed;
// evaluation dispatches on it exhaustively, so an unknown kind can only be
// seen at construction time.
type MatcherKind int

const (
	MatchEquality MatcherKind = iota
	MatchRegex
	MatchType
	MatchInclude
	MatchInteger
	MatchDecimal
	MatchNumber
	MatchTimestamp
	MatchTime
	MatchDate
	MatchNull
	MatchBoolean
	MatchContentType
	MatchValues
	MatchArrayContains
	MatchStatusCode
	MatchNotEmpty
	MatchSemver
	MatchEachKey
	MatchEachValue
)

var matcherKindNames = map[MatcherKind]string{
	MatchEquality:      "equality",
	MatchRegex:         "regex",
	MatchType:          "type",
	MatchInclude:       "include",
	MatchInteger:       "integer",
	MatchDecimal:       "decimal",
	MatchNumber:        "number",
	MatchTimestamp:     "timestamp",
	MatchTime:          "time",
	MatchDate:          "date",
	MatchNull:          "null",
	MatchBoolean:       "boolean",
	MatchContentType:   "contentType",
	MatchValues:        "values",
	MatchArrayContains: "arrayContains",
	MatchStatusCode:    "statusCode",
	MatchNotEmpty:      "notEmpty",
	MatchSemver:        "semver",
	MatchEachKey:       "eachKey",
	MatchEachValue:     "eachValue",
}

var matcherKindsByName = func() map[string]MatcherKind {
	out := make(map[string]MatcherKind, len(matcherKindNames))
	for k, name := range matcherKindNames {
		out[name] = k
	}
	return out
}()

func (k MatcherKind) String() string {
	if name, ok := matcherKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("matcher(%d)", int(k))
}

// MatcherKindFromName resolves the pact-file kind string. Unknown names fail
// with UnsupportedMatcherError so malformed contracts are rejected before any
// evaluation runs.
func MatcherKindFromName(name string) (MatcherKind, error) {
	if k, ok := matcherKindsByName[name]; ok {
		return k, nil
	}
	return 0, &UnsupportedMatcherError{Name: name}
}

// UnsupportedMatcherError reports an unknown matcher kind string.
type UnsupportedMatcherError struct {
	Name string
}

func (e *UnsupportedMatcherError) Error() string {
	return fmt.Sprintf("unsupported matcher kind %q", e.Name)
}

// MalformedSpecError reports a matcher or generator built with missing or
// invalid parameters.
type MalformedSpecError struct {
	Kind   string
	Reason string
}

func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("malformed %s spec: %s", e.Kind, e.Reason)
}

// StatusCodeClass names the response classes the statusCode matcher accepts.
type StatusCodeClass string

const (
	StatusInformation StatusCodeClass = "information"
	StatusSuccess     StatusCodeClass = "success"
	StatusRedirect    StatusCodeClass = "redirect"
	StatusClientError StatusCodeClass = "clientError"
	StatusServerError StatusCodeClass = "serverError"
	StatusError       StatusCodeClass = "error"
)

var statusClassRanges = map[StatusCodeClass][2]int{
	StatusInformation: {100, 199},
	StatusSuccess:     {200, 299},
	StatusRedirect:    {300, 399},
	StatusClientError: {400, 499},
	StatusServerError: {500, 599},
	StatusError:       {400, 599},
}

// ArrayVariant is one arrayContains alternative: the element template, the
// search start index, and the rules the candidate element must satisfy.
type ArrayVariant struct {
	Index int
	Value Value
	Rules *RuleTree
}

// MatcherSpec is a validated matching rule. Build specs through the
// constructors below; params required per kind are checked there, never
// during evaluation.
type MatcherSpec struct {
	Kind MatcherKind

	// Pattern is set for regex matchers; matching is anchored to the full
	// string, never a substring search.
	Pattern *regexp.Regexp
	// Format carries the timestamp/time/date format or the contentType
	// media type.
	Format string
	// Min and Max bound sequence length for type matchers; negative means
	// unbounded.
	Min, Max int
	// Variants are the arrayContains alternatives.
	Variants []ArrayVariant
	// Rules are the nested matchers of values/eachKey/eachValue.
	Rules []MatcherSpec
	// StatusClass and StatusCodes parameterize statusCode matchers; exactly
	// one of them is set.
	StatusClass StatusCodeClass
	StatusCodes []int
}

func EqualityMatcher() MatcherSpec { return MatcherSpec{Kind: MatchEquality} }
func TypeMatcher() MatcherSpec     { return MatcherSpec{Kind: MatchType, Min: -1, Max: -1} }
func IncludeMatcher() MatcherSpec  { return MatcherSpec{Kind: MatchInclude} }
func IntegerMatcher() MatcherSpec  { return MatcherSpec{Kind: MatchInteger} }
func DecimalMatcher() MatcherSpec  { return MatcherSpec{Kind: MatchDecimal} }
func NumberMatcher() MatcherSpec   { return MatcherSpec{Kind: MatchNumber} }
func NullMatcher() MatcherSpec     { return MatcherSpec{Kind: MatchNull} }
func BooleanMatcher() MatcherSpec  { return MatcherSpec{Kind: MatchBoolean} }
func NotEmptyMatcher() MatcherSpec { return MatcherSpec{Kind: MatchNotEmpty} }
func SemverMatcher() MatcherSpec   { return MatcherSpec{Kind: MatchSemver} }

// RegexMatcher compiles the pattern eagerly; a bad pattern is a construction
// error, not an evaluation one.
func RegexMatcher(pattern string) (MatcherSpec, error) {
	if pattern == "" {
		return MatcherSpec{}, &MalformedSpecError{Kind: "regex", Reason: "pattern is required"}
	}
	re, err := regexp.Compile(anchor(pattern))
	if err != nil {
		return MatcherSpec{}, &MalformedSpecError{Kind: "regex", Reason: err.Error()}
	}
	return MatcherSpec{Kind: MatchRegex, Pattern: re, Format: pattern}, nil
}

func anchor(pattern string) string {
	return "\\A(?:" + pattern + ")\\z"
}

// TypeMatcherWithBounds is a type matcher that also bounds sequence length.
// A negative bound means unbounded.
func TypeMatcherWithBounds(min, max int) (MatcherSpec, error) {
	if min >= 0 && max >= 0 && min > max {
		return MatcherSpec{}, &MalformedSpecError{Kind: "type", Reason: fmt.Sprintf("min %d exceeds max %d", min, max)}
	}
	return MatcherSpec{Kind: MatchType, Min: min, Max: max}, nil
}

func TimestampMatcher(format string) (MatcherSpec, error) {
	return temporalMatcher(MatchTimestamp, format, "yyyy-MM-dd'T'HH:mm:ssZ")
}

func TimeMatcher(format string) (MatcherSpec, error) {
	return temporalMatcher(MatchTime, format, "HH:mm:ss")
}

func DateMatcher(format string) (MatcherSpec, error) {
	return temporalMatcher(MatchDate, format, "yyyy-MM-dd")
}

func temporalMatcher(kind MatcherKind, format, fallback string) (MatcherSpec, error) {
	if format == "" {
		format = fallback
	}
	if _, err := simpleDateFormatToLayout(format); err != nil {
		return MatcherSpec{}, &MalformedSpecError{Kind: kind.String(), Reason: err.Error()}
	}
	return MatcherSpec{Kind: kind, Format: format}, nil
}

func ContentTypeMatcher(mediaType string) (MatcherSpec, error) {
	if mediaType == "" {
		return MatcherSpec{}, &MalformedSpecError{Kind: "contentType", Reason: "media type is required"}
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return MatcherSpec{}, &MalformedSpecError{Kind: "contentType", Reason: err.Error()}
	}
	return MatcherSpec{Kind: MatchContentType, Format: parsed}, nil
}

// ValuesMatcher applies the nested rules to every value of a mapping or
// every element of a sequence, ignoring keys.
func ValuesMatcher(rules ...MatcherSpec) (MatcherSpec, error) {
	if len(rules) == 0 {
		return MatcherSpec{}, &MalformedSpecError{Kind: "values", Reason: "at least one nested rule is required"}
	}
	return MatcherSpec{Kind: MatchValues, Rules: rules}, nil
}

func EachKeyMatcher(rules ...MatcherSpec) (MatcherSpec, error) {
	if len(rules) == 0 {
		return MatcherSpec{}, &MalformedSpecError{Kind: "eachKey", Reason: "at least one nested rule is required"}
	}
	return MatcherSpec{Kind: MatchEachKey, Rules: rules}, nil
}

func EachValueMatcher(rules ...MatcherSpec) (MatcherSpec, error) {
	if len(rules) == 0 {
		return MatcherSpec{}, &MalformedSpecError{Kind: "eachValue", Reason: "at least one nested rule is required"}
	}
	return MatcherSpec{Kind: MatchEachValue, Rules: rules}, nil
}

func ArrayContainsMatcher(variants ...ArrayVariant) (MatcherSpec, error) {
	if len(variants) == 0 {
		return MatcherSpec{}, &MalformedSpecError{Kind: "arrayContains", Reason: "at least one variant is required"}
	}
	for i, v := range variants {
		if v.Value == nil {
			return MatcherSpec{}, &MalformedSpecError{Kind: "arrayContains", Reason: fmt.Sprintf("variant %d has no value", i)}
		}
		if v.Index < 0 {
			return MatcherSpec{}, &MalformedSpecError{Kind: "arrayContains", Reason: fmt.Sprintf("variant %d has negative index", i)}
		}
	}
	return MatcherSpec{Kind: MatchArrayContains, Variants: variants}, nil
}

func StatusCodeMatcher(class StatusCodeClass) (MatcherSpec, error) {
	if _, ok := statusClassRanges[class]; !ok {
		return MatcherSpec{}, &MalformedSpecError{Kind: "statusCode", Reason: fmt.Sprintf("unknown status class %q", class)}
	}
	return MatcherSpec{Kind: MatchStatusCode, StatusClass: class}, nil
}

func StatusCodeListMatcher(codes ...int) (MatcherSpec, error) {
	if len(codes) == 0 {
		return MatcherSpec{}, &MalformedSpecError{Kind: "statusCode", Reason: "at least one status code is required"}
	}
	for _, c := range codes {
		if c < 100 || c > 599 {
			return MatcherSpec{}, &MalformedSpecError{Kind: "statusCode", Reason: fmt.Sprintf("status code %d out of range", c)}
		}
	}
	return MatcherSpec{Kind: MatchStatusCode, StatusCodes: codes}, nil
}

// RegexPattern returns the original, unanchored pattern for serialization.
func (s MatcherSpec) RegexPattern() string {
	if s.Kind != MatchRegex {
		return ""
	}
	return s.Format
}
