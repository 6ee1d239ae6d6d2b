package engine

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Mismatch is one structured diff entry: the concrete path that failed and
// the semantic reason.
type Mismatch struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Reason   string `json:"reason"`
}

// MatchResult is the outcome of a matching pass. Mismatches are data, not
// errors: evaluation always completes and reports every failing sub-path.
type MatchResult struct {
	Matched    bool       `json:"matched"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

func resultOf(mismatches []Mismatch) MatchResult {
	return MatchResult{Matched: len(mismatches) == 0, Mismatches: mismatches}
}

// Combination is how multiple matchers at one path combine. The pact
// specification defaults to AND.
type Combination int

const (
	CombineAND Combination = iota
	CombineOR
)

func (c Combination) String() string {
	if c == CombineOR {
		return "OR"
	}
	return "AND"
}

// Evaluate applies a single matcher spec to an (expected, actual) pair at
// the document root.
func Evaluate(spec MatcherSpec, expected, actual Value) MatchResult {
	return resultOf(evaluate(spec, expected, actual, Path{}))
}

func mismatchAt(at Path, reason string, expected, actual Value) Mismatch {
	m := Mismatch{Path: at.String(), Reason: reason}
	if expected != nil {
		m.Expected = display(expected)
	}
	if actual != nil {
		m.Actual = display(actual)
	}
	return m
}

func display(v Value) string {
	b, err := MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind())
	}
	return string(b)
}

func evaluate(spec MatcherSpec, expected, actual Value, at Path) []Mismatch {
	switch spec.Kind {
	case MatchEquality:
		return diffValues(at, expected, actual)
	case MatchRegex:
		return evalRegex(spec, actual, at)
	case MatchType:
		return evalType(spec, expected, actual, at)
	case MatchInclude:
		return evalInclude(expected, actual, at)
	case MatchInteger:
		return evalInteger(actual, at)
	case MatchDecimal:
		return evalDecimal(actual, at)
	case MatchNumber:
		return evalNumber(actual, at)
	case MatchTimestamp, MatchTime, MatchDate:
		return evalTemporal(spec, actual, at)
	case MatchNull:
		if actual.Kind() != KindNull {
			return []Mismatch{mismatchAt(at, "expected null", nil, actual)}
		}
		return nil
	case MatchBoolean:
		return evalBoolean(actual, at)
	case MatchContentType:
		return evalContentType(spec, actual, at)
	case MatchValues:
		return evalValues(spec, actual, at)
	case MatchArrayContains:
		return evalArrayContains(spec, actual, at)
	case MatchStatusCode:
		return evalStatusCode(spec, actual, at)
	case MatchNotEmpty:
		return evalNotEmpty(actual, at)
	case MatchSemver:
		return evalSemver(actual, at)
	case MatchEachKey:
		return evalEachKey(spec, actual, at)
	case MatchEachValue:
		return evalEachValue(spec, actual, at)
	}
	// Unreachable for constructor-built specs.
	return []Mismatch{mismatchAt(at, fmt.Sprintf("unknown matcher kind %s", spec.Kind), nil, nil)}
}

// evaluateCombined applies several matchers at one path under the declared
// combination mode.
func evaluateCombined(specs []MatcherSpec, combine Combination, expected, actual Value, at Path) []Mismatch {
	if len(specs) == 0 {
		return nil
	}
	var all []Mismatch
	for _, spec := range specs {
		mismatches := evaluate(spec, expected, actual, at)
		if combine == CombineOR && len(mismatches) == 0 {
			return nil
		}
		all = append(all, mismatches...)
	}
	if combine == CombineOR {
		// Every alternative failed; report them all.
		return all
	}
	return all
}

// diffValues is the structural-equality diff: it recurses containers so the
// caller gets the failing leaves, not one opaque mismatch at the root.
func diffValues(at Path, expected, actual Value) []Mismatch {
	if expected == nil {
		return nil
	}
	if actual == nil {
		return []Mismatch{mismatchAt(at, "expected a value, found none", expected, nil)}
	}
	if expected.Kind() != actual.Kind() {
		if Equal(expected, actual) {
			return nil
		}
		return []Mismatch{mismatchAt(at, fmt.Sprintf("expected %s, got %s", expected.Kind(), actual.Kind()), expected, actual)}
	}

	switch exp := expected.(type) {
	case Sequence:
		act := actual.(Sequence)
		if len(exp) != len(act) {
			return []Mismatch{mismatchAt(at, fmt.Sprintf("expected %d elements, got %d", len(exp), len(act)), expected, actual)}
		}
		var out []Mismatch
		for i := range exp {
			out = append(out, diffValues(at.Child(Index(i)), exp[i], act[i])...)
		}
		return out
	case *Mapping:
		return diffMappings(at, exp, actual.(*Mapping))
	case *Record:
		act := actual.(*Record)
		if exp.Name != act.Name {
			return []Mismatch{mismatchAt(at, fmt.Sprintf("expected record %q, got %q", exp.Name, act.Name), expected, actual)}
		}
		return diffMappings(at, exp.Fields, act.Fields)
	default:
		if !Equal(expected, actual) {
			return []Mismatch{mismatchAt(at, "values differ", expected, actual)}
		}
		return nil
	}
}

func diffMappings(at Path, expected, actual *Mapping) []Mismatch {
	var out []Mismatch
	expected.Entries(func(key, val Value) bool {
		ck, _ := canonicalKey(key)
		child := at.Child(Literal(ck))
		other, ok := actual.Get(key)
		if !ok {
			out = append(out, mismatchAt(child, "expected entry is missing", val, nil))
			return true
		}
		out = append(out, diffValues(child, val, other)...)
		return true
	})
	actual.Entries(func(key, val Value) bool {
		if _, ok := expected.Get(key); !ok {
			ck, _ := canonicalKey(key)
			out = append(out, mismatchAt(at.Child(Literal(ck)), "unexpected entry", nil, val))
		}
		return true
	})
	return out
}

func evalRegex(spec MatcherSpec, actual Value, at Path) []Mismatch {
	s, ok := actual.(String)
	if !ok {
		return []Mismatch{mismatchAt(at, "regex matcher requires a string", nil, actual)}
	}
	if !spec.Pattern.MatchString(string(s)) {
		return []Mismatch{{
			Path:   at.String(),
			Actual: display(actual),
			Reason: fmt.Sprintf("%q does not match pattern %q", string(s), spec.RegexPattern()),
		}}
	}
	return nil
}

// evalType checks shape, not value. Containers are recursed: every actual
// element is type-checked against the expected template, reusing the last
// template element when the actual sequence is longer.
func evalType(spec MatcherSpec, expected, actual Value, at Path) []Mismatch {
	if !kindsCompatible(expected, actual) {
		return []Mismatch{mismatchAt(at, fmt.Sprintf("expected type %s, got %s", expected.Kind(), actual.Kind()), expected, actual)}
	}
	switch exp := expected.(type) {
	case Sequence:
		act := actual.(Sequence)
		var out []Mismatch
		if spec.Min >= 0 && len(act) < spec.Min {
			out = append(out, mismatchAt(at, fmt.Sprintf("expected at least %d elements, got %d", spec.Min, len(act)), nil, actual))
		}
		if spec.Max >= 0 && len(act) > spec.Max {
			out = append(out, mismatchAt(at, fmt.Sprintf("expected at most %d elements, got %d", spec.Max, len(act)), nil, actual))
		}
		if len(exp) == 0 {
			return out
		}
		for i, item := range act {
			out = append(out, evalType(spec, templateElement(exp, i), item, at.Child(Index(i)))...)
		}
		return out
	case *Mapping:
		act := actual.(*Mapping)
		var out []Mismatch
		exp.Entries(func(key, val Value) bool {
			ck, _ := canonicalKey(key)
			child := at.Child(Literal(ck))
			other, ok := act.Get(key)
			if !ok {
				out = append(out, mismatchAt(child, "expected entry is missing", val, nil))
				return true
			}
			out = append(out, evalType(spec, val, other, child)...)
			return true
		})
		return out
	default:
		return nil
	}
}

// templateElement picks the expected template for actual element i, reusing
// the last template element past the end.
func templateElement(exp Sequence, i int) Value {
	if i < len(exp) {
		return exp[i]
	}
	return exp[len(exp)-1]
}

// kindsCompatible treats integers and decimals as one numeric class: JSON
// carries a single number type.
func kindsCompatible(expected, actual Value) bool {
	if expected.Kind() == actual.Kind() {
		return true
	}
	return isNumeric(expected) && isNumeric(actual)
}

func isNumeric(v Value) bool {
	return v.Kind() == KindInteger || v.Kind() == KindDecimal
}

func evalInclude(expected, actual Value, at Path) []Mismatch {
	switch act := actual.(type) {
	case String:
		exp, ok := expected.(String)
		if !ok {
			return []Mismatch{mismatchAt(at, "include matcher on a string requires a string to search for", expected, actual)}
		}
		if !strings.Contains(string(act), string(exp)) {
			return []Mismatch{mismatchAt(at, fmt.Sprintf("%q does not include %q", string(act), string(exp)), expected, actual)}
		}
		return nil
	case Sequence:
		return includeElement(expected, act, at)
	case Set:
		return includeElement(expected, []Value(act), at)
	case *Mapping:
		if _, ok := act.Get(expected); ok {
			return nil
		}
		return []Mismatch{mismatchAt(at, "mapping does not include expected key", expected, actual)}
	}
	return []Mismatch{mismatchAt(at, "include matcher requires a string or container", expected, actual)}
}

func includeElement(expected Value, elems []Value, at Path) []Mismatch {
	for _, item := range elems {
		if Equal(expected, item) {
			return nil
		}
	}
	return []Mismatch{mismatchAt(at, "no element equals the expected value", expected, nil)}
}

func evalInteger(actual Value, at Path) []Mismatch {
	switch act := actual.(type) {
	case Integer:
		return nil
	case Decimal:
		if act.D.IsInteger() {
			return nil
		}
	}
	return []Mismatch{mismatchAt(at, "expected an integer", nil, actual)}
}

func evalDecimal(actual Value, at Path) []Mismatch {
	if actual.Kind() != KindDecimal {
		return []Mismatch{mismatchAt(at, "expected a decimal number", nil, actual)}
	}
	return nil
}

func evalNumber(actual Value, at Path) []Mismatch {
	if !isNumeric(actual) {
		return []Mismatch{mismatchAt(at, "expected a number", nil, actual)}
	}
	return nil
}

func evalTemporal(spec MatcherSpec, actual Value, at Path) []Mismatch {
	switch act := actual.(type) {
	case Temporal:
		return nil
	case String:
		if _, err := parseTemporal(spec.Format, string(act)); err != nil {
			return []Mismatch{{
				Path:   at.String(),
				Actual: display(actual),
				Reason: fmt.Sprintf("%q does not match %s format %q", string(act), spec.Kind, spec.Format),
			}}
		}
		return nil
	}
	return []Mismatch{mismatchAt(at, fmt.Sprintf("%s matcher requires a string", spec.Kind), nil, actual)}
}

func evalBoolean(actual Value, at Path) []Mismatch {
	switch act := actual.(type) {
	case Bool:
		return nil
	case String:
		// Headers and query parameters carry booleans as text.
		if act == "true" || act == "false" {
			return nil
		}
	}
	return []Mismatch{mismatchAt(at, "expected a boolean", nil, actual)}
}

func evalContentType(spec MatcherSpec, actual Value, at Path) []Mismatch {
	var data []byte
	switch act := actual.(type) {
	case String:
		data = []byte(act)
	case Bytes:
		data = act
	default:
		return []Mismatch{mismatchAt(at, "contentType matcher requires string or bytes content", nil, actual)}
	}
	if contentMatchesType(spec.Format, data) {
		return nil
	}
	return []Mismatch{mismatchAt(at, fmt.Sprintf("content is not valid %s", spec.Format), nil, nil)}
}

func contentMatchesType(mediaType string, data []byte) bool {
	switch mediaType {
	case "application/json":
		return json.Valid(data)
	case "application/xml", "text/xml":
		trimmed := strings.TrimSpace(string(data))
		return strings.HasPrefix(trimmed, "<")
	}
	detected := http.DetectContentType(data)
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		detected = detected[:idx]
	}
	if detected == mediaType {
		return true
	}
	// text/* detection is coarse; accept any text subtype for text content.
	return strings.HasPrefix(detected, "text/") && strings.HasPrefix(mediaType, "text/")
}

// evalValues applies the nested rules to every value of a container,
// ignoring keys. The nested rules see each element as its own template, so
// value-free kinds (type checks, regex, numeric checks) behave as written.
func evalValues(spec MatcherSpec, actual Value, at Path) []Mismatch {
	var out []Mismatch
	switch act := actual.(type) {
	case *Mapping:
		act.Entries(func(key, val Value) bool {
			ck, _ := canonicalKey(key)
			out = append(out, evaluateCombined(spec.Rules, CombineAND, val, val, at.Child(Literal(ck)))...)
			return true
		})
	case Sequence:
		for i, item := range act {
			out = append(out, evaluateCombined(spec.Rules, CombineAND, item, item, at.Child(Index(i)))...)
		}
	default:
		return []Mismatch{mismatchAt(at, "values matcher requires a mapping or sequence", nil, actual)}
	}
	return out
}

func evalEachKey(spec MatcherSpec, actual Value, at Path) []Mismatch {
	act, ok := actual.(*Mapping)
	if !ok {
		return []Mismatch{mismatchAt(at, "eachKey matcher requires a mapping", nil, actual)}
	}
	var out []Mismatch
	act.Entries(func(key, _ Value) bool {
		ck, _ := canonicalKey(key)
		out = append(out, evaluateCombined(spec.Rules, CombineAND, key, key, at.Child(Literal(ck)))...)
		return true
	})
	return out
}

func evalEachValue(spec MatcherSpec, actual Value, at Path) []Mismatch {
	act, ok := actual.(*Mapping)
	if !ok {
		return []Mismatch{mismatchAt(at, "eachValue matcher requires a mapping", nil, actual)}
	}
	var out []Mismatch
	act.Entries(func(key, val Value) bool {
		ck, _ := canonicalKey(key)
		out = append(out, evaluateCombined(spec.Rules, CombineAND, val, val, at.Child(Literal(ck)))...)
		return true
	})
	return out
}

func evalNotEmpty(actual Value, at Path) []Mismatch {
	empty := false
	switch act := actual.(type) {
	case Null:
		empty = true
	case String:
		empty = len(act) == 0
	case Bytes:
		empty = len(act) == 0
	case Sequence:
		empty = len(act) == 0
	case Set:
		empty = len(act) == 0
	case *Mapping:
		empty = act.Len() == 0
	}
	if empty {
		return []Mismatch{mismatchAt(at, "expected a non-empty value", nil, actual)}
	}
	return nil
}

func evalSemver(actual Value, at Path) []Mismatch {
	s, ok := actual.(String)
	if !ok {
		return []Mismatch{mismatchAt(at, "semver matcher requires a string", nil, actual)}
	}
	if _, err := semver.StrictNewVersion(string(s)); err != nil {
		return []Mismatch{mismatchAt(at, fmt.Sprintf("%q is not a valid semantic version", string(s)), nil, actual)}
	}
	return nil
}

func evalStatusCode(spec MatcherSpec, actual Value, at Path) []Mismatch {
	code, ok := actual.(Integer)
	if !ok {
		return []Mismatch{mismatchAt(at, "statusCode matcher requires an integer", nil, actual)}
	}
	if len(spec.StatusCodes) > 0 {
		for _, c := range spec.StatusCodes {
			if int(code) == c {
				return nil
			}
		}
		return []Mismatch{mismatchAt(at, fmt.Sprintf("status %d is not one of %v", code, spec.StatusCodes), nil, actual)}
	}
	bounds := statusClassRanges[spec.StatusClass]
	if int(code) < bounds[0] || int(code) > bounds[1] {
		return []Mismatch{mismatchAt(at, fmt.Sprintf("status %d is not a %s response", code, spec.StatusClass), nil, actual)}
	}
	return nil
}

// evalArrayContains checks that, for every variant, at least one element at
// or after the variant's start index satisfies the variant's rule tree (or
// equals the variant value if the variant carries no rules).
func evalArrayContains(spec MatcherSpec, actual Value, at Path) []Mismatch {
	act, ok := actual.(Sequence)
	if !ok {
		return []Mismatch{mismatchAt(at, "arrayContains matcher requires a sequence", nil, actual)}
	}
	var out []Mismatch
	for vi, variant := range spec.Variants {
		start := variant.Index
		if start > len(act) {
			start = len(act)
		}
		found := false
		for _, item := range act[start:] {
			if variantMatches(variant, item) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Mismatch{
				Path:     at.String(),
				Expected: display(variant.Value),
				Reason:   fmt.Sprintf("no element matches variant %d", vi),
			})
		}
	}
	return out
}

func variantMatches(variant ArrayVariant, item Value) bool {
	if variant.Rules == nil || variant.Rules.Empty() {
		return Equal(variant.Value, item)
	}
	return ApplyMatchers(variant.Rules, variant.Value, item).Matched
}
