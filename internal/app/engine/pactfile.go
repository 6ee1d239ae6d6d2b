package engine

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Pact-file codec. The on-wire schema is fixed by the pact specification:
// matcher kinds are the "match" strings, rules live under per-target
// "matchingRules" objects keyed by doc paths, generators likewise. The
// reader is tolerant of both v2-style flat rules ("$.body.x": {...}) and
// v3-style grouped rules, the way the wider ecosystem writes them.

const pactSpecificationVersion = "4.0"

// MarshalPactFile renders the pact with every interaction, rule and
// generator in the canonical interaction-file schema.
func MarshalPactFile(p *Pact) ([]byte, error) {
	interactions := p.Interactions()
	sort.Slice(interactions, func(i, j int) bool {
		return interactions[i].Description < interactions[j].Description
	})
	encoded := make([]interface{}, 0, len(interactions))
	for _, record := range interactions {
		one, err := encodeInteraction(record)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, one)
	}

	doc := map[string]interface{}{
		"consumer":     map[string]string{"name": p.Consumer},
		"provider":     map[string]string{"name": p.Provider},
		"interactions": encoded,
		"metadata": map[string]interface{}{
			"pactSpecification": map[string]string{"version": pactSpecificationVersion},
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

func encodeInteraction(record *InteractionRecord) (map[string]interface{}, error) {
	out := map[string]interface{}{
		"description": record.Description,
	}
	if record.Key != "" {
		out["key"] = record.Key
	}
	if states := record.ProviderStates(); len(states) > 0 {
		out["providerStates"] = states
	}

	for _, part := range []Part{PartRequest, PartResponse} {
		targets := record.Targets(part)
		if len(targets) == 0 {
			continue
		}
		section := map[string]interface{}{}
		matchingRules := map[string]interface{}{}
		generators := map[string]interface{}{}

		for _, target := range targets {
			if template, ok := record.Template(part, target); ok {
				raw, err := MarshalValue(template)
				if err != nil {
					return nil, errors.Wrapf(err, "marshal %s %s template", part, target)
				}
				section[sectionKey(target)] = json.RawMessage(raw)
			}
			rules := record.Rules(part, target)
			ruleObj, genObj := encodeRuleTree(rules)
			if len(ruleObj) > 0 {
				matchingRules[string(target)] = ruleObj
			}
			if len(genObj) > 0 {
				generators[string(target)] = genObj
			}
		}
		if len(matchingRules) > 0 {
			section["matchingRules"] = matchingRules
		}
		if len(generators) > 0 {
			section["generators"] = generators
		}
		out[string(part)] = section
	}
	return out, nil
}

func sectionKey(target Target) string {
	switch target {
	case TargetHeader:
		return "headers"
	case TargetQuery:
		return "query"
	case TargetPath:
		return "path"
	case TargetStatus:
		return "status"
	case TargetMetadata:
		return "metadata"
	default:
		return "body"
	}
}

func encodeRuleTree(t *RuleTree) (map[string]interface{}, map[string]interface{}) {
	rules := map[string]interface{}{}
	gens := map[string]interface{}{}
	t.Walk(func(path Path, entry RuleEntry) {
		key := path.String()
		if len(entry.Matchers) > 0 {
			matchers := make([]interface{}, 0, len(entry.Matchers))
			for _, m := range entry.Matchers {
				matchers = append(matchers, encodeMatcher(m))
			}
			rules[key] = map[string]interface{}{
				"matchers": matchers,
				"combine":  entry.Combine.String(),
			}
		}
		if len(entry.Generators) > 0 {
			gens[key] = encodeGenerator(entry.Generators[0])
		}
	})
	return rules, gens
}

func encodeMatcher(m MatcherSpec) map[string]interface{} {
	out := map[string]interface{}{"match": m.Kind.String()}
	switch m.Kind {
	case MatchRegex:
		out["regex"] = m.RegexPattern()
	case MatchType:
		if m.Min >= 0 {
			out["min"] = m.Min
		}
		if m.Max >= 0 {
			out["max"] = m.Max
		}
	case MatchTimestamp, MatchTime, MatchDate:
		out["format"] = m.Format
	case MatchContentType:
		out["value"] = m.Format
	case MatchStatusCode:
		if len(m.StatusCodes) > 0 {
			out["status"] = m.StatusCodes
		} else {
			out["status"] = string(m.StatusClass)
		}
	case MatchValues, MatchEachKey, MatchEachValue:
		nested := make([]interface{}, 0, len(m.Rules))
		for _, r := range m.Rules {
			nested = append(nested, encodeMatcher(r))
		}
		out["rules"] = nested
	case MatchArrayContains:
		variants := make([]interface{}, 0, len(m.Variants))
		for _, v := range m.Variants {
			raw, _ := MarshalValue(v.Value)
			variant := map[string]interface{}{
				"index": v.Index,
				"value": json.RawMessage(raw),
			}
			if !v.Rules.Empty() {
				ruleObj, _ := encodeRuleTree(v.Rules)
				variant["rules"] = ruleObj
			}
			variants = append(variants, variant)
		}
		out["variants"] = variants
	}
	return out
}

func encodeGenerator(g GeneratorSpec) map[string]interface{} {
	out := map[string]interface{}{"type": g.Kind.String()}
	switch g.Kind {
	case GenRandomInt:
		out["min"] = g.Min
		out["max"] = g.Max
	case GenRandomDecimal, GenRandomHexadecimal:
		if g.Digits > 0 {
			out["digits"] = g.Digits
		}
	case GenRandomString:
		if g.Size > 0 {
			out["size"] = g.Size
		}
	case GenRegex:
		out["regex"] = g.Pattern
	case GenUUID:
		out["format"] = g.Format
	case GenDate, GenTime, GenDateTime:
		out["format"] = g.Format
	case GenProviderState:
		out["expression"] = g.Expression
	case GenMockServerURL:
		if g.Example != "" {
			out["example"] = g.Example
		}
	}
	return out
}

// LoadPactFile parses a pact document into a Pact with sealed records.
func LoadPactFile(data []byte) (*Pact, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("pact file is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	pact := NewPact(doc.Get("consumer.name").String(), doc.Get("provider.name").String())

	var loadErr error
	doc.Get("interactions").ForEach(func(_, raw gjson.Result) bool {
		record, err := decodeInteraction(raw)
		if err != nil {
			loadErr = err
			return false
		}
		pact.Add(record)
		return true
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return pact, nil
}

// LoadInteraction parses one interaction definition, as posted to the
// engine API.
func LoadInteraction(data []byte) (*InteractionRecord, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("interaction definition is not valid JSON")
	}
	return decodeInteraction(gjson.ParseBytes(data))
}

func decodeInteraction(raw gjson.Result) (*InteractionRecord, error) {
	description := raw.Get("description").String()
	if description == "" {
		return nil, errors.New("interaction definition has no description")
	}
	record := NewInteraction(description)
	record.Key = raw.Get("key").String()

	var stateErr error
	raw.Get("providerStates").ForEach(func(_, state gjson.Result) bool {
		var params map[string]interface{}
		if p := state.Get("params"); p.Exists() {
			m, ok := p.Value().(map[string]interface{})
			if !ok {
				stateErr = errors.Errorf("interaction %q provider state %q: params must be an object", description, state.Get("name").String())
				return false
			}
			params = m
		}
		record.Given(state.Get("name").String(), params)
		return true
	})
	if stateErr != nil {
		return nil, stateErr
	}
	// v3 single provider state form.
	if state := raw.Get("providerState"); state.Exists() && len(record.ProviderStates()) == 0 {
		record.Given(state.String(), nil)
	}

	for _, part := range []Part{PartRequest, PartResponse} {
		section := raw.Get(string(part))
		if !section.Exists() {
			continue
		}
		if err := decodeSection(record, part, section); err != nil {
			return nil, errors.Wrapf(err, "interaction %q %s", description, part)
		}
	}
	return record, nil
}

var sectionTargets = map[string]Target{
	"body":     TargetBody,
	"headers":  TargetHeader,
	"query":    TargetQuery,
	"path":     TargetPath,
	"status":   TargetStatus,
	"metadata": TargetMetadata,
}

func decodeSection(record *InteractionRecord, part Part, section gjson.Result) error {
	for key, target := range sectionTargets {
		node := section.Get(key)
		if !node.Exists() {
			continue
		}
		value, err := valueFromJSON(node)
		if err != nil {
			return err
		}
		if err := record.WithTemplate(part, target, value); err != nil {
			return err
		}
	}

	trees := map[Target]*RuleTree{}
	tree := func(t Target) *RuleTree {
		if trees[t] == nil {
			trees[t] = NewRuleTree()
		}
		return trees[t]
	}

	var walkErr error
	section.Get("matchingRules").ForEach(func(key, group gjson.Result) bool {
		walkErr = decodeRuleGroup(tree, key.String(), group)
		return walkErr == nil
	})
	if walkErr != nil {
		return walkErr
	}

	section.Get("generators").ForEach(func(key, group gjson.Result) bool {
		target, ok := ruleTarget(key.String())
		if !ok {
			walkErr = errors.Errorf("unknown generator category %q", key.String())
			return false
		}
		group.ForEach(func(path, gen gjson.Result) bool {
			spec, err := decodeGenerator(gen)
			if err != nil {
				walkErr = err
				return false
			}
			walkErr = tree(target).AddGenerators(normalizeRulePath(path.String()), spec)
			return walkErr == nil
		})
		return walkErr == nil
	})
	if walkErr != nil {
		return walkErr
	}

	for target, t := range trees {
		if err := record.WithRules(part, target, t); err != nil {
			return err
		}
	}
	return nil
}

func ruleTarget(category string) (Target, bool) {
	switch category {
	case "body":
		return TargetBody, true
	case "header", "headers":
		return TargetHeader, true
	case "query":
		return TargetQuery, true
	case "path":
		return TargetPath, true
	case "status":
		return TargetStatus, true
	case "metadata":
		return TargetMetadata, true
	}
	return "", false
}

// decodeRuleGroup understands three layouts: the v3 grouped form
// ("body": {"$.x": {"matchers": [...]}}), the direct form used for
// single-value targets ("path": {"matchers": [...]}), and v2 flat keys
// ("$.body.x": {"match": "regex", ...}).
func decodeRuleGroup(tree func(Target) *RuleTree, category string, group gjson.Result) error {
	if strings.HasPrefix(category, "$.") {
		target, path := splitV2Path(category)
		spec, err := decodeMatcher(group)
		if err != nil {
			return err
		}
		return tree(target).AddMatchers(path, CombineAND, spec)
	}

	target, ok := ruleTarget(category)
	if !ok {
		return errors.Errorf("unknown matching-rule category %q", category)
	}

	if group.Get("matchers").Exists() {
		specs, combine, err := decodeMatcherList(group)
		if err != nil {
			return err
		}
		return tree(target).AddMatchers("$", combine, specs...)
	}

	var walkErr error
	group.ForEach(func(path, entry gjson.Result) bool {
		specs, combine, err := decodeMatcherList(entry)
		if err != nil {
			walkErr = err
			return false
		}
		walkErr = tree(target).AddMatchers(normalizeRulePath(path.String()), combine, specs...)
		return walkErr == nil
	})
	return walkErr
}

// splitV2Path maps a v2 flat key like "$.body.data.id" onto a target and a
// target-relative path.
func splitV2Path(key string) (Target, string) {
	for prefix, target := range map[string]Target{
		"$.body":    TargetBody,
		"$.headers": TargetHeader,
		"$.query":   TargetQuery,
		"$.path":    TargetPath,
	} {
		if key == prefix {
			return target, "$"
		}
		if strings.HasPrefix(key, prefix+".") || strings.HasPrefix(key, prefix+"[") {
			return target, "$" + strings.TrimPrefix(key, prefix)
		}
	}
	return TargetBody, key
}

func normalizeRulePath(path string) string {
	if path == "" {
		return "$"
	}
	if !strings.HasPrefix(path, "$") {
		return "$." + path
	}
	return path
}

func decodeMatcherList(entry gjson.Result) ([]MatcherSpec, Combination, error) {
	combine := CombineAND
	if strings.EqualFold(entry.Get("combine").String(), "OR") {
		combine = CombineOR
	}
	var specs []MatcherSpec
	var walkErr error
	entry.Get("matchers").ForEach(func(_, rule gjson.Result) bool {
		spec, err := decodeMatcher(rule)
		if err != nil {
			walkErr = err
			return false
		}
		specs = append(specs, spec)
		return true
	})
	if walkErr != nil {
		return nil, combine, walkErr
	}
	if len(specs) == 0 {
		return nil, combine, errors.New("matching rule entry has no matchers")
	}
	return specs, combine, nil
}

func decodeMatcher(rule gjson.Result) (MatcherSpec, error) {
	name := rule.Get("match").String()
	if name == "" {
		// v2 rules imply regex/type from their params.
		if rule.Get("regex").Exists() {
			name = "regex"
		} else {
			name = "type"
		}
	}
	kind, err := MatcherKindFromName(name)
	if err != nil {
		return MatcherSpec{}, err
	}

	switch kind {
	case MatchEquality:
		return EqualityMatcher(), nil
	case MatchRegex:
		return RegexMatcher(rule.Get("regex").String())
	case MatchType:
		min, max := -1, -1
		if v := rule.Get("min"); v.Exists() {
			min = int(v.Int())
		}
		if v := rule.Get("max"); v.Exists() {
			max = int(v.Int())
		}
		return TypeMatcherWithBounds(min, max)
	case MatchInclude:
		return IncludeMatcher(), nil
	case MatchInteger:
		return IntegerMatcher(), nil
	case MatchDecimal:
		return DecimalMatcher(), nil
	case MatchNumber:
		return NumberMatcher(), nil
	case MatchTimestamp:
		return TimestampMatcher(rule.Get("format").String())
	case MatchTime:
		return TimeMatcher(rule.Get("format").String())
	case MatchDate:
		return DateMatcher(rule.Get("format").String())
	case MatchNull:
		return NullMatcher(), nil
	case MatchBoolean:
		return BooleanMatcher(), nil
	case MatchContentType:
		return ContentTypeMatcher(rule.Get("value").String())
	case MatchValues:
		rules, err := decodeNestedRules(rule)
		if err != nil {
			return MatcherSpec{}, err
		}
		return ValuesMatcher(rules...)
	case MatchEachKey:
		rules, err := decodeNestedRules(rule)
		if err != nil {
			return MatcherSpec{}, err
		}
		return EachKeyMatcher(rules...)
	case MatchEachValue:
		rules, err := decodeNestedRules(rule)
		if err != nil {
			return MatcherSpec{}, err
		}
		return EachValueMatcher(rules...)
	case MatchNotEmpty:
		return NotEmptyMatcher(), nil
	case MatchSemver:
		return SemverMatcher(), nil
	case MatchStatusCode:
		return decodeStatusCodeMatcher(rule)
	case MatchArrayContains:
		return decodeArrayContainsMatcher(rule)
	}
	return MatcherSpec{}, &UnsupportedMatcherError{Name: name}
}

func decodeNestedRules(rule gjson.Result) ([]MatcherSpec, error) {
	var rules []MatcherSpec
	var walkErr error
	rule.Get("rules").ForEach(func(_, nested gjson.Result) bool {
		spec, err := decodeMatcher(nested)
		if err != nil {
			walkErr = err
			return false
		}
		rules = append(rules, spec)
		return true
	})
	return rules, walkErr
}

func decodeStatusCodeMatcher(rule gjson.Result) (MatcherSpec, error) {
	status := rule.Get("status")
	if status.IsArray() {
		var codes []int
		status.ForEach(func(_, c gjson.Result) bool {
			codes = append(codes, int(c.Int()))
			return true
		})
		return StatusCodeListMatcher(codes...)
	}
	return StatusCodeMatcher(StatusCodeClass(status.String()))
}

func decodeArrayContainsMatcher(rule gjson.Result) (MatcherSpec, error) {
	var variants []ArrayVariant
	var walkErr error
	rule.Get("variants").ForEach(func(_, raw gjson.Result) bool {
		value, err := valueFromJSON(raw.Get("value"))
		if err != nil {
			walkErr = err
			return false
		}
		variant := ArrayVariant{Index: int(raw.Get("index").Int()), Value: value}
		if rules := raw.Get("rules"); rules.Exists() {
			variant.Rules = NewRuleTree()
			rules.ForEach(func(path, entry gjson.Result) bool {
				specs, combine, err := decodeMatcherList(entry)
				if err != nil {
					walkErr = err
					return false
				}
				walkErr = variant.Rules.AddMatchers(normalizeRulePath(path.String()), combine, specs...)
				return walkErr == nil
			})
			if walkErr != nil {
				return false
			}
		}
		variants = append(variants, variant)
		return true
	})
	if walkErr != nil {
		return MatcherSpec{}, walkErr
	}
	return ArrayContainsMatcher(variants...)
}

func decodeGenerator(gen gjson.Result) (GeneratorSpec, error) {
	kind, err := GeneratorKindFromName(gen.Get("type").String())
	if err != nil {
		return GeneratorSpec{}, err
	}
	switch kind {
	case GenRandomInt:
		min, max := gen.Get("min").Int(), gen.Get("max").Int()
		if max == 0 && !gen.Get("max").Exists() {
			max = defaultRandomIntMax
		}
		return RandomIntGenerator(min, max)
	case GenRandomDecimal:
		return RandomDecimalGenerator(intOr(gen, "digits", defaultDecimalDigits))
	case GenRandomHexadecimal:
		return RandomHexadecimalGenerator(intOr(gen, "digits", defaultHexDigits))
	case GenRandomString:
		return RandomStringGenerator(intOr(gen, "size", defaultStringSize))
	case GenRegex:
		return RegexGenerator(gen.Get("regex").String())
	case GenUUID:
		return UUIDGenerator(UUIDFormat(gen.Get("format").String()))
	case GenDate:
		return DateGenerator(gen.Get("format").String())
	case GenTime:
		return TimeGenerator(gen.Get("format").String())
	case GenDateTime:
		return DateTimeGenerator(gen.Get("format").String())
	case GenRandomBoolean:
		return RandomBooleanGenerator(), nil
	case GenProviderState:
		return ProviderStateGenerator(gen.Get("expression").String())
	case GenMockServerURL:
		return MockServerURLGenerator(gen.Get("example").String()), nil
	}
	return GeneratorSpec{}, &UnsupportedGeneratorError{Name: gen.Get("type").String()}
}

func intOr(res gjson.Result, key string, fallback int) int {
	if v := res.Get(key); v.Exists() {
		return int(v.Int())
	}
	return fallback
}

// ParseJSONValue converts raw JSON bytes into a Value.
func ParseJSONValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("not valid JSON")
	}
	return valueFromJSON(gjson.ParseBytes(data))
}

// valueFromJSON converts a parsed JSON node into a Value, keeping number
// precision by re-parsing the raw token rather than going through float64.
func valueFromJSON(res gjson.Result) (Value, error) {
	switch res.Type {
	case gjson.Null:
		return Null{}, nil
	case gjson.False:
		return Bool(false), nil
	case gjson.True:
		return Bool(true), nil
	case gjson.String:
		return String(res.String()), nil
	case gjson.Number:
		raw := strings.TrimSpace(res.Raw)
		if !strings.ContainsAny(raw, ".eE") {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				return Integer(n), nil
			}
		}
		d, err := NewDecimal(raw)
		if err != nil {
			return nil, err
		}
		if !strings.ContainsAny(raw, ".") && d.D.IsInteger() {
			return Integer(d.D.IntPart()), nil
		}
		return d, nil
	case gjson.JSON:
		if res.IsArray() {
			var seq Sequence
			var walkErr error
			res.ForEach(func(_, item gjson.Result) bool {
				v, err := valueFromJSON(item)
				if err != nil {
					walkErr = err
					return false
				}
				seq = append(seq, v)
				return true
			})
			if walkErr != nil {
				return nil, walkErr
			}
			if seq == nil {
				seq = Sequence{}
			}
			return seq, nil
		}
		m := NewMapping()
		var walkErr error
		res.ForEach(func(key, item gjson.Result) bool {
			v, err := valueFromJSON(item)
			if err != nil {
				walkErr = err
				return false
			}
			walkErr = m.Set(String(key.String()), v)
			return walkErr == nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
		return m, nil
	}
	return nil, errors.Errorf("cannot convert JSON node %q", res.Raw)
}

// ApplyGeneratorsJSON applies the tree's generators directly to a raw JSON
// document, for collaborators that hold wire bytes rather than Value trees.
// Wildcard paths expand against the document; each hit resolves freshly.
func ApplyGeneratorsJSON(body []byte, t *RuleTree, ctx *GenerationContext) ([]byte, error) {
	if t.Empty() {
		return body, nil
	}
	doc := gjson.ParseBytes(body)
	out := body
	var applyErr error
	t.Walk(func(path Path, entry RuleEntry) {
		if applyErr != nil || len(entry.Generators) == 0 {
			return
		}
		for _, concrete := range expandJSONPaths(doc, path, nil) {
			value, err := Resolve(entry.Generators[0], ctx)
			if err != nil {
				applyErr = err
				return
			}
			if concrete == "" {
				raw, err := MarshalValue(value)
				if err != nil {
					applyErr = err
					return
				}
				out = raw
				continue
			}
			out, err = sjson.SetBytes(out, concrete, ToInterface(value))
			if err != nil {
				applyErr = errors.Wrapf(err, "apply generator at %s", path)
				return
			}
		}
	})
	if applyErr != nil {
		return nil, applyErr
	}
	return out, nil
}

// expandJSONPaths resolves a rule path against a document into concrete
// sjson paths. Missing nodes expand to nothing: generators are a no-op at
// absent paths.
func expandJSONPaths(doc gjson.Result, rule Path, prefix []string) []string {
	if len(rule) == 0 {
		return []string{strings.Join(prefix, ".")}
	}
	seg := rule[0]
	switch seg.Kind {
	case SegmentLiteral:
		key := escapeJSONKey(seg.Key)
		child := doc.Get(key)
		if !child.Exists() {
			return nil
		}
		return expandJSONPaths(child, rule[1:], append(prefix, key))
	case SegmentIndex:
		key := strconv.Itoa(seg.Index)
		child := doc.Get(key)
		if !child.Exists() {
			return nil
		}
		return expandJSONPaths(child, rule[1:], append(prefix, key))
	case SegmentWildcard:
		var out []string
		if doc.IsArray() {
			for i, child := range doc.Array() {
				out = append(out, expandJSONPaths(child, rule[1:], append(prefix[:len(prefix):len(prefix)], strconv.Itoa(i)))...)
			}
			return out
		}
		doc.ForEach(func(key, child gjson.Result) bool {
			out = append(out, expandJSONPaths(child, rule[1:], append(prefix[:len(prefix):len(prefix)], escapeJSONKey(key.String())))...)
			return true
		})
		return out
	}
	return nil
}

func escapeJSONKey(key string) string {
	replacer := strings.NewReplacer(".", "\\.", "*", "\\*", "?", "\\?", "#", "\\#")
	return replacer.Replace(key)
}
