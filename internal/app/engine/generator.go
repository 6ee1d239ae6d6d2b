package engine

import (
	"fmt"
	"math/rand"
	"net/url"
	"regexp/syntax"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// GeneratorKind enumerates every supported value generator.
type GeneratorKind int

const (
	GenRandomInt GeneratorKind = iota
	GenRandomDecimal
	GenRandomHexadecimal
	GenRandomString
	GenRegex
	GenUUID
	GenDate
	GenTime
	GenDateTime
	GenRandomBoolean
	GenProviderState
	GenMockServerURL
)

var generatorKindNames = map[GeneratorKind]string{
	GenRandomInt:         "RandomInt",
	GenRandomDecimal:     "RandomDecimal",
	GenRandomHexadecimal: "RandomHexadecimal",
	GenRandomString:      "RandomString",
	GenRegex:             "Regex",
	GenUUID:              "Uuid",
	GenDate:              "Date",
	GenTime:              "Time",
	GenDateTime:          "DateTime",
	GenRandomBoolean:     "RandomBoolean",
	GenProviderState:     "ProviderState",
	GenMockServerURL:     "MockServerURL",
}

var generatorKindsByName = func() map[string]GeneratorKind {
	out := make(map[string]GeneratorKind, len(generatorKindNames))
	for k, name := range generatorKindNames {
		out[name] = k
	}
	return out
}()

func (k GeneratorKind) String() string {
	if name, ok := generatorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("generator(%d)", int(k))
}

func GeneratorKindFromName(name string) (GeneratorKind, error) {
	if k, ok := generatorKindsByName[name]; ok {
		return k, nil
	}
	return 0, &UnsupportedGeneratorError{Name: name}
}

// UnsupportedGeneratorError reports an unknown generator kind string.
type UnsupportedGeneratorError struct {
	Name string
}

func (e *UnsupportedGeneratorError) Error() string {
	return fmt.Sprintf("unsupported generator kind %q", e.Name)
}

// MissingProviderStateError reports a ProviderState generator whose
// expression has no value in the generation context.
type MissingProviderStateError struct {
	Expression string
}

func (e *MissingProviderStateError) Error() string {
	return fmt.Sprintf("provider state has no value for %q", e.Expression)
}

// ErrNoMockServer is returned by MockServerURL generators resolved outside a
// verification run.
var ErrNoMockServer = errors.New("no mock server URL in generation context")

// UUIDFormat selects the textual form of generated UUIDs.
type UUIDFormat string

const (
	UUIDSimple    UUIDFormat = "simple"
	UUIDLowercase UUIDFormat = "lower-case-hyphenated"
	UUIDUppercase UUIDFormat = "upper-case-hyphenated"
	UUIDUrn       UUIDFormat = "URN"
)

// GeneratorSpec is a validated generator declaration. Each kind has a
// deterministic shape but non-deterministic value, except ProviderState and
// MockServerURL which resolve from context.
type GeneratorSpec struct {
	Kind GeneratorKind

	// Min and Max bound RandomInt.
	Min, Max int64
	// Digits sizes RandomDecimal and RandomHexadecimal output.
	Digits int
	// Size is the RandomString length.
	Size int
	// Pattern is the Regex generator's pattern (also kept for MockServerURL
	// serialization compatibility).
	Pattern string
	program *syntax.Regexp
	// Format is the Uuid textual form or the Date/Time/DateTime format.
	Format string
	// Expression selects the provider-state parameter.
	Expression string
	// Example is the MockServerURL example value.
	Example string
}

const (
	defaultRandomIntMax  = 2147483647
	defaultDecimalDigits = 6
	defaultHexDigits     = 8
	defaultStringSize    = 20
)

func RandomIntGenerator(min, max int64) (GeneratorSpec, error) {
	if min > max {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "RandomInt", Reason: fmt.Sprintf("min %d exceeds max %d", min, max)}
	}
	return GeneratorSpec{Kind: GenRandomInt, Min: min, Max: max}, nil
}

func RandomDecimalGenerator(digits int) (GeneratorSpec, error) {
	if digits <= 0 {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "RandomDecimal", Reason: "digits must be positive"}
	}
	return GeneratorSpec{Kind: GenRandomDecimal, Digits: digits}, nil
}

func RandomHexadecimalGenerator(digits int) (GeneratorSpec, error) {
	if digits <= 0 {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "RandomHexadecimal", Reason: "digits must be positive"}
	}
	return GeneratorSpec{Kind: GenRandomHexadecimal, Digits: digits}, nil
}

func RandomStringGenerator(size int) (GeneratorSpec, error) {
	if size <= 0 {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "RandomString", Reason: "size must be positive"}
	}
	return GeneratorSpec{Kind: GenRandomString, Size: size}, nil
}

// RegexGenerator parses the pattern eagerly; generation capability over the
// parsed program is part of this engine, see regexgen.go.
func RegexGenerator(pattern string) (GeneratorSpec, error) {
	if pattern == "" {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "Regex", Reason: "pattern is required"}
	}
	program, err := parseRegexProgram(pattern)
	if err != nil {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "Regex", Reason: err.Error()}
	}
	return GeneratorSpec{Kind: GenRegex, Pattern: pattern, program: program}, nil
}

func UUIDGenerator(format UUIDFormat) (GeneratorSpec, error) {
	switch format {
	case "", UUIDLowercase:
		format = UUIDLowercase
	case UUIDSimple, UUIDUppercase, UUIDUrn:
	default:
		return GeneratorSpec{}, &MalformedSpecError{Kind: "Uuid", Reason: fmt.Sprintf("unknown format %q", format)}
	}
	return GeneratorSpec{Kind: GenUUID, Format: string(format)}, nil
}

func DateGenerator(format string) (GeneratorSpec, error) {
	return temporalGenerator(GenDate, format, "yyyy-MM-dd")
}

func TimeGenerator(format string) (GeneratorSpec, error) {
	return temporalGenerator(GenTime, format, "HH:mm:ss")
}

func DateTimeGenerator(format string) (GeneratorSpec, error) {
	return temporalGenerator(GenDateTime, format, "yyyy-MM-dd'T'HH:mm:ssZ")
}

func temporalGenerator(kind GeneratorKind, format, fallback string) (GeneratorSpec, error) {
	if format == "" {
		format = fallback
	}
	if _, err := simpleDateFormatToLayout(format); err != nil {
		return GeneratorSpec{}, &MalformedSpecError{Kind: kind.String(), Reason: err.Error()}
	}
	return GeneratorSpec{Kind: kind, Format: format}, nil
}

func RandomBooleanGenerator() GeneratorSpec {
	return GeneratorSpec{Kind: GenRandomBoolean}
}

// ProviderStateGenerator resolves the expression against provider-state
// parameters at verification time. The expression is either a bare parameter
// name or a template with ${name} placeholders.
func ProviderStateGenerator(expression string) (GeneratorSpec, error) {
	if expression == "" {
		return GeneratorSpec{}, &MalformedSpecError{Kind: "ProviderState", Reason: "expression is required"}
	}
	for rest := expression; ; {
		start := strings.Index(rest, "${")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return GeneratorSpec{}, &MalformedSpecError{Kind: "ProviderState", Reason: fmt.Sprintf("unterminated placeholder in %q", expression)}
		}
		rest = rest[start+end+1:]
	}
	return GeneratorSpec{Kind: GenProviderState, Expression: expression}, nil
}

func MockServerURLGenerator(example string) GeneratorSpec {
	return GeneratorSpec{Kind: GenMockServerURL, Example: example}
}

// GenerationContext carries everything a resolution pass may need: the
// random source (injected for reproducible tests), the clock, provider-state
// parameters and the mock server base URL. The random source is the only
// mutable state; use one context per concurrent pass.
type GenerationContext struct {
	Rand          *rand.Rand
	Now           func() time.Time
	ProviderState map[string]interface{}
	MockServerURL string

	randOnce sync.Once
}

// NewGenerationContext builds a context with a seeded random source, for
// deterministic fixtures.
func NewGenerationContext(seed int64) *GenerationContext {
	return &GenerationContext{Rand: rand.New(rand.NewSource(seed))}
}

func (ctx *GenerationContext) random() *rand.Rand {
	ctx.randOnce.Do(func() {
		if ctx.Rand == nil {
			ctx.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	})
	return ctx.Rand
}

func (ctx *GenerationContext) now() time.Time {
	if ctx.Now != nil {
		return ctx.Now()
	}
	return time.Now()
}

const (
	hexAlphabet     = "0123456789abcdef"
	stringAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	digitAlphabet   = "0123456789"
	nonZeroAlphabet = "123456789"
)

// Resolve produces a concrete value for the spec. Resolution never caches:
// two calls with the same context draw fresh values unless the random source
// is reset between them.
func Resolve(spec GeneratorSpec, ctx *GenerationContext) (Value, error) {
	switch spec.Kind {
	case GenRandomInt:
		max := spec.Max
		if max == 0 && spec.Min == 0 {
			max = defaultRandomIntMax
		}
		if max == spec.Min {
			return Integer(spec.Min), nil
		}
		return Integer(spec.Min + ctx.random().Int63n(max-spec.Min+1)), nil
	case GenRandomDecimal:
		return randomDecimal(spec.Digits, ctx.random())
	case GenRandomHexadecimal:
		digits := spec.Digits
		if digits == 0 {
			digits = defaultHexDigits
		}
		return String(randomFromAlphabet(hexAlphabet, digits, ctx.random())), nil
	case GenRandomString:
		size := spec.Size
		if size == 0 {
			size = defaultStringSize
		}
		return String(randomFromAlphabet(stringAlphabet, size, ctx.random())), nil
	case GenRegex:
		s, err := generateFromProgram(spec.program, ctx.random())
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case GenUUID:
		return randomUUID(UUIDFormat(spec.Format), ctx.random())
	case GenDate:
		return Temporal{Instant: ctx.now(), Format: spec.Format, Unit: UnitDate}, nil
	case GenTime:
		return Temporal{Instant: ctx.now(), Format: spec.Format, Unit: UnitTime}, nil
	case GenDateTime:
		return Temporal{Instant: ctx.now(), Format: spec.Format, Unit: UnitDateTime}, nil
	case GenRandomBoolean:
		return Bool(ctx.random().Intn(2) == 1), nil
	case GenProviderState:
		return resolveProviderState(spec.Expression, ctx)
	case GenMockServerURL:
		return resolveMockServerURL(spec, ctx)
	}
	return nil, &UnsupportedGeneratorError{Name: spec.Kind.String()}
}

func randomFromAlphabet(alphabet string, n int, r *rand.Rand) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[r.Intn(len(alphabet))])
	}
	return b.String()
}

// randomDecimal draws `digits` total digits with a decimal point somewhere
// after the first digit, the number of digits counting both sides.
func randomDecimal(digits int, r *rand.Rand) (Value, error) {
	if digits == 0 {
		digits = defaultDecimalDigits
	}
	if digits == 1 {
		d, err := decimal.NewFromString(randomFromAlphabet(digitAlphabet, 1, r))
		if err != nil {
			return nil, err
		}
		return Decimal{D: d}, nil
	}
	raw := randomFromAlphabet(nonZeroAlphabet, 1, r) + randomFromAlphabet(digitAlphabet, digits-1, r)
	point := 1 + r.Intn(digits-1)
	d, err := decimal.NewFromString(raw[:point] + "." + raw[point:])
	if err != nil {
		return nil, err
	}
	return Decimal{D: d}, nil
}

func randomUUID(format UUIDFormat, r *rand.Rand) (Value, error) {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "generate uuid")
	}
	switch format {
	case UUIDSimple:
		return String(strings.ReplaceAll(id.String(), "-", "")), nil
	case UUIDUppercase:
		return String(strings.ToUpper(id.String())), nil
	case UUIDUrn:
		return String("urn:uuid:" + id.String()), nil
	default:
		return String(id.String()), nil
	}
}

func resolveProviderState(expression string, ctx *GenerationContext) (Value, error) {
	if !strings.Contains(expression, "${") {
		raw, ok := ctx.ProviderState[expression]
		if !ok {
			return nil, &MissingProviderStateError{Expression: expression}
		}
		return FromHost(raw)
	}

	out := expression
	for {
		start := strings.Index(out, "${")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "}")
		if end < 0 {
			return nil, &MalformedSpecError{Kind: "ProviderState", Reason: fmt.Sprintf("unterminated placeholder in %q", expression)}
		}
		name := out[start+2 : start+end]
		raw, ok := ctx.ProviderState[name]
		if !ok {
			return nil, &MissingProviderStateError{Expression: name}
		}
		out = out[:start] + fmt.Sprintf("%v", raw) + out[start+end+1:]
	}
	return String(out), nil
}

// resolveMockServerURL returns the context's mock URL, joined with the path
// of the example value when one is declared.
func resolveMockServerURL(spec GeneratorSpec, ctx *GenerationContext) (Value, error) {
	if ctx.MockServerURL == "" {
		return nil, ErrNoMockServer
	}
	if spec.Example == "" {
		return String(ctx.MockServerURL), nil
	}
	example, err := url.Parse(spec.Example)
	if err != nil {
		return String(ctx.MockServerURL), nil
	}
	base := strings.TrimSuffix(ctx.MockServerURL, "/")
	return String(base + example.EscapedPath()), nil
}
