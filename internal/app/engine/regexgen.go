package engine

import (
	"math/rand"
	"regexp/syntax"
	"strings"

	"github.com/pkg/errors"
)

// Regex generators synthesize strings matching a pattern. This walks the
// regexp/syntax parse tree directly; it is a required engine capability, not
// a convenience, since pact contracts routinely pair a regex matcher with a
// Regex generator.
//
// Unbounded repetitions are capped at maxUnboundedRepeat so generation
// always terminates.

const maxUnboundedRepeat = 4

func parseRegexProgram(pattern string) (*syntax.Regexp, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	return re.Simplify(), nil
}

// GenerateFromRegex produces a string matching the pattern, drawing from r.
func GenerateFromRegex(pattern string, r *rand.Rand) (string, error) {
	program, err := parseRegexProgram(pattern)
	if err != nil {
		return "", err
	}
	return generateFromProgram(program, r)
}

func generateFromProgram(program *syntax.Regexp, r *rand.Rand) (string, error) {
	var b strings.Builder
	if err := generateNode(program, r, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func generateNode(node *syntax.Regexp, r *rand.Rand, b *strings.Builder) error {
	switch node.Op {
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return nil
	case syntax.OpLiteral:
		b.WriteString(string(node.Rune))
		return nil
	case syntax.OpCharClass:
		return writeClassRune(node, r, b)
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteByte(printableASCII[r.Intn(len(printableASCII))])
		return nil
	case syntax.OpCapture:
		return generateNode(node.Sub[0], r, b)
	case syntax.OpConcat:
		for _, sub := range node.Sub {
			if err := generateNode(sub, r, b); err != nil {
				return err
			}
		}
		return nil
	case syntax.OpAlternate:
		return generateNode(node.Sub[r.Intn(len(node.Sub))], r, b)
	case syntax.OpStar:
		return repeatNode(node.Sub[0], 0, -1, r, b)
	case syntax.OpPlus:
		return repeatNode(node.Sub[0], 1, -1, r, b)
	case syntax.OpQuest:
		return repeatNode(node.Sub[0], 0, 1, r, b)
	case syntax.OpRepeat:
		return repeatNode(node.Sub[0], node.Min, node.Max, r, b)
	}
	return errors.Errorf("cannot generate from regex op %s", node.Op)
}

func repeatNode(node *syntax.Regexp, min, max int, r *rand.Rand, b *strings.Builder) error {
	if max < 0 {
		max = min + maxUnboundedRepeat
	}
	n := min
	if max > min {
		n = min + r.Intn(max-min+1)
	}
	for i := 0; i < n; i++ {
		if err := generateNode(node, r, b); err != nil {
			return err
		}
	}
	return nil
}

const printableASCII = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 "

// writeClassRune picks a rune uniformly from the class ranges. Classes that
// span effectively all of unicode (negated classes like [^a]) are narrowed
// to printable ASCII so generated values stay representable in pact files.
func writeClassRune(node *syntax.Regexp, r *rand.Rand, b *strings.Builder) error {
	if len(node.Rune) == 0 {
		return errors.New("cannot generate from empty character class")
	}

	var total int64
	for i := 0; i+1 < len(node.Rune); i += 2 {
		total += int64(node.Rune[i+1]-node.Rune[i]) + 1
	}
	if total > 1<<16 {
		var candidates []byte
		for _, c := range []byte(printableASCII) {
			if classContains(node.Rune, rune(c)) {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			b.WriteByte(candidates[r.Intn(len(candidates))])
			return nil
		}
	}

	pick := r.Int63n(total)
	for i := 0; i+1 < len(node.Rune); i += 2 {
		span := int64(node.Rune[i+1]-node.Rune[i]) + 1
		if pick < span {
			b.WriteRune(node.Rune[i] + rune(pick))
			return nil
		}
		pick -= span
	}
	return nil
}

func classContains(ranges []rune, c rune) bool {
	for i := 0; i+1 < len(ranges); i += 2 {
		if c >= ranges[i] && c <= ranges[i+1] {
			return true
		}
	}
	return false
}
