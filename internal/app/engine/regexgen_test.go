package engine

import (
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFromRegexMatchesPattern(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, pattern := range []string{
		`\d{3}`,
		`[A-Z]{2}[0-9]{4}`,
		`[a-z]+`,
		`(red|green|blue)`,
		`v\d+\.\d+\.\d+`,
		`[0-9a-f]{8}-[0-9a-f]{4}`,
		`AB?C`,
		`x{2,5}`,
		`prefix-.*`,
	} {
		t.Run(pattern, func(t *testing.T) {
			verify := regexp.MustCompile(`\A(?:` + pattern + `)\z`)
			for i := 0; i < 25; i++ {
				s, err := GenerateFromRegex(pattern, r)
				require.NoError(t, err)
				assert.True(t, verify.MatchString(s), "%q does not match %q", s, pattern)
			}
		})
	}
}

func TestGenerateFromRegexAnchorsAreNoOps(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	s, err := GenerateFromRegex(`^\d{2}$`, r)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}$`), s)
}

func TestGenerateFromRegexBoundsUnboundedRepeats(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 25; i++ {
		s, err := GenerateFromRegex(`a*`, r)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s), maxUnboundedRepeat)
	}
}

func TestGenerateFromRegexBadPattern(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	_, err := GenerateFromRegex(`(`, r)
	assert.Error(t, err)
}
