package engine

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Pact files carry temporal formats in Java SimpleDateFormat notation
// ("yyyy-MM-dd'T'HH:mm:ssZ"); the matching and generation code needs Go
// reference layouts. Conversion covers the tokens the pact ecosystem
// actually emits.
var simpleDateTokens = []struct {
	java   string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dd", "02"},
	{"d", "2"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"HH", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"SSS", "000"},
	{"aa", "PM"},
	{"a", "PM"},
	{"XXX", "Z07:00"},
	{"XX", "-0700"},
	{"X", "-07"},
	{"ZZZ", "-0700"},
	{"Z", "-0700"},
	{"zzz", "MST"},
	{"z", "MST"},
}

func simpleDateFormatToLayout(format string) (string, error) {
	var b strings.Builder
	s := format
	for len(s) > 0 {
		if s[0] == '\'' {
			end := strings.IndexByte(s[1:], '\'')
			if end < 0 {
				return "", errors.Errorf("unterminated quote in format %q", format)
			}
			quoted := s[1 : 1+end]
			if quoted == "" {
				b.WriteByte('\'')
			} else {
				b.WriteString(quoted)
			}
			s = s[end+2:]
			continue
		}
		matched := false
		for _, tok := range simpleDateTokens {
			if strings.HasPrefix(s, tok.java) {
				b.WriteString(tok.layout)
				s = s[len(tok.java):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		c := s[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return "", errors.Errorf("unsupported format token %q in %q", string(c), format)
		}
		b.WriteByte(c)
		s = s[1:]
	}
	return b.String(), nil
}

// parseTemporal parses a string against a SimpleDateFormat-style format.
func parseTemporal(format, value string) (time.Time, error) {
	layout, err := simpleDateFormatToLayout(format)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "value %q does not match format %q", value, format)
	}
	return t, nil
}

func formatInstant(format string, instant time.Time) (string, error) {
	layout, err := simpleDateFormatToLayout(format)
	if err != nil {
		return "", err
	}
	return instant.Format(layout), nil
}
