package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleDateFormatToLayout(t *testing.T) {
	for _, tt := range []struct {
		format string
		want   string
	}{
		{"yyyy-MM-dd", "2006-01-02"},
		{"yyyy-MM-dd'T'HH:mm:ssZ", "2006-01-02T15:04:05-0700"},
		{"HH:mm:ss", "15:04:05"},
		{"HH:mm:ss.SSS", "15:04:05.000"},
		{"dd/MM/yyyy", "02/01/2006"},
		{"EEE, dd MMM yyyy", "Mon, 02 Jan 2006"},
		{"hh:mm a", "03:04 PM"},
	} {
		t.Run(tt.format, func(t *testing.T) {
			got, err := simpleDateFormatToLayout(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSimpleDateFormatToLayoutRejectsUnknownTokens(t *testing.T) {
	_, err := simpleDateFormatToLayout("yyyy-QQ")
	assert.Error(t, err)
	_, err = simpleDateFormatToLayout("'unterminated")
	assert.Error(t, err)
}

func TestParseTemporal(t *testing.T) {
	got, err := parseTemporal("yyyy-MM-dd", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTemporal("yyyy-MM-dd", "01/05/2024")
	assert.Error(t, err)
}

func TestFormatInstant(t *testing.T) {
	instant := time.Date(2024, 5, 1, 13, 45, 30, 0, time.UTC)
	got, err := formatInstant("yyyy-MM-dd'T'HH:mm:ss", instant)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T13:45:30", got)
}
