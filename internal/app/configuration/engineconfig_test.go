package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "http://localhost:9393")
	t.Setenv("SEED", "42")
	t.Setenv("MOCK_SERVER_URL", "http://localhost:1234")

	config, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9393", config.ServerAddress.Host)
	assert.Equal(t, int64(42), config.Seed)
	assert.Equal(t, "http://localhost:1234", config.MockServerURL)
}

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "")
	t.Setenv("SEED", "")

	config, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(0), config.Seed)
	assert.Empty(t, config.ServerAddress.Host)
}
