package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MML0/Assistant-Bot/internal/config"
)

func TestNewClientFloorsAttempts(t *testing.T) {
	cfg := config.LLMConfig{
		APIKey:       "test",
		BaseURL:      "http://localhost:9999/v1",
		DefaultModel: "gpt-4.1-mini",
	}

	for _, attempts := range []int{0, -3} {
		cfg.MaxAttempts = attempts
		c, err := NewClient(cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, c.maxAttempts, "configured attempts %d", attempts)
	}

	cfg.MaxAttempts = 5
	c, err := NewClient(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, c.maxAttempts)
}
