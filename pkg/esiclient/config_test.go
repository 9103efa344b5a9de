package esiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	assert.Positive(t, cfg.MaxTime, "expected a positive MaxTime default")
	require.NotNil(t, cfg.RetryDelayLow)
	require.NotNil(t, cfg.RetryDelayHigh)
	assert.Equal(t, 1, cfg.PoolSize)
	assert.NotEmpty(t, cfg.ConnectionSettings.BaseURL)
	assert.NotEmpty(t, cfg.StripHeaders)
}

func TestApplyDefaultsPreservesExplicitMaxRetriesZero(t *testing.T) {
	cfg := Config{MaxRetries: 0}
	cfg.applyDefaults()

	assert.Equal(t, 0, cfg.MaxRetries, "explicit MaxRetries=0 must survive applyDefaults")
}

func TestApplyDefaultsPreservesCustomPoolSize(t *testing.T) {
	cfg := Config{PoolSize: 4}
	cfg.applyDefaults()

	assert.Equal(t, 4, cfg.PoolSize)
}
