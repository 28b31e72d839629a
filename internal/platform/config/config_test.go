package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "creditflow/pkg/domain-errors"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 18, cfg.Pipeline.MinimumAge)
	assert.Equal(t, 500, cfg.Pipeline.MinimumScore)
	assert.Equal(t, 10*time.Second, cfg.Advisor.Timeout)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CREDITFLOW_ADDR", ":9090")
	t.Setenv("PIPELINE_MINIMUM_AGE", "21")
	t.Setenv("ADVISOR_TIMEOUT", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 21, cfg.Pipeline.MinimumAge)
	assert.Equal(t, 250*time.Millisecond, cfg.Advisor.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Run("unparseable duration", func(t *testing.T) {
		t.Setenv("ADVISOR_TIMEOUT", "soon")
		_, err := FromEnv()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("endpoint without api key", func(t *testing.T) {
		t.Setenv("ADVISOR_ENDPOINT", "http://localhost:11434/v1")
		_, err := FromEnv()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("confidence above one", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "secret")
		t.Setenv("PIPELINE_MIN_ADVISOR_CONFIDENCE", "1.5")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PIPELINE_MIN_ADVISOR_CONFIDENCE")
	})
}
