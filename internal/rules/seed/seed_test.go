package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow/internal/rules/models"
	"creditflow/internal/rules/store"
)

func TestParseDefaultRules(t *testing.T) {
	data, err := ReadFile("")
	require.NoError(t, err)

	defs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, defs, 4)

	byName := map[string]*models.Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	income := byName["income_commitment"]
	require.NotNil(t, income)
	assert.Equal(t, models.IncomeCommitmentParams{MaxPercentage: 30, MonthlyRate: ptr(0.02)}, income.Params)

	score := byName["delinquent_minimum_score"]
	require.NotNil(t, score)
	assert.False(t, score.Approved)
	assert.Equal(t, models.OriginAdvisor, score.Origin)

	term := byName["large_amount_minimum_term"]
	assert.Equal(t, models.MinTermParams{AmountThreshold: 10000, MinimumTerm: 24}, term.Params)
}

func TestParseRejectsBadRules(t *testing.T) {
	_, err := Parse([]byte(`
rules:
  - name: broken
    type: CONDITIONAL_SCORE
    parameters:
      minimum_score: 700
      condition: SOMETIMES
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	_, err = Parse([]byte(`rules: [{name: x, type: NOPE, parameters: {}}]`))
	require.Error(t, err)
}

func TestApplyOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.NewInMemoryStore()

	data, err := Default()
	require.NoError(t, err)
	defs, err := Parse(data)
	require.NoError(t, err)

	n, err := Apply(ctx, s, defs, time.Now, logger)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = Apply(ctx, s, defs, time.Now, logger)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func ptr[T any](v T) *T { return &v }
