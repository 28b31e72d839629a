package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
)

func newDefinition(name string, active, approved bool) *models.Definition {
	now := time.Now()
	return &models.Definition{
		ID:        id.NewRuleID(),
		Name:      name,
		Kind:      models.KindMaxAmount,
		Params:    models.MaxAmountParams{MaxAmount: 5000},
		Approved:  approved,
		Active:    active,
		Origin:    models.OriginHuman,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create rejects duplicate names", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Create(ctx, newDefinition("cap", true, true)))
		err := s.Create(ctx, newDefinition("CAP", true, true))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("update unknown rule", func(t *testing.T) {
		s := NewInMemoryStore()
		assert.ErrorIs(t, s.Update(ctx, newDefinition("cap", true, true)), sentinel.ErrNotFound)
	})

	t.Run("update rejects renaming onto another rule", func(t *testing.T) {
		s := NewInMemoryStore()
		first := newDefinition("a", true, true)
		second := newDefinition("b", true, true)
		require.NoError(t, s.Create(ctx, first))
		require.NoError(t, s.Create(ctx, second))

		second.Name = "a"
		assert.ErrorIs(t, s.Update(ctx, second), sentinel.ErrConflict)
	})

	t.Run("list active returns active rules only", func(t *testing.T) {
		s := NewInMemoryStore()
		require.NoError(t, s.Create(ctx, newDefinition("b", true, false)))
		require.NoError(t, s.Create(ctx, newDefinition("a", true, true)))
		require.NoError(t, s.Create(ctx, newDefinition("c", false, true)))

		active, err := s.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "a", active[0].Name)
		assert.Equal(t, "b", active[1].Name)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("returned definitions are copies", func(t *testing.T) {
		s := NewInMemoryStore()
		def := newDefinition("cap", true, true)
		require.NoError(t, s.Create(ctx, def))

		found, err := s.FindByID(ctx, def.ID)
		require.NoError(t, err)
		found.Approved = false

		again, err := s.FindByID(ctx, def.ID)
		require.NoError(t, err)
		assert.True(t, again.Approved)
	})
}
