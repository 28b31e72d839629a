//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"creditflow/internal/rules/models"
	"creditflow/internal/rules/store"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/testutil/containers"
)

type PostgresRuleStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresRuleStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRuleStoreSuite))
}

func (s *PostgresRuleStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresRuleStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "rule_definitions"))
}

func (s *PostgresRuleStoreSuite) definition(name string, active bool) *models.Definition {
	now := time.Now().UTC().Truncate(time.Microsecond)
	rate := 0.015
	return &models.Definition{
		ID:          id.NewRuleID(),
		Name:        name,
		Description: "installment cap",
		Kind:        models.KindIncomeCommitment,
		Params:      models.IncomeCommitmentParams{MaxPercentage: 30, MonthlyRate: &rate},
		Approved:    true,
		Active:      active,
		Origin:      models.OriginSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresRuleStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	def := s.definition("income", true)
	s.Require().NoError(s.store.Create(ctx, def))

	found, err := s.store.FindByID(ctx, def.ID)
	s.Require().NoError(err)
	s.Equal(def.Name, found.Name)
	s.Equal(def.Params, found.Params)
	s.True(found.CreatedAt.Equal(def.CreatedAt))
}

func (s *PostgresRuleStoreSuite) TestDuplicateNameIsConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.definition("income", true)))
	err := s.store.Create(ctx, s.definition("income", true))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresRuleStoreSuite) TestUpdateMissingRule() {
	err := s.store.Update(context.Background(), s.definition("ghost", true))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRuleStoreSuite) TestListFilters() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.definition("b", true)))
	s.Require().NoError(s.store.Create(ctx, s.definition("a", false)))

	active, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("b", active[0].Name)

	origin := models.OriginSystem
	all, err := s.store.List(ctx, models.Filter{Origin: &origin})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("a", all[0].Name)
}

func (s *PostgresRuleStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewRuleID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
