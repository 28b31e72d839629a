package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"creditflow/internal/rules/mocks"
	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/audit"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	auditor *mocks.MockAuditPublisher
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	svc, err := New(s.store, WithAuditPublisher(s.auditor))
	s.Require().NoError(err)
	s.service = svc

	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActorID(s.ctx, "reviewer-1")
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestCreate() {
	s.Run("defaults origin and activation", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, def *models.Definition) error {
				s.Equal(models.OriginHuman, def.Origin)
				s.True(def.Active)
				s.Equal(s.now, def.CreatedAt)
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventRuleCreated), e.Action)
				s.Equal("reviewer-1", e.ActorID)
				return nil
			})

		def, err := s.service.Create(s.ctx, CreateCommand{
			Name:   "income",
			Kind:   models.KindIncomeCommitment,
			Params: models.IncomeCommitmentParams{MaxPercentage: 30},
		})
		s.Require().NoError(err)
		s.False(def.ID.IsNil())
	})

	s.Run("duplicate name is a conflict", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.Create(s.ctx, CreateCommand{
			Name:   "income",
			Kind:   models.KindIncomeCommitment,
			Params: models.IncomeCommitmentParams{MaxPercentage: 30},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid parameters never reach the store", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{
			Name:   "income",
			Kind:   models.KindIncomeCommitment,
			Params: models.IncomeCommitmentParams{MaxPercentage: 300},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestSetApproval() {
	ruleID := id.NewRuleID()
	existing := func() *models.Definition {
		return &models.Definition{
			ID: ruleID, Name: "score", Kind: models.KindConditionalScore,
			Params: models.ConditionalScoreParams{MinimumScore: 700, Condition: models.ConditionDelinquent},
			Active: true, Origin: models.OriginAdvisor,
		}
	}

	s.Run("approves and audits", func() {
		s.store.EXPECT().FindByID(gomock.Any(), ruleID).Return(existing(), nil)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventRuleApprovalChanged), e.Action)
				s.Equal(audit.CategoryCompliance, e.Category)
				s.Equal("approved=true", e.Reason)
				return nil
			})

		def, err := s.service.SetApproval(s.ctx, ruleID, true)
		s.Require().NoError(err)
		s.True(def.Approved)
	})

	s.Run("unchanged approval is a no-op", func() {
		s.store.EXPECT().FindByID(gomock.Any(), ruleID).Return(existing(), nil)

		def, err := s.service.SetApproval(s.ctx, ruleID, false)
		s.Require().NoError(err)
		s.False(def.Approved)
	})

	s.Run("missing rule", func() {
		s.store.EXPECT().FindByID(gomock.Any(), ruleID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.SetActivation(s.ctx, ruleID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestProposeForcesUnapprovedAdvisorOrigin() {
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, def *models.Definition) error {
			s.False(def.Approved)
			s.True(def.Active)
			s.Equal(models.OriginAdvisor, def.Origin)
			return nil
		})
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Propose(s.ctx, models.Definition{
		Name:     "advisor cap",
		Kind:     models.KindMaxAmount,
		Params:   models.MaxAmountParams{MaxAmount: 3000},
		Approved: true,
		Origin:   models.OriginSystem,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestUpdateKeepsApproval() {
	ruleID := id.NewRuleID()
	s.store.EXPECT().FindByID(gomock.Any(), ruleID).Return(&models.Definition{
		ID: ruleID, Name: "cap", Kind: models.KindMaxAmount,
		Params: models.MaxAmountParams{MaxAmount: 5000}, Approved: true, Active: true, Origin: models.OriginSystem,
	}, nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	def, err := s.service.Update(s.ctx, ruleID, UpdateCommand{
		Name:   "cap",
		Kind:   models.KindMinTerm,
		Params: models.MinTermParams{AmountThreshold: 10000, MinimumTerm: 24},
	})
	s.Require().NoError(err)
	s.True(def.Approved)
	s.Equal(models.KindMinTerm, def.Kind)
}
