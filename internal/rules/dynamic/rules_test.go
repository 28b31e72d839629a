package dynamic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evmodels "creditflow/internal/evaluation/models"
	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

func ptr[T any](v T) *T { return &v }

type recordOpts struct {
	amount  float64
	term    int
	income  *float64
	score   *int
	status  evmodels.BureauStatus
	debts   float64
	months  int
	banking bool
}

func newRecord(t *testing.T, o recordOpts) *evmodels.Record {
	t.Helper()
	params := evmodels.Parameters{}
	if o.term > 0 {
		params[evmodels.ParamTerm] = float64(o.term)
	}
	rec, err := evmodels.NewRecord(id.NewApplicationID(), id.ApplicantID("cust-1"), o.amount, params, time.Now())
	require.NoError(t, err)
	rec.SetFact(evmodels.ApplicantProfile{IsAvailable: true, Age: ptr(30), MonthlyIncome: o.income})
	rec.SetFact(evmodels.CreditBureau{IsAvailable: true, Score: o.score, Status: o.status, TotalDebts: o.debts})
	rec.SetFact(evmodels.BankingHistory{IsAvailable: o.banking, HasAccount: o.banking, RelationshipMonths: o.months})
	return rec
}

func build(t *testing.T, kind models.Kind, params models.Params) Rule {
	t.Helper()
	r, err := Build(&models.Definition{Name: "rule", Kind: kind, Params: params, Approved: true})
	require.NoError(t, err)
	return r
}

func TestInstallment(t *testing.T) {
	assert.InDelta(t, 100.0, Installment(1200, 0, 12), 1e-9)
	assert.InDelta(t, 94.56, Installment(1000, 0.02, 12), 0.01)
	assert.InDelta(t, Installment(1000, 0.02, DefaultTerm), Installment(1000, 0.02, 0), 1e-9)
}

func TestIncomeCommitment(t *testing.T) {
	rule := build(t, models.KindIncomeCommitment, models.IncomeCommitmentParams{MaxPercentage: 30, MonthlyRate: ptr(0.0)})

	t.Run("within limit passes", func(t *testing.T) {
		// installment 100 against income 400 is 25%
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 1200, term: 12, income: ptr(400.0)})))
	})
	t.Run("over limit fails", func(t *testing.T) {
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 1200, term: 12, income: ptr(300.0)})))
	})
	t.Run("missing income fails", func(t *testing.T) {
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 1200, term: 12})))
	})
	t.Run("zero income fails", func(t *testing.T) {
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 1200, term: 12, income: ptr(0.0)})))
	})
	t.Run("missing term uses default", func(t *testing.T) {
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 1200, income: ptr(400.0)})))
	})
}

func TestMaxAmount(t *testing.T) {
	t.Run("caps every applicant", func(t *testing.T) {
		rule := build(t, models.KindMaxAmount, models.MaxAmountParams{MaxAmount: 5000})
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 5000})))
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 5000.01, banking: true, months: 24})))
	})
	t.Run("first relationship only", func(t *testing.T) {
		rule := build(t, models.KindMaxAmount, models.MaxAmountParams{MaxAmount: 5000, FirstRelationshipOnly: true})
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 9000, banking: true, months: 24})))
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 9000, banking: true, months: 0})))
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 9000})))
	})
}

func TestConditionalScore(t *testing.T) {
	t.Run("no-op when not delinquent", func(t *testing.T) {
		rule := build(t, models.KindConditionalScore, models.ConditionalScoreParams{MinimumScore: 700, Condition: models.ConditionDelinquent})
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, score: ptr(300), status: evmodels.BureauRegular})))
	})
	t.Run("applies floor when delinquent", func(t *testing.T) {
		rule := build(t, models.KindConditionalScore, models.ConditionalScoreParams{MinimumScore: 700, Condition: models.ConditionDelinquent})
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, score: ptr(650), debts: 10})))
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, score: ptr(720), status: evmodels.BureauIrregular})))
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, status: evmodels.BureauIrregular})))
	})
	t.Run("high income condition", func(t *testing.T) {
		rule := build(t, models.KindConditionalScore, models.ConditionalScoreParams{MinimumScore: 800, Condition: models.ConditionHighIncome, IncomeThreshold: ptr(10000.0)})
		assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, income: ptr(9000.0), score: ptr(500)})))
		assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 100, income: ptr(12000.0), score: ptr(500)})))
	})
}

func TestMinTerm(t *testing.T) {
	rule := build(t, models.KindMinTerm, models.MinTermParams{AmountThreshold: 10000, MinimumTerm: 24})

	assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 10000})))
	assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 15000})))
	assert.False(t, rule.Evaluate(newRecord(t, recordOpts{amount: 15000, term: 12})))
	assert.True(t, rule.Evaluate(newRecord(t, recordOpts{amount: 15000, term: 36})))
}

func TestBuild(t *testing.T) {
	t.Run("unsupported type is a configuration error", func(t *testing.T) {
		_, err := Build(&models.Definition{Name: "x", Kind: models.Kind("MAX_AGE")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedRuleType))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("mismatched params is a configuration error", func(t *testing.T) {
		_, err := Build(&models.Definition{Name: "x", Kind: models.KindMinTerm, Params: models.MaxAmountParams{MaxAmount: 1}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedRuleType))
	})

	t.Run("carries approval flag", func(t *testing.T) {
		r, err := Build(&models.Definition{Name: "x", Kind: models.KindMinTerm, Params: models.MinTermParams{MinimumTerm: 1}})
		require.NoError(t, err)
		assert.False(t, r.ApprovedForAutomaticUse())
		assert.Equal(t, "x", r.Name())
	})

	t.Run("same definition builds independent rules", func(t *testing.T) {
		def := &models.Definition{Name: "cap", Kind: models.KindMaxAmount, Params: models.MaxAmountParams{MaxAmount: 5000}, Approved: true}
		first, err := Build(def)
		require.NoError(t, err)
		second, err := Build(def)
		require.NoError(t, err)

		def.Params = models.MaxAmountParams{MaxAmount: 1}
		def.Approved = false

		for _, amount := range []float64{100, 5000, 7000} {
			rec := newRecord(t, recordOpts{amount: amount})
			assert.Equal(t, first.Evaluate(rec), second.Evaluate(rec))
		}
		assert.True(t, first.ApprovedForAutomaticUse())
		assert.True(t, second.Evaluate(newRecord(t, recordOpts{amount: 5000})))
	})
}
