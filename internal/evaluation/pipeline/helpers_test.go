package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditflow/internal/evaluation/models"
	rulesmodels "creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type applicant struct {
	age    *int
	score  *int
	income *float64
	amount float64
	term   int
}

func healthyApplicant() applicant {
	return applicant{age: ptr(30), score: ptr(800), income: ptr(400.0), amount: 1200, term: 12}
}

func newRecord(t *testing.T, a applicant) *models.Record {
	t.Helper()
	params := models.Parameters{}
	if a.term > 0 {
		params[models.ParamTerm] = float64(a.term)
	}
	rec, err := models.NewRecord(id.NewApplicationID(), id.ApplicantID("cust-42"), a.amount, params, fixedNow)
	require.NoError(t, err)
	rec.SetFact(models.ApplicantProfile{IsAvailable: true, Name: "Ana", Age: a.age, MonthlyIncome: a.income})
	rec.SetFact(models.CreditBureau{IsAvailable: true, Score: a.score, Status: models.BureauRegular})
	rec.SetFact(models.BankingHistory{IsAvailable: true, HasAccount: true, RelationshipMonths: 12})
	return rec
}

// incomeRule commits at most 30% of income with a zero rate, so a 1200
// loan over 12 months against 400 income commits 25%.
func incomeRule(approved bool) *rulesmodels.Definition {
	return &rulesmodels.Definition{
		ID:       id.NewRuleID(),
		Name:     "income_commitment",
		Kind:     rulesmodels.KindIncomeCommitment,
		Params:   rulesmodels.IncomeCommitmentParams{MaxPercentage: 30, MonthlyRate: ptr(0.0)},
		Approved: approved,
		Active:   true,
		Origin:   rulesmodels.OriginSystem,
	}
}

func scoreRule(approved bool) *rulesmodels.Definition {
	return &rulesmodels.Definition{
		ID:       id.NewRuleID(),
		Name:     "delinquent_score",
		Kind:     rulesmodels.KindConditionalScore,
		Params:   rulesmodels.ConditionalScoreParams{MinimumScore: 900, Condition: rulesmodels.ConditionHighIncome, IncomeThreshold: ptr(100.0)},
		Approved: approved,
		Active:   true,
		Origin:   rulesmodels.OriginAdvisor,
	}
}

func capRule(max float64) *rulesmodels.Definition {
	return &rulesmodels.Definition{
		ID:       id.NewRuleID(),
		Name:     "cap",
		Kind:     rulesmodels.KindMaxAmount,
		Params:   rulesmodels.MaxAmountParams{MaxAmount: max},
		Approved: true,
		Active:   true,
		Origin:   rulesmodels.OriginHuman,
	}
}

// countingPredicate records how often it is evaluated.
type countingPredicate struct {
	name   string
	result bool
	calls  *int
}

func (p countingPredicate) Name() string        { return p.name }
func (p countingPredicate) Description() string { return p.name + " check" }
func (p countingPredicate) Evaluate(models.Reader) bool {
	*p.calls++
	return p.result
}
