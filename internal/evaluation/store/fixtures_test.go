package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

// resolvedRecord builds a finished record with facts, a trail and an
// advisor outcome.
func resolvedRecord(t *testing.T, applicant id.ApplicantID, createdAt time.Time) *models.Record {
	t.Helper()
	rec, err := models.NewRecord(id.NewApplicationID(), applicant, 2500.5, models.Parameters{models.ParamTerm: float64(18)}, createdAt)
	require.NoError(t, err)

	rec.SetFact(models.ApplicantProfile{IsAvailable: true, Name: "Ines", Age: ptr(41), MonthlyIncome: ptr(3200.0)})
	rec.SetFact(models.CreditBureau{IsAvailable: true, Score: ptr(640), Status: models.BureauIrregular, TotalDebts: 120})
	rec.SetFact(models.BankingHistory{Reason: "timeout"})

	rec.AppendEntry(models.TrailEntry{RuleName: "minimum_age", Passed: true, Description: "applicant must be at least 18 years old", EvaluatedAt: createdAt})
	rec.FailHard(models.TrailEntry{RuleName: "minimum_score", Description: "credit score must be at least 700", EvaluatedAt: createdAt})
	rec.SetAdvisorOutcome(models.AdvisorOutcome{Decision: models.AdvisorReject, Confidence: 0.75, Justification: "score too low", Source: "heuristic"})
	rec.AppendEntry(models.TrailEntry{RuleName: "ADVISOR", Description: "advisor recommended rejection: score too low", EvaluatedAt: createdAt})
	require.NoError(t, rec.Resolve(models.StatusRejected, createdAt.Add(time.Second)))
	return rec
}
