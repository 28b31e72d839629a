package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creditflow/internal/evaluation/models"
)

func TestMinimumAge(t *testing.T) {
	p := MinimumAge{Threshold: 18}

	assert.True(t, p.Evaluate(newRecord(t, applicant{age: ptr(18), amount: 1})))
	assert.False(t, p.Evaluate(newRecord(t, applicant{age: ptr(17), amount: 1})))
	assert.False(t, p.Evaluate(newRecord(t, applicant{amount: 1})), "missing age fails")

	rec := newRecord(t, applicant{age: ptr(40), amount: 1})
	rec.SetFact(models.ApplicantProfile{Reason: "registry timeout"})
	assert.False(t, p.Evaluate(rec), "unavailable profile fails")
	assert.Equal(t, "applicant must be at least 18 years old", p.Description())
}

func TestMinimumScore(t *testing.T) {
	p := MinimumScore{Threshold: 500}

	assert.True(t, p.Evaluate(newRecord(t, applicant{score: ptr(500), amount: 1})))
	assert.False(t, p.Evaluate(newRecord(t, applicant{score: ptr(499), amount: 1})))
	assert.False(t, p.Evaluate(newRecord(t, applicant{amount: 1})))

	rec := newRecord(t, applicant{score: ptr(900), amount: 1})
	rec.SetFact(models.CreditBureau{Reason: "bureau down"})
	assert.False(t, p.Evaluate(rec))
}

func TestPredicatesDoNotMutateRecord(t *testing.T) {
	rec := newRecord(t, healthyApplicant())
	before := rec.Snapshot()

	for _, p := range DefaultPredicates(18, 500) {
		p.Evaluate(rec)
	}
	assert.Equal(t, before, rec.Snapshot())
}
