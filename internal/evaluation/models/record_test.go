package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

func newTestRecord(t *testing.T) *Record {
	t.Helper()
	rec, err := NewRecord(id.NewApplicationID(), id.ApplicantID("cust-1"), 1000, Parameters{ParamTerm: 12.0}, time.Now())
	require.NoError(t, err)
	return rec
}

func TestNewRecord(t *testing.T) {
	now := time.Now()
	for name, amount := range map[string]float64{"zero": 0, "negative": -1, "nan": math.NaN(), "inf": math.Inf(1)} {
		t.Run("rejects "+name+" amount", func(t *testing.T) {
			_, err := NewRecord(id.NewApplicationID(), "cust-1", amount, nil, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	t.Run("rejects empty applicant", func(t *testing.T) {
		_, err := NewRecord(id.NewApplicationID(), "", 10, nil, now)
		assert.Error(t, err)
	})

	t.Run("copies parameters", func(t *testing.T) {
		params := Parameters{ParamTerm: 12.0}
		rec, err := NewRecord(id.NewApplicationID(), "cust-1", 10, params, now)
		require.NoError(t, err)
		params[ParamTerm] = 99.0
		term, ok := rec.Parameters().Term()
		require.True(t, ok)
		assert.Equal(t, 12, term)
	})
}

func TestRecordFacts(t *testing.T) {
	rec := newTestRecord(t)

	t.Run("missing facts read as unavailable", func(t *testing.T) {
		assert.False(t, rec.Profile().Available())
		assert.False(t, rec.Bureau().Available())
		assert.False(t, rec.Banking().HasPriorRelationship())
	})

	t.Run("re-adding a category replaces it", func(t *testing.T) {
		age := 30
		rec.SetFact(ApplicantProfile{IsAvailable: true, Age: &age})
		rec.SetFact(ApplicantProfile{Reason: "timeout"})
		assert.False(t, rec.Profile().Available())
		assert.Equal(t, "timeout", rec.Profile().Reason)
	})
}

func TestRecordTrailAndFlags(t *testing.T) {
	rec := newTestRecord(t)

	rec.AppendEntry(TrailEntry{RuleName: "a", Passed: true})
	rec.FailHard(TrailEntry{RuleName: "b", Passed: true, Description: "too young"})

	assert.True(t, rec.HardFailure())
	trail := rec.Trail()
	require.Len(t, trail, 2)
	assert.False(t, trail[1].Passed)
	assert.Equal(t, []string{"too young"}, rec.FailedDescriptions())

	trail[0].RuleName = "mutated"
	assert.Equal(t, "a", rec.Trail()[0].RuleName)
}

func TestRequireManualReviewFirstWriterWins(t *testing.T) {
	rec := newTestRecord(t)
	rec.RequireManualReview(ReasonDynamicRulePending)
	rec.RequireManualReview(ReasonAdvisorUnavailable)

	assert.True(t, rec.NeedsManualReview())
	assert.Equal(t, ReasonDynamicRulePending, rec.ManualReviewReason())
}

func TestResolveOnce(t *testing.T) {
	rec := newTestRecord(t)
	_, ok := rec.Status()
	assert.False(t, ok)

	require.NoError(t, rec.Resolve(StatusApproved, time.Now()))
	err := rec.Resolve(StatusRejected, time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	status, ok := rec.Status()
	assert.True(t, ok)
	assert.Equal(t, StatusApproved, status)

	assert.Error(t, newTestRecord(t).Resolve(Status("MAYBE"), time.Now()))
}

func TestViewIsDetached(t *testing.T) {
	rec := newTestRecord(t)
	income := 5000.0
	rec.SetFact(ApplicantProfile{IsAvailable: true, MonthlyIncome: &income})
	rec.AppendEntry(TrailEntry{RuleName: "a", Passed: true})

	view := rec.View()
	*view.Profile.MonthlyIncome = 1
	view.Trail[0].Passed = false
	view.Parameters[ParamTerm] = 1.0

	assert.Equal(t, 5000.0, *rec.Profile().MonthlyIncome)
	assert.True(t, rec.Trail()[0].Passed)
	term, _ := rec.Parameters().Term()
	assert.Equal(t, 12, term)
}

func TestViewDeepCopiesBureauAndNestedParameters(t *testing.T) {
	params := Parameters{
		ParamTerm: 12.0,
		"meta":    map[string]any{"k": "original", "tags": []any{"a", map[string]any{"x": 1.0}}},
	}
	rec, err := NewRecord(id.NewApplicationID(), "cust-1", 1000, params, time.Now())
	require.NoError(t, err)
	score := 720
	rec.SetFact(CreditBureau{IsAvailable: true, Score: &score, Status: BureauRegular})

	view := rec.View()
	*view.Bureau.Score = 1
	meta := view.Parameters["meta"].(map[string]any)
	meta["k"] = "changed"
	tags := meta["tags"].([]any)
	tags[0] = "z"
	tags[1].(map[string]any)["x"] = 2.0

	require.NotNil(t, rec.Bureau().Score)
	assert.Equal(t, 720, *rec.Bureau().Score)
	got := rec.Parameters()["meta"].(map[string]any)
	assert.Equal(t, "original", got["k"])
	gotTags := got["tags"].([]any)
	assert.Equal(t, "a", gotTags[0])
	assert.Equal(t, 1.0, gotTags[1].(map[string]any)["x"])

	t.Run("caller parameters stay detached", func(t *testing.T) {
		params["meta"].(map[string]any)["k"] = "caller"
		assert.Equal(t, "original", rec.Parameters()["meta"].(map[string]any)["k"])
	})
}

func TestCheckContract(t *testing.T) {
	var nilRecord *Record
	assert.Error(t, nilRecord.CheckContract())

	assert.NoError(t, newTestRecord(t).CheckContract())

	partial := &Record{id: id.NewApplicationID(), applicantID: "cust-1"}
	err := partial.CheckContract()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	partial.RepairContract()
	assert.NoError(t, partial.CheckContract())
	assert.False(t, partial.Profile().Available())
}

func TestSnapshotRoundTrip(t *testing.T) {
	rec := newTestRecord(t)
	score := 720
	rec.SetFact(CreditBureau{IsAvailable: true, Score: &score})
	rec.FailHard(TrailEntry{RuleName: "min_age"})
	rec.SetAdvisorOutcome(AdvisorOutcome{Decision: AdvisorReject, Confidence: 0.9})
	require.NoError(t, rec.Resolve(StatusRejected, time.Now()))

	restored := FromSnapshot(rec.Snapshot())
	assert.Equal(t, rec.ID(), restored.ID())
	assert.Equal(t, rec.Trail(), restored.Trail())
	assert.True(t, restored.HardFailure())
	assert.Equal(t, AdvisorReject, restored.AdvisorOutcome().Decision)
	status, _ := restored.Status()
	assert.Equal(t, StatusRejected, status)
	assert.Equal(t, 720, *restored.Bureau().Score)
}

func TestFactsCodec(t *testing.T) {
	age := 40
	facts := map[FactCategory]Fact{
		FactApplicantProfile: ApplicantProfile{IsAvailable: true, Age: &age},
		FactBankingHistory:   BankingHistory{Reason: "timeout"},
	}
	raw, err := MarshalFacts(facts)
	require.NoError(t, err)

	decoded, err := UnmarshalFacts(raw)
	require.NoError(t, err)
	assert.Equal(t, facts, decoded)

	empty, err := UnmarshalFacts(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParametersInt(t *testing.T) {
	p := Parameters{"a": 12.0, "b": 12.5, "c": "12", ParamTerm: -3.0}
	n, ok := p.Int("a")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
	_, ok = p.Int("b")
	assert.False(t, ok)
	_, ok = p.Int("c")
	assert.False(t, ok)
	_, ok = p.Term()
	assert.False(t, ok)
}

func TestParametersIntRejectsOutOfRange(t *testing.T) {
	p := Parameters{
		"huge":     1e300,
		"above":    float64(math.MaxInt32) + 1,
		"edge":     float64(math.MaxInt32),
		"negative": -float64(math.MaxInt32) - 1,
		"int64":    int64(math.MaxInt64),
		"number":   json.Number("9223372036854775807"),
		"small":    json.Number("36"),
		ParamTerm:  1e20,
	}

	for _, key := range []string{"huge", "above", "negative", "int64", "number"} {
		_, ok := p.Int(key)
		assert.False(t, ok, key)
	}
	n, ok := p.Int("edge")
	assert.True(t, ok)
	assert.Equal(t, math.MaxInt32, n)
	n, ok = p.Int("small")
	assert.True(t, ok)
	assert.Equal(t, 36, n)
	_, ok = p.Term()
	assert.False(t, ok)
}
