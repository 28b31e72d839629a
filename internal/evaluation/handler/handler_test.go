package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/pipeline"
	"creditflow/internal/evaluation/service"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/testutil"
)

var fixedNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

type stubService struct {
	cmd     *service.EvaluateCommand
	rec     *models.Record
	err     error
	listArg id.ApplicantID
}

func (s *stubService) Evaluate(_ context.Context, cmd service.EvaluateCommand) (*pipeline.Result, error) {
	s.cmd = &cmd
	if s.err != nil {
		return nil, s.err
	}
	status, _ := s.rec.Status()
	return &pipeline.Result{
		Record: s.rec,
		Status: status,
		Stages: []pipeline.StageReport{{Stage: pipeline.StageMandatory, State: pipeline.StateFailed, Duration: 3 * time.Millisecond}},
	}, nil
}

func (s *stubService) Get(_ context.Context, _ id.ApplicationID) (*models.Record, error) {
	return s.rec, s.err
}

func (s *stubService) ListByApplicant(_ context.Context, applicantID id.ApplicantID) ([]*models.Record, error) {
	s.listArg = applicantID
	if s.err != nil {
		return nil, s.err
	}
	return []*models.Record{s.rec}, nil
}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func rejectedRecord(t *testing.T) *models.Record {
	t.Helper()
	rec, err := models.NewRecord(id.NewApplicationID(), "cust-5", 900, models.Parameters{"term": float64(6)}, fixedNow)
	require.NoError(t, err)
	rec.FailHard(models.TrailEntry{RuleName: "minimum_age", Description: "applicant must be at least 18 years old", EvaluatedAt: fixedNow})
	require.NoError(t, rec.Resolve(models.StatusRejected, fixedNow))
	return rec
}

func manualReviewRecord(t *testing.T) *models.Record {
	t.Helper()
	rec, err := models.NewRecord(id.NewApplicationID(), "cust-5", 900, nil, fixedNow)
	require.NoError(t, err)
	rec.AppendEntry(models.TrailEntry{RuleName: "minimum_age", Passed: true, EvaluatedAt: fixedNow})
	rec.RequireManualReview(models.ReasonDynamicRulePending)
	require.NoError(t, rec.Resolve(models.StatusManualReview, fixedNow))
	return rec
}

func TestHandleEvaluate(t *testing.T) {
	t.Run("returns the resolved evaluation", func(t *testing.T) {
		svc := &stubService{rec: rejectedRecord(t)}
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/credit/evaluations",
			`{"applicant_id":" cust-5 ","requested_amount":900,"additional_parameters":{"term":6}}`)
		rr := testutil.DoRequest(newRouter(svc), req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		require.NotNil(t, svc.cmd)
		assert.Equal(t, id.ApplicantID("cust-5"), svc.cmd.ApplicantID)
		assert.Equal(t, 900.0, svc.cmd.RequestedAmount)
		assert.Equal(t, float64(6), svc.cmd.Parameters["term"])

		body := testutil.UnmarshalResponse[EvaluationResponse](t, rr)
		assert.Equal(t, "REJECTED", body.Status)
		assert.Equal(t, "Credit rejected", body.Message)
		assert.Equal(t, []string{"applicant must be at least 18 years old"}, body.RejectionReasons)
		assert.Empty(t, body.ManualReviewReason)
		require.Len(t, body.Stages, 1)
		assert.Equal(t, int64(3), body.Stages[0].DurationMS)
		require.Len(t, body.Trail, 1)
		assert.False(t, body.Trail[0].Passed)
	})

	t.Run("validates the body", func(t *testing.T) {
		cases := map[string]string{
			"missing applicant": `{"requested_amount":10}`,
			"missing amount":    `{"applicant_id":"cust-5"}`,
			"zero amount":       `{"applicant_id":"cust-5","requested_amount":0}`,
			"bad applicant":     `{"applicant_id":"cust 5!","requested_amount":10}`,
			"fractional term":   `{"applicant_id":"cust-5","requested_amount":10,"additional_parameters":{"term":1.5}}`,
			"unknown field":     `{"applicant_id":"cust-5","requested_amount":10,"extra":true}`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				svc := &stubService{}
				rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, "/credit/evaluations", body))
				testutil.AssertStatus(t, rr, http.StatusBadRequest)
				assert.Nil(t, svc.cmd)
			})
		}
	})

	t.Run("hides internal errors", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeConfiguration, "rule \"x\" has unsupported type")}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, "/credit/evaluations",
			`{"applicant_id":"cust-5","requested_amount":10}`))
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		errBody := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "configuration_error", errBody["error"])
		assert.Empty(t, errBody["error_description"])
	})

	t.Run("cancellation maps to gateway timeout", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeTimeout, "evaluation cancelled before completion")}
		rr := testutil.DoRequest(newRouter(svc), testutil.NewRequestWithBody(t, http.MethodPost, "/credit/evaluations",
			`{"applicant_id":"cust-5","requested_amount":10}`))
		testutil.AssertStatusAndError(t, rr, http.StatusGatewayTimeout, "timeout")
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("manual review carries its reason", func(t *testing.T) {
		rec := manualReviewRecord(t)
		rr := testutil.DoRequest(newRouter(&stubService{rec: rec}),
			testutil.NewRequest(t, http.MethodGet, "/credit/evaluations/"+rec.ID().String()))

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[EvaluationResponse](t, rr)
		assert.Equal(t, rec.ID().String(), body.ID)
		assert.Equal(t, "Sent for manual review", body.Message)
		assert.Equal(t, models.ReasonDynamicRulePending, body.ManualReviewReason)
		assert.Empty(t, body.RejectionReasons)
		assert.Empty(t, body.Stages)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewRequest(t, http.MethodGet, "/credit/evaluations/nope"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("not found", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeNotFound, "evaluation not found")}
		rr := testutil.DoRequest(newRouter(svc),
			testutil.NewRequest(t, http.MethodGet, "/credit/evaluations/"+id.NewApplicationID().String()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestHandleListByApplicant(t *testing.T) {
	svc := &stubService{rec: rejectedRecord(t)}
	rr := testutil.DoRequest(newRouter(svc), testutil.NewRequest(t, http.MethodGet, "/credit/applicants/cust-5/evaluations"))

	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, id.ApplicantID("cust-5"), svc.listArg)
	body := testutil.UnmarshalResponse[EvaluationListResponse](t, rr)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "Credit rejected", body.Evaluations[0].Message)
}
