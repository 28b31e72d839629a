package handler

import (
	"time"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/pipeline"
)

var statusMessages = map[models.Status]string{
	models.StatusApproved:     "Credit approved",
	models.StatusRejected:     "Credit rejected",
	models.StatusManualReview: "Sent for manual review",
}

// EvaluationResponse is the wire shape of a resolved evaluation.
type EvaluationResponse struct {
	ID                   string                 `json:"id"`
	ApplicantID          string                 `json:"applicant_id"`
	RequestedAmount      float64                `json:"requested_amount"`
	AdditionalParameters map[string]any         `json:"additional_parameters"`
	Status               string                 `json:"status"`
	Message              string                 `json:"message"`
	HardFailure          bool                   `json:"hard_failure"`
	NeedsManualReview    bool                   `json:"needs_manual_review"`
	ManualReviewReason   string                 `json:"manual_review_reason,omitempty"`
	RejectionReasons     []string               `json:"rejection_reasons,omitempty"`
	Trail                []models.TrailEntry    `json:"trail"`
	Advisor              *models.AdvisorOutcome `json:"advisor,omitempty"`
	Stages               []StageResponse        `json:"stages,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	CompletedAt          time.Time              `json:"completed_at"`
}

// StageResponse reports one pipeline stage of a fresh evaluation.
type StageResponse struct {
	Stage      string `json:"stage"`
	State      string `json:"state"`
	Skipped    bool   `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
}

// EvaluationListResponse wraps an applicant's evaluation history.
type EvaluationListResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
	Total       int                  `json:"total"`
}

func toEvaluationResponse(rec *models.Record) EvaluationResponse {
	status, _ := rec.Status()
	resp := EvaluationResponse{
		ID:                   rec.ID().String(),
		ApplicantID:          rec.ApplicantID().String(),
		RequestedAmount:      rec.RequestedAmount(),
		AdditionalParameters: rec.Parameters(),
		Status:               string(status),
		Message:              statusMessages[status],
		HardFailure:          rec.HardFailure(),
		NeedsManualReview:    rec.NeedsManualReview(),
		Trail:                rec.Trail(),
		Advisor:              rec.AdvisorOutcome(),
		CreatedAt:            rec.CreatedAt(),
		CompletedAt:          rec.CompletedAt(),
	}
	switch status {
	case models.StatusRejected:
		resp.RejectionReasons = rec.FailedDescriptions()
	case models.StatusManualReview:
		resp.ManualReviewReason = rec.ManualReviewReason()
	}
	return resp
}

func toResultResponse(res *pipeline.Result) EvaluationResponse {
	resp := toEvaluationResponse(res.Record)
	for _, st := range res.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			Stage:      string(st.Stage),
			State:      string(st.State),
			Skipped:    st.Skipped,
			DurationMS: st.Duration.Milliseconds(),
		})
	}
	return resp
}

func toEvaluationList(recs []*models.Record) EvaluationListResponse {
	out := EvaluationListResponse{Evaluations: make([]EvaluationResponse, 0, len(recs)), Total: len(recs)}
	for _, rec := range recs {
		out.Evaluations = append(out.Evaluations, toEvaluationResponse(rec))
	}
	return out
}
