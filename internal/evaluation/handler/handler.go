// Package handler exposes credit evaluations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/pipeline"
	"creditflow/internal/evaluation/service"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/httputil"
	"creditflow/pkg/requestcontext"
)

// Service defines the evaluation operations the handler needs.
type Service interface {
	Evaluate(ctx context.Context, cmd service.EvaluateCommand) (*pipeline.Result, error)
	Get(ctx context.Context, applicationID id.ApplicationID) (*models.Record, error)
	ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.Record, error)
}

// Handler wires evaluation endpoints to the evaluation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an evaluation handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/credit/evaluations", h.HandleEvaluate)
	r.Get("/credit/evaluations/{id}", h.HandleGet)
	r.Get("/credit/applicants/{applicantID}/evaluations", h.HandleListByApplicant)
}

// HandleEvaluate handles POST /credit/evaluations.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	res, err := h.service.Evaluate(ctx, service.EvaluateCommand{
		ApplicantID:     req.applicantID,
		RequestedAmount: *req.RequestedAmount,
		Parameters:      req.params,
	})
	if err != nil {
		h.logFailure(ctx, "evaluate", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResultResponse(res))
}

// HandleGet handles GET /credit/evaluations/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicationID, err := id.ParseApplicationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.Get(ctx, applicationID)
	if err != nil {
		h.logFailure(ctx, "get", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEvaluationResponse(rec))
}

// HandleListByApplicant handles GET /credit/applicants/{applicantID}/evaluations.
func (h *Handler) HandleListByApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "applicantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.service.ListByApplicant(ctx, applicantID)
	if err != nil {
		h.logFailure(ctx, "list", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEvaluationList(recs))
}

func (h *Handler) logFailure(ctx context.Context, op string, err error) {
	if de, ok := dErrors.Is(err); ok && httputil.StatusFor(de.Code) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, "evaluation "+op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
