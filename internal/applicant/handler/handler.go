// Package handler exposes the customer registry over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditflow/internal/applicant/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/httputil"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/platform/strings"
	"creditflow/pkg/requestcontext"
)

const maxListIDs = 100

// Store is the customer registry read by the handler.
type Store interface {
	FindProfile(ctx context.Context, applicantID id.ApplicantID) (*models.Profile, error)
	List(ctx context.Context, ids []id.ApplicantID) ([]*models.Profile, error)
}

// EvaluationCounter counts stored evaluations per applicant.
type EvaluationCounter interface {
	CountByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error)
}

type Handler struct {
	store       Store
	evaluations EvaluationCounter
	logger      *slog.Logger
}

func New(store Store, evaluations EvaluationCounter, logger *slog.Logger) *Handler {
	return &Handler{store: store, evaluations: evaluations, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/customers", h.HandleList)
	r.Get("/customers/{id}", h.HandleGet)
}

// HandleList handles GET /customers?id=a&id=b (or id=a,b).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := strings.SplitList(r.URL.Query()["id"])
	if len(raw) > maxListIDs {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at most 100 ids may be requested"))
		return
	}
	ids := make([]id.ApplicantID, 0, len(raw))
	for _, s := range raw {
		applicantID, err := id.ParseApplicantID(s)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ids = append(ids, applicantID)
	}

	profiles, err := h.store.List(ctx, ids)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list customers",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list customers"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCustomerList(profiles))
}

// HandleGet handles GET /customers/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applicantID, err := id.ParseApplicantID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.store.FindProfile(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "customer not found"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load customer",
			"request_id", requestcontext.RequestID(ctx),
			"applicant_id", applicantID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer"))
		return
	}

	resp := toCustomerResponse(profile)
	count, err := h.evaluations.CountByApplicant(ctx, applicantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count evaluations",
			"request_id", requestcontext.RequestID(ctx),
			"applicant_id", applicantID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load customer"))
		return
	}
	resp.EvaluationCount = &count
	httputil.WriteJSON(w, http.StatusOK, resp)
}
