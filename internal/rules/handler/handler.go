// Package handler exposes rule administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creditflow/internal/rules/models"
	"creditflow/internal/rules/service"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/httputil"
	"creditflow/pkg/requestcontext"
)

// Service defines the rule operations the handler needs.
type Service interface {
	List(ctx context.Context, filter models.Filter) ([]*models.Definition, error)
	Get(ctx context.Context, ruleID id.RuleID) (*models.Definition, error)
	Create(ctx context.Context, cmd service.CreateCommand) (*models.Definition, error)
	Update(ctx context.Context, ruleID id.RuleID, cmd service.UpdateCommand) (*models.Definition, error)
	SetApproval(ctx context.Context, ruleID id.RuleID, approved bool) (*models.Definition, error)
	SetActivation(ctx context.Context, ruleID id.RuleID, active bool) (*models.Definition, error)
}

// Handler wires rule endpoints to the rule service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a rule handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoints on r and the reviewer endpoints on a
// group guarded by reviewerOnly.
func (h *Handler) Register(r chi.Router, reviewerOnly func(http.Handler) http.Handler) {
	r.Get("/rules", h.HandleList)
	r.Get("/rules/{id}", h.HandleGet)

	r.Group(func(r chi.Router) {
		r.Use(reviewerOnly)
		r.Post("/rules", h.HandleCreate)
		r.Put("/rules/{id}", h.HandleUpdate)
		r.Patch("/rules/{id}/approval", h.HandleSetApproval)
		r.Patch("/rules/{id}/activation", h.HandleSetActivation)
	})
}

// HandleList handles GET /rules?active=&approved=&origin=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defs, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list rules",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRuleList(defs))
}

// HandleGet handles GET /rules/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	def, err := h.service.Get(r.Context(), ruleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRuleResponse(def))
}

// HandleCreate handles POST /rules.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	def, err := h.service.Create(ctx, service.CreateCommand{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.kind,
		Params:      req.params,
		Approved:    req.Approved,
		Active:      req.Active,
		Origin:      req.origin,
	})
	if err != nil {
		h.logFailure(ctx, "create", "", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "rule created",
		"request_id", requestID,
		"rule_id", def.ID,
		"actor_id", requestcontext.ActorID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, toRuleResponse(def))
}

// HandleUpdate handles PUT /rules/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	def, err := h.service.Update(ctx, ruleID, service.UpdateCommand{
		Name:        req.Name,
		Description: req.Description,
		Kind:        req.kind,
		Params:      req.params,
	})
	if err != nil {
		h.logFailure(ctx, "update", ruleID.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRuleResponse(def))
}

// HandleSetApproval handles PATCH /rules/{id}/approval.
func (h *Handler) HandleSetApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApprovalRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	def, err := h.service.SetApproval(ctx, ruleID, *req.Approved)
	if err != nil {
		h.logFailure(ctx, "set approval", ruleID.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRuleResponse(def))
}

// HandleSetActivation handles PATCH /rules/{id}/activation.
func (h *Handler) HandleSetActivation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID, err := id.ParseRuleID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActivationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	def, err := h.service.SetActivation(ctx, ruleID, *req.Active)
	if err != nil {
		h.logFailure(ctx, "set activation", ruleID.String(), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRuleResponse(def))
}

func (h *Handler) logFailure(ctx context.Context, op, ruleID string, err error) {
	if de, ok := dErrors.Is(err); ok && httputil.StatusFor(de.Code) < http.StatusInternalServerError {
		return
	}
	h.logger.ErrorContext(ctx, "rule "+op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"rule_id", ruleID,
		"error", err,
	)
}

func parseFilter(r *http.Request) (models.Filter, error) {
	var f models.Filter
	q := r.URL.Query()
	if v := q.Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "active must be true or false")
		}
		f.Active = &b
	}
	if v := q.Get("approved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeBadRequest, "approved must be true or false")
		}
		f.Approved = &b
	}
	if v := q.Get("origin"); v != "" {
		o, err := models.ParseOrigin(v)
		if err != nil {
			return f, err
		}
		f.Origin = &o
	}
	return f, nil
}
