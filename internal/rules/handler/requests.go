package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"creditflow/internal/rules/models"
	dErrors "creditflow/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateRuleRequest is the body of POST /rules.
type CreateRuleRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Type        string          `json:"type" validate:"required"`
	Parameters  json.RawMessage `json:"parameters" validate:"required"`
	Approved    bool            `json:"approved"`
	Active      *bool           `json:"active"`
	Origin      string          `json:"origin" validate:"omitempty,oneof=SYSTEM ADVISOR HUMAN"`

	kind   models.Kind
	params models.Params
	origin models.Origin
}

func (r *CreateRuleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
}

// Validate implements httputil.Validatable.
func (r *CreateRuleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	kind, params, err := parseTyped(r.Type, r.Parameters)
	if err != nil {
		return err
	}
	r.kind, r.params = kind, params
	if r.Origin != "" {
		r.origin = models.Origin(r.Origin)
	}
	return nil
}

// UpdateRuleRequest is the body of PUT /rules/{id}.
type UpdateRuleRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"max=500"`
	Type        string          `json:"type" validate:"required"`
	Parameters  json.RawMessage `json:"parameters" validate:"required"`

	kind   models.Kind
	params models.Params
}

func (r *UpdateRuleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
}

// Validate implements httputil.Validatable.
func (r *UpdateRuleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	kind, params, err := parseTyped(r.Type, r.Parameters)
	if err != nil {
		return err
	}
	r.kind, r.params = kind, params
	return nil
}

// ApprovalRequest is the body of PATCH /rules/{id}/approval.
type ApprovalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

func (r *ApprovalRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// ActivationRequest is the body of PATCH /rules/{id}/activation.
type ActivationRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (r *ActivationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func parseTyped(rawKind string, raw json.RawMessage) (models.Kind, models.Params, error) {
	kind, err := models.ParseKind(rawKind)
	if err != nil {
		return "", nil, err
	}
	params, err := models.DecodeParams(kind, raw)
	if err != nil {
		return "", nil, err
	}
	return kind, params, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return dErrors.New(dErrors.CodeValidation, field+" is required")
		case "max":
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "oneof":
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be one of %s", field, fe.Param()))
		}
		return dErrors.New(dErrors.CodeValidation, field+" is invalid")
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}
