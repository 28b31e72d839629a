package handler

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EvaluateRequest is the body of POST /credit/evaluations.
type EvaluateRequest struct {
	ApplicantID          string         `json:"applicant_id" validate:"required,max=64"`
	RequestedAmount      *float64       `json:"requested_amount" validate:"required,gt=0"`
	AdditionalParameters map[string]any `json:"additional_parameters"`

	applicantID id.ApplicantID
	params      models.Parameters
}

func (r *EvaluateRequest) Normalize() {
	r.ApplicantID = strings.TrimSpace(r.ApplicantID)
}

// Validate implements httputil.Validatable.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	if math.IsInf(*r.RequestedAmount, 0) || math.IsNaN(*r.RequestedAmount) {
		return dErrors.New(dErrors.CodeValidation, "requested_amount must be a finite number")
	}
	applicantID, err := id.ParseApplicantID(r.ApplicantID)
	if err != nil {
		return err
	}
	r.applicantID = applicantID
	r.params = models.Parameters(r.AdditionalParameters)
	if v, ok := r.params[models.ParamTerm]; ok {
		if term, ok := r.params.Term(); !ok || term > 600 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("additional_parameters.term must be a whole number of months between 1 and 600, got %v", v))
		}
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Field() {
		case "ApplicantID":
			field = "applicant_id"
		case "RequestedAmount":
			field = "requested_amount"
		}
		switch fe.Tag() {
		case "required":
			return dErrors.New(dErrors.CodeValidation, field+" is required")
		case "gt":
			return dErrors.New(dErrors.CodeValidation, field+" must be greater than "+fe.Param())
		case "max":
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		}
		return dErrors.New(dErrors.CodeValidation, field+" is invalid")
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}
