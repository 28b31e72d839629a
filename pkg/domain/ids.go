// Package domain holds typed identifiers shared across bounded contexts.
//
// IDs are parsed once at trust boundaries (HTTP handlers, store scans) and
// passed around as distinct types so an application ID can never be handed
// to a function expecting a rule ID.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "creditflow/pkg/domain-errors"
)

// ApplicationID identifies one evaluation of a credit application.
type ApplicationID uuid.UUID

// RuleID identifies a persisted rule definition.
type RuleID uuid.UUID

// ApplicantID identifies the customer applying for credit. It is an opaque
// string owned by the customer registry, not a UUID.
type ApplicantID string

const maxApplicantIDLength = 64

// NewApplicationID returns a fresh random application ID.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewRuleID returns a fresh random rule ID.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

func (id ApplicationID) String() string { return uuid.UUID(id).String() }
func (id ApplicationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) String() string        { return uuid.UUID(id).String() }
func (id RuleID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id ApplicantID) String() string   { return string(id) }
func (id ApplicantID) IsNil() bool      { return id == "" }

// ParseApplicationID parses a non-nil UUID into an ApplicationID.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application_id")
	return ApplicationID(u), err
}

// ParseRuleID parses a non-nil UUID into a RuleID.
func ParseRuleID(s string) (RuleID, error) {
	u, err := parseUUID(s, "rule_id")
	return RuleID(u), err
}

// ParseApplicantID validates an applicant identifier: 1-64 characters of
// letters, digits, '-' or '_'.
func ParseApplicantID(s string) (ApplicantID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "applicant_id is required")
	}
	if len(s) > maxApplicantIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "applicant_id must be at most 64 characters")
	}
	for _, r := range s {
		if !isApplicantIDRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "applicant_id contains invalid characters")
		}
	}
	return ApplicantID(s), nil
}

func isApplicantIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, field+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be the nil UUID")
	}
	return u, nil
}
