package advisor

import (
	"context"
	"fmt"

	"creditflow/internal/evaluation/models"
	"creditflow/internal/evaluation/ports"
	"creditflow/pkg/platform/sentinel"
)

// Disabled is the advisor used when consultation is switched off. Every
// call fails, so flagged applications go to manual review.
type Disabled struct{}

func (Disabled) Consult(context.Context, models.View) (*ports.AdvisorResponse, error) {
	return nil, fmt.Errorf("%w: advisor disabled", sentinel.ErrUnavailable)
}
