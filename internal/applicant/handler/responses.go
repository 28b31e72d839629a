package handler

import (
	"time"

	"creditflow/internal/applicant/models"
)

// CustomerResponse is the wire shape of a customer profile.
type CustomerResponse struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Age             *int             `json:"age"`
	MonthlyIncome   *float64         `json:"monthly_income"`
	CreatedAt       time.Time        `json:"created_at"`
	Bureau          *BureauResponse  `json:"credit_bureau,omitempty"`
	Banking         *BankingResponse `json:"banking_history,omitempty"`
	EvaluationCount *int             `json:"evaluation_count,omitempty"`
}

type BureauResponse struct {
	Score      *int      `json:"score"`
	Status     string    `json:"status"`
	TotalDebts float64   `json:"total_debts"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BankingResponse struct {
	HasAccount         bool      `json:"has_account"`
	AverageBalance     float64   `json:"average_balance"`
	RelationshipMonths int       `json:"relationship_months"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type CustomerListResponse struct {
	Customers []CustomerResponse `json:"customers"`
	Total     int                `json:"total"`
}

func toCustomerResponse(p *models.Profile) CustomerResponse {
	out := CustomerResponse{
		ID:            p.Customer.ID.String(),
		Name:          p.Customer.Name,
		Age:           p.Customer.Age,
		MonthlyIncome: p.Customer.MonthlyIncome,
		CreatedAt:     p.Customer.CreatedAt,
	}
	if b := p.Bureau; b != nil {
		out.Bureau = &BureauResponse{
			Score:      b.Score,
			Status:     string(b.Status),
			TotalDebts: b.TotalDebts,
			UpdatedAt:  b.UpdatedAt,
		}
	}
	if b := p.Banking; b != nil {
		out.Banking = &BankingResponse{
			HasAccount:         b.HasAccount,
			AverageBalance:     b.AverageBalance,
			RelationshipMonths: b.RelationshipMonths,
			UpdatedAt:          b.UpdatedAt,
		}
	}
	return out
}

func toCustomerList(profiles []*models.Profile) CustomerListResponse {
	out := CustomerListResponse{Customers: make([]CustomerResponse, 0, len(profiles)), Total: len(profiles)}
	for _, p := range profiles {
		out.Customers = append(out.Customers, toCustomerResponse(p))
	}
	return out
}
