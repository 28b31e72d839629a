package store_test

import (
	"time"

	"creditflow/internal/applicant/models"
	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
)

func ptr[T any](v T) *T { return &v }

func fullProfile(applicant string, at time.Time) *models.Profile {
	return &models.Profile{
		Customer: models.Customer{
			ID:            id.ApplicantID(applicant),
			Name:          "Customer " + applicant,
			Age:           ptr(35),
			MonthlyIncome: ptr(8000.0),
			CreatedAt:     at,
		},
		Bureau: &models.BureauRecord{
			Score:      ptr(850),
			Status:     evmodels.BureauRegular,
			TotalDebts: 120.5,
			UpdatedAt:  at,
		},
		Banking: &models.BankingRecord{
			HasAccount:         true,
			AverageBalance:     5000,
			RelationshipMonths: 60,
			UpdatedAt:          at,
		},
	}
}
