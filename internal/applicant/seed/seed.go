// Package seed loads sample customers from YAML into an empty customer store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"creditflow/internal/applicant/models"
	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
)

//go:embed default_customers.yaml
var defaultCustomers []byte

// Store is what Apply needs from the customer store.
type Store interface {
	Count(ctx context.Context) (int, error)
	Save(ctx context.Context, p *models.Profile) error
}

type File struct {
	Customers []Customer `yaml:"customers"`
}

type Customer struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Age           *int     `yaml:"age"`
	MonthlyIncome *float64 `yaml:"monthly_income"`
	Bureau        *Bureau  `yaml:"bureau"`
	Banking       *Banking `yaml:"banking"`
}

type Bureau struct {
	Score      *int    `yaml:"score"`
	Status     string  `yaml:"status"`
	TotalDebts float64 `yaml:"total_debts"`
}

type Banking struct {
	HasAccount         bool    `yaml:"has_account"`
	AverageBalance     float64 `yaml:"average_balance"`
	RelationshipMonths int     `yaml:"relationship_months"`
}

// ReadFile returns the YAML at path, or the embedded sample customers when
// path is empty.
func ReadFile(path string) ([]byte, error) {
	if path == "" {
		return defaultCustomers, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read customer seed %s: %w", path, err)
	}
	return data, nil
}

// Parse decodes and validates a YAML customer set.
func Parse(data []byte) ([]*models.Profile, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed customers: %w", err)
	}
	out := make([]*models.Profile, 0, len(f.Customers))
	for i, c := range f.Customers {
		p, err := c.profile()
		if err != nil {
			return nil, fmt.Errorf("seed customer %d (%s): %w", i, c.ID, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c Customer) profile() (*models.Profile, error) {
	applicantID, err := id.ParseApplicantID(c.ID)
	if err != nil {
		return nil, err
	}
	p := &models.Profile{
		Customer: models.Customer{
			ID:            applicantID,
			Name:          c.Name,
			Age:           c.Age,
			MonthlyIncome: c.MonthlyIncome,
		},
	}
	if c.Bureau != nil {
		p.Bureau = &models.BureauRecord{
			Score:      c.Bureau.Score,
			Status:     evmodels.BureauStatus(c.Bureau.Status),
			TotalDebts: c.Bureau.TotalDebts,
		}
	}
	if c.Banking != nil {
		p.Banking = &models.BankingRecord{
			HasAccount:         c.Banking.HasAccount,
			AverageBalance:     c.Banking.AverageBalance,
			RelationshipMonths: c.Banking.RelationshipMonths,
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Apply stores profiles when the store holds no customers yet. It returns
// the number of customers created.
func Apply(ctx context.Context, store Store, profiles []*models.Profile, now func() time.Time, logger *slog.Logger) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	if n > 0 {
		logger.InfoContext(ctx, "customer store already populated, skipping seed", "customers", n)
		return 0, nil
	}
	for _, p := range profiles {
		stamped := *p
		at := now()
		stamped.Customer.CreatedAt = at
		if p.Bureau != nil {
			b := *p.Bureau
			b.UpdatedAt = at
			stamped.Bureau = &b
		}
		if p.Banking != nil {
			b := *p.Banking
			b.UpdatedAt = at
			stamped.Banking = &b
		}
		if err := store.Save(ctx, &stamped); err != nil {
			return 0, fmt.Errorf("seed customer %s: %w", p.Customer.ID, err)
		}
	}
	logger.InfoContext(ctx, "seeded sample customers", "customers", len(profiles))
	return len(profiles), nil
}
