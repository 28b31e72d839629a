package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"creditflow/internal/applicant/models"
	evmodels "creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/platform/tx"
)

// PostgresStore persists customers with their bureau and banking records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed customer store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save upserts the customer and its records in one transaction. Missing
// bureau or banking records are deleted.
func (s *PostgresStore) Save(ctx context.Context, p *models.Profile) error {
	return tx.Run(ctx, s.db, "customer", func(t *sql.Tx) error {
		return s.save(ctx, t, p)
	})
}

func (s *PostgresStore) save(ctx context.Context, exec dbExecutor, p *models.Profile) error {
	c := p.Customer
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO customers (id, name, age, monthly_income, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, age = EXCLUDED.age, monthly_income = EXCLUDED.monthly_income
	`, c.ID.String(), c.Name, nullInt(c.Age), nullFloat(c.MonthlyIncome), createdAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	if b := p.Bureau; b != nil {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO bureau_records (customer_id, score, status, total_debts, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (customer_id) DO UPDATE
			SET score = EXCLUDED.score, status = EXCLUDED.status,
				total_debts = EXCLUDED.total_debts, updated_at = EXCLUDED.updated_at
		`, c.ID.String(), nullInt(b.Score), string(b.Status), b.TotalDebts, stamp(b.UpdatedAt, createdAt))
	} else {
		_, err = exec.ExecContext(ctx, `DELETE FROM bureau_records WHERE customer_id = $1`, c.ID.String())
	}
	if err != nil {
		return fmt.Errorf("save bureau record: %w", err)
	}

	if b := p.Banking; b != nil {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO banking_records (customer_id, has_account, average_balance, relationship_months, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (customer_id) DO UPDATE
			SET has_account = EXCLUDED.has_account, average_balance = EXCLUDED.average_balance,
				relationship_months = EXCLUDED.relationship_months, updated_at = EXCLUDED.updated_at
		`, c.ID.String(), b.HasAccount, b.AverageBalance, b.RelationshipMonths, stamp(b.UpdatedAt, createdAt))
	} else {
		_, err = exec.ExecContext(ctx, `DELETE FROM banking_records WHERE customer_id = $1`, c.ID.String())
	}
	if err != nil {
		return fmt.Errorf("save banking record: %w", err)
	}
	return nil
}

const profileQuery = `
	SELECT c.id, c.name, c.age, c.monthly_income, c.created_at,
		b.customer_id IS NOT NULL, b.score, b.status, b.total_debts, b.updated_at,
		k.customer_id IS NOT NULL, k.has_account, k.average_balance, k.relationship_months, k.updated_at
	FROM customers c
	LEFT JOIN bureau_records b ON b.customer_id = c.id
	LEFT JOIN banking_records k ON k.customer_id = c.id`

func (s *PostgresStore) FindProfile(ctx context.Context, applicantID id.ApplicantID) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, profileQuery+` WHERE c.id = $1`, applicantID.String())
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find customer profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindCustomer(ctx context.Context, applicantID id.ApplicantID) (*models.Customer, error) {
	var (
		c      models.Customer
		raw    string
		age    sql.NullInt64
		income sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, age, monthly_income, created_at FROM customers WHERE id = $1
	`, applicantID.String()).Scan(&raw, &c.Name, &age, &income, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	c.ID = id.ApplicantID(raw)
	c.Age = intPtr(age)
	c.MonthlyIncome = floatPtr(income)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *PostgresStore) FindBureau(ctx context.Context, applicantID id.ApplicantID) (*models.BureauRecord, error) {
	var (
		b      models.BureauRecord
		score  sql.NullInt64
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT score, status, total_debts, updated_at FROM bureau_records WHERE customer_id = $1
	`, applicantID.String()).Scan(&score, &status, &b.TotalDebts, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find bureau record: %w", err)
	}
	b.Score = intPtr(score)
	b.Status = evmodels.BureauStatus(status)
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func (s *PostgresStore) FindBanking(ctx context.Context, applicantID id.ApplicantID) (*models.BankingRecord, error) {
	var b models.BankingRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT has_account, average_balance, relationship_months, updated_at
		FROM banking_records WHERE customer_id = $1
	`, applicantID.String()).Scan(&b.HasAccount, &b.AverageBalance, &b.RelationshipMonths, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find banking record: %w", err)
	}
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// List returns the profiles for ids, or every profile when ids is empty,
// ordered by customer ID.
func (s *PostgresStore) List(ctx context.Context, ids []id.ApplicantID) ([]*models.Profile, error) {
	query := profileQuery
	var args []any
	if len(ids) > 0 {
		raw := make([]string, len(ids))
		for i, applicantID := range ids {
			raw[i] = applicantID.String()
		}
		query += ` WHERE c.id = ANY($1)`
		args = append(args, pq.Array(raw))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY c.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		p          models.Profile
		rawID      string
		age        sql.NullInt64
		income     sql.NullFloat64
		hasBureau  bool
		score      sql.NullInt64
		status     sql.NullString
		debts      sql.NullFloat64
		bureauAt   sql.NullTime
		hasBanking bool
		account    sql.NullBool
		balance    sql.NullFloat64
		months     sql.NullInt64
		bankingAt  sql.NullTime
	)
	err := row.Scan(&rawID, &p.Customer.Name, &age, &income, &p.Customer.CreatedAt,
		&hasBureau, &score, &status, &debts, &bureauAt,
		&hasBanking, &account, &balance, &months, &bankingAt)
	if err != nil {
		return nil, err
	}
	p.Customer.ID = id.ApplicantID(rawID)
	p.Customer.Age = intPtr(age)
	p.Customer.MonthlyIncome = floatPtr(income)
	p.Customer.CreatedAt = p.Customer.CreatedAt.UTC()
	if hasBureau {
		p.Bureau = &models.BureauRecord{
			Score:      intPtr(score),
			Status:     evmodels.BureauStatus(status.String),
			TotalDebts: debts.Float64,
			UpdatedAt:  bureauAt.Time.UTC(),
		}
	}
	if hasBanking {
		p.Banking = &models.BankingRecord{
			HasAccount:         account.Bool,
			AverageBalance:     balance.Float64,
			RelationshipMonths: int(months.Int64),
			UpdatedAt:          bankingAt.Time.UTC(),
		}
	}
	return &p, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stamp(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}
