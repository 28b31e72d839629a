package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"creditflow/internal/rules/models"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists rule definitions in PostgreSQL with JSONB parameters.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const selectColumns = `id, name, description, kind, parameters, approved, active, origin, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, def *models.Definition) error {
	params, err := models.EncodeParams(def.Params)
	if err != nil {
		return err
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO rule_definitions (id, name, description, kind, parameters, approved, active, origin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(def.ID), def.Name, def.Description, string(def.Kind), []byte(params),
		def.Approved, def.Active, string(def.Origin), def.CreatedAt, def.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert rule definition: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, def *models.Definition) error {
	params, err := models.EncodeParams(def.Params)
	if err != nil {
		return err
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE rule_definitions
		SET name = $2, description = $3, kind = $4, parameters = $5,
			approved = $6, active = $7, origin = $8, updated_at = $9
		WHERE id = $1
	`, uuid.UUID(def.ID), def.Name, def.Description, string(def.Kind), []byte(params),
		def.Approved, def.Active, string(def.Origin), def.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update rule definition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule definition rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, ruleID id.RuleID) (*models.Definition, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM rule_definitions WHERE id = $1`, uuid.UUID(ruleID))
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find rule definition: %w", err)
	}
	return def, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.Definition, error) {
	var (
		where []string
		args  []any
	)
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("active = $%d", len(args)))
	}
	if filter.Approved != nil {
		args = append(args, *filter.Approved)
		where = append(where, fmt.Sprintf("approved = $%d", len(args)))
	}
	if filter.Origin != nil {
		args = append(args, string(*filter.Origin))
		where = append(where, fmt.Sprintf("origin = $%d", len(args)))
	}
	query := `SELECT ` + selectColumns + ` FROM rule_definitions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rule definitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule definition: %w", err)
		}
		out = append(out, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule definitions: %w", err)
	}
	return out, nil
}

// ListActive returns only definitions with active = true.
func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Definition, error) {
	active := true
	return s.List(ctx, models.Filter{Active: &active})
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx, `SELECT count(*) FROM rule_definitions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rule definitions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanDefinition leaves Params nil when the stored kind is unknown so the
// rule factory can report it as a configuration error.
func scanDefinition(row rowScanner) (*models.Definition, error) {
	var (
		ruleID    uuid.UUID
		kind      string
		origin    string
		rawParams []byte
		createdAt time.Time
		updatedAt time.Time
		def       models.Definition
	)
	if err := row.Scan(&ruleID, &def.Name, &def.Description, &kind, &rawParams,
		&def.Approved, &def.Active, &origin, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	def.ID = id.RuleID(ruleID)
	def.Kind = models.Kind(kind)
	def.Origin = models.Origin(origin)
	def.CreatedAt = createdAt
	def.UpdatedAt = updatedAt
	if def.Kind.IsValid() {
		params, err := models.DecodeParams(def.Kind, json.RawMessage(rawParams))
		if err != nil {
			return nil, fmt.Errorf("decode parameters of rule %s: %w", def.Name, err)
		}
		def.Params = params
	}
	return &def, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState() == uniqueViolation
	}
	return false
}
