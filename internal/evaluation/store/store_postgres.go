package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"creditflow/internal/evaluation/models"
	id "creditflow/pkg/domain"
	dErrors "creditflow/pkg/domain-errors"
	"creditflow/pkg/platform/sentinel"
	"creditflow/pkg/platform/tx"
)

// PostgresStore persists records in the evaluations table with their trail
// in evaluation_trail. Both are written in one transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save writes the record and its trail atomically. An ambient transaction
// from context is reused.
func (s *PostgresStore) Save(ctx context.Context, rec *models.Record) error {
	if _, resolved := rec.Status(); !resolved {
		return dErrors.New(dErrors.CodeInvariantViolation, "only resolved records can be stored")
	}
	snap := rec.Snapshot()

	return tx.Run(ctx, s.db, "evaluation", func(t *sql.Tx) error {
		return s.save(ctx, t, snap)
	})
}

func (s *PostgresStore) save(ctx context.Context, exec dbExecutor, snap models.Snapshot) error {
	params, err := json.Marshal(snap.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	facts, err := models.MarshalFacts(snap.Facts)
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}
	var advisor []byte
	if snap.AdvisorOutcome != nil {
		if advisor, err = json.Marshal(snap.AdvisorOutcome); err != nil {
			return fmt.Errorf("marshal advisor outcome: %w", err)
		}
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO evaluations (
			id, applicant_id, requested_amount, additional_parameters, facts,
			hard_failure, needs_manual_review, manual_review_reason, advisor_outcome,
			status, created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.UUID(snap.ID),
		snap.ApplicantID.String(),
		snap.RequestedAmount,
		params,
		facts,
		snap.HardFailure,
		snap.NeedsManualReview,
		snap.ManualReviewReason,
		advisor,
		string(snap.Status),
		snap.CreatedAt,
		snap.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert evaluation: %w", err)
	}

	for seq, e := range snap.Trail {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO evaluation_trail (evaluation_id, seq, rule_name, passed, description, evaluated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.UUID(snap.ID), seq, e.RuleName, e.Passed, e.Description, e.EvaluatedAt)
		if err != nil {
			return fmt.Errorf("insert trail entry %d: %w", seq, err)
		}
	}
	return nil
}

const selectEvaluations = `
	SELECT id, applicant_id, requested_amount, additional_parameters, facts,
		hard_failure, needs_manual_review, manual_review_reason, advisor_outcome,
		status, created_at, completed_at
	FROM evaluations
`

func (s *PostgresStore) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, selectEvaluations+`WHERE id = $1`, uuid.UUID(applicationID))
	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	trails, err := s.loadTrails(ctx, []uuid.UUID{uuid.UUID(snap.ID)})
	if err != nil {
		return nil, err
	}
	snap.Trail = trails[snap.ID]
	return models.FromSnapshot(*snap), nil
}

// ListByApplicant returns the applicant's records, newest first.
func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID id.ApplicantID) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectEvaluations+`
		WHERE applicant_id = $1
		ORDER BY created_at DESC, id ASC
	`, applicantID.String())
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var (
		snaps []*models.Snapshot
		ids   []uuid.UUID
	)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
		ids = append(ids, uuid.UUID(snap.ID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	if len(snaps) == 0 {
		return []*models.Record{}, nil
	}

	trails, err := s.loadTrails(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0, len(snaps))
	for _, snap := range snaps {
		snap.Trail = trails[snap.ID]
		out = append(out, models.FromSnapshot(*snap))
	}
	return out, nil
}

// CountByApplicant returns how many evaluations the applicant has.
func (s *PostgresStore) CountByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations WHERE applicant_id = $1`, applicantID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count evaluations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) loadTrails(ctx context.Context, ids []uuid.UUID) (map[id.ApplicationID][]models.TrailEntry, error) {
	strIDs := make([]string, len(ids))
	for i, v := range ids {
		strIDs[i] = v.String()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT evaluation_id, rule_name, passed, description, evaluated_at
		FROM evaluation_trail
		WHERE evaluation_id = ANY($1::uuid[])
		ORDER BY evaluation_id, seq
	`, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("query evaluation trail: %w", err)
	}
	defer rows.Close()

	trails := make(map[id.ApplicationID][]models.TrailEntry, len(ids))
	for rows.Next() {
		var (
			evalID uuid.UUID
			e      models.TrailEntry
		)
		if err := rows.Scan(&evalID, &e.RuleName, &e.Passed, &e.Description, &e.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("scan trail entry: %w", err)
		}
		e.EvaluatedAt = e.EvaluatedAt.UTC()
		key := id.ApplicationID(evalID)
		trails[key] = append(trails[key], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation trail: %w", err)
	}
	return trails, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*models.Snapshot, error) {
	var (
		snap                  models.Snapshot
		evalID                uuid.UUID
		applicantID, status   string
		params, facts, advice []byte
		createdAt, completed  time.Time
	)
	err := row.Scan(
		&evalID,
		&applicantID,
		&snap.RequestedAmount,
		&params,
		&facts,
		&snap.HardFailure,
		&snap.NeedsManualReview,
		&snap.ManualReviewReason,
		&advice,
		&status,
		&createdAt,
		&completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}

	snap.ID = id.ApplicationID(evalID)
	snap.ApplicantID = id.ApplicantID(applicantID)
	snap.Status = models.Status(status)
	snap.CreatedAt = createdAt.UTC()
	snap.CompletedAt = completed.UTC()

	if len(params) > 0 {
		if err := json.Unmarshal(params, &snap.Parameters); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}
	if snap.Facts, err = models.UnmarshalFacts(facts); err != nil {
		return nil, err
	}
	if len(advice) > 0 {
		var outcome models.AdvisorOutcome
		if err := json.Unmarshal(advice, &outcome); err != nil {
			return nil, fmt.Errorf("decode advisor outcome: %w", err)
		}
		snap.AdvisorOutcome = &outcome
	}
	return &snap, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var stateErr interface{ SQLState() string }
	if errors.As(err, &stateErr) {
		return stateErr.SQLState() == "23505"
	}
	return false
}
