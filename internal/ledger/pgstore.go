package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fairaudit/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS fairaudit_evaluations (
	evaluation_id   TEXT PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL,
	source          TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	profile_name    TEXT NOT NULL,
	profile_hash    TEXT NOT NULL,
	total_records   INTEGER NOT NULL,
	skipped_records INTEGER NOT NULL,
	bias_detected   BOOLEAN NOT NULL,
	fairness_score  DOUBLE PRECISION NOT NULL,
	grade           TEXT NOT NULL,
	violations      INTEGER NOT NULL,
	report_json     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fairaudit_evaluations_created_at ON fairaudit_evaluations (created_at DESC);
`

// PGStore is a Store backed by PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// IsPostgresDSN reports whether path names a PostgreSQL connection string.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) Put(ctx context.Context, e types.LedgerEntry, report []byte) error {
	query := `
		INSERT INTO fairaudit_evaluations (
			evaluation_id, created_at, source, fingerprint, profile_name, profile_hash,
			total_records, skipped_records, bias_detected, fairness_score, grade, violations, report_json
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.pool.Exec(ctx, query,
		e.EvaluationID, e.CreatedAt.UTC(), e.Source, e.Fingerprint, e.ProfileName, e.ProfileHash,
		e.TotalRecords, e.SkippedRecords, e.BiasDetected, e.FairnessScore, e.Grade, e.Violations, string(report),
	)
	if err != nil {
		return fmt.Errorf("record evaluation %s: %w", e.EvaluationID, err)
	}
	return nil
}

func pgScanEntry(row pgx.Row, extra ...any) (types.LedgerEntry, error) {
	var e types.LedgerEntry
	dest := append([]any{
		&e.EvaluationID, &e.CreatedAt, &e.Source, &e.Fingerprint, &e.ProfileName, &e.ProfileHash,
		&e.TotalRecords, &e.SkippedRecords, &e.BiasDetected, &e.FairnessScore, &e.Grade, &e.Violations,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return e, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (types.LedgerEntry, []byte, error) {
	var body string
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+`, report_json FROM fairaudit_evaluations WHERE evaluation_id = $1`, id)
	e, err := pgScanEntry(row, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.LedgerEntry{}, nil, ErrNotFound
	}
	if err != nil {
		return types.LedgerEntry{}, nil, err
	}
	return e, []byte(body), nil
}

// List returns the newest entries first.
func (s *PGStore) List(ctx context.Context, limit int) ([]types.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM fairaudit_evaluations
		ORDER BY created_at DESC, evaluation_id ASC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.LedgerEntry{}
	for rows.Next() {
		e, err := pgScanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
