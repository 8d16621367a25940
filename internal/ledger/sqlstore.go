package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fairaudit/internal/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	evaluation_id   TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	source          TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	profile_name    TEXT NOT NULL,
	profile_hash    TEXT NOT NULL,
	total_records   INTEGER NOT NULL,
	skipped_records INTEGER NOT NULL,
	bias_detected   INTEGER NOT NULL,
	fairness_score  REAL NOT NULL,
	grade           TEXT NOT NULL,
	violations      INTEGER NOT NULL,
	report_json     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS evaluations_created_at ON evaluations (created_at);
CREATE INDEX IF NOT EXISTS evaluations_fingerprint ON evaluations (fingerprint);
`

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// SQLStore is a Store backed by SQLite.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Put(ctx context.Context, e types.LedgerEntry, report []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO evaluations (
	evaluation_id, created_at, source, fingerprint, profile_name, profile_hash,
	total_records, skipped_records, bias_detected, fairness_score, grade, violations, report_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EvaluationID, e.CreatedAt.UTC().Format(timeLayout), e.Source, e.Fingerprint, e.ProfileName, e.ProfileHash,
		e.TotalRecords, e.SkippedRecords, boolInt(e.BiasDetected), e.FairnessScore, e.Grade, e.Violations, string(report))
	if err != nil {
		return fmt.Errorf("record evaluation %s: %w", e.EvaluationID, err)
	}
	return nil
}

const entryColumns = `evaluation_id, created_at, source, fingerprint, profile_name, profile_hash,
	total_records, skipped_records, bias_detected, fairness_score, grade, violations`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner, extra ...any) (types.LedgerEntry, error) {
	var (
		e       types.LedgerEntry
		created string
		bias    int
	)
	dest := append([]any{
		&e.EvaluationID, &created, &e.Source, &e.Fingerprint, &e.ProfileName, &e.ProfileHash,
		&e.TotalRecords, &e.SkippedRecords, &bias, &e.FairnessScore, &e.Grade, &e.Violations,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return e, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return e, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	e.CreatedAt = t
	e.BiasDetected = bias != 0
	return e, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (types.LedgerEntry, []byte, error) {
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+`, report_json FROM evaluations WHERE evaluation_id = ?`, id)
	e, err := scanEntry(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LedgerEntry{}, nil, ErrNotFound
	}
	if err != nil {
		return types.LedgerEntry{}, nil, err
	}
	return e, []byte(body), nil
}

// List returns the newest entries first.
func (s *SQLStore) List(ctx context.Context, limit int) ([]types.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM evaluations
ORDER BY created_at DESC, evaluation_id ASC
LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
