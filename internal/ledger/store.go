// Package ledger keeps an append-only history of fairness evaluations.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fairaudit/internal/fairness"
	"fairaudit/internal/types"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no evaluation has the requested id.
var ErrNotFound = errors.New("evaluation not found")

// Store records evaluations and reads them back.
type Store interface {
	Put(ctx context.Context, entry types.LedgerEntry, report []byte) error
	Get(ctx context.Context, id string) (types.LedgerEntry, []byte, error)
	List(ctx context.Context, limit int) ([]types.LedgerEntry, error)
	Close() error
}

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// NewEvaluationID returns a random evaluation identifier.
func NewEvaluationID() string {
	return uuid.NewString()
}

// Entry summarizes a report for the ledger and returns its canonical JSON.
func Entry(id, source, profileHash string, report fairness.FairnessReport, now time.Time) (types.LedgerEntry, []byte, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return types.LedgerEntry{}, nil, err
	}
	fingerprint, err := report.Fingerprint()
	if err != nil {
		return types.LedgerEntry{}, nil, err
	}
	return types.LedgerEntry{
		EvaluationID:   id,
		CreatedAt:      now.UTC().Truncate(time.Millisecond),
		Source:         source,
		Fingerprint:    fingerprint,
		ProfileName:    report.ThresholdProfile,
		ProfileHash:    profileHash,
		TotalRecords:   report.Summary.TotalRecords,
		SkippedRecords: report.Summary.SkippedRecords,
		BiasDetected:   report.Summary.BiasDetected,
		FairnessScore:  report.Summary.FairnessScore,
		Grade:          report.Summary.Grade,
		Violations:     len(report.Violations),
	}, body, nil
}

// Record builds an entry for report and stores it. It returns the stored entry.
func Record(ctx context.Context, store Store, id, source, profileHash string, report fairness.FairnessReport) (types.LedgerEntry, error) {
	entry, body, err := Entry(id, source, profileHash, report, time.Now())
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if err := store.Put(ctx, entry, body); err != nil {
		return types.LedgerEntry{}, err
	}
	return entry, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
