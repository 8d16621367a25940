package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fairaudit/internal/fairness"
	"fairaudit/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) fairness.FairnessReport {
	t.Helper()
	opts := fairness.DefaultOptions()
	opts.MinRecords = 4
	engine, err := fairness.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Evaluate([]fairness.DecisionRecord{
		fairness.NewRecord("A", 1), fairness.NewRecord("A", 1),
		fairness.NewRecord("B", 0), fairness.NewRecord("B", 1),
	})
	require.NoError(t, err)
	return report
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })
	out := map[string]Store{"memory": NewInMemoryStore(), "sqlite": sqlStore}

	// Integration run against a disposable database, e.g.
	// FAIRAUDIT_TEST_POSTGRES_DSN=postgres://postgres@localhost:5432/fairaudit_test?sslmode=disable
	if dsn := os.Getenv("FAIRAUDIT_TEST_POSTGRES_DSN"); dsn != "" && !testing.Short() {
		pg, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		_, err = pg.pool.Exec(context.Background(), "TRUNCATE fairaudit_evaluations")
		require.NoError(t, err)
		t.Cleanup(func() { _ = pg.Close() })
		out["postgres"] = pg
	}
	return out
}

func TestEntrySummarizesReport(t *testing.T) {
	report := sampleReport(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))

	entry, body, err := Entry("id-1", "cli", "sha256:abc", report, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 123000000, time.UTC), entry.CreatedAt)
	assert.Equal(t, report.Summary.FairnessScore, entry.FairnessScore)
	assert.Equal(t, len(report.Violations), entry.Violations)
	assert.Equal(t, fairness.DefaultProfileName, entry.ProfileName)
	fp, _ := report.Fingerprint()
	assert.Equal(t, fp, entry.Fingerprint)
	assert.Contains(t, string(body), `"summary"`)
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	report := sampleReport(t)

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			var want []types.LedgerEntry
			for i := range 3 {
				entry, body, err := Entry(fmt.Sprintf("eval-%d", i), "test", "sha256:p", report, base.Add(time.Duration(i)*time.Second))
				require.NoError(t, err)
				require.NoError(t, store.Put(ctx, entry, body))
				want = append([]types.LedgerEntry{entry}, want...)
			}

			got, err := store.List(ctx, 0)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}

			limited, err := store.List(ctx, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
			assert.Equal(t, "eval-2", limited[0].EvaluationID)

			entry, body, err := store.Get(ctx, "eval-1")
			require.NoError(t, err)
			assert.Equal(t, want[1], entry)
			assert.Contains(t, string(body), `"fairness_metrics"`)

			_, _, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			dup, body, err := Entry("eval-0", "test", "", report, base)
			require.NoError(t, err)
			assert.Error(t, store.Put(ctx, dup, body), "ids are unique")
		})
	}
}

func TestRecordAssignsEntry(t *testing.T) {
	store := NewInMemoryStore()
	id := NewEvaluationID()
	entry, err := Record(context.Background(), store, id, "server", "", sampleReport(t))
	require.NoError(t, err)
	assert.Equal(t, id, entry.EvaluationID)
	assert.Len(t, id, 36)

	_, _, err = store.Get(context.Background(), id)
	assert.NoError(t, err)
}

func TestOpenEmptyPathIsMemory(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	_, ok := store.(*InMemoryStore)
	assert.True(t, ok)
	assert.NoError(t, store.Close())
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://u@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://u@localhost/db"))
	assert.False(t, IsPostgresDSN("/var/lib/fairaudit/ledger.db"))
	assert.False(t, IsPostgresDSN("file:ledger.db?mode=memory"))
}
