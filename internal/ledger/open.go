package ledger

import "context"

// Open picks a backend from path: a PostgreSQL store for postgres:// URLs,
// an in-memory store when path is empty, and a SQLite file otherwise.
func Open(path string) (Store, error) {
	switch {
	case path == "":
		return NewInMemoryStore(), nil
	case IsPostgresDSN(path):
		return OpenPostgres(context.Background(), path)
	default:
		return OpenSQLite(path)
	}
}
