package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure Go sqlite driver
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS claims (
			claim_id TEXT PRIMARY KEY,
			reference_number TEXT NOT NULL,
			assessment_id TEXT NOT NULL,
			status TEXT NOT NULL,
			severity TEXT NOT NULL,
			aggregate_risk_score REAL NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			reasons TEXT NOT NULL,
			record TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_claims_reference ON claims(reference_number);`,
		`CREATE INDEX IF NOT EXISTS idx_claims_status_time ON claims(status, created_at);`,
	},
	reasonsArg: func(reasons []string) any {
		data, _ := json.Marshal(reasons)
		return string(data)
	},
}

// OpenSQLite opens or creates a SQLite claim store at path. ":memory:" keeps
// the database in memory for the life of the store.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}
	dsn := path
	if !strings.HasPrefix(path, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=NORMAL;"} {
		_, _ = db.ExecContext(ctx, p)
	}
	return newSQLStore(ctx, db, sqliteDialect, opts)
}
