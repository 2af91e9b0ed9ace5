package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var postgresDialect = dialect{
	name:       "postgres",
	positional: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS claims (
			claim_id TEXT PRIMARY KEY,
			reference_number TEXT NOT NULL,
			assessment_id TEXT NOT NULL,
			status TEXT NOT NULL,
			severity TEXT NOT NULL,
			aggregate_risk_score DOUBLE PRECISION NOT NULL,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			reasons TEXT[] NOT NULL,
			record JSONB NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_claims_reference ON claims(reference_number)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_status_time ON claims(status, created_at)`,
	},
	reasonsArg: func(reasons []string) any { return pq.Array(reasons) },
}

// OpenPostgres connects to PostgreSQL and prepares the claims table
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires a DSN")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect, opts)
}
