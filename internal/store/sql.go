package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// dialect captures the differences between the SQL backends
type dialect struct {
	name       string
	schema     []string
	positional bool               // $1 placeholders instead of ?
	reasonsArg func([]string) any // encodes the reasons column
}

// SQLStore persists claim records in a SQL database. The full record is
// kept as JSON alongside indexed columns used for lookups and listing.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	opts    options
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, opts []Option) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, opts: buildOptions(opts)}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.dialect.name, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that number them
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsertClaim = `INSERT INTO claims (
	claim_id, reference_number, assessment_id, status, severity,
	aggregate_risk_score, customer_name, customer_email, reasons, record,
	created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (claim_id) DO UPDATE SET
	reference_number = excluded.reference_number,
	assessment_id = excluded.assessment_id,
	status = excluded.status,
	severity = excluded.severity,
	aggregate_risk_score = excluded.aggregate_risk_score,
	customer_name = excluded.customer_name,
	customer_email = excluded.customer_email,
	reasons = excluded.reasons,
	record = excluded.record,
	updated_at = excluded.updated_at`

// Save upserts rec
func (s *SQLStore) Save(ctx context.Context, rec *model.ClaimRecord) error {
	if rec == nil || rec.ClaimID == "" {
		return fmt.Errorf("save claim: missing claim ID")
	}
	stamp(rec, s.opts.now())
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(upsertClaim),
		rec.ClaimID,
		rec.Reference,
		rec.AssessmentID,
		string(rec.Status),
		string(rec.Severity),
		rec.Aggregate,
		rec.Customer.Name,
		rec.Customer.Email,
		s.dialect.reasonsArg(reasons),
		string(data),
		rec.CreatedAt.UnixNano(),
		rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, claimID string) (*model.ClaimRecord, error) {
	return s.getOne(ctx, "claim_id", claimID)
}

func (s *SQLStore) GetByReference(ctx context.Context, reference string) (*model.ClaimRecord, error) {
	return s.getOne(ctx, "reference_number", reference)
}

func (s *SQLStore) getOne(ctx context.Context, column, value string) (*model.ClaimRecord, error) {
	query := s.rebind("SELECT " + recordColumns + " FROM claims WHERE " + column + " = ?")
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find claim by %s: %w", column, err)
	}
	return rec, nil
}

// The columns are authoritative for timestamps: an upsert keeps the
// original created_at while the JSON record carries the caller's value.
const recordColumns = "record, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.ClaimRecord, error) {
	var (
		data             string
		created, updated int64
	)
	if err := row.Scan(&data, &created, &updated); err != nil {
		return nil, err
	}
	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context, filter Filter) ([]*model.ClaimRecord, error) {
	query := "SELECT " + recordColumns + " FROM claims"
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC, claim_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.ClaimRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
