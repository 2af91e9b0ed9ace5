package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ppiankov/claimlink/internal/model"
)

type StoreSuite struct {
	suite.Suite
	open  func(t *testing.T, opts ...Option) (Store, error)
	store Store
	now   time.Time
}

func (s *StoreSuite) SetupTest() {
	s.now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	st, err := s.open(s.T(), WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.store = st
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *StoreSuite) record(id, ref string, status model.Status) *model.ClaimRecord {
	score := 42.0
	return &model.ClaimRecord{
		ClaimID:      id,
		Reference:    ref,
		AssessmentID: "assess-" + id,
		Customer:     model.PersonalDetails{Name: "John Doe", Email: "john@example.com"},
		Claim:        model.ClaimDetails{DateOfLoss: "2024-03-10", Description: "Delayed bag"},
		Severity:     model.SeverityMedium,
		Status:       status,
		Reasons:      []string{"Name mismatch with passport"},
		Aggregate:    0.3,
		Errors:       model.ErrorScoreMap{model.ErrNameMismatch: &score},
	}
}

func (s *StoreSuite) TestSaveAndGet() {
	ctx := context.Background()
	rec := s.record("c1", "CLM-00000001", model.StatusToBeReviewed)
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Get(ctx, "c1")
	s.Require().NoError(err)
	s.Equal("CLM-00000001", got.Reference)
	s.Equal(model.StatusToBeReviewed, got.Status)
	s.Equal([]string{"Name mismatch with passport"}, got.Reasons)
	s.Require().Contains(got.Errors, model.ErrNameMismatch)
	s.InDelta(42.0, *got.Errors[model.ErrNameMismatch], 1e-9)
	s.True(got.CreatedAt.Equal(s.now), "created_at should come from the store clock")

	byRef, err := s.store.GetByReference(ctx, "CLM-00000001")
	s.Require().NoError(err)
	s.Equal("c1", byRef.ClaimID)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "nope")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.store.GetByReference(context.Background(), "CLM-NOPE")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreSuite) TestSaveUpsertKeepsCreatedAt() {
	ctx := context.Background()
	rec := s.record("c1", "CLM-00000001", model.StatusToBeReviewed)
	s.Require().NoError(s.store.Save(ctx, rec))
	created := s.now

	s.now = s.now.Add(time.Hour)
	rec.Status = model.StatusApproved
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Get(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(model.StatusApproved, got.Status)
	s.True(got.CreatedAt.Equal(created))
	s.True(got.UpdatedAt.Equal(s.now))
}

func (s *StoreSuite) TestReassessmentKeepsCreatedAt() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.record("c1", "CLM-00000001", model.StatusToBeReviewed)))
	created := s.now

	s.now = s.now.Add(time.Hour)
	again := s.record("c1", "CLM-00000001", model.StatusApproved)
	s.Require().NoError(s.store.Save(ctx, again))

	got, err := s.store.Get(ctx, "c1")
	s.Require().NoError(err)
	s.True(got.CreatedAt.Equal(created), "record created_at %v, want %v", got.CreatedAt, created)
	s.True(got.UpdatedAt.Equal(s.now))

	listed, err := s.store.List(ctx, Filter{})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.True(listed[0].CreatedAt.Equal(created))
}

func (s *StoreSuite) TestListFiltersAndOrders() {
	ctx := context.Background()
	for i, st := range []model.Status{model.StatusApproved, model.StatusToBeReviewed, model.StatusToBeReviewed} {
		s.now = s.now.Add(time.Minute)
		id := string(rune('a' + i))
		s.Require().NoError(s.store.Save(ctx, s.record(id, "CLM-"+id, st)))
	}

	all, err := s.store.List(ctx, Filter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{"c", "b", "a"}, ids(all), "newest first")

	review, err := s.store.List(ctx, Filter{Status: model.StatusToBeReviewed})
	s.Require().NoError(err)
	s.Equal([]string{"c", "b"}, ids(review))

	limited, err := s.store.List(ctx, Filter{Limit: 1})
	s.Require().NoError(err)
	s.Equal([]string{"c"}, ids(limited))

	none, err := s.store.List(ctx, Filter{Status: model.StatusRejected})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *StoreSuite) TestSaveRequiresClaimID() {
	s.Error(s.store.Save(context.Background(), &model.ClaimRecord{}))
}

func ids(recs []*model.ClaimRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ClaimID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(_ *testing.T, opts ...Option) (Store, error) {
		return NewMemoryStore(opts...), nil
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{open: func(t *testing.T, opts ...Option) (Store, error) {
		return OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "claims.db"), opts...)
	}})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, model.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = Open(ctx, model.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, st)
	require.NoError(t, st.Close())

	_, err = Open(ctx, model.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)

	_, err = Open(ctx, model.StoreConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: postgresDialect}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &SQLStore{dialect: sqliteDialect}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
