package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/claimlink/internal/model"
)

// MemoryStore keeps claim records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	opts    options
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		opts:    buildOptions(opts),
	}
}

// Save stores a copy of rec
func (s *MemoryStore) Save(_ context.Context, rec *model.ClaimRecord) error {
	if rec == nil || rec.ClaimID == "" {
		return fmt.Errorf("save claim: missing claim ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.records[rec.ClaimID]; ok {
		if old, err := decodeRecord(prev); err == nil && !old.CreatedAt.IsZero() {
			rec.CreatedAt = old.CreatedAt
		}
	}
	stamp(rec, s.opts.now())
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	s.records[rec.ClaimID] = data
	return nil
}

func (s *MemoryStore) Get(_ context.Context, claimID string) (*model.ClaimRecord, error) {
	s.mu.RLock()
	data, ok := s.records[claimID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

func (s *MemoryStore) GetByReference(_ context.Context, reference string) (*model.ClaimRecord, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.Reference == reference {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]*model.ClaimRecord, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}
	out := make([]*model.ClaimRecord, 0, len(all))
	for _, rec := range all {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ClaimID < out[j].ClaimID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) all() ([]*model.ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.ClaimRecord, 0, len(s.records))
	for _, data := range s.records {
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(data []byte) (*model.ClaimRecord, error) {
	var rec model.ClaimRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	return &rec, nil
}
