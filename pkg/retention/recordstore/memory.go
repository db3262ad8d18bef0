package recordstore

import (
	"context"
	"sort"
	"sync"

	"chryso-hq/forms/pkg/retention"
)

// MemoryStore implements retention.RecordStore with in-memory collections.
// It is intended for tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*retention.Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*retention.Record),
	}
}

// Insert stores a copy of r in r.Collection, replacing any record with the
// same id.
func (s *MemoryStore) Insert(ctx context.Context, r *retention.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[r.Collection]
	if !ok {
		coll = make(map[string]*retention.Record)
		s.collections[r.Collection] = coll
	}
	c := *r
	coll[r.ID] = &c
	return nil
}

// Find returns records matching filter, oldest first.
func (s *MemoryStore) Find(ctx context.Context, filter retention.RecordFilter) ([]*retention.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excluded := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	var out []*retention.Record
	for _, r := range s.collections[filter.Collection] {
		if filter.OrganizationID != "" && r.OrganizationID != filter.OrganizationID {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !r.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		if _, skip := excluded[r.ID]; skip {
			continue
		}
		if !retention.MatchAll(filter.Conditions, r) {
			continue
		}
		c := *r
		out = append(out, &c)
	}

	sortOldestFirst(out)
	return out, nil
}

// Delete removes records by id.
func (s *MemoryStore) Delete(ctx context.Context, collection string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	var n int64
	for _, id := range ids {
		if _, ok := coll[id]; ok {
			delete(coll, id)
			n++
		}
	}
	return n, nil
}

// Count returns the number of records in a collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func sortOldestFirst(records []*retention.Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
