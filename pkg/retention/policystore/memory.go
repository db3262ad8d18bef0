package policystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chryso-hq/forms/pkg/retention"
)

// MemoryStore implements retention.PolicyStore and retention.HoldStore in
// process memory. Returned policies are copies; callers may mutate them.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*retention.Policy
	holds    map[string]*retention.RecordHold
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*retention.Policy),
		holds:    make(map[string]*retention.RecordHold),
		now:      time.Now,
	}
}

// FindActivePolicies returns all active policies.
func (s *MemoryStore) FindActivePolicies(ctx context.Context) ([]*retention.Policy, error) {
	return s.List(ctx, retention.PolicyFilter{ActiveOnly: true})
}

// Get returns a copy of the policy with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, retention.ErrPolicyNotFound
	}
	return p.Clone(), nil
}

// List returns policies matching filter ordered by creation time.
func (s *MemoryStore) List(ctx context.Context, filter retention.PolicyFilter) ([]*retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*retention.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.OrganizationID != "" && p.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.EntityType != "" && p.EntityType != filter.EntityType {
			continue
		}
		out = append(out, p.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Create stores a new policy, assigning an id when p.ID is empty.
func (s *MemoryStore) Create(ctx context.Context, p *retention.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if _, exists := s.policies[p.ID]; exists {
		return retention.ErrPolicyConflict
	}
	if p.IsActive && s.activeConflict(p) {
		return retention.ErrPolicyConflict
	}

	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.policies[p.ID] = p.Clone()
	return nil
}

// Update replaces administrative fields, preserving stats and lease.
func (s *MemoryStore) Update(ctx context.Context, p *retention.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.policies[p.ID]
	if !ok {
		return retention.ErrPolicyNotFound
	}
	if p.IsActive && s.activeConflict(p) {
		return retention.ErrPolicyConflict
	}

	next := p.Clone()
	next.Stats = cur.Stats
	next.Lease = cur.Lease
	next.CreatedAt = cur.CreatedAt
	next.CreatedBy = cur.CreatedBy
	next.UpdatedAt = s.now()
	s.policies[p.ID] = next

	p.Stats = next.Stats
	p.CreatedAt = next.CreatedAt
	p.UpdatedAt = next.UpdatedAt
	return nil
}

// activeConflict reports whether another active policy covers the same
// organization and entity type. Callers hold s.mu.
func (s *MemoryStore) activeConflict(p *retention.Policy) bool {
	for id, other := range s.policies {
		if id == p.ID || !other.IsActive {
			continue
		}
		if other.OrganizationID == p.OrganizationID && other.EntityType == p.EntityType {
			return true
		}
	}
	return false
}

// Deactivate soft-deletes a policy.
func (s *MemoryStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return retention.ErrPolicyNotFound
	}
	p.IsActive = false
	p.UpdatedAt = s.now()
	return nil
}

// RecordSuccess adds run counts to the policy's stats.
func (s *MemoryStore) RecordSuccess(ctx context.Context, id string, archived, deleted, archivedBytes int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return retention.ErrPolicyNotFound
	}
	p.Stats.RecordsArchived += archived
	p.Stats.RecordsDeleted += deleted
	p.Stats.TotalSizeArchived += archivedBytes
	executed := at
	p.Stats.LastExecuted = &executed
	return nil
}

// RecordFailure bumps the policy's error count.
func (s *MemoryStore) RecordFailure(ctx context.Context, id string, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return retention.ErrPolicyNotFound
	}
	p.Stats.Errors.Count++
	p.Stats.Errors.LastError = message
	failed := at
	p.Stats.Errors.LastErrorAt = &failed
	return nil
}

// AcquireLease claims the policy for owner unless another owner holds an
// unexpired lease.
func (s *MemoryStore) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return false, retention.ErrPolicyNotFound
	}
	if p.Lease.Held(now) {
		return false, nil
	}
	p.Lease = &retention.Lease{Owner: owner, ExpiresAt: now.Add(ttl)}
	return true, nil
}

// ReleaseLease drops owner's lease on the policy.
func (s *MemoryStore) ReleaseLease(ctx context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return retention.ErrPolicyNotFound
	}
	if p.Lease != nil && p.Lease.Owner == owner {
		p.Lease = nil
	}
	return nil
}

// PlaceHold stores a record hold, assigning an id when h.ID is empty.
func (s *MemoryStore) PlaceHold(ctx context.Context, h *retention.RecordHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}
	c := *h
	s.holds[h.ID] = &c
	return nil
}

// ReleaseHold removes a record hold.
func (s *MemoryStore) ReleaseHold(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holds[id]; !ok {
		return retention.ErrHoldNotFound
	}
	delete(s.holds, id)
	return nil
}

// ListHolds returns every hold for an organization, or all holds when
// organizationID is empty.
func (s *MemoryStore) ListHolds(ctx context.Context, organizationID string) ([]*retention.RecordHold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*retention.RecordHold, 0)
	for _, h := range s.holds {
		if organizationID != "" && h.OrganizationID != organizationID {
			continue
		}
		c := *h
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// HeldRecordIDs returns the ids of records under an active hold.
func (s *MemoryStore) HeldRecordIDs(ctx context.Context, organizationID, collection string, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, h := range s.holds {
		if h.OrganizationID == organizationID && h.Collection == collection && h.Active(now) {
			ids = append(ids, h.RecordID)
		}
	}
	return ids, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
