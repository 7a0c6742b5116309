package approval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store holds the pending set. Claim is the single-winner step: it succeeds
// for exactly one caller per request until the claim lapses (see ClaimLease).
type Store interface {
	Create(ctx context.Context, r Request) error
	Get(ctx context.Context, id string) (Request, bool, error)
	Claim(ctx context.Context, id string, now time.Time) (Request, bool, error)
	SetInviteLink(ctx context.Context, id string, link string) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]Request, error)
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Request{}}
}

func (s *MemoryStore) Create(_ context.Context, r Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[r.ID]; exists {
		return ErrDuplicateID
	}
	s.records[r.ID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[strings.TrimSpace(id)]
	return r, ok, nil
}

func (s *MemoryStore) Claim(_ context.Context, id string, now time.Time) (Request, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	r, ok := s.records[id]
	if !ok || r.Claimed(now) {
		return Request{}, false, nil
	}
	r.ClaimedAt = now
	s.records[id] = r
	return r, true, nil
}

func (s *MemoryStore) SetInviteLink(_ context.Context, id string, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.GroupInviteLink = strings.TrimSpace(link)
		s.records[id] = r
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Request, error) {
	s.mu.Lock()
	out := make([]Request, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.Unlock()
	sortOldestFirst(out)
	return out, nil
}

func sortOldestFirst(rs []Request) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}
