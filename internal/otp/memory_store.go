package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Expired entries are swept on
// Put, so the map does not grow with abandoned codes.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Entry
	now  func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		data: make(map[string]Entry),
		now:  now,
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.data {
		if !now.Before(e.ExpiresAt) {
			delete(s.data, k)
		}
	}

	s.data[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, key, code string, maxAttempts int) (Entry, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return Entry{}, OutcomeMissing, nil
	}

	if codesEqual(entry.Code, code) {
		delete(s.data, key)
		return entry, OutcomeMatched, nil
	}

	failed := entry
	failed.Attempts++
	if failed.Attempts >= maxAttempts {
		delete(s.data, key)
	} else {
		s.data[key] = failed
	}
	return entry, OutcomeMismatched, nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}
