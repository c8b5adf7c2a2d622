package schedulestore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/celcat-feed/internal/domain/schedule"
)

type entryRecord struct {
	payload   schedule.CacheEntry
	expiresAt time.Time
}

// MemoryStore keeps signatures (and optionally entries) in process memory
// when no Valkey server is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]entryRecord
	signatures map[string]string
	now        func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]entryRecord),
		signatures: make(map[string]string),
		now:        time.Now,
	}
}

// GetEntry implements schedule.RemoteStore.
func (s *MemoryStore) GetEntry(_ context.Context, key string) (schedule.CacheEntry, bool, error) {
	s.mu.RLock()
	record, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return schedule.CacheEntry{}, false, nil
	}
	if !record.expiresAt.IsZero() && !s.now().Before(record.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return schedule.CacheEntry{}, false, nil
	}
	entry := record.payload
	entry.Events = append([]schedule.RawEvent(nil), entry.Events...)
	return entry, true, nil
}

// SaveEntry stores the entry with an optional TTL.
func (s *MemoryStore) SaveEntry(_ context.Context, entry schedule.CacheEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	entry.Events = append([]schedule.RawEvent(nil), entry.Events...)
	s.entries[entry.GroupKey] = entryRecord{payload: entry, expiresAt: exp}
	return nil
}

// GetSignature implements schedule.SignatureStore.
func (s *MemoryStore) GetSignature(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signatures[key]
	return sig, ok, nil
}

// SaveSignature implements schedule.SignatureStore.
func (s *MemoryStore) SaveSignature(_ context.Context, key, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatures[key] = signature
	return nil
}

var (
	_ schedule.RemoteStore    = (*MemoryStore)(nil)
	_ schedule.SignatureStore = (*MemoryStore)(nil)
)
