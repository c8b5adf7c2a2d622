package prefrepo

import (
	"context"
	"sync"

	"github.com/yanqian/celcat-feed/internal/domain/preferences"
)

// MemoryRepository provides an in-memory preference store for tests/dev.
type MemoryRepository struct {
	mu    sync.RWMutex
	prefs map[string]preferences.Preferences
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prefs: make(map[string]preferences.Preferences)}
}

// Save stores preferences under their token.
func (r *MemoryRepository) Save(prefs preferences.Preferences) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[prefs.Token] = prefs
}

// FindByToken implements preferences.Repository.
func (r *MemoryRepository) FindByToken(_ context.Context, token string) (preferences.Preferences, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefs, ok := r.prefs[token]
	return prefs, ok, nil
}

var _ preferences.Repository = (*MemoryRepository)(nil)
