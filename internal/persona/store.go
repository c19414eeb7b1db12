package persona

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("persona not found")

// Store loads persona profiles by name. Implementations must return copies so
// callers cannot mutate shared state.
type Store interface {
	Get(ctx context.Context, name string) (Profile, error)
	Put(ctx context.Context, profile Profile) error
	List(ctx context.Context) ([]Profile, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

// NewMemoryStoreWithDefaults seeds the built-in profiles.
func NewMemoryStoreWithDefaults() *MemoryStore {
	store := NewMemoryStore()
	for _, profile := range Defaults() {
		store.profiles[profile.Name] = profile
	}
	return store
}

func (s *MemoryStore) Get(ctx context.Context, name string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	name = normalizeName(name)
	if name == "" {
		return Profile{}, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[name]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return cloneProfile(profile), nil
}

func (s *MemoryStore) Put(ctx context.Context, profile Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	profile.Name = normalizeName(profile.Name)
	if err := profile.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.profiles[profile.Name] = cloneProfile(profile)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		out = append(out, cloneProfile(profile))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
