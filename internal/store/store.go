package store

import (
	"sort"
	"strings"
	"sync"

	"confd/internal/types"
)

// Default keys that may never be deleted
var DefaultRequiredKeys = []string{
	"DATABASE_URL",
	"JWT_SECRET",
}

// Store is the single authoritative mutable key/value map read by the rest
// of the service. It is initialized once at process start and mutated only
// through the service path; direct writers must hold the service mutation
// lock. The internal RWMutex protects readers from concurrent writes.
type Store struct {
	mu           sync.RWMutex
	values       map[string]string
	requiredKeys map[string]bool
}

// New creates a Store seeded with the given values and the default
// required-key set
func New(seed map[string]string) *Store {
	return NewWithRequiredKeys(seed, DefaultRequiredKeys)
}

// NewWithRequiredKeys creates a Store with a custom required-key set
func NewWithRequiredKeys(seed map[string]string, required []string) *Store {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}

	rk := make(map[string]bool, len(required))
	for _, k := range required {
		rk[strings.ToUpper(k)] = true
	}

	return &Store{values: values, requiredKeys: rk}
}

// Get returns the value for key
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", types.ErrKeyNotFound
	}
	return value, nil
}

// Has reports whether key exists
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[key]
	return ok
}

// GetAll returns a copy of the full mapping
func (s *Store) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Snapshot is an alias of GetAll used by the version store; the returned
// map is a value copy and never aliases live state.
func (s *Store) Snapshot() map[string]string {
	return s.GetAll()
}

// Set stores value under key and returns the previous value, if any
func (s *Store) Set(key, value string) (old string, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed = s.values[key]
	s.values[key] = value
	return old, existed
}

// Delete removes key and returns the removed value. Deleting a required
// key fails with RequiredKeyError; deleting an absent key fails with
// ErrKeyNotFound.
func (s *Store) Delete(key string) (string, error) {
	if s.IsRequiredKey(key) {
		return "", &types.RequiredKeyError{Key: key}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.values[key]
	if !ok {
		return "", types.ErrKeyNotFound
	}
	delete(s.values, key)
	return old, nil
}

// Replace swaps the entire contents for the given mapping and returns the
// sorted set of keys whose value changed. Keys absent from next are
// removed. Used by rollback.
func (s *Store) Replace(next map[string]string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make([]string, 0)
	for k, v := range next {
		if old, ok := s.values[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	for k := range s.values {
		if _, ok := next[k]; !ok {
			changed = append(changed, k)
		}
	}

	s.values = make(map[string]string, len(next))
	for k, v := range next {
		s.values[k] = v
	}

	sort.Strings(changed)
	return changed
}

// Len returns the number of keys
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// IsRequiredKey reports whether key belongs to the required-key set
func (s *Store) IsRequiredKey(key string) bool {
	return s.requiredKeys[strings.ToUpper(key)]
}
