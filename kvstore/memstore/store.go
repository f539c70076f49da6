// Package memstore is an in-memory kvstore.Store used in development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/brokerauth/kvstore"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// SweepInterval is the minimum time between sweeps of expired values.
const SweepInterval = time.Minute

var _ kvstore.Store = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is a thread-safe in-memory implementation of kvstore.Store
type Store struct {
	mu        sync.RWMutex
	values    map[string]entry
	sets      map[string]map[string]struct{}
	lastSweep time.Time
}

func New() *Store {
	return &Store{
		values:    make(map[string]entry),
		sets:      make(map[string]map[string]struct{}),
		lastSweep: NowTimeFunc(),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	if e.expired(NowTimeFunc()) {
		s.mu.Lock()
		// re-check under the write lock, a concurrent Set may have replaced it
		if cur, ok := s.values[key]; ok && cur.expired(NowTimeFunc()) {
			delete(s.values, key)
		}
		s.mu.Unlock()
		return nil, kvstore.ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value and, at most once per SweepInterval, drops expired values
// that were never read again.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := NowTimeFunc()
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= SweepInterval {
		s.sweep(now)
	}
	s.values[key] = e
	return nil
}

func (s *Store) sweep(now time.Time) {
	for k, e := range s.values {
		if e.expired(now) {
			delete(s.values, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of stored values, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.values[key]
	if !ok {
		return false, nil
	}
	delete(s.values, key)
	return !e.expired(NowTimeFunc()), nil
}

func (s *Store) SetAdd(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false, nil
	}
	set[member] = struct{}{}
	return true, nil
}

func (s *Store) SetRemove(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		return false, nil
	}
	if _, exists := set[member]; !exists {
		return false, nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return true, nil
}

func (s *Store) SetIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *Store) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	return members, nil
}

func (s *Store) SetSize(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

func (s *Store) Close() error {
	return nil
}
