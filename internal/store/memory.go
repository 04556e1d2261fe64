package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no live entry exists for a key.
	ErrNotFound = errors.New("no cached entry for key")
)

// entry is a cached value or, when err is set, a cached failure.
type entry[V any] struct {
	value   V
	err     error
	expires time.Time
}

// MemoryStore is a concurrency-safe in-memory response cache with per-entry
// expiry. Failures can be cached as negative entries with their own TTL.
type MemoryStore[V any] struct {
	mu sync.RWMutex

	// key: namespace:id
	data map[string]entry[V]

	ttl         time.Duration
	negativeTTL time.Duration
	now         func() time.Time
}

// NewMemoryStore creates a new MemoryStore. A non-positive ttl disables caching
// of values, a non-positive negativeTTL disables negative entries.
func NewMemoryStore[V any](ttl, negativeTTL time.Duration) *MemoryStore[V] {
	return &MemoryStore[V]{
		data:        make(map[string]entry[V]),
		ttl:         ttl,
		negativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// Key joins a namespace and an id.
func Key(namespace, id string) string {
	return namespace + ":" + id
}

// Policy decides what Remember caches.
type Policy[V any] struct {
	// TTL returns how long a loaded value is kept. A nil func or a zero result
	// keeps it for the store TTL; a negative result skips caching.
	TTL func(v V) time.Duration

	// Negative reports whether a load error is cached as a negative entry.
	Negative func(err error) bool
}

// Set stores value under key for the configured TTL.
func (s *MemoryStore[V]) Set(key string, value V) {
	s.SetFor(key, value, s.ttl)
}

// SetFor stores value under key for ttl. A non-positive ttl is a no-op.
func (s *MemoryStore[V]) SetFor(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry[V]{value: value, expires: s.now().Add(ttl)}
}

// SetNegative records err under key for the negative TTL.
func (s *MemoryStore[V]) SetNegative(key string, err error) {
	if s.negativeTTL <= 0 || err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry[V]{err: err, expires: s.now().Add(s.negativeTTL)}
}

// NegativeTTL is the lifetime of negative entries.
func (s *MemoryStore[V]) NegativeTTL() time.Duration {
	return s.negativeTTL
}

// Get returns the live value for key. A negative entry returns its cached
// error; a missing or expired one returns ErrNotFound.
func (s *MemoryStore[V]) Get(key string) (V, error) {
	v, _, err := s.lookup(key)
	return v, err
}

// lookup is Get plus the remaining lifetime of the entry.
func (s *MemoryStore[V]) lookup(key string) (V, time.Duration, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	var zero V
	left := time.Duration(0)
	if ok {
		left = e.expires.Sub(s.now())
	}
	if left <= 0 {
		return zero, 0, ErrNotFound
	}
	if e.err != nil {
		return zero, left, e.err
	}
	return e.value, left, nil
}

// Remember returns the cached result for key or calls load and caches what it
// returns according to p. Errors p does not mark negative are not cached. The
// returned duration is the remaining lifetime of the cached entry, zero when
// nothing was cached.
func (s *MemoryStore[V]) Remember(key string, load func() (V, error), p Policy[V]) (V, time.Duration, error) {
	if v, left, err := s.lookup(key); !errors.Is(err, ErrNotFound) {
		return v, left, err
	}

	v, err := load()
	switch {
	case err == nil:
		ttl := time.Duration(0)
		if p.TTL != nil {
			ttl = p.TTL(v)
		}
		if ttl == 0 {
			ttl = s.ttl
		}
		if ttl <= 0 {
			return v, 0, nil
		}
		s.SetFor(key, v, ttl)
		return v, ttl, nil
	case p.Negative != nil && p.Negative(err) && s.negativeTTL > 0:
		s.SetNegative(key, err)
		return v, s.negativeTTL, err
	}
	return v, 0, err
}

// Delete removes key.
func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Purge removes every entry and returns how many there were.
func (s *MemoryStore[V]) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = make(map[string]entry[V])
	return n
}

// PurgeExpired removes expired entries and returns how many were removed.
func (s *MemoryStore[V]) PurgeExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.data {
		if !now.Before(e.expires) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Len is the number of entries, expired ones included.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
