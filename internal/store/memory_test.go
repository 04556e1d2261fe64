package store

import (
	"errors"
	"testing"
	"time"
)

var errUnavailable = errors.New("unavailable")

func newTestStore(ttl, negativeTTL time.Duration) (*MemoryStore[string], *time.Time) {
	s := NewMemoryStore[string](ttl, negativeTTL)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStoreExpiry(t *testing.T) {
	s, now := newTestStore(time.Hour, time.Minute)
	key := Key("wave_forecast", "44025")
	if key != "wave_forecast:44025" {
		t.Fatalf("Key = %q", key)
	}

	if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s.Set(key, "forecast")
	if v, err := s.Get(key); err != nil || v != "forecast" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	*now = now.Add(time.Hour)
	if _, err := s.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry, got %v", err)
	}
	if n := s.PurgeExpired(); n != 1 || s.Len() != 0 {
		t.Fatalf("PurgeExpired removed %d, %d left", n, s.Len())
	}
}

func TestMemoryStoreNegativeEntries(t *testing.T) {
	s, now := newTestStore(time.Hour, time.Minute)

	s.SetNegative("k", errUnavailable)
	if _, err := s.Get("k"); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected cached failure, got %v", err)
	}
	*now = now.Add(time.Minute)
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected negative entry to expire, got %v", err)
	}

	off, _ := newTestStore(time.Hour, 0)
	off.SetNegative("k", errUnavailable)
	if off.Len() != 0 {
		t.Fatal("negative entries must be disabled with a zero TTL")
	}
}

func TestMemoryStoreRemember(t *testing.T) {
	s, _ := newTestStore(time.Hour, time.Minute)
	policy := Policy[string]{Negative: func(err error) bool { return errors.Is(err, errUnavailable) }}

	calls := 0
	load := func(v string, err error) func() (string, error) {
		return func() (string, error) {
			calls++
			return v, err
		}
	}

	if _, _, err := s.Remember("a", load("", errors.New("boom")), policy); err == nil {
		t.Fatal("expected load error")
	}
	if _, left, err := s.Remember("a", load("ok", nil), policy); err != nil || left != time.Hour {
		t.Fatalf("Remember = %v, %v", left, err)
	}
	if v, _, _ := s.Remember("a", load("other", nil), policy); v != "ok" {
		t.Fatalf("expected cached value, got %q", v)
	}

	if _, left, err := s.Remember("b", load("", errUnavailable), policy); !errors.Is(err, errUnavailable) || left != time.Minute {
		t.Fatalf("Remember = %v, %v", left, err)
	}
	if _, _, err := s.Remember("b", load("late", nil), policy); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected negative hit, got %v", err)
	}

	if calls != 3 {
		t.Errorf("load called %d times, want 3", calls)
	}
	if n := s.Purge(); n != 2 {
		t.Errorf("Purge removed %d, want 2", n)
	}
}

func TestMemoryStoreRememberPerValueTTL(t *testing.T) {
	s, now := newTestStore(time.Hour, time.Minute)
	policy := Policy[string]{TTL: func(v string) time.Duration {
		switch v {
		case "partial":
			return time.Minute
		case "skip":
			return -1
		}
		return 0
	}}

	calls := 0
	next := "partial"
	load := func() (string, error) {
		calls++
		return next, nil
	}

	if _, left, _ := s.Remember("k", load, policy); left != time.Minute {
		t.Fatalf("partial kept for %v, want 1m", left)
	}
	*now = now.Add(20 * time.Second)
	if v, left, _ := s.Remember("k", load, policy); v != "partial" || left != 40*time.Second {
		t.Fatalf("Remember = %q with %v left", v, left)
	}

	*now = now.Add(40 * time.Second)
	next = "complete"
	if v, left, _ := s.Remember("k", load, policy); v != "complete" || left != time.Hour {
		t.Fatalf("Remember = %q with %v left", v, left)
	}

	next = "skip"
	if _, left, _ := s.Remember("other", load, policy); left != 0 || s.Len() != 1 {
		t.Fatalf("negative TTL must skip caching, left %v, %d entries", left, s.Len())
	}
	if calls != 3 {
		t.Errorf("load called %d times, want 3", calls)
	}
}

func TestMemoryStoreRememberReportsNegativeLifetime(t *testing.T) {
	s, now := newTestStore(time.Hour, 5*time.Minute)
	policy := Policy[string]{Negative: func(err error) bool { return true }}
	load := func() (string, error) { return "", errUnavailable }

	s.Remember("k", load, policy)
	*now = now.Add(4 * time.Minute)
	if _, left, err := s.Remember("k", load, policy); !errors.Is(err, errUnavailable) || left != time.Minute {
		t.Fatalf("Remember = %v, %v", left, err)
	}
}
