package store

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/bapkit/bapvault/internal/errs"
)

// MemoryStore is an in-process Store used by unit tests. It honors TTLs
// against a swappable clock so expiry behavior is testable without sleeping.
type MemoryStore struct {
	mu     sync.Mutex
	vals   map[string]memVal
	hashes map[string]map[string]string

	// Now is the clock; tests may replace it to fast-forward expiries.
	Now func() time.Time
}

type memVal struct {
	val       string
	expiresAt time.Time // zero means no expiry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vals:   make(map[string]memVal),
		hashes: make(map[string]map[string]string),
		Now:    time.Now,
	}
}

func (s *MemoryStore) live(key string) (memVal, bool) {
	v, ok := s.vals[key]
	if !ok {
		return memVal{}, false
	}
	if !v.expiresAt.IsZero() && !s.Now().Before(v.expiresAt) {
		delete(s.vals, key)
		return memVal{}, false
	}
	return v, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key)
	if !ok {
		return "", errs.ErrNotFound
	}
	return v.val, nil
}

func (s *MemoryStore) Set(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = memVal{val: val}
	return nil
}

func (s *MemoryStore) SetTTL(_ context.Context, key, val string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = memVal{val: val, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetDel(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key)
	if !ok {
		return "", errs.ErrNotFound
	}
	delete(s.vals, key)
	return v.val, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, key)
	delete(s.hashes, key)
	return nil
}

func (s *MemoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (s *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok || len(h) == 0 {
		return nil, errs.ErrNotFound
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.vals {
		if _, ok := s.live(k); !ok {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	for k := range s.hashes {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *MemoryStore) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(key)
	if !ok {
		s.vals[key] = memVal{val: "1", expiresAt: s.Now().Add(ttl)}
		return 1, nil
	}
	n, _ := strconv.ParseInt(v.val, 10, 64)
	n++
	s.vals[key] = memVal{val: strconv.FormatInt(n, 10), expiresAt: v.expiresAt}
	return n, nil
}
