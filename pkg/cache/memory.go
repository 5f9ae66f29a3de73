package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store and Bloom used in tests and as a fallback when
// no redis is configured. TTLs are honored lazily on read.
type Memory struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	expires map[string]time.Time
	sets    map[string]map[string]struct{}
	bloom   map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
		sets:    make(map[string]map[string]struct{}),
		bloom:   make(map[string]struct{}),
	}
}

func (m *Memory) expireLocked(key string) {
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.hashes, key)
		delete(m.expires, key)
	}
}

func (m *Memory) GetField(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	val, ok := m.hashes[key][field]
	return val, ok, nil
}

func (m *Memory) PutField(_ context.Context, key, field, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	m.hashes[key][field] = value
	if ttl > 0 {
		m.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *Memory) GetAllFields(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(key)
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	delete(m.expires, key)
	delete(m.sets, key)
	return nil
}

func (m *Memory) IsSetMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[key][member]
	return ok, nil
}

func (m *Memory) ReplaceSet(_ context.Context, key string, members []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]struct{}, len(members))
	for _, member := range members {
		set[member] = struct{}{}
	}
	m.sets[key] = set
	return nil
}

func (m *Memory) Contains(_ context.Context, item string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bloom[item]
	return ok, nil
}

func (m *Memory) Add(_ context.Context, item string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bloom[item] = struct{}{}
	return nil
}
