package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Memory struct {
	lru   *expirable.LRU[string, *Entry]
	clock func() time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory(size int, maxTTL time.Duration) *Memory {
	return &Memory{
		lru:   expirable.NewLRU[string, *Entry](size, nil, maxTTL),
		clock: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(m.clock()) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return entry, true, nil
}

func (m *Memory) Set(_ context.Context, entry *Entry) error {
	m.lru.Add(entry.Key, entry)
	return nil
}

func (m *Memory) Health(_ context.Context) map[string]interface{} {
	return map[string]interface{}{
		"status":    "healthy",
		"type":      BackendMemory,
		"key_count": m.lru.Len(),
	}
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
