package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int64
}

// Memory keeps counters in process. Limits are per instance.
type Memory struct {
	cfg     Config
	mu      sync.Mutex
	windows map[string]*window
	calls   int
	now     func() time.Time
}

func NewMemory(cfg Config) (*Memory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Memory{
		cfg:     cfg,
		windows: make(map[string]*window),
		now:     time.Now,
	}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	start := windowStart(now, m.cfg.Window)

	m.calls++
	if m.calls%1024 == 0 {
		m.prune(start)
	}

	w, ok := m.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start}
		m.windows[key] = w
	}
	w.count++
	return newResult(m.cfg, w.count, start), nil
}

// prune drops counters from finished windows. Called with the lock held.
func (m *Memory) prune(current time.Time) {
	for key, w := range m.windows {
		if w.start.Before(current) {
			delete(m.windows, key)
		}
	}
}
