package core

import (
	"context"
	"sync"
)

// ProcessData memoizes one remote query for the duration of a provider run.
// The first successful load is kept and returned by every later call; a
// failed load is not kept, so the next call retries.
type ProcessData[T any] struct {
	mu     sync.Mutex
	load   func(ctx context.Context) (T, error)
	value  *T
	loaded bool
}

func NewProcessData[T any](load func(ctx context.Context) (T, error)) *ProcessData[T] {
	return &ProcessData[T]{load: load}
}

func (d *ProcessData[T]) GetData(ctx context.Context) (*T, error) {
	if d == nil || d.load == nil {
		return nil, InternalError("core: process data loader is not configured")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return d.value, nil
	}
	value, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	d.value = &value
	d.loaded = true
	return d.value, nil
}

func (d *ProcessData[T]) Loaded() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}
