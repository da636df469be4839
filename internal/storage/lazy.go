package storage

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers building a Provider until the first Put and retries the build
// on later calls until it succeeds. A bucket check that fails at startup then
// surfaces as a per-request error instead of stopping the process.
type Lazy struct {
	mu       sync.Mutex
	build    func(ctx context.Context) (Provider, error)
	provider Provider
}

// NewLazy creates a Lazy provider around build.
func NewLazy(build func(ctx context.Context) (Provider, error)) *Lazy {
	return &Lazy{build: build}
}

// Put builds the provider if needed and delegates to it.
func (l *Lazy) Put(ctx context.Context, in PutInput) (*Object, error) {
	p, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return p.Put(ctx, in)
}

func (l *Lazy) get(ctx context.Context) (Provider, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.provider != nil {
		return l.provider, nil
	}
	p, err := l.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	l.provider = p
	return p, nil
}
