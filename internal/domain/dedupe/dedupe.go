// Package dedupe guards against the same attempt being submitted twice at once.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrInFlight is returned when the attempt already has a submission running.
	ErrInFlight = errors.New("submission already in flight")
	// ErrCapacity is returned when the guard holds its maximum number of claims.
	ErrCapacity = errors.New("too many submissions in flight")
)

// Guard records attempts whose submission is being graded.
type Guard interface {
	// Claim atomically takes the attempt. It fails with ErrInFlight when the
	// attempt is already claimed and with ErrCapacity when the guard is full.
	Claim(ctx context.Context, attemptID int64) error

	// Release drops the claim so a later submission may proceed.
	Release(ctx context.Context, attemptID int64)

	Size() int64
}

// inMemoryGuard never evicts a held claim; when bounded it refuses new ones.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[int64]struct{}
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryGuard creates an in-process Guard.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{maxSize: 1024}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[int64]struct{})
	return g
}

func (g *inMemoryGuard) Claim(_ context.Context, attemptID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[attemptID]; ok {
		return ErrInFlight
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return ErrCapacity
	}
	g.held[attemptID] = struct{}{}
	g.size.Add(1)
	return nil
}

func (g *inMemoryGuard) Release(_ context.Context, attemptID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[attemptID]; ok {
		delete(g.held, attemptID)
		g.size.Add(-1)
	}
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
