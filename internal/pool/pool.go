// Package pool provides a bounded pool of exclusively-held resources that
// are created lazily and handed to one caller at a time.
package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Acquire after DisposeAll.
var ErrClosed = errors.New("pool: closed")

// Factory creates a new pooled resource.
type Factory[T any] func(ctx context.Context) (T, error)

// Disposer releases the underlying resources of an item.
type Disposer[T any] func(item T) error

type entry[T comparable] struct {
	item T
	busy bool
}

// Pool hands out up to Capacity items, each held by at most one caller.
// Items are created on demand; callers that find every item busy and the
// pool at capacity wait until an item is released.
type Pool[T comparable] struct {
	mu       sync.Mutex
	entries  []*entry[T]
	creating int
	capacity int
	closed   bool
	// released is closed and replaced every time an entry frees up.
	released chan struct{}

	factory Factory[T]
	dispose Disposer[T]
}

// New returns an empty pool. Capacity below one is treated as one.
func New[T comparable](capacity int, factory Factory[T], dispose Disposer[T]) *Pool[T] {
	if capacity < 1 {
		capacity = 1
	}
	if dispose == nil {
		dispose = func(T) error { return nil }
	}
	return &Pool[T]{
		capacity: capacity,
		released: make(chan struct{}),
		factory:  factory,
		dispose:  dispose,
	}
}

// Acquire returns an idle item, creating one if the pool is below capacity,
// or waits for a release. It returns ctx.Err() if ctx ends while waiting and
// the factory's error if creation fails.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return zero, ErrClosed
		}

		for _, e := range p.entries {
			if !e.busy {
				e.busy = true
				p.mu.Unlock()
				return e.item, nil
			}
		}

		if len(p.entries)+p.creating < p.capacity {
			p.creating++
			p.mu.Unlock()
			return p.create(ctx)
		}

		wait := p.released
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// create runs the factory outside the lock; the slot is already reserved.
func (p *Pool[T]) create(ctx context.Context) (T, error) {
	var zero T

	item, err := p.factory(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.creating--

	if err != nil {
		p.signalLocked()
		return zero, err
	}

	if p.closed {
		p.signalLocked()
		_ = p.dispose(item)
		return zero, ErrClosed
	}

	p.entries = append(p.entries, &entry[T]{item: item, busy: true})
	return item, nil
}

// Release marks item idle and wakes waiters. Releasing an item the pool does
// not know, or one that is already idle, does nothing. Items released after
// DisposeAll are disposed immediately.
func (p *Pool[T]) Release(item T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, e := range p.entries {
		if e.item != item || !e.busy {
			continue
		}
		if p.closed {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			_ = p.dispose(item)
			return
		}
		e.busy = false
		p.signalLocked()
		return
	}
}

// Do acquires an item, runs fn with it and releases it on every exit path.
func (p *Pool[T]) Do(ctx context.Context, fn func(T) error) error {
	item, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(item)
	return fn(item)
}

// DisposeAll closes the pool and disposes every idle item. Items that are
// still held are disposed when they are released. Waiters get ErrClosed.
func (p *Pool[T]) DisposeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.busy {
			kept = append(kept, e)
			continue
		}
		if err := p.dispose(e.item); err != nil {
			errs = append(errs, err)
		}
	}
	p.entries = kept
	p.signalLocked()

	return errors.Join(errs...)
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Capacity int
	Size     int
	Busy     int
}

// Stats returns the current pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{Capacity: p.capacity, Size: len(p.entries)}
	for _, e := range p.entries {
		if e.busy {
			s.Busy++
		}
	}
	return s
}

func (p *Pool[T]) signalLocked() {
	close(p.released)
	p.released = make(chan struct{})
}
