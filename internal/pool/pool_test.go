package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resource struct {
	id       int
	disposed atomic.Bool
}

type tracker struct {
	mu      sync.Mutex
	created []*resource
	live    atomic.Int32
	fail    error
}

func (tr *tracker) factory(ctx context.Context) (*resource, error) {
	if tr.fail != nil {
		return nil, tr.fail
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	r := &resource{id: len(tr.created) + 1}
	tr.created = append(tr.created, r)
	tr.live.Add(1)
	return r, nil
}

func (tr *tracker) dispose(r *resource) error {
	if r.disposed.Swap(true) {
		return errors.New("double dispose")
	}
	tr.live.Add(-1)
	return nil
}

func newTestPool(capacity int) (*Pool[*resource], *tracker) {
	tr := &tracker{}
	return New(capacity, tr.factory, tr.dispose), tr
}

func TestPool_LazyGrowthAndReuse(t *testing.T) {
	p, tr := newTestPool(3)
	ctx := context.Background()

	assert.Equal(t, Stats{Capacity: 3}, p.Stats())

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(a)

	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b, "idle item should be reused before creating a new one")
	assert.Len(t, tr.created, 1)

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, b, c)
	assert.Equal(t, Stats{Capacity: 3, Size: 2, Busy: 2}, p.Stats())
}

func TestPool_WaiterWakesOnRelease(t *testing.T) {
	p, _ := newTestPool(1)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *resource, 1)
	go func() {
		r, err := p.Acquire(ctx)
		if err == nil {
			got <- r
		}
	}()

	select {
	case <-got:
		t.Fatal("acquired while the only item was held")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(held)

	select {
	case r := <-got:
		assert.Same(t, held, r)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by release")
	}
}

func TestPool_AcquireCancelled(t *testing.T) {
	p, _ := newTestPool(1)

	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ConcurrentCallersNeverExceedCapacity(t *testing.T) {
	const capacity = 3
	p, tr := newTestPool(capacity)
	ctx := context.Background()

	var inUse, peak atomic.Int32
	holders := make(map[*resource]*atomic.Int32)
	var holdersMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(ctx, func(r *resource) error {
				holdersMu.Lock()
				h, ok := holders[r]
				if !ok {
					h = &atomic.Int32{}
					holders[r] = h
				}
				holdersMu.Unlock()

				if h.Add(1) != 1 {
					t.Errorf("resource %d held by two callers", r.id)
				}
				n := inUse.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inUse.Add(-1)
				h.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), capacity)
	assert.LessOrEqual(t, len(tr.created), capacity)
	assert.Equal(t, 0, p.Stats().Busy)
}

func TestPool_ReleaseUnknownIsNoop(t *testing.T) {
	p, _ := newTestPool(1)

	p.Release(&resource{id: 99})
	assert.Equal(t, Stats{Capacity: 1}, p.Stats())

	r, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(r)
	p.Release(r)
	assert.Equal(t, Stats{Capacity: 1, Size: 1}, p.Stats())
}

func TestPool_FactoryErrorFreesSlot(t *testing.T) {
	tr := &tracker{fail: errors.New("no tessdata")}
	p := New(1, tr.factory, tr.dispose)

	_, err := p.Acquire(context.Background())
	assert.EqualError(t, err, "no tessdata")

	tr.fail = nil
	r, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestPool_DisposeAll(t *testing.T) {
	p, tr := newTestPool(2)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(a)

	require.NoError(t, p.DisposeAll())
	assert.True(t, a.disposed.Load())
	assert.False(t, b.disposed.Load(), "held item must not be disposed under its holder")

	p.Release(b)
	assert.True(t, b.disposed.Load())
	assert.Equal(t, int32(0), tr.live.Load())

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, p.DisposeAll(), "second dispose is a no-op")
}

func TestPool_DisposeAllWakesWaiters(t *testing.T) {
	p, _ := newTestPool(1)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.DisposeAll())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by DisposeAll")
	}
	p.Release(held)
}

func TestPool_DoReleasesOnError(t *testing.T) {
	p, _ := newTestPool(1)
	boom := errors.New("boom")

	err := p.Do(context.Background(), func(*resource) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Stats().Busy)
}
