package cache

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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(clock *fakeClock) *Cache {
	return New(NewMemoryStore(100), Options{FetchTimeout: time.Second, Now: clock.Now})
}

func TestFetch_HitWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := newTestCache(clock)
	ctx := context.Background()

	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	}

	v, prov, err := Fetch(ctx, c, "price", "l-1", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, prov.Hit)

	clock.Advance(30 * time.Minute)
	v, prov, err = Fetch(ctx, c, "price", "l-1", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, prov.Hit)
	assert.Equal(t, 30*time.Minute, prov.Age)
	assert.EqualValues(t, 1, calls.Load())

	clock.Advance(31 * time.Minute)
	_, prov, err = Fetch(ctx, c, "price", "l-1", time.Hour, fetch)
	require.NoError(t, err)
	assert.False(t, prov.Hit)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetch_ForeverNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock)

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}
	_, _, err := Fetch(context.Background(), c, "visual", "k", Forever, fetch)
	require.NoError(t, err)
	clock.Advance(10 * 365 * 24 * time.Hour)
	_, prov, err := Fetch(context.Background(), c, "visual", "k", Forever, fetch)
	require.NoError(t, err)
	assert.True(t, prov.Hit)
	assert.Equal(t, 1, calls)
}

func TestFetch_SourcesDoNotShareKeys(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Now()})
	ctx := context.Background()

	a, _, err := Fetch(ctx, c, "a", "k", time.Hour, func(context.Context) (string, error) { return "a", nil })
	require.NoError(t, err)
	b, _, err := Fetch(ctx, c, "b", "k", time.Hour, func(context.Context) (string, error) { return "b", nil })
	require.NoError(t, err)
	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}

func TestFetch_ConcurrentMissesShareOneFetch(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Now()})

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 99, nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = Fetch(context.Background(), c, "proximity", "59.9871,30.2019", time.Hour, fetch)
		}(i)
	}

	// Give every goroutine time to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 99, results[i])
	}
	assert.EqualValues(t, 1, c.Stats().Fetches)
}

func TestFetch_AbandonedCallerStillFillsCache(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Now()})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		defer close(done)
		return "late", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := Fetch(ctx, c, "route", "k", time.Hour, fetch)
		errCh <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-done

	require.Eventually(t, func() bool { return c.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	v, prov, err := Fetch(context.Background(), c, "route", "k", time.Hour, func(context.Context) (string, error) {
		return "", errors.New("should not be called")
	})
	require.NoError(t, err)
	assert.True(t, prov.Hit)
	assert.Equal(t, "late", v)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Now()})
	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("upstream 500")
		}
		return 1, nil
	}

	_, _, err := Fetch(context.Background(), c, "s", "k", time.Hour, fetch)
	require.Error(t, err)
	v, _, err := Fetch(context.Background(), c, "s", "k", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFetch_PanicBecomesError(t *testing.T) {
	c := newTestCache(&fakeClock{now: time.Now()})
	_, _, err := Fetch(context.Background(), c, "s", "k", time.Hour, func(context.Context) (int, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Set(ctx, "a", Entry{Value: []byte("1")}))
	require.NoError(t, s.Set(ctx, "b", Entry{Value: []byte("2")}))
	_, ok, _ := s.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, s.Set(ctx, "c", Entry{Value: []byte("3")}))

	_, ok, _ = s.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	defer s.Close()

	c := New(s, Options{})
	ctx := context.Background()

	type payload struct {
		Label string  `json:"label"`
		Pct   float64 `json:"pct"`
	}
	calls := 0
	fetch := func(context.Context) (payload, error) {
		calls++
		return payload{Label: "fair", Pct: 48.5}, nil
	}

	first, _, err := Fetch(ctx, c, "price", "l-7", time.Hour, fetch)
	require.NoError(t, err)
	second, prov, err := Fetch(ctx, c, "price", "l-7", time.Hour, fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, prov.Hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Len())
}

func TestBadgerStore_SkipsAlreadyExpired(t *testing.T) {
	s, err := OpenBadger("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "k", Entry{
		Value:     []byte("x"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	_, ok, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
