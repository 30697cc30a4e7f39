package enrichment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/storage"
)

type fakeSource[T any] struct {
	name      string
	available bool
	value     T
	err       error
	delay     time.Duration
	panics    bool
	calls     atomic.Int32
}

func (f *fakeSource[T]) Name() string       { return f.name }
func (f *fakeSource[T]) Available() bool    { return f.available }
func (f *fakeSource[T]) TTL() time.Duration { return time.Hour }

func (f *fakeSource[T]) Key(l domain.Listing, _ domain.ClientProfile) string { return l.ID }

func (f *fakeSource[T]) Fetch(ctx context.Context, _ domain.Listing, _ domain.ClientProfile) (T, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
	return f.value, f.err
}

func okSource[T any](name string, v T) *fakeSource[T] {
	return &fakeSource[T]{name: name, available: true, value: v}
}

type fakes struct {
	proximity *fakeSource[Proximity]
	route     *fakeSource[Routes]
	visual    *fakeSource[VisualSignals]
	price     *fakeSource[PriceContext]
	developer *fakeSource[DeveloperRecord]
}

func newFakes() *fakes {
	return &fakes{
		proximity: okSource(SourceProximity, Proximity{Categories: []POISummary{{Category: "school", Count: 2}}}),
		route:     okSource(SourceRoute, Routes{Legs: []RouteLeg{{Anchor: "office", Mode: "driving-car", DurationMin: 25}}}),
		visual:    okSource(SourceVisual, VisualSignals{Lighting: "bright", ConditionScore: 8}),
		price:     okSource(SourcePrice, PriceContext{Percentile: 40, Label: LabelFair}),
		developer: okSource(SourceDeveloper, DeveloperRecord{Name: "Setl Group", Standing: "stable"}),
	}
}

func (f *fakes) sources() Sources {
	return Sources{Proximity: f.proximity, Route: f.route, Visual: f.visual, Price: f.price, Developer: f.developer}
}

func (f *fakes) totalCalls() int32 {
	return f.proximity.calls.Load() + f.route.calls.Load() + f.visual.calls.Load() +
		f.price.calls.Load() + f.developer.calls.Load()
}

func newOrchestrator(src Sources, opts Options) *Orchestrator {
	c := cache.New(cache.NewMemoryStore(100), cache.Options{FetchTimeout: time.Second})
	return NewOrchestrator(c, src, opts)
}

func TestEnrich_AllSourcesOK(t *testing.T) {
	f := newFakes()
	o := newOrchestrator(f.sources(), Options{})

	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{}, nil)

	assert.Equal(t, "l-1", res.ListingID)
	assert.Equal(t, AllSources, res.Enabled)
	assert.Equal(t, 100.0, res.Completeness)
	require.True(t, res.Developer.OK())
	assert.Equal(t, "Setl Group", res.Developer.Data.Name)
	require.NotNil(t, res.Proximity.Cache)
	assert.False(t, res.Proximity.Cache.Hit)
}

func TestEnrich_UnconfiguredRouteIsMissing(t *testing.T) {
	f := newFakes()
	src := f.sources()
	src.Route = NewRouteSource("", "")
	o := newOrchestrator(src, Options{})

	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{}, nil)

	assert.Equal(t, 80.0, res.Completeness)
	assert.Equal(t, StatusMissing, res.Route.Status)
	assert.Contains(t, res.Route.Reason, "not configured")
	assert.Nil(t, res.Route.Data)
	assert.True(t, res.Proximity.OK())
	assert.True(t, res.Visual.OK())
	assert.True(t, res.Price.OK())
	assert.True(t, res.Developer.OK())
}

func TestEnrich_SecondCallServedFromCache(t *testing.T) {
	f := newFakes()
	o := newOrchestrator(f.sources(), Options{})
	l := storage.SampleListing("l-1")
	ctx := context.Background()

	first := o.Enrich(ctx, l, domain.ClientProfile{}, nil)
	require.Equal(t, 100.0, first.Completeness)
	calls := f.totalCalls()
	assert.EqualValues(t, 5, calls)

	second := o.Enrich(ctx, l, domain.ClientProfile{}, nil)
	assert.Equal(t, calls, f.totalCalls())
	assert.Equal(t, first.Completeness, second.Completeness)
	require.NotNil(t, second.Price.Cache)
	assert.True(t, second.Price.Cache.Hit)
	assert.Equal(t, first.Price.Data, second.Price.Data)
}

func TestEnrich_DisabledSourcesNotConsulted(t *testing.T) {
	f := newFakes()
	o := newOrchestrator(f.sources(), Options{})

	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{},
		[]string{SourcePrice, SourceDeveloper})

	assert.Equal(t, []string{SourcePrice, SourceDeveloper}, res.Enabled)
	assert.Equal(t, 100.0, res.Completeness)
	assert.Equal(t, StatusDisabled, res.Proximity.Status)
	assert.Equal(t, StatusDisabled, res.Route.Status)
	assert.Equal(t, StatusDisabled, res.Visual.Status)
	assert.Zero(t, f.proximity.calls.Load())
	assert.Zero(t, f.route.calls.Load())
	assert.Zero(t, f.visual.calls.Load())
}

func TestEnrich_TimeoutBecomesMissing(t *testing.T) {
	f := newFakes()
	f.visual.delay = 500 * time.Millisecond
	o := newOrchestrator(f.sources(), Options{SourceTimeout: 30 * time.Millisecond})

	start := time.Now()
	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{}, nil)

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, StatusMissing, res.Visual.Status)
	assert.Contains(t, res.Visual.Reason, "timed out")
	assert.Equal(t, 80.0, res.Completeness)
}

func TestEnrich_FailuresAndPanicsBecomeMissing(t *testing.T) {
	f := newFakes()
	f.proximity.err = eris.New("overpass exploded")
	f.price.err = eris.Wrap(ErrNoData, "price: 2 comparables, need 5")
	f.developer.panics = true
	o := newOrchestrator(f.sources(), Options{})

	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{}, nil)

	assert.Equal(t, StatusMissing, res.Proximity.Status)
	assert.Contains(t, res.Proximity.Reason, "overpass exploded")
	assert.Equal(t, StatusMissing, res.Price.Status)
	assert.Contains(t, res.Price.Reason, "comparables")
	assert.Equal(t, StatusMissing, res.Developer.Status)
	assert.Contains(t, res.Developer.Reason, "panicked")
	assert.Equal(t, 40.0, res.Completeness)
}

func TestEnrich_NilSourceIsMissing(t *testing.T) {
	f := newFakes()
	src := f.sources()
	src.Visual = nil
	o := newOrchestrator(src, Options{})

	res := o.Enrich(context.Background(), storage.SampleListing("l-1"), domain.ClientProfile{}, []string{SourceVisual})

	assert.Equal(t, StatusMissing, res.Visual.Status)
	assert.Zero(t, res.Completeness)
}

func TestEnrich_CompletenessGrowsWithAvailableSources(t *testing.T) {
	l := storage.SampleListing("l-1")
	var prev float64
	for n := 0; n <= len(AllSources); n++ {
		f := newFakes()
		all := []interface{ setAvailable(bool) }{f.proximity, f.route, f.visual, f.price, f.developer}
		for i, s := range all {
			s.setAvailable(i < n)
		}
		res := newOrchestrator(f.sources(), Options{}).Enrich(context.Background(), l, domain.ClientProfile{}, nil)
		assert.GreaterOrEqual(t, res.Completeness, prev)
		assert.Equal(t, float64(n)*20, res.Completeness)
		prev = res.Completeness
	}
}

func (f *fakeSource[T]) setAvailable(v bool) { f.available = v }

func TestEnrichBatch_KeepsInputOrder(t *testing.T) {
	f := newFakes()
	f.proximity.delay = 5 * time.Millisecond
	o := newOrchestrator(f.sources(), Options{BatchSize: 3})
	listings := storage.SampleListings("b", 12)

	out, err := o.EnrichBatch(context.Background(), listings, domain.ClientProfile{}, nil)
	require.NoError(t, err)
	require.Len(t, out, len(listings))
	for i, r := range out {
		assert.Equal(t, listings[i].ID, r.ListingID)
		assert.Equal(t, 100.0, r.Completeness)
	}
}

func TestEnrichBatch_Empty(t *testing.T) {
	o := newOrchestrator(newFakes().sources(), Options{})
	out, err := o.EnrichBatch(context.Background(), nil, domain.ClientProfile{}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAvailable(t *testing.T) {
	f := newFakes()
	src := f.sources()
	src.Route = NewRouteSource("", "")
	src.Visual = NewVisualSource(nil, 0)

	got := newOrchestrator(src, Options{}).Available()
	assert.Equal(t, map[string]bool{
		SourceProximity: true,
		SourceRoute:     false,
		SourceVisual:    false,
		SourcePrice:     true,
		SourceDeveloper: true,
	}, got)
}

func TestParseSources(t *testing.T) {
	all, err := ParseSources(nil)
	require.NoError(t, err)
	assert.Equal(t, AllSources, all)

	got, err := ParseSources([]string{" Developer", "proximity", "developer"})
	require.NoError(t, err)
	assert.Equal(t, []string{SourceProximity, SourceDeveloper}, got)

	_, err = ParseSources([]string{"weather"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "weather")
}
