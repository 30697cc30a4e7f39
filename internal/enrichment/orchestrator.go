package enrichment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	DefaultSourceTimeout = 5 * time.Second
	DefaultBatchSize     = 10
)

// Sources wires one provider per slot. A nil slot behaves like an
// unconfigured source.
type Sources struct {
	Proximity Source[Proximity]
	Route     Source[Routes]
	Visual    Source[VisualSignals]
	Price     Source[PriceContext]
	Developer Source[DeveloperRecord]
}

type Options struct {
	SourceTimeout time.Duration
	BatchSize     int
}

type Orchestrator struct {
	cache   *cache.Cache
	sources Sources
	timeout time.Duration
	batch   int
}

func NewOrchestrator(c *cache.Cache, sources Sources, opts Options) *Orchestrator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Orchestrator{cache: c, sources: sources, timeout: opts.SourceTimeout, batch: opts.BatchSize}
}

// Available lists which sources are configured.
func (o *Orchestrator) Available() map[string]bool {
	return map[string]bool{
		SourceProximity: available(o.sources.Proximity),
		SourceRoute:     available(o.sources.Route),
		SourceVisual:    available(o.sources.Visual),
		SourcePrice:     available(o.sources.Price),
		SourceDeveloper: available(o.sources.Developer),
	}
}

func available[T any](s Source[T]) bool {
	return s != nil && s.Available()
}

// Enrich consults every enabled source concurrently. Sources never fail
// the call: errors, timeouts, panics and missing credentials all become
// a missing outcome. An empty enabled list means every source; unknown
// names are ignored.
func (o *Orchestrator) Enrich(ctx context.Context, l domain.Listing, p domain.ClientProfile, enabled []string) Result {
	on := enabledSet(enabled)
	res := Result{ListingID: l.ID, Enabled: make([]string, 0, len(on))}
	for _, s := range AllSources {
		if on[s] {
			res.Enabled = append(res.Enabled, s)
		}
	}

	var g errgroup.Group
	launch(&g, ctx, o, on[SourceProximity], o.sources.Proximity, l, p, &res.Proximity)
	launch(&g, ctx, o, on[SourceRoute], o.sources.Route, l, p, &res.Route)
	launch(&g, ctx, o, on[SourceVisual], o.sources.Visual, l, p, &res.Visual)
	launch(&g, ctx, o, on[SourcePrice], o.sources.Price, l, p, &res.Price)
	launch(&g, ctx, o, on[SourceDeveloper], o.sources.Developer, l, p, &res.Developer)
	_ = g.Wait()

	res.Completeness = completeness(res)

	zap.L().Debug("enrichment: listing enriched",
		zap.String("listing_id", l.ID),
		zap.Strings("enabled", res.Enabled),
		zap.Float64("completeness", res.Completeness),
	)
	return res
}

func enabledSet(names []string) map[string]bool {
	on := make(map[string]bool, len(AllSources))
	for _, n := range names {
		if n = domain.Normalize(n); isSource(n) {
			on[n] = true
		}
	}
	if len(on) == 0 {
		for _, s := range AllSources {
			on[s] = true
		}
	}
	return on
}

func completeness(r Result) float64 {
	if len(r.Enabled) == 0 {
		return 0
	}
	st := r.statuses()
	ok := 0
	for _, s := range r.Enabled {
		if st[s] == StatusOK {
			ok++
		}
	}
	return math.Round(float64(ok)/float64(len(r.Enabled))*1000) / 10
}

func launch[T any](g *errgroup.Group, ctx context.Context, o *Orchestrator, on bool, src Source[T], l domain.Listing, p domain.ClientProfile, out *Outcome[T]) {
	if !on {
		*out = disabled[T]()
		return
	}
	g.Go(func() error {
		*out = run(ctx, o, src, l, p)
		return nil
	})
}

func run[T any](ctx context.Context, o *Orchestrator, src Source[T], l domain.Listing, p domain.ClientProfile) (out Outcome[T]) {
	start := time.Now()
	name := "unknown"
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("enrichment: source panicked", zap.String("source", name), zap.Any("panic", r))
			out = missing[T](fmt.Sprintf("source panicked: %v", r))
		}
		out.DurationMS = time.Since(start).Milliseconds()
	}()

	if src == nil || !src.Available() {
		return missing[T](ErrSourceUnavailable.Error() + ": not configured")
	}
	name = src.Name()

	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	v, prov, err := cache.Fetch(sctx, o.cache, name, src.Key(l, p), src.TTL(), func(fctx context.Context) (T, error) {
		return src.Fetch(fctx, l, p)
	})
	if err != nil {
		return missing[T](o.reason(name, l.ID, sctx, err))
	}
	return Outcome[T]{
		Status: StatusOK,
		Data:   &v,
		Cache: &CacheInfo{
			Hit:        prov.Hit,
			Shared:     prov.Shared,
			AgeSeconds: math.Round(prov.Age.Seconds()),
		},
	}
}

func (o *Orchestrator) reason(source, listingID string, sctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrNoData):
		return eris.ToString(err, false)
	case errors.Is(sctx.Err(), context.DeadlineExceeded):
		zap.L().Warn("enrichment: source timed out",
			zap.String("source", source), zap.String("listing_id", listingID), zap.Duration("timeout", o.timeout))
		return fmt.Sprintf("%s after %s", ErrSourceTimeout.Error(), o.timeout)
	case errors.Is(err, ErrSourceUnavailable):
		return ErrSourceUnavailable.Error()
	default:
		zap.L().Warn("enrichment: source failed",
			zap.String("source", source), zap.String("listing_id", listingID), zap.Error(err))
		return "source error: " + err.Error()
	}
}

// EnrichBatch enriches listings with at most BatchSize running at once.
// Results keep the input order.
func (o *Orchestrator) EnrichBatch(ctx context.Context, listings []domain.Listing, p domain.ClientProfile, enabled []string) ([]Result, error) {
	out := make([]Result, len(listings))
	if len(listings) == 0 {
		return out, nil
	}

	pool, err := ants.NewPool(o.batch)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: create batch pool")
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range listings {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i] = o.Enrich(ctx, listings[i], p, enabled)
		}
		if err := pool.Submit(task); err != nil {
			// Pool closed under us; do the work inline.
			task()
		}
	}
	wg.Wait()
	return out, nil
}
