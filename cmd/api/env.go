package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/config"
	"github.com/denisok6893-rgb/dream-search/internal/enrichment"
	httpapi "github.com/denisok6893-rgb/dream-search/internal/http"
	"github.com/denisok6893-rgb/dream-search/internal/matching"
	"github.com/denisok6893-rgb/dream-search/internal/router"
	"github.com/denisok6893-rgb/dream-search/internal/search"
	"github.com/denisok6893-rgb/dream-search/internal/storage"
)

// catalogStore is what the commands need from a listing store.
type catalogStore interface {
	search.Catalog
	httpapi.Listings
	Close() error
}

type memoryStore struct {
	*storage.MemoryCatalog
}

func (memoryStore) Close() error { return nil }

type appEnv struct {
	Catalog  catalogStore
	Search   *search.Engine
	Router   *router.Router
	Cache    *cache.Cache
	Enricher *enrichment.Orchestrator
}

func (e *appEnv) Close() {
	if err := e.Cache.Close(); err != nil {
		zap.L().Warn("close cache", zap.Error(err))
	}
	if err := e.Catalog.Close(); err != nil {
		zap.L().Warn("close catalog", zap.Error(err))
	}
}

func initEnv(ctx context.Context, cfg *config.Config) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog, err := initCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}

	store, err := initCacheStore(cfg.Cache)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}
	c := cache.New(store, cache.Options{FetchTimeout: cfg.Cache.FetchTimeout})

	engine := search.NewEngine(catalog, cfg.Search)
	scorer := matching.NewEngine(cfg.Scoring.Weights)

	sources, err := initSources(cfg.Enrichment, engine)
	if err != nil {
		_ = c.Close()
		_ = catalog.Close()
		return nil, err
	}

	return &appEnv{
		Catalog: catalog,
		Search:  engine,
		Router:  router.New(engine, scorer, cfg.Router),
		Cache:   c,
		Enricher: enrichment.NewOrchestrator(c, sources, enrichment.Options{
			SourceTimeout: cfg.Enrichment.SourceTimeout,
			BatchSize:     cfg.Enrichment.BatchSize,
		}),
	}, nil
}

func initCatalog(ctx context.Context, cc config.CatalogConfig) (catalogStore, error) {
	switch cc.Driver {
	case "memory":
		if cc.SeedPath == "" {
			return nil, eris.New("memory catalog needs catalog.seed_path (DREAM_CATALOG_SEED_PATH)")
		}
		listings, err := storage.LoadListingsFromFile(cc.SeedPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("catalog: loaded into memory", zap.Int("listings", len(listings)))
		return memoryStore{storage.NewMemoryCatalog(listings)}, nil

	case "sqlite":
		st, err := openSQLite(ctx, cc.Path)
		if err != nil {
			return nil, err
		}
		if cc.SeedPath != "" {
			if _, err := importListings(ctx, st, cc.SeedPath); err != nil {
				_ = st.Close()
				return nil, err
			}
		}
		return st, nil
	}
	return nil, eris.Errorf("unknown catalog driver %q", cc.Driver)
}

func openSQLite(ctx context.Context, path string) (*storage.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create catalog dir")
		}
	}
	st, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func importListings(ctx context.Context, st *storage.SQLiteStore, path string) (int, error) {
	listings, err := storage.LoadListingsFromFile(path)
	if err != nil {
		return 0, err
	}
	if err := st.UpsertMany(ctx, listings); err != nil {
		return 0, err
	}
	zap.L().Info("catalog: imported listings", zap.String("path", path), zap.Int("listings", len(listings)))
	return len(listings), nil
}

func initCacheStore(cc config.CacheConfig) (cache.Store, error) {
	switch cc.Driver {
	case "memory":
		return cache.NewMemoryStore(cc.MaxEntries), nil
	case "badger":
		return cache.OpenBadger(cc.Path)
	}
	return nil, eris.Errorf("unknown cache driver %q", cc.Driver)
}

func initSources(ec config.EnrichmentConfig, engine *search.Engine) (enrichment.Sources, error) {
	devs, err := enrichment.LoadDevelopers(ec.Developer.DatasetPath)
	if err != nil {
		return enrichment.Sources{}, err
	}

	var vision enrichment.VisionClient
	if ec.Visual.APIKey != "" {
		vision = enrichment.NewAnthropicVision(ec.Visual.APIKey, ec.Visual.Model)
	} else {
		zap.L().Info("DREAM_ENRICHMENT_VISUAL_API_KEY not set, visual analysis disabled")
	}
	if ec.Route.APIKey == "" {
		zap.L().Info("DREAM_ENRICHMENT_ROUTE_API_KEY not set, route times disabled")
	}

	proximityOpts := []enrichment.ProximityOption{}
	if ec.Proximity.RPS > 0 {
		proximityOpts = append(proximityOpts, enrichment.WithProximityRateLimit(ec.Proximity.RPS, 1))
	}

	return enrichment.Sources{
		Proximity: enrichment.NewProximitySource(ec.Proximity.BaseURL, proximityOpts...),
		Route:     enrichment.NewRouteSource(ec.Route.APIKey, ec.Route.BaseURL, enrichment.WithRouteModes(ec.Route.Modes...)),
		Visual:    enrichment.NewVisualSource(vision, ec.Visual.MaxPhotos),
		Price:     enrichment.NewPriceSource(engine, ec.Price.MinComparables, ec.Price.AreaTolerance),
		Developer: enrichment.NewDeveloperSource(devs),
	}, nil
}

func readJSONFile(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return eris.Wrapf(err, "parse %s", path)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
