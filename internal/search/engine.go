// Package search implements the must-have filter over the listing catalog.
package search

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Catalog is the read-only listing store. Implementations apply the same
// predicate as Matches; Find returns at most limit listings in no
// particular order, or every match when limit is 0. Facets aggregates
// the full match set.
type Catalog interface {
	Find(ctx context.Context, c domain.SearchCriteria, limit int) ([]domain.Listing, error)
	Count(ctx context.Context, c domain.SearchCriteria) (int, error)
	Facets(ctx context.Context, c domain.SearchCriteria) (Facets, error)
}

// CandidateSet is the unordered result of a search. Total counts every
// match even when Listings was capped by the limit.
type CandidateSet struct {
	Listings  []domain.Listing `json:"listings"`
	Total     int              `json:"total"`
	Truncated bool             `json:"truncated"`
}

type Config struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int `yaml:"max_limit" mapstructure:"max_limit"`
}

type Engine struct {
	catalog Catalog
	cfg     Config
}

func NewEngine(catalog Catalog, cfg Config) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	return &Engine{catalog: catalog, cfg: cfg}
}

// Search validates the criteria and returns every active apartment that
// satisfies them, materializing at most limit listings.
func (e *Engine) Search(ctx context.Context, c domain.SearchCriteria, limit int) (CandidateSet, error) {
	if err := c.Validate(); err != nil {
		return CandidateSet{}, err
	}
	limit = e.clampLimit(limit)

	total, err := e.catalog.Count(ctx, c)
	if err != nil {
		return CandidateSet{}, unavailable(err, "count")
	}
	if total == 0 {
		return CandidateSet{Listings: []domain.Listing{}}, nil
	}

	listings, err := e.catalog.Find(ctx, c, limit)
	if err != nil {
		return CandidateSet{}, unavailable(err, "find")
	}

	zap.L().Debug("search: candidates",
		zap.Int("total", total),
		zap.Int("materialized", len(listings)),
		zap.Int("limit", limit),
	)

	return CandidateSet{
		Listings:  listings,
		Total:     total,
		Truncated: total > len(listings),
	}, nil
}

// Count returns the size of the candidate set without materializing it.
func (e *Engine) Count(ctx context.Context, c domain.SearchCriteria) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	n, err := e.catalog.Count(ctx, c)
	if err != nil {
		return 0, unavailable(err, "count")
	}
	return n, nil
}

// All materializes every match. Callers use it only once Facets has shown
// the set is worth loading in full.
func (e *Engine) All(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	listings, err := e.catalog.Find(ctx, c, 0)
	if err != nil {
		return nil, unavailable(err, "find")
	}
	return listings, nil
}

// Facets aggregates the whole candidate set: per-group counts and price
// and area totals, however many listings match.
func (e *Engine) Facets(ctx context.Context, c domain.SearchCriteria) (Facets, error) {
	if err := c.Validate(); err != nil {
		return Facets{}, err
	}
	f, err := e.catalog.Facets(ctx, c)
	if err != nil {
		return Facets{}, unavailable(err, "facets")
	}
	return f, nil
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

func unavailable(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(err, "search: catalog %s", op)
	}
	zap.L().Error("search: catalog failure", zap.String("op", op), zap.Error(err))
	return eris.Wrapf(domain.ErrCatalogUnavailable, "search: catalog %s: %v", op, err)
}
