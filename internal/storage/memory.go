package storage

import (
	"context"
	"sort"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/search"
)

// MemoryCatalog is an immutable in-process snapshot of the catalog.
// It needs no locking because nothing mutates it after construction.
type MemoryCatalog struct {
	listings []domain.Listing
	byID     map[string]int
}

func NewMemoryCatalog(listings []domain.Listing) *MemoryCatalog {
	cp := make([]domain.Listing, len(listings))
	copy(cp, listings)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })

	byID := make(map[string]int, len(cp))
	for i, l := range cp {
		byID[l.ID] = i
	}
	return &MemoryCatalog{listings: cp, byID: byID}
}

func (m *MemoryCatalog) Find(ctx context.Context, c domain.SearchCriteria, limit int) ([]domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0)
	for _, l := range m.listings {
		if limit > 0 && len(out) >= limit {
			break
		}
		if search.Matches(c, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) Count(ctx context.Context, c domain.SearchCriteria) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, l := range m.listings {
		if search.Matches(c, l) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryCatalog) Facets(ctx context.Context, c domain.SearchCriteria) (search.Facets, error) {
	matched, err := m.Find(ctx, c, 0)
	if err != nil {
		return search.Facets{}, err
	}
	return search.FacetsOf(matched), nil
}

func (m *MemoryCatalog) Get(_ context.Context, id string) (domain.Listing, error) {
	i, ok := m.byID[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return m.listings[i], nil
}

func (m *MemoryCatalog) List(_ context.Context, limit, offset int) ([]domain.Listing, int, error) {
	total := len(m.listings)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return m.listings[offset:end], total, nil
}
