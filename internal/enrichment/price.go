package enrichment

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/search"
)

const (
	PriceTTL              = 24 * time.Hour
	DefaultMinComparables = 5
	DefaultAreaTolerance  = 0.2
	comparablesLimit      = 500
)

const (
	LabelDeal         = "deal"
	LabelGoodValue    = "good_value"
	LabelFair         = "fair"
	LabelAboveAverage = "above_average"
	LabelExpensive    = "expensive"
)

type PriceContext struct {
	PricePerSqm       float64 `json:"price_per_sqm"`
	MedianPricePerSqm float64 `json:"median_price_per_sqm"`
	DiffFromMedianPct float64 `json:"diff_from_median_pct"`
	Percentile        float64 `json:"percentile"`
	Label             string  `json:"label"`
	Comparables       int     `json:"comparables"`
}

// Searcher is the slice of the search engine the price source needs.
type Searcher interface {
	Search(ctx context.Context, c domain.SearchCriteria, limit int) (search.CandidateSet, error)
}

// PriceSource ranks a listing's price per m² against comparable listings
// from the catalog: same district, same room count, similar area.
type PriceSource struct {
	catalog        Searcher
	minComparables int
	areaTolerance  float64
}

func NewPriceSource(catalog Searcher, minComparables int, areaTolerance float64) *PriceSource {
	if minComparables <= 0 {
		minComparables = DefaultMinComparables
	}
	if areaTolerance <= 0 {
		areaTolerance = DefaultAreaTolerance
	}
	return &PriceSource{catalog: catalog, minComparables: minComparables, areaTolerance: areaTolerance}
}

func (s *PriceSource) Name() string       { return SourcePrice }
func (s *PriceSource) Available() bool    { return s.catalog != nil }
func (s *PriceSource) TTL() time.Duration { return PriceTTL }

// Key includes the price so a repriced listing is re-ranked.
func (s *PriceSource) Key(l domain.Listing, _ domain.ClientProfile) string {
	return fmt.Sprintf("%s:%.0f", l.ID, l.Price)
}

func (s *PriceSource) comparablesCriteria(l domain.Listing) domain.SearchCriteria {
	c := domain.SearchCriteria{
		Rooms:        []int{l.Rooms},
		TotalAreaMin: domain.Ptr(l.TotalArea * (1 - s.areaTolerance)),
		TotalAreaMax: domain.Ptr(l.TotalArea * (1 + s.areaTolerance)),
	}
	if l.District != "" {
		c.Districts = []string{l.District}
	}
	return c
}

func (s *PriceSource) Fetch(ctx context.Context, l domain.Listing, _ domain.ClientProfile) (PriceContext, error) {
	own := l.PricePerSqm()
	if own <= 0 {
		return PriceContext{}, eris.Wrap(ErrNoData, "price: listing has no area or price")
	}

	set, err := s.catalog.Search(ctx, s.comparablesCriteria(l), comparablesLimit)
	if err != nil {
		return PriceContext{}, eris.Wrap(err, "price: comparables search")
	}

	ppsqm := make([]float64, 0, len(set.Listings))
	for _, c := range set.Listings {
		if c.ID == l.ID {
			continue
		}
		if v := c.PricePerSqm(); v > 0 {
			ppsqm = append(ppsqm, v)
		}
	}
	if len(ppsqm) < s.minComparables {
		return PriceContext{}, eris.Wrapf(ErrNoData, "price: %d comparables, need %d", len(ppsqm), s.minComparables)
	}
	sort.Float64s(ppsqm)

	pct := percentile(ppsqm, own)
	med := median(ppsqm)
	return PriceContext{
		PricePerSqm:       math.Round(own),
		MedianPricePerSqm: math.Round(med),
		DiffFromMedianPct: math.Round((own-med)/med*1000) / 10,
		Percentile:        math.Round(pct*10) / 10,
		Label:             PriceLabel(pct),
		Comparables:       len(ppsqm),
	}, nil
}

// percentile is the share of sorted values below v, counting ties as
// half, in 0..100.
func percentile(sorted []float64, v float64) float64 {
	below := sort.SearchFloat64s(sorted, v)
	equal := 0
	for i := below; i < len(sorted) && sorted[i] == v; i++ {
		equal++
	}
	return (float64(below) + 0.5*float64(equal)) / float64(len(sorted)) * 100
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func PriceLabel(pct float64) string {
	switch {
	case pct < 10:
		return LabelDeal
	case pct < 35:
		return LabelGoodValue
	case pct < 65:
		return LabelFair
	case pct < 90:
		return LabelAboveAverage
	default:
		return LabelExpensive
	}
}
