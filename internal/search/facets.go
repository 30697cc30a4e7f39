package search

import (
	"math"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

// FacetKey is the part of a listing the router aggregates over.
type FacetKey struct {
	ComplexID    string
	ComplexName  string
	District     string
	BuildingType domain.BuildingType
	Renovation   domain.Renovation
	Handover     domain.Quarter
}

func KeyOf(l domain.Listing) FacetKey {
	return FacetKey{
		ComplexID:    l.ComplexID,
		ComplexName:  l.ComplexName,
		District:     l.District,
		BuildingType: l.BuildingType,
		Renovation:   l.Renovation,
		Handover:     l.Handover,
	}
}

// FacetGroup holds the listings sharing one FacetKey.
type FacetGroup struct {
	Key      FacetKey
	Count    int
	PriceMin float64
	PriceMax float64
	PriceSum float64
	AreaSum  float64
}

// Facets summarise a whole candidate set without materializing it.
// Groups partition the set; the totals are the sums over all groups.
type Facets struct {
	Total    int
	PriceMin float64
	PriceMax float64
	PriceSum float64
	AreaSum  float64
	Groups   []FacetGroup
}

// Add merges one group into the totals.
func (f *Facets) Add(g FacetGroup) {
	if g.Count <= 0 {
		return
	}
	if f.Total == 0 {
		f.PriceMin, f.PriceMax = g.PriceMin, g.PriceMax
	} else {
		f.PriceMin = math.Min(f.PriceMin, g.PriceMin)
		f.PriceMax = math.Max(f.PriceMax, g.PriceMax)
	}
	f.Total += g.Count
	f.PriceSum += g.PriceSum
	f.AreaSum += g.AreaSum
	f.Groups = append(f.Groups, g)
}

// FacetsOf aggregates listings that are already known to match.
func FacetsOf(listings []domain.Listing) Facets {
	index := make(map[FacetKey]int)
	var groups []FacetGroup
	for _, l := range listings {
		k := KeyOf(l)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, FacetGroup{Key: k, PriceMin: l.Price, PriceMax: l.Price})
		}
		g := &groups[i]
		g.Count++
		g.PriceMin = math.Min(g.PriceMin, l.Price)
		g.PriceMax = math.Max(g.PriceMax, l.Price)
		g.PriceSum += l.Price
		g.AreaSum += l.TotalArea
	}

	var f Facets
	for _, g := range groups {
		f.Add(g)
	}
	return f
}
