package router

import (
	"math"
	"sort"

	"github.com/denisok6893-rgb/dream-search/internal/search"
)

// Stats summarise the whole candidate set, not just what is shown.
type Stats struct {
	Count    int     `json:"count"`
	PriceMin float64 `json:"price_min"`
	PriceAvg float64 `json:"price_avg"`
	PriceMax float64 `json:"price_max"`
	AreaAvg  float64 `json:"area_avg"`
}

func computeStats(f search.Facets) Stats {
	if f.Total == 0 {
		return Stats{}
	}
	n := float64(f.Total)
	return Stats{
		Count:    f.Total,
		PriceMin: f.PriceMin,
		PriceMax: f.PriceMax,
		PriceAvg: math.Round(f.PriceSum / n),
		AreaAvg:  math.Round(f.AreaSum/n*10) / 10,
	}
}

// Question asks the user to narrow one dimension. Field names the
// SearchCriteria field the answer goes into.
type Question struct {
	Dimension string   `json:"dimension"`
	Field     string   `json:"field"`
	Variance  float64  `json:"variance"`
	Options   []Option `json:"options"`
}

type Option struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type dimension struct {
	name  string
	field string
	value func(search.FacetKey) string
}

// dimensions is also the tie-break order for equal variance.
var dimensions = []dimension{
	{"building_type", "building_types", func(k search.FacetKey) string { return orUnknown(string(k.BuildingType)) }},
	{"renovation", "renovations", func(k search.FacetKey) string { return orUnknown(string(k.Renovation)) }},
	{"handover", "handover_to", func(k search.FacetKey) string { return k.Handover.String() }},
	{"complex", "complex", func(k search.FacetKey) string {
		if k.ComplexName != "" {
			return k.ComplexName
		}
		return orUnknown(k.ComplexID)
	}},
	{"district", "districts", func(k search.FacetKey) string { return orUnknown(k.District) }},
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// giniSimpson is 1 - sum(p_i^2): 0 when every listing shares one value,
// approaching 1 as values spread evenly over many categories.
func giniSimpson(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var sum float64
	for _, n := range counts {
		p := float64(n) / float64(total)
		sum += p * p
	}
	return 1 - sum
}

// narrowingQuestions orders dimensions by descending variance and drops
// those where every candidate agrees.
func narrowingQuestions(f search.Facets, maxOptions int) []Question {
	out := make([]Question, 0, len(dimensions))
	for _, d := range dimensions {
		counts := make(map[string]int)
		for _, g := range f.Groups {
			counts[d.value(g.Key)] += g.Count
		}
		v := giniSimpson(counts, f.Total)
		if v <= 0 {
			continue
		}
		out = append(out, Question{
			Dimension: d.name,
			Field:     d.field,
			Variance:  math.Round(v*10000) / 10000,
			Options:   topOptions(counts, maxOptions),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Variance > out[j].Variance })
	return out
}

func topOptions(counts map[string]int, max int) []Option {
	opts := make([]Option, 0, len(counts))
	for v, n := range counts {
		opts = append(opts, Option{Value: v, Count: n})
	}
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Count != opts[j].Count {
			return opts[i].Count > opts[j].Count
		}
		return opts[i].Value < opts[j].Value
	})
	if max > 0 && len(opts) > max {
		opts = opts[:max]
	}
	return opts
}
