// Package router decides how a candidate set is presented and shapes the
// matching payload.
package router

import (
	"github.com/rotisserie/eris"

	"github.com/denisok6893-rgb/dream-search/internal/search"
)

type Scenario string

const (
	NoResults        Scenario = "no_results"
	FewResults       Scenario = "few_results"
	ClusteredResults Scenario = "clustered_results"
	OptimalResults   Scenario = "optimal_results"
	TooManyResults   Scenario = "too_many_results"
)

// Thresholds are product defaults, not laws; all of them are configurable.
type Thresholds struct {
	// FewMax is exclusive: 1..FewMax-1 candidates are "few".
	FewMax int `mapstructure:"few_max"`
	// OptimalMax is inclusive.
	OptimalMax int `mapstructure:"optimal_max"`
	// Clustering needs strictly more than ClusterMinCount candidates and a
	// single complex holding strictly more than ClusterConcentration.
	ClusterMinCount      int     `mapstructure:"cluster_min_count"`
	ClusterConcentration float64 `mapstructure:"cluster_concentration"`

	OptimalTop         int     `mapstructure:"optimal_top"`
	BudgetWidenPct     float64 `mapstructure:"budget_widen_pct"`
	AreaBucketSqm      float64 `mapstructure:"area_bucket_sqm"`
	MaxQuestionOptions int     `mapstructure:"max_question_options"`

	AdjacentDistricts map[string][]string `mapstructure:"adjacent_districts"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FewMax:               20,
		OptimalMax:           200,
		ClusterMinCount:      100,
		ClusterConcentration: 0.5,
		OptimalTop:           12,
		BudgetWidenPct:       0.15,
		AreaBucketSqm:        10,
		MaxQuestionOptions:   5,
		AdjacentDistricts:    DefaultAdjacency(),
	}
}

func (t Thresholds) Validate() error {
	switch {
	case t.FewMax < 1:
		return eris.New("router: few_max must be >= 1")
	case t.OptimalMax < t.FewMax:
		return eris.New("router: optimal_max must be >= few_max")
	case t.ClusterMinCount < 0:
		return eris.New("router: cluster_min_count must be >= 0")
	case t.ClusterConcentration <= 0 || t.ClusterConcentration >= 1:
		return eris.New("router: cluster_concentration must be in (0, 1)")
	case t.OptimalTop < 1:
		return eris.New("router: optimal_top must be >= 1")
	case t.BudgetWidenPct <= 0 || t.BudgetWidenPct >= 1:
		return eris.New("router: budget_widen_pct must be in (0, 1)")
	case t.AreaBucketSqm <= 0:
		return eris.New("router: area_bucket_sqm must be > 0")
	case t.MaxQuestionOptions < 1:
		return eris.New("router: max_question_options must be >= 1")
	}
	return nil
}

// Select maps a candidate count and the largest single-complex share to a
// scenario. It depends on nothing else.
func Select(count int, concentration float64, th Thresholds) Scenario {
	switch {
	case count <= 0:
		return NoResults
	case count < th.FewMax:
		return FewResults
	case count > th.ClusterMinCount && concentration > th.ClusterConcentration:
		return ClusteredResults
	case count <= th.OptimalMax:
		return OptimalResults
	default:
		return TooManyResults
	}
}

// Concentration returns the complex holding the most candidates and its
// share of the whole set. Listings without a complex are never grouped.
func Concentration(f search.Facets) (string, float64) {
	if f.Total == 0 {
		return "", 0
	}
	counts := make(map[string]int)
	for _, g := range f.Groups {
		if g.Key.ComplexID != "" {
			counts[g.Key.ComplexID] += g.Count
		}
	}
	best, bestN := "", 0
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}
	return best, float64(bestN) / float64(f.Total)
}

// DefaultAdjacency lists St. Petersburg districts that share a border.
func DefaultAdjacency() map[string][]string {
	return map[string][]string{
		"Admiralteysky":    {"Central", "Vasileostrovsky", "Kirovsky", "Moskovsky", "Frunzensky"},
		"Central":          {"Admiralteysky", "Petrogradsky", "Nevsky", "Krasnogvardeysky", "Frunzensky"},
		"Frunzensky":       {"Moskovsky", "Nevsky", "Central", "Admiralteysky", "Pushkinsky"},
		"Kalininsky":       {"Vyborgsky", "Krasnogvardeysky", "Petrogradsky"},
		"Kirovsky":         {"Admiralteysky", "Moskovsky", "Krasnoselsky"},
		"Kolpinsky":        {"Pushkinsky", "Nevsky"},
		"Krasnogvardeysky": {"Kalininsky", "Nevsky", "Central", "Vsevolozhsky"},
		"Krasnoselsky":     {"Kirovsky", "Petrodvortsovy", "Moskovsky"},
		"Kurortny":         {"Primorsky"},
		"Moskovsky":        {"Admiralteysky", "Frunzensky", "Kirovsky", "Pushkinsky", "Krasnoselsky"},
		"Nevsky":           {"Krasnogvardeysky", "Frunzensky", "Central", "Kolpinsky"},
		"Petrodvortsovy":   {"Krasnoselsky"},
		"Petrogradsky":     {"Primorsky", "Vyborgsky", "Central", "Vasileostrovsky", "Kalininsky"},
		"Primorsky":        {"Vyborgsky", "Petrogradsky", "Kurortny"},
		"Pushkinsky":       {"Moskovsky", "Frunzensky", "Kolpinsky"},
		"Vasileostrovsky":  {"Admiralteysky", "Petrogradsky"},
		"Vyborgsky":        {"Primorsky", "Kalininsky", "Petrogradsky"},
	}
}
