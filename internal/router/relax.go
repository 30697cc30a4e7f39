package router

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	RelaxBudget            = "widen_budget"
	RelaxRooms             = "widen_rooms"
	RelaxAdjacentDistricts = "adjacent_districts"
	RelaxDropRenovation    = "drop_renovation"
	RelaxDropBuildingType  = "drop_building_type"
	RelaxCombined          = "combined"
	RelaxReset             = "apartments_only"
)

// Relaxation is one way to loosen the criteria and how many listings it
// would yield.
type Relaxation struct {
	Kind        string                `json:"kind"`
	Description string                `json:"description"`
	Criteria    domain.SearchCriteria `json:"criteria"`
	Count       int                   `json:"count"`
}

type relaxer struct {
	kind  string
	apply func(c *domain.SearchCriteria, th Thresholds) (string, bool)
}

// relaxers run in this fixed priority order.
var relaxers = []relaxer{
	{RelaxBudget, widenBudget},
	{RelaxRooms, widenRooms},
	{RelaxAdjacentDistricts, addAdjacentDistricts},
	{RelaxDropRenovation, dropRenovation},
	{RelaxDropBuildingType, dropBuildingType},
}

// candidates builds every applicable single-step relaxation of c. Each
// one starts from the original criteria, never from another relaxation.
func candidates(c domain.SearchCriteria, th Thresholds) []Relaxation {
	var out []Relaxation
	for _, r := range relaxers {
		rc := c.Clone()
		desc, ok := r.apply(&rc, th)
		if !ok {
			continue
		}
		out = append(out, Relaxation{Kind: r.kind, Description: desc, Criteria: rc})
	}
	return out
}

func combined(c domain.SearchCriteria, th Thresholds) (Relaxation, bool) {
	rc := c.Clone()
	applied := false
	for _, r := range relaxers {
		if _, ok := r.apply(&rc, th); ok {
			applied = true
		}
	}
	return Relaxation{Kind: RelaxCombined, Description: "loosen every relaxable filter at once", Criteria: rc}, applied
}

// probe counts every relaxation and keeps those that yield anything,
// highest yield first. Equal yields keep priority order.
func (r *Router) probe(ctx context.Context, rs []Relaxation) ([]Relaxation, error) {
	out := make([]Relaxation, 0, len(rs))
	for _, rel := range rs {
		n, err := r.search.Count(ctx, rel.Criteria)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			rel.Count = n
			out = append(out, rel)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

// resetToApartments drops every filter but the category.
func resetToApartments() Relaxation {
	return Relaxation{
		Kind:        RelaxReset,
		Description: "search all apartments without filters",
		Criteria:    domain.SearchCriteria{},
	}
}

// fallbacks are tried in order once no single relaxation is enough.
func fallbacks(c domain.SearchCriteria, th Thresholds) []Relaxation {
	var out []Relaxation
	if all, ok := combined(c, th); ok {
		out = append(out, all)
	}
	return append(out, resetToApartments())
}

// suggestRelaxations is the NoResults search: single relaxations first,
// then all of them together, then dropping everything but the category.
func (r *Router) suggestRelaxations(ctx context.Context, c domain.SearchCriteria) ([]Relaxation, error) {
	found, err := r.probe(ctx, candidates(c, r.th))
	if err != nil || len(found) > 0 {
		return found, err
	}
	for _, fb := range fallbacks(c, r.th) {
		found, err = r.probe(ctx, []Relaxation{fb})
		if err != nil || len(found) > 0 {
			return found, err
		}
	}
	return found, nil
}

// bestBroadening returns the relaxation that adds the most listings over
// current, walking the same fallback chain as suggestRelaxations. It
// returns nil when nothing adds any.
func (r *Router) bestBroadening(ctx context.Context, c domain.SearchCriteria, current int) (*Relaxation, error) {
	found, err := r.probe(ctx, candidates(c, r.th))
	if err != nil {
		return nil, err
	}
	if len(found) > 0 && found[0].Count > current {
		best := found[0]
		return &best, nil
	}
	for _, fb := range fallbacks(c, r.th) {
		found, err = r.probe(ctx, []Relaxation{fb})
		if err != nil {
			return nil, err
		}
		if len(found) > 0 && found[0].Count > current {
			best := found[0]
			return &best, nil
		}
	}
	return nil, nil
}

func widenBudget(c *domain.SearchCriteria, th Thresholds) (string, bool) {
	if c.PriceMin == nil && c.PriceMax == nil {
		return "", false
	}
	if c.PriceMin != nil {
		*c.PriceMin *= 1 - th.BudgetWidenPct
	}
	if c.PriceMax != nil {
		*c.PriceMax *= 1 + th.BudgetWidenPct
	}
	return fmt.Sprintf("widen the budget by %.0f%%", th.BudgetWidenPct*100), true
}

func widenRooms(c *domain.SearchCriteria, _ Thresholds) (string, bool) {
	if c.RoomsMin == nil && c.RoomsMax == nil && len(c.Rooms) == 0 {
		return "", false
	}
	if c.RoomsMin != nil && *c.RoomsMin > 0 {
		*c.RoomsMin--
	}
	if c.RoomsMax != nil {
		*c.RoomsMax++
	}
	if len(c.Rooms) > 0 {
		wider := slices.Clone(c.Rooms)
		for _, n := range c.Rooms {
			if n > 0 {
				wider = append(wider, n-1)
			}
			wider = append(wider, n+1)
		}
		slices.Sort(wider)
		c.Rooms = slices.Compact(wider)
	}
	return "allow one room more or fewer", true
}

func addAdjacentDistricts(c *domain.SearchCriteria, th Thresholds) (string, bool) {
	if len(c.Districts) == 0 {
		return "", false
	}
	adj := make(map[string][]string, len(th.AdjacentDistricts))
	for k, v := range th.AdjacentDistricts {
		adj[domain.Normalize(k)] = v
	}

	have := make(map[string]bool, len(c.Districts))
	for _, d := range c.Districts {
		have[domain.Normalize(d)] = true
	}
	var added []string
	for _, d := range c.Districts {
		for _, n := range adj[domain.Normalize(d)] {
			if key := domain.Normalize(n); !have[key] {
				have[key] = true
				added = append(added, n)
			}
		}
	}
	if len(added) == 0 {
		return "", false
	}
	c.Districts = append(c.Districts, added...)
	return "include neighbouring districts: " + strings.Join(added, ", "), true
}

func dropRenovation(c *domain.SearchCriteria, _ Thresholds) (string, bool) {
	if len(c.Renovations) == 0 && len(c.ExcludedRenovations) == 0 {
		return "", false
	}
	c.Renovations, c.ExcludedRenovations = nil, nil
	return "accept any renovation", true
}

func dropBuildingType(c *domain.SearchCriteria, _ Thresholds) (string, bool) {
	if len(c.BuildingTypes) == 0 && len(c.ExcludedBuildingTypes) == 0 {
		return "", false
	}
	c.BuildingTypes, c.ExcludedBuildingTypes = nil, nil
	return "accept any building type", true
}
