package matching

import (
	"math"
	"slices"
	"sort"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	ComponentPrice          = "price"
	ComponentLocation       = "location"
	ComponentTransport      = "transport"
	ComponentSpace          = "space"
	ComponentFloor          = "floor"
	ComponentLayout         = "layout"
	ComponentBuilding       = "building"
	ComponentFinancial      = "financial"
	ComponentInfrastructure = "infrastructure"
)

// neutral is the subscore used when the profile says nothing about a
// component, so silence neither rewards nor penalizes a listing.
const neutral = 0.5

type Engine struct {
	weights Weights
}

func NewEngine(w Weights) *Engine {
	return &Engine{weights: w}
}

func (e *Engine) Weights() Weights { return e.weights }

// Score computes the Dream Score (0..100, 0.1 precision) with its
// per-component breakdown. It never rejects a listing.
func (e *Engine) Score(l domain.Listing, p domain.ClientProfile) domain.ScoredListing {
	factors := []struct {
		name   string
		label  string
		weight float64
		sub    subscore
	}{
		{ComponentPrice, "price", e.weights.Price, priceScore(l, p)},
		{ComponentLocation, "location", e.weights.Location, locationScore(l, p)},
		{ComponentTransport, "metro access", e.weights.Transport, transportScore(l, p)},
		{ComponentSpace, "space", e.weights.Space, spaceScore(l, p)},
		{ComponentFloor, "floor", e.weights.Floor, floorScore(l, p)},
		{ComponentLayout, "layout", e.weights.Layout, layoutScore(l, p)},
		{ComponentBuilding, "building", e.weights.Building, buildingScore(l, p)},
		{ComponentFinancial, "financial terms", e.weights.Financial, financialScore(l, p)},
		{ComponentInfrastructure, "infrastructure", e.weights.Infrastructure, infrastructureScore(l, p)},
	}

	var sum float64
	components := make([]domain.ScoreComponent, 0, len(factors))
	var reasons []domain.ScoreReason

	for _, f := range factors {
		v := clamp01(f.sub.value())
		contrib := f.weight * v
		sum += contrib

		components = append(components, domain.ScoreComponent{
			Name:         f.name,
			Value:        round3(v),
			Weight:       f.weight,
			Contribution: round3(contrib),
		})
		// Only components the client expressed a preference on explain
		// the score.
		if f.sub.applicable() {
			reasons = append(reasons, domain.ScoreReason{
				Type:    f.name,
				Message: reasonMessage(f.label, v),
				Impact:  contrib,
			})
		}
	}

	score := math.Round(sum*1000) / 10
	return domain.ScoredListing{
		Listing:    l,
		Score:      clamp(score, 0, 100),
		Components: components,
		Reasons:    topReasons(reasons, 5),
	}
}

// Rank scores every listing and orders them by score descending. Equal
// scores fall back to listing ID so the order is deterministic.
func (e *Engine) Rank(listings []domain.Listing, p domain.ClientProfile) []domain.ScoredListing {
	out := make([]domain.ScoredListing, 0, len(listings))
	for _, l := range listings {
		out = append(out, e.Score(l, p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Listing.ID < out[j].Listing.ID
	})
	return out
}

// subscore averages the parts of a component that the profile actually
// constrains. No parts means neutral.
type subscore struct {
	sum   float64
	parts int
}

func (s *subscore) add(v float64) {
	s.sum += clamp01(v)
	s.parts++
}

func (s subscore) applicable() bool { return s.parts > 0 }

func (s subscore) value() float64 {
	if s.parts == 0 {
		return neutral
	}
	return s.sum / float64(s.parts)
}

func priceScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	switch {
	case p.BudgetMax > 0:
		r := l.Price / p.BudgetMax
		if r <= 1 {
			// Comfortably inside the budget (<=70%) is best.
			s.add(0.6 + 0.4*clamp01((1-r)/0.3))
		} else {
			// Over budget decays to zero at +15%.
			s.add(0.6 * clamp01(1-(r-1)/0.15))
		}
		if p.BudgetMin > 0 && l.Price < p.BudgetMin {
			s.add(0.5)
		}
	case p.BudgetMin > 0:
		if l.Price < p.BudgetMin {
			s.add(0.3)
		} else {
			s.add(0.7)
		}
	}
	return s
}

func locationScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if len(p.Districts) > 0 {
		s.add(boolScore(containsNormalized(p.Districts, l.District)))
	}
	if len(p.MetroStations) > 0 {
		s.add(boolScore(containsNormalized(p.MetroStations, l.MetroStation)))
	}
	return s
}

func transportScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if p.MaxMetroWalkMinutes <= 0 {
		return s
	}
	limit := float64(p.MaxMetroWalkMinutes)
	walk := float64(l.MetroWalkMinutes)
	switch {
	case walk <= 0:
		s.add(0.3)
	case walk <= limit:
		s.add(1 - 0.4*walk/limit)
	default:
		s.add(0.6 * clamp01(1-(walk-limit)/limit))
	}
	return s
}

func spaceScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if p.RoomsMin != nil || p.RoomsMax != nil {
		d := 0
		if p.RoomsMin != nil && l.Rooms < *p.RoomsMin {
			d = *p.RoomsMin - l.Rooms
		}
		if p.RoomsMax != nil && l.Rooms > *p.RoomsMax {
			d = l.Rooms - *p.RoomsMax
		}
		s.add(1 - 0.5*float64(d))
	}
	if p.AreaMin > 0 || p.AreaMax > 0 {
		switch {
		case p.AreaMin > 0 && l.TotalArea < p.AreaMin:
			s.add(1 - 2*(p.AreaMin-l.TotalArea)/p.AreaMin)
		case p.AreaMax > 0 && l.TotalArea > p.AreaMax:
			// More space than asked for is a mild miss, not a failure.
			s.add(1 - (l.TotalArea-p.AreaMax)/p.AreaMax)
		default:
			s.add(1)
		}
	}
	return s
}

func floorScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if p.PreferredFloorMin > 0 || p.PreferredFloorMax > 0 {
		d := 0
		if p.PreferredFloorMin > 0 && l.Floor < p.PreferredFloorMin {
			d = p.PreferredFloorMin - l.Floor
		}
		if p.PreferredFloorMax > 0 && l.Floor > p.PreferredFloorMax {
			d = l.Floor - p.PreferredFloorMax
		}
		s.add(1 - 0.15*float64(d))
	}
	if p.AvoidFirstFloor {
		s.add(boolScore(l.Floor > 1))
	}
	if p.AvoidLastFloor {
		s.add(boolScore(l.FloorsTotal <= 0 || l.Floor < l.FloorsTotal))
	}
	return s
}

func layoutScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if p.BalconyRequired {
		s.add(boolScore(l.BalconyType.Present()))
	}
	if len(p.PreferredBalconyTypes) > 0 {
		switch {
		case slices.Contains(p.PreferredBalconyTypes, l.BalconyType):
			s.add(1)
		case l.BalconyType.Present():
			s.add(0.5)
		default:
			s.add(0)
		}
	}
	if p.BathroomPreference != "" {
		switch {
		case l.BathroomType == p.BathroomPreference:
			s.add(1)
		case p.BathroomPreference == domain.BathroomSeparate && l.BathroomType == domain.BathroomMultiple:
			s.add(0.8)
		default:
			s.add(0.3)
		}
	}
	if p.MinCeilingHeight > 0 {
		if l.CeilingHeight >= p.MinCeilingHeight {
			s.add(1)
		} else {
			s.add(1 - (p.MinCeilingHeight-l.CeilingHeight)/0.3)
		}
	}
	return s
}

func buildingScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	addPreference(&s, l.BuildingType, p.PreferredBuildingTypes, p.ExcludedBuildingTypes)
	addPreference(&s, l.Renovation, p.PreferredRenovations, p.ExcludedRenovations)

	if p.HandoverFrom != nil || p.HandoverTo != nil {
		idx := l.Handover.Index()
		off := 0
		if p.HandoverFrom != nil && idx < p.HandoverFrom.Index() {
			off = p.HandoverFrom.Index() - idx
			if l.Handover.IsZero() {
				// Already delivered is early, but usable.
				off = 1
			}
		}
		if p.HandoverTo != nil && idx > p.HandoverTo.Index() {
			off = idx - p.HandoverTo.Index()
		}
		s.add(1 - 0.2*float64(off))
	}

	if len(p.PreferredDevelopers) > 0 || len(p.ExcludedDevelopers) > 0 {
		switch {
		case containsNormalized(p.ExcludedDevelopers, l.Developer):
			s.add(0)
		case containsNormalized(p.PreferredDevelopers, l.Developer):
			s.add(1)
		case len(p.PreferredDevelopers) > 0:
			s.add(0.4)
		default:
			s.add(0.6)
		}
	}
	return s
}

func addPreference[T comparable](s *subscore, v T, preferred, excluded []T) {
	if len(preferred) == 0 && len(excluded) == 0 {
		return
	}
	switch {
	case slices.Contains(excluded, v):
		s.add(0)
	case slices.Contains(preferred, v):
		s.add(1)
	case len(preferred) > 0:
		s.add(0.3)
	default:
		s.add(0.6)
	}
}

func financialScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	if p.MortgageRequired {
		s.add(boolScore(l.MortgageAvailable))
	}
	if len(p.PreferredPaymentMethods) > 0 {
		hit := 0
		for _, m := range p.PreferredPaymentMethods {
			if slices.Contains(l.PaymentMethods, m) {
				hit++
			}
		}
		if hit > 0 {
			s.add(0.6 + 0.4*float64(hit)/float64(len(p.PreferredPaymentMethods)))
		} else {
			s.add(0)
		}
	}
	return s
}

// infrastructureScore also carries complex amenities: once the client asks
// for any infrastructure, a richer amenity list lifts the score a little.
func infrastructureScore(l domain.Listing, p domain.ClientProfile) subscore {
	var s subscore
	need := 0
	have := 0
	for _, r := range []struct {
		on bool
		a  domain.Advantage
	}{
		{p.NeedSchool, domain.AdvantageSchool},
		{p.NeedKindergarten, domain.AdvantageKindergarten},
		{p.NeedPark, domain.AdvantagePark},
	} {
		if !r.on {
			continue
		}
		need++
		if l.HasAdvantage(r.a) {
			have++
		}
	}
	if need == 0 {
		return s
	}
	amenities := math.Min(1, float64(len(l.Advantages))/5)
	s.add(0.8*float64(have)/float64(need) + 0.2*amenities)
	return s
}

func containsNormalized(set []string, v string) bool {
	n := domain.Normalize(v)
	if n == "" {
		return false
	}
	for _, x := range set {
		if domain.Normalize(x) == n {
			return true
		}
	}
	return false
}

func topReasons(reasons []domain.ScoreReason, max int) []domain.ScoreReason {
	sort.SliceStable(reasons, func(i, j int) bool { return reasons[i].Impact > reasons[j].Impact })
	if max <= 0 {
		max = 5
	}
	if len(reasons) > max {
		reasons = reasons[:max]
	}
	// Impact becomes a share of the strongest reason (0..1).
	if len(reasons) == 0 {
		return reasons
	}
	best := reasons[0].Impact
	if best <= 0 {
		return reasons
	}
	for i := range reasons {
		reasons[i].Impact = math.Round((reasons[i].Impact/best)*100) / 100
	}
	return reasons
}

func reasonMessage(label string, v float64) string {
	switch {
	case v >= 0.8:
		return label + ": strong match"
	case v >= 0.6:
		return label + ": good"
	case v >= 0.4:
		return label + ": mixed"
	default:
		return label + ": weak"
	}
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
