package domain

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// SearchCriteria is the must-have filter set produced by intent extraction.
// A nil pointer or empty slice means "no constraint". Slices are OR-ed
// within a field; fields are AND-ed together.
type SearchCriteria struct {
	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`

	RoomsMin *int  `json:"rooms_min,omitempty"`
	RoomsMax *int  `json:"rooms_max,omitempty"`
	Rooms    []int `json:"rooms,omitempty"`

	TotalAreaMin   *float64 `json:"total_area_min,omitempty"`
	TotalAreaMax   *float64 `json:"total_area_max,omitempty"`
	LivingAreaMin  *float64 `json:"living_area_min,omitempty"`
	LivingAreaMax  *float64 `json:"living_area_max,omitempty"`
	KitchenAreaMin *float64 `json:"kitchen_area_min,omitempty"`
	KitchenAreaMax *float64 `json:"kitchen_area_max,omitempty"`

	FloorMin       *int     `json:"floor_min,omitempty"`
	FloorMax       *int     `json:"floor_max,omitempty"`
	NotFirstFloor  bool     `json:"not_first_floor,omitempty"`
	NotLastFloor   bool     `json:"not_last_floor,omitempty"`
	FloorsTotalMin *int     `json:"floors_total_min,omitempty"`
	FloorsTotalMax *int     `json:"floors_total_max,omitempty"`
	CeilingMin     *float64 `json:"ceiling_height_min,omitempty"`

	Districts           []string `json:"districts,omitempty"`
	MetroStations       []string `json:"metro_stations,omitempty"`
	MetroWalkMaxMinutes *int     `json:"metro_walk_max_minutes,omitempty"`

	BuildingTypes         []BuildingType `json:"building_types,omitempty"`
	ExcludedBuildingTypes []BuildingType `json:"excluded_building_types,omitempty"`
	Renovations           []Renovation   `json:"renovations,omitempty"`
	ExcludedRenovations   []Renovation   `json:"excluded_renovations,omitempty"`

	BalconyRequired bool           `json:"balcony_required,omitempty"`
	BalconyTypes    []BalconyType  `json:"balcony_types,omitempty"`
	BathroomTypes   []BathroomType `json:"bathroom_types,omitempty"`

	MortgageRequired bool            `json:"mortgage_required,omitempty"`
	PaymentMethods   []PaymentMethod `json:"payment_methods,omitempty"`
	Banks            []string        `json:"banks,omitempty"`
	HaggleAllowed    bool            `json:"haggle_allowed,omitempty"`

	HandoverFrom *Quarter `json:"handover_from,omitempty"`
	HandoverTo   *Quarter `json:"handover_to,omitempty"`

	Developers         []string `json:"developers,omitempty"`
	ExcludedDevelopers []string `json:"excluded_developers,omitempty"`

	RequireSchool       bool `json:"require_school,omitempty"`
	RequireKindergarten bool `json:"require_kindergarten,omitempty"`
	RequirePark         bool `json:"require_park,omitempty"`
}

// Validate rejects malformed criteria. It never looks at the catalog.
func (c SearchCriteria) Validate() error {
	ve := &ValidationError{}

	checkFloatRange(ve, "price", c.PriceMin, c.PriceMax)
	checkFloatRange(ve, "total_area", c.TotalAreaMin, c.TotalAreaMax)
	checkFloatRange(ve, "living_area", c.LivingAreaMin, c.LivingAreaMax)
	checkFloatRange(ve, "kitchen_area", c.KitchenAreaMin, c.KitchenAreaMax)
	checkIntRange(ve, "rooms", c.RoomsMin, c.RoomsMax)
	checkIntRange(ve, "floor", c.FloorMin, c.FloorMax)
	checkIntRange(ve, "floors_total", c.FloorsTotalMin, c.FloorsTotalMax)

	if c.CeilingMin != nil && *c.CeilingMin < 0 {
		ve.add("ceiling_height_min must be >= 0")
	}
	if c.MetroWalkMaxMinutes != nil && *c.MetroWalkMaxMinutes < 0 {
		ve.add("metro_walk_max_minutes must be >= 0")
	}
	for _, r := range c.Rooms {
		if r < 0 {
			ve.add("rooms must be >= 0, got %d", r)
		}
	}

	for _, b := range append(slices.Clone(c.BuildingTypes), c.ExcludedBuildingTypes...) {
		if !b.Valid() {
			ve.add("unknown building type %q", b)
		}
	}
	for _, r := range append(slices.Clone(c.Renovations), c.ExcludedRenovations...) {
		if !r.Valid() {
			ve.add("unknown renovation %q", r)
		}
	}
	for _, b := range c.BalconyTypes {
		if !b.Valid() {
			ve.add("unknown balcony type %q", b)
		}
	}
	for _, b := range c.BathroomTypes {
		if !b.Valid() {
			ve.add("unknown bathroom type %q", b)
		}
	}
	for _, p := range c.PaymentMethods {
		if !p.Valid() {
			ve.add("unknown payment method %q", p)
		}
	}

	if c.HandoverFrom != nil && (!c.HandoverFrom.Valid() || c.HandoverFrom.IsZero()) {
		ve.add("handover_from is not a valid quarter")
	}
	if c.HandoverTo != nil && (!c.HandoverTo.Valid() || c.HandoverTo.IsZero()) {
		ve.add("handover_to is not a valid quarter")
	}
	if c.HandoverFrom != nil && c.HandoverTo != nil && c.HandoverFrom.After(*c.HandoverTo) {
		ve.add("handover_from must not be after handover_to")
	}

	return ve.orNil()
}

func checkFloatRange(ve *ValidationError, name string, lo, hi *float64) {
	if lo != nil && *lo < 0 {
		ve.add("%s_min must be >= 0", name)
	}
	if hi != nil && *hi < 0 {
		ve.add("%s_max must be >= 0", name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		ve.add("%s_min must be <= %s_max", name, name)
	}
}

func checkIntRange(ve *ValidationError, name string, lo, hi *int) {
	if lo != nil && *lo < 0 {
		ve.add("%s_min must be >= 0", name)
	}
	if hi != nil && *hi < 0 {
		ve.add("%s_max must be >= 0", name)
	}
	if lo != nil && hi != nil && *lo > *hi {
		ve.add("%s_min must be <= %s_max", name, name)
	}
}

// Clone returns a deep copy so relaxations never alias the caller's slices.
func (c SearchCriteria) Clone() SearchCriteria {
	out := c
	out.PriceMin = clonePtr(c.PriceMin)
	out.PriceMax = clonePtr(c.PriceMax)
	out.RoomsMin = clonePtr(c.RoomsMin)
	out.RoomsMax = clonePtr(c.RoomsMax)
	out.Rooms = slices.Clone(c.Rooms)
	out.TotalAreaMin = clonePtr(c.TotalAreaMin)
	out.TotalAreaMax = clonePtr(c.TotalAreaMax)
	out.LivingAreaMin = clonePtr(c.LivingAreaMin)
	out.LivingAreaMax = clonePtr(c.LivingAreaMax)
	out.KitchenAreaMin = clonePtr(c.KitchenAreaMin)
	out.KitchenAreaMax = clonePtr(c.KitchenAreaMax)
	out.FloorMin = clonePtr(c.FloorMin)
	out.FloorMax = clonePtr(c.FloorMax)
	out.FloorsTotalMin = clonePtr(c.FloorsTotalMin)
	out.FloorsTotalMax = clonePtr(c.FloorsTotalMax)
	out.CeilingMin = clonePtr(c.CeilingMin)
	out.Districts = slices.Clone(c.Districts)
	out.MetroStations = slices.Clone(c.MetroStations)
	out.MetroWalkMaxMinutes = clonePtr(c.MetroWalkMaxMinutes)
	out.BuildingTypes = slices.Clone(c.BuildingTypes)
	out.ExcludedBuildingTypes = slices.Clone(c.ExcludedBuildingTypes)
	out.Renovations = slices.Clone(c.Renovations)
	out.ExcludedRenovations = slices.Clone(c.ExcludedRenovations)
	out.BalconyTypes = slices.Clone(c.BalconyTypes)
	out.BathroomTypes = slices.Clone(c.BathroomTypes)
	out.PaymentMethods = slices.Clone(c.PaymentMethods)
	out.Banks = slices.Clone(c.Banks)
	out.HandoverFrom = clonePtr(c.HandoverFrom)
	out.HandoverTo = clonePtr(c.HandoverTo)
	out.Developers = slices.Clone(c.Developers)
	out.ExcludedDevelopers = slices.Clone(c.ExcludedDevelopers)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr is a small helper for building criteria literals.
func Ptr[T any](v T) *T { return &v }

// Normalize folds case and trims spaces so that district, metro, bank and
// developer names compare equal regardless of how the catalog spelled them.
func Normalize(s string) string {
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// NormalizeAll normalizes every element and drops empties.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
