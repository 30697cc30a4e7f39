package search

import (
	"slices"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

// Matches is the canonical in-memory form of the filter. Catalog backends
// that compile criteria into their own query language must agree with it.
func Matches(c domain.SearchCriteria, l domain.Listing) bool {
	if l.Category != domain.CategoryApartment || !l.Active {
		return false
	}

	if !inFloat(l.Price, c.PriceMin, c.PriceMax) {
		return false
	}
	if !inInt(l.Rooms, c.RoomsMin, c.RoomsMax) {
		return false
	}
	if len(c.Rooms) > 0 && !slices.Contains(c.Rooms, l.Rooms) {
		return false
	}
	if !inFloat(l.TotalArea, c.TotalAreaMin, c.TotalAreaMax) ||
		!inFloat(l.LivingArea, c.LivingAreaMin, c.LivingAreaMax) ||
		!inFloat(l.KitchenArea, c.KitchenAreaMin, c.KitchenAreaMax) {
		return false
	}

	if !inInt(l.Floor, c.FloorMin, c.FloorMax) {
		return false
	}
	if c.NotFirstFloor && l.Floor <= 1 {
		return false
	}
	if c.NotLastFloor && l.FloorsTotal > 0 && l.Floor >= l.FloorsTotal {
		return false
	}
	if !inInt(l.FloorsTotal, c.FloorsTotalMin, c.FloorsTotalMax) {
		return false
	}
	if c.CeilingMin != nil && l.CeilingHeight < *c.CeilingMin {
		return false
	}

	if len(c.Districts) > 0 && !containsNormalized(c.Districts, l.District) {
		return false
	}
	if len(c.MetroStations) > 0 && !containsNormalized(c.MetroStations, l.MetroStation) {
		return false
	}
	if c.MetroWalkMaxMinutes != nil && (l.MetroWalkMinutes <= 0 || l.MetroWalkMinutes > *c.MetroWalkMaxMinutes) {
		return false
	}

	if len(c.BuildingTypes) > 0 && !slices.Contains(c.BuildingTypes, l.BuildingType) {
		return false
	}
	if slices.Contains(c.ExcludedBuildingTypes, l.BuildingType) {
		return false
	}
	if len(c.Renovations) > 0 && !slices.Contains(c.Renovations, l.Renovation) {
		return false
	}
	if slices.Contains(c.ExcludedRenovations, l.Renovation) {
		return false
	}

	if c.BalconyRequired && !l.BalconyType.Present() {
		return false
	}
	if len(c.BalconyTypes) > 0 && !slices.Contains(c.BalconyTypes, l.BalconyType) {
		return false
	}
	if len(c.BathroomTypes) > 0 && !slices.Contains(c.BathroomTypes, l.BathroomType) {
		return false
	}

	if c.MortgageRequired && !l.MortgageAvailable {
		return false
	}
	if len(c.PaymentMethods) > 0 && !intersects(c.PaymentMethods, l.PaymentMethods) {
		return false
	}
	if len(c.Banks) > 0 && !intersectsNormalized(c.Banks, l.AccreditedBanks) {
		return false
	}
	if c.HaggleAllowed && !l.HaggleAllowed {
		return false
	}

	if c.HandoverFrom != nil && l.Handover.Index() < c.HandoverFrom.Index() {
		return false
	}
	if c.HandoverTo != nil && l.Handover.Index() > c.HandoverTo.Index() {
		return false
	}

	if len(c.Developers) > 0 && !containsNormalized(c.Developers, l.Developer) {
		return false
	}
	if len(c.ExcludedDevelopers) > 0 && containsNormalized(c.ExcludedDevelopers, l.Developer) {
		return false
	}

	if c.RequireSchool && !l.HasAdvantage(domain.AdvantageSchool) {
		return false
	}
	if c.RequireKindergarten && !l.HasAdvantage(domain.AdvantageKindergarten) {
		return false
	}
	if c.RequirePark && !l.HasAdvantage(domain.AdvantagePark) {
		return false
	}
	return true
}

func inFloat(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func inInt(v int, lo, hi *int) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func containsNormalized(set []string, v string) bool {
	n := domain.Normalize(v)
	if n == "" {
		return false
	}
	for _, s := range set {
		if domain.Normalize(s) == n {
			return true
		}
	}
	return false
}

func intersects[T comparable](want, have []T) bool {
	for _, h := range have {
		if slices.Contains(want, h) {
			return true
		}
	}
	return false
}

func intersectsNormalized(want, have []string) bool {
	for _, h := range have {
		if containsNormalized(want, h) {
			return true
		}
	}
	return false
}
