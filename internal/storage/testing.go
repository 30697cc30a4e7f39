package storage

import (
	"fmt"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

// SampleListing builds a plausible active apartment for tests. Mods are
// applied in order.
func SampleListing(id string, mods ...func(*domain.Listing)) domain.Listing {
	l := domain.Listing{
		ID:                id,
		Category:          domain.CategoryApartment,
		Title:             fmt.Sprintf("Apartment %s", id),
		Price:             9_000_000,
		Rooms:             2,
		TotalArea:         58,
		LivingArea:        32,
		KitchenArea:       12,
		Floor:             5,
		FloorsTotal:       17,
		CeilingHeight:     2.8,
		BuildingType:      domain.BuildingMonolith,
		Renovation:        domain.RenovationWhiteBox,
		BalconyType:       domain.BalconyLoggia,
		BathroomType:      domain.BathroomSeparate,
		District:          "Primorsky",
		MetroStation:      "Begovaya",
		MetroWalkMinutes:  10,
		Latitude:          59.9871,
		Longitude:         30.2019,
		MortgageAvailable: true,
		PaymentMethods:    []domain.PaymentMethod{domain.PaymentMortgage, domain.PaymentCash},
		AccreditedBanks:   []string{"Sber", "VTB"},
		Handover:          domain.Quarter{Year: 2026, Q: 4},
		Developer:         "Setl Group",
		ComplexID:         "c-" + id,
		ComplexName:       "Complex " + id,
		Advantages:        []domain.Advantage{domain.AdvantageSchool, domain.AdvantagePark},
		Media: domain.Media{
			Photos:      []string{"https://img.example.com/" + id + "/1.jpg"},
			LayoutPlans: []string{"https://img.example.com/" + id + "/plan.png"},
		},
		Active: true,
	}
	for _, m := range mods {
		m(&l)
	}
	return l
}

// SampleListings builds n listings with ids prefix-000, prefix-001, ...
func SampleListings(prefix string, n int, mods ...func(i int, l *domain.Listing)) []domain.Listing {
	out := make([]domain.Listing, 0, n)
	for i := 0; i < n; i++ {
		l := SampleListing(fmt.Sprintf("%s-%03d", prefix, i))
		for _, m := range mods {
			m(i, &l)
		}
		out = append(out, l)
	}
	return out
}
