package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/storage"
)

func TestDefaultWeights_SumToOne(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Sum(), weightSumTolerance)
	require.NoError(t, w.Validate())
	assert.Len(t, w.named(), 9)
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights()
	w.Price += 0.1
	assert.Error(t, w.Validate())

	w = DefaultWeights()
	w.Floor = -0.06
	w.Price += 0.12
	assert.Error(t, w.Validate())
}

func TestLoadWeightsFromFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"price": 0.25, "location": 0.10}`), 0o644))
	w, err := LoadWeightsFromFile(good)
	require.NoError(t, err)
	assert.Equal(t, 0.25, w.Price)
	assert.Equal(t, 0.10, w.Location)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"price": 0.9}`), 0o644))
	w, err = LoadWeightsFromFile(bad)
	require.Error(t, err)
	assert.Equal(t, DefaultWeights(), w)

	_, err = LoadWeightsFromFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestScore_EmptyProfileIsNeutral(t *testing.T) {
	e := NewEngine(DefaultWeights())
	got := e.Score(storage.SampleListing("a"), domain.ClientProfile{})

	assert.Equal(t, 50.0, got.Score)
	require.Len(t, got.Components, 9)
	for _, c := range got.Components {
		assert.Equal(t, neutral, c.Value, c.Name)
	}
	assert.Empty(t, got.Reasons)
}

func TestScore_StaysInRange(t *testing.T) {
	e := NewEngine(DefaultWeights())
	profiles := []domain.ClientProfile{
		{},
		{
			BudgetMax: 1, RoomsMin: domain.Ptr(5), AreaMin: 500, Districts: []string{"Nowhere"},
			MaxMetroWalkMinutes: 1, PreferredFloorMin: 40, AvoidFirstFloor: true,
			BalconyRequired: true, MinCeilingHeight: 5, MortgageRequired: true,
			ExcludedBuildingTypes: []domain.BuildingType{domain.BuildingMonolith},
			NeedSchool:            true, NeedKindergarten: true,
		},
		{
			BudgetMax: 20_000_000, RoomsMin: domain.Ptr(2), RoomsMax: domain.Ptr(2),
			AreaMin: 50, AreaMax: 60, Districts: []string{"primorsky"}, MaxMetroWalkMinutes: 15,
			PreferredBuildingTypes: []domain.BuildingType{domain.BuildingMonolith},
			PreferredRenovations:   []domain.Renovation{domain.RenovationWhiteBox},
			NeedSchool:             true, NeedPark: true, MortgageRequired: true,
		},
	}
	listings := storage.SampleListings("s", 30, func(i int, l *domain.Listing) {
		l.Price = float64(i) * 1_500_000
		l.Floor = i
		l.MetroWalkMinutes = i * 3
		l.TotalArea = float64(i * 10)
		if i%2 == 0 {
			l.BalconyType = domain.BalconyNone
		}
	})

	for _, p := range profiles {
		for _, l := range listings {
			s := e.Score(l, p)
			assert.GreaterOrEqual(t, s.Score, 0.0)
			assert.LessOrEqual(t, s.Score, 100.0)
			for _, c := range s.Components {
				assert.GreaterOrEqual(t, c.Value, 0.0)
				assert.LessOrEqual(t, c.Value, 1.0)
			}
		}
	}
}

func TestScore_PreferencesMoveScore(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.ClientProfile{
		BudgetMax:           12_000_000,
		Districts:           []string{"Primorsky"},
		MaxMetroWalkMinutes: 15,
		BalconyRequired:     true,
	}

	good := storage.SampleListing("good")
	bad := storage.SampleListing("bad", func(l *domain.Listing) {
		l.Price = 14_000_000
		l.District = "Kolpinsky"
		l.MetroWalkMinutes = 40
		l.BalconyType = domain.BalconyNone
	})

	gs := e.Score(good, p)
	bs := e.Score(bad, p)
	assert.Greater(t, gs.Score, 50.0)
	assert.Less(t, bs.Score, 50.0)
	require.NotEmpty(t, gs.Reasons)
	assert.Equal(t, 1.0, gs.Reasons[0].Impact)
}

func TestRank_OrderAndTieBreak(t *testing.T) {
	e := NewEngine(DefaultWeights())
	p := domain.ClientProfile{BudgetMax: 10_000_000}

	listings := []domain.Listing{
		storage.SampleListing("c"),
		storage.SampleListing("a"),
		storage.SampleListing("b", func(l *domain.Listing) { l.Price = 6_000_000 }),
		storage.SampleListing("d", func(l *domain.Listing) { l.Price = 11_000_000 }),
	}

	ranked := e.Rank(listings, p)
	require.Len(t, ranked, 4)
	ids := []string{ranked[0].Listing.ID, ranked[1].Listing.ID, ranked[2].Listing.ID, ranked[3].Listing.ID}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}
