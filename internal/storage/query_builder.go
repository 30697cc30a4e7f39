package storage

import (
	"strings"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

type queryBuilder struct {
	conditions []string
	args       []any
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{
		conditions: []string{"category = ?", "active = 1"},
		args:       []any{domain.CategoryApartment},
	}
}

func (qb *queryBuilder) add(condition string, args ...any) {
	qb.conditions = append(qb.conditions, condition)
	qb.args = append(qb.args, args...)
}

func (qb *queryBuilder) addFloatRange(column string, min, max *float64) {
	if min != nil {
		qb.add(column+" >= ?", *min)
	}
	if max != nil {
		qb.add(column+" <= ?", *max)
	}
}

func (qb *queryBuilder) addIntRange(column string, min, max *int) {
	if min != nil {
		qb.add(column+" >= ?", *min)
	}
	if max != nil {
		qb.add(column+" <= ?", *max)
	}
}

// addIn adds "column IN (...)". An empty value list after normalization
// can match nothing, so it becomes a false condition.
func addIn[T any](qb *queryBuilder, column string, values []T) {
	if len(values) == 0 {
		qb.add("0 = 1")
		return
	}
	qb.add(column+" IN ("+placeholders(len(values))+")", toArgs(values)...)
}

func addNotIn[T any](qb *queryBuilder, column string, values []T) {
	if len(values) == 0 {
		return
	}
	qb.add(column+" NOT IN ("+placeholders(len(values))+")", toArgs(values)...)
}

// addJSONAny matches rows whose JSON array column shares at least one
// element with values.
func addJSONAny[T any](qb *queryBuilder, column string, values []T) {
	if len(values) == 0 {
		qb.add("0 = 1")
		return
	}
	qb.add("EXISTS (SELECT 1 FROM json_each("+column+") WHERE json_each.value IN ("+placeholders(len(values))+"))",
		toArgs(values)...)
}

func (qb *queryBuilder) build() (string, []any) {
	return "WHERE " + strings.Join(qb.conditions, " AND "), qb.args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// applyCriteria compiles criteria into a WHERE clause equivalent to
// search.Matches.
func applyCriteria(c domain.SearchCriteria) (string, []any) {
	qb := newQueryBuilder()

	qb.addFloatRange("price", c.PriceMin, c.PriceMax)
	qb.addIntRange("rooms", c.RoomsMin, c.RoomsMax)
	if len(c.Rooms) > 0 {
		addIn(qb, "rooms", c.Rooms)
	}
	qb.addFloatRange("total_area", c.TotalAreaMin, c.TotalAreaMax)
	qb.addFloatRange("living_area", c.LivingAreaMin, c.LivingAreaMax)
	qb.addFloatRange("kitchen_area", c.KitchenAreaMin, c.KitchenAreaMax)

	qb.addIntRange("floor", c.FloorMin, c.FloorMax)
	if c.NotFirstFloor {
		qb.add("floor > 1")
	}
	if c.NotLastFloor {
		qb.add("NOT (floors_total > 0 AND floor >= floors_total)")
	}
	qb.addIntRange("floors_total", c.FloorsTotalMin, c.FloorsTotalMax)
	if c.CeilingMin != nil {
		qb.add("ceiling_height >= ?", *c.CeilingMin)
	}

	if len(c.Districts) > 0 {
		addIn(qb, "district_norm", domain.NormalizeAll(c.Districts))
	}
	if len(c.MetroStations) > 0 {
		addIn(qb, "metro_norm", domain.NormalizeAll(c.MetroStations))
	}
	if c.MetroWalkMaxMinutes != nil {
		qb.add("metro_walk_minutes > 0 AND metro_walk_minutes <= ?", *c.MetroWalkMaxMinutes)
	}

	if len(c.BuildingTypes) > 0 {
		addIn(qb, "building_type", c.BuildingTypes)
	}
	addNotIn(qb, "building_type", c.ExcludedBuildingTypes)
	if len(c.Renovations) > 0 {
		addIn(qb, "renovation", c.Renovations)
	}
	addNotIn(qb, "renovation", c.ExcludedRenovations)

	if c.BalconyRequired {
		qb.add("balcony_type NOT IN ('', ?)", domain.BalconyNone)
	}
	if len(c.BalconyTypes) > 0 {
		addIn(qb, "balcony_type", c.BalconyTypes)
	}
	if len(c.BathroomTypes) > 0 {
		addIn(qb, "bathroom_type", c.BathroomTypes)
	}

	if c.MortgageRequired {
		qb.add("mortgage_available = 1")
	}
	if len(c.PaymentMethods) > 0 {
		addJSONAny(qb, "payment_methods_json", c.PaymentMethods)
	}
	if len(c.Banks) > 0 {
		addJSONAny(qb, "banks_norm_json", domain.NormalizeAll(c.Banks))
	}
	if c.HaggleAllowed {
		qb.add("haggle_allowed = 1")
	}

	if c.HandoverFrom != nil {
		qb.add("handover_idx >= ?", c.HandoverFrom.Index())
	}
	if c.HandoverTo != nil {
		qb.add("handover_idx <= ?", c.HandoverTo.Index())
	}

	if len(c.Developers) > 0 {
		addIn(qb, "developer_norm", domain.NormalizeAll(c.Developers))
	}
	addNotIn(qb, "developer_norm", domain.NormalizeAll(c.ExcludedDevelopers))

	for _, req := range []struct {
		on bool
		a  domain.Advantage
	}{
		{c.RequireSchool, domain.AdvantageSchool},
		{c.RequireKindergarten, domain.AdvantageKindergarten},
		{c.RequirePark, domain.AdvantagePark},
	} {
		if req.on {
			addJSONAny(qb, "advantages_json", []domain.Advantage{req.a})
		}
	}

	return qb.build()
}
