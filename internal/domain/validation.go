package domain

// ValidateListing checks the typed collections of a catalog record. The
// ingestion boundary calls it so that filters can rely on known enum values.
func ValidateListing(l Listing) error {
	ve := &ValidationError{}
	if l.ID == "" {
		ve.add("listing id is required")
	}
	if l.Price < 0 {
		ve.add("listing %s: price must be >= 0", l.ID)
	}
	if l.Rooms < 0 {
		ve.add("listing %s: rooms must be >= 0", l.ID)
	}
	if l.BuildingType != "" && !l.BuildingType.Valid() {
		ve.add("listing %s: unknown building type %q", l.ID, l.BuildingType)
	}
	if l.Renovation != "" && !l.Renovation.Valid() {
		ve.add("listing %s: unknown renovation %q", l.ID, l.Renovation)
	}
	if l.BalconyType != "" && !l.BalconyType.Valid() {
		ve.add("listing %s: unknown balcony type %q", l.ID, l.BalconyType)
	}
	if l.BathroomType != "" && !l.BathroomType.Valid() {
		ve.add("listing %s: unknown bathroom type %q", l.ID, l.BathroomType)
	}
	for _, p := range l.PaymentMethods {
		if !p.Valid() {
			ve.add("listing %s: unknown payment method %q", l.ID, p)
		}
	}
	for _, a := range l.Advantages {
		if !a.Valid() {
			ve.add("listing %s: unknown advantage %q", l.ID, a)
		}
	}
	if !l.Handover.Valid() {
		ve.add("listing %s: bad handover quarter", l.ID)
	}
	return ve.orNil()
}
