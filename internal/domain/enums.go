package domain

type BuildingType string

const (
	BuildingMonolith      BuildingType = "monolith"
	BuildingMonolithBrick BuildingType = "monolith_brick"
	BuildingBrick         BuildingType = "brick"
	BuildingPanel         BuildingType = "panel"
	BuildingBlock         BuildingType = "block"
)

func (b BuildingType) Valid() bool {
	switch b {
	case BuildingMonolith, BuildingMonolithBrick, BuildingBrick, BuildingPanel, BuildingBlock:
		return true
	}
	return false
}

type Renovation string

const (
	RenovationNone     Renovation = "none"
	RenovationWhiteBox Renovation = "white_box"
	RenovationStandard Renovation = "standard"
	RenovationDesigner Renovation = "designer"
)

func (r Renovation) Valid() bool {
	switch r {
	case RenovationNone, RenovationWhiteBox, RenovationStandard, RenovationDesigner:
		return true
	}
	return false
}

type BalconyType string

const (
	BalconyNone    BalconyType = "none"
	BalconyBalcony BalconyType = "balcony"
	BalconyLoggia  BalconyType = "loggia"
	BalconyTerrace BalconyType = "terrace"
)

func (b BalconyType) Valid() bool {
	switch b {
	case BalconyNone, BalconyBalcony, BalconyLoggia, BalconyTerrace:
		return true
	}
	return false
}

// Present reports whether the listing has any outdoor space at all.
func (b BalconyType) Present() bool {
	return b != "" && b != BalconyNone
}

type BathroomType string

const (
	BathroomCombined BathroomType = "combined"
	BathroomSeparate BathroomType = "separate"
	BathroomMultiple BathroomType = "multiple"
)

func (b BathroomType) Valid() bool {
	switch b {
	case BathroomCombined, BathroomSeparate, BathroomMultiple:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash             PaymentMethod = "cash"
	PaymentMortgage         PaymentMethod = "mortgage"
	PaymentInstallment      PaymentMethod = "installment"
	PaymentMaternityCapital PaymentMethod = "maternity_capital"
	PaymentTradeIn          PaymentMethod = "trade_in"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentMortgage, PaymentInstallment, PaymentMaternityCapital, PaymentTradeIn:
		return true
	}
	return false
}

// Advantage is an amenity of the residential complex.
type Advantage string

const (
	AdvantageSchool       Advantage = "school"
	AdvantageKindergarten Advantage = "kindergarten"
	AdvantagePark         Advantage = "park"
	AdvantagePlayground   Advantage = "playground"
	AdvantageParking      Advantage = "parking"
	AdvantageFitness      Advantage = "fitness"
	AdvantageSecurity     Advantage = "security"
	AdvantageShopping     Advantage = "shopping"
	AdvantageEmbankment   Advantage = "embankment"
)

func (a Advantage) Valid() bool {
	switch a {
	case AdvantageSchool, AdvantageKindergarten, AdvantagePark, AdvantagePlayground,
		AdvantageParking, AdvantageFitness, AdvantageSecurity, AdvantageShopping, AdvantageEmbankment:
		return true
	}
	return false
}
