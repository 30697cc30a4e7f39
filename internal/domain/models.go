package domain

// CategoryApartment is the only category the engine ever searches.
const CategoryApartment = "apartment"

type Listing struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Title    string `json:"title"`

	Price         float64 `json:"price"`
	Rooms         int     `json:"rooms"` // 0 = studio
	TotalArea     float64 `json:"total_area"`
	LivingArea    float64 `json:"living_area"`
	KitchenArea   float64 `json:"kitchen_area"`
	Floor         int     `json:"floor"`
	FloorsTotal   int     `json:"floors_total"`
	CeilingHeight float64 `json:"ceiling_height"`

	BuildingType BuildingType `json:"building_type"`
	Renovation   Renovation   `json:"renovation"`
	BalconyType  BalconyType  `json:"balcony_type"`
	BathroomType BathroomType `json:"bathroom_type"`

	District         string  `json:"district"`
	MetroStation     string  `json:"metro_station"`
	MetroWalkMinutes int     `json:"metro_walk_minutes"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`

	MortgageAvailable bool            `json:"mortgage_available"`
	PaymentMethods    []PaymentMethod `json:"payment_methods"`
	AccreditedBanks   []string        `json:"accredited_banks"`
	HaggleAllowed     bool            `json:"haggle_allowed"`

	Handover    Quarter     `json:"handover"`
	Developer   string      `json:"developer"`
	ComplexID   string      `json:"complex_id"`
	ComplexName string      `json:"complex_name"`
	Advantages  []Advantage `json:"advantages"`

	Media       Media  `json:"media"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Media groups listing images by what they depict.
type Media struct {
	LayoutPlans    []string `json:"layout_plans,omitempty"`
	FloorPlans     []string `json:"floor_plans,omitempty"`
	ComplexSchemes []string `json:"complex_schemes,omitempty"`
	Photos         []string `json:"photos,omitempty"`
}

// PricePerSqm returns 0 when the area is unknown.
func (l Listing) PricePerSqm() float64 {
	if l.TotalArea <= 0 {
		return 0
	}
	return l.Price / l.TotalArea
}

func (l Listing) HasAdvantage(a Advantage) bool {
	for _, x := range l.Advantages {
		if x == a {
			return true
		}
	}
	return false
}

func (l Listing) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

type ClientProfile struct {
	Name string `json:"name"`

	BudgetMin float64 `json:"budget_min"`
	BudgetMax float64 `json:"budget_max"`
	RoomsMin  *int    `json:"rooms_min,omitempty"`
	RoomsMax  *int    `json:"rooms_max,omitempty"`
	AreaMin   float64 `json:"area_min"`
	AreaMax   float64 `json:"area_max"`

	Districts           []string `json:"districts"`
	MetroStations       []string `json:"metro_stations"`
	MaxMetroWalkMinutes int      `json:"max_metro_walk_minutes"`

	PreferredBuildingTypes []BuildingType `json:"preferred_building_types"`
	ExcludedBuildingTypes  []BuildingType `json:"excluded_building_types"`
	PreferredRenovations   []Renovation   `json:"preferred_renovations"`
	ExcludedRenovations    []Renovation   `json:"excluded_renovations"`

	BalconyRequired       bool          `json:"balcony_required"`
	PreferredBalconyTypes []BalconyType `json:"preferred_balcony_types"`
	BathroomPreference    BathroomType  `json:"bathroom_preference"`
	MinCeilingHeight      float64       `json:"min_ceiling_height"`

	PreferredFloorMin int  `json:"preferred_floor_min"`
	PreferredFloorMax int  `json:"preferred_floor_max"`
	AvoidFirstFloor   bool `json:"avoid_first_floor"`
	AvoidLastFloor    bool `json:"avoid_last_floor"`

	MortgageRequired        bool            `json:"mortgage_required"`
	PreferredPaymentMethods []PaymentMethod `json:"preferred_payment_methods"`

	HandoverFrom *Quarter `json:"handover_from,omitempty"`
	HandoverTo   *Quarter `json:"handover_to,omitempty"`

	PreferredDevelopers []string `json:"preferred_developers"`
	ExcludedDevelopers  []string `json:"excluded_developers"`

	NeedSchool       bool `json:"need_school"`
	NeedKindergarten bool `json:"need_kindergarten"`
	NeedPark         bool `json:"need_park"`

	Anchors []Anchor `json:"anchors,omitempty"`
}

// Anchor is a place the client travels to regularly (work, school, relatives).
type Anchor struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ScoredListing struct {
	Listing    Listing          `json:"listing"`
	Score      float64          `json:"score"`
	Components []ScoreComponent `json:"components"`
	Reasons    []ScoreReason    `json:"reasons"`
}

type ScoreComponent struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

type ScoreReason struct {
	Type    string  `json:"type"`
	Message string  `json:"message"`
	Impact  float64 `json:"impact"`
}
