package matching

import (
	"encoding/json"
	"math"
	"os"

	"github.com/rotisserie/eris"
)

// Weights is the single Dream Score weight table. Each field multiplies a
// subscore in 0..1; the fields must sum to 1.
type Weights struct {
	Price          float64 `json:"price" mapstructure:"price"`
	Location       float64 `json:"location" mapstructure:"location"`
	Transport      float64 `json:"transport" mapstructure:"transport"`
	Space          float64 `json:"space" mapstructure:"space"`
	Floor          float64 `json:"floor" mapstructure:"floor"`
	Layout         float64 `json:"layout" mapstructure:"layout"`
	Building       float64 `json:"building" mapstructure:"building"`
	Financial      float64 `json:"financial" mapstructure:"financial"`
	Infrastructure float64 `json:"infrastructure" mapstructure:"infrastructure"`
}

// DefaultWeights is the canonical product weighting.
func DefaultWeights() Weights {
	return Weights{
		Price:          0.20,
		Location:       0.15,
		Transport:      0.12,
		Space:          0.12,
		Floor:          0.06,
		Layout:         0.10,
		Building:       0.10,
		Financial:      0.08,
		Infrastructure: 0.07,
	}
}

const weightSumTolerance = 1e-6

func (w Weights) Sum() float64 {
	return w.Price + w.Location + w.Transport + w.Space + w.Floor +
		w.Layout + w.Building + w.Financial + w.Infrastructure
}

// Validate rejects negative weights and tables that do not sum to 1.
func (w Weights) Validate() error {
	for name, v := range w.named() {
		if v < 0 {
			return eris.Errorf("matching: weight %s is negative (%.4f)", name, v)
		}
	}
	if s := w.Sum(); math.Abs(s-1) > weightSumTolerance {
		return eris.Errorf("matching: weights sum to %.6f, want 1.0", s)
	}
	return nil
}

func (w Weights) named() map[string]float64 {
	return map[string]float64{
		ComponentPrice:          w.Price,
		ComponentLocation:       w.Location,
		ComponentTransport:      w.Transport,
		ComponentSpace:          w.Space,
		ComponentFloor:          w.Floor,
		ComponentLayout:         w.Layout,
		ComponentBuilding:       w.Building,
		ComponentFinancial:      w.Financial,
		ComponentInfrastructure: w.Infrastructure,
	}
}

// LoadWeightsFromFile loads weights from a JSON file. Fields missing from
// the file keep their defaults; the merged table must still validate.
func LoadWeightsFromFile(path string) (Weights, error) {
	w := DefaultWeights()
	b, err := os.ReadFile(path)
	if err != nil {
		return w, eris.Wrap(err, "matching: read weights file")
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return w, eris.Wrap(err, "matching: unmarshal weights")
	}
	if err := w.Validate(); err != nil {
		return DefaultWeights(), err
	}
	return w, nil
}
