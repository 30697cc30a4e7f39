package storage

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

// LoadListingsFromFile reads listings from a JSON file and validates every
// record's typed fields. One bad record rejects the whole file.
func LoadListingsFromFile(path string) ([]domain.Listing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "storage: read listings file")
	}

	var listings []domain.Listing
	if err := json.Unmarshal(b, &listings); err != nil {
		return nil, eris.Wrap(err, "storage: unmarshal listings")
	}
	for _, l := range listings {
		if err := domain.ValidateListing(l); err != nil {
			return nil, err
		}
	}
	return listings, nil
}
