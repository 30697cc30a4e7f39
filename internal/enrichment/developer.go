package enrichment

import (
	"context"
	_ "embed"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

//go:embed data/developers.yaml
var defaultDevelopersYAML []byte

type DeveloperRecord struct {
	Name              string   `yaml:"name" json:"name"`
	Aliases           []string `yaml:"aliases" json:"-"`
	OnTimeDeliveryPct float64  `yaml:"on_time_delivery_pct" json:"on_time_delivery_pct"`
	BuildQuality      float64  `yaml:"build_quality" json:"build_quality"`
	PortfolioSize     int      `yaml:"portfolio_size" json:"portfolio_size"`
	// Standing is the legal and financial standing: stable, watch or
	// distressed.
	Standing string `yaml:"standing" json:"standing"`
	Notes    string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

type developerDataset struct {
	Developers []DeveloperRecord `yaml:"developers"`
}

// LoadDevelopers reads a dataset file. An empty path loads the embedded
// default.
func LoadDevelopers(path string) ([]DeveloperRecord, error) {
	raw := defaultDevelopersYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "developer: read dataset")
		}
		raw = b
	}
	var ds developerDataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return nil, eris.Wrap(err, "developer: parse dataset")
	}
	for _, d := range ds.Developers {
		if d.Name == "" {
			return nil, eris.New("developer: record without a name")
		}
	}
	return ds.Developers, nil
}

// DeveloperSource looks developers up in a static curated dataset.
type DeveloperSource struct {
	byName map[string]DeveloperRecord
}

func NewDeveloperSource(records []DeveloperRecord) *DeveloperSource {
	byName := make(map[string]DeveloperRecord, len(records)*2)
	for _, r := range records {
		byName[domain.Normalize(r.Name)] = r
		for _, a := range r.Aliases {
			byName[domain.Normalize(a)] = r
		}
	}
	return &DeveloperSource{byName: byName}
}

func (s *DeveloperSource) Name() string    { return SourceDeveloper }
func (s *DeveloperSource) Available() bool { return true }

// TTL is forever: the dataset only changes with a redeploy.
func (s *DeveloperSource) TTL() time.Duration { return cache.Forever }

func (s *DeveloperSource) Key(l domain.Listing, _ domain.ClientProfile) string {
	return domain.Normalize(l.Developer)
}

func (s *DeveloperSource) Fetch(_ context.Context, l domain.Listing, _ domain.ClientProfile) (DeveloperRecord, error) {
	key := domain.Normalize(l.Developer)
	if key == "" {
		return DeveloperRecord{}, eris.Wrap(ErrNoData, "developer: listing has no developer")
	}
	r, ok := s.byName[key]
	if !ok {
		return DeveloperRecord{}, eris.Wrapf(ErrNoData, "developer: %q is not in the dataset", l.Developer)
	}
	return r, nil
}
