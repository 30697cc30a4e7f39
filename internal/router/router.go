package router

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/matching"
	"github.com/denisok6893-rgb/dream-search/internal/search"
)

var ErrClusterNotFound = eris.New("cluster not found")

// Payload is a tagged union: exactly the field matching Scenario is set.
type Payload struct {
	Scenario Scenario `json:"scenario"`
	Total    int      `json:"total"`

	NoResults *NoResultsPayload `json:"no_results,omitempty"`
	Few       *FewPayload       `json:"few_results,omitempty"`
	Clustered *ClusteredPayload `json:"clustered_results,omitempty"`
	Optimal   *OptimalPayload   `json:"optimal_results,omitempty"`
	TooMany   *TooManyPayload   `json:"too_many_results,omitempty"`
}

type NoResultsPayload struct {
	Suggestions []Relaxation `json:"suggestions"`
}

type FewPayload struct {
	Listings []domain.ScoredListing `json:"listings"`
	// Suggestion is nil when no relaxation would add listings.
	Suggestion *Relaxation `json:"suggestion"`
}

type ClusteredPayload struct {
	ComplexID     string    `json:"complex_id"`
	Concentration float64   `json:"concentration"`
	Clusters      []Cluster `json:"clusters"`
}

type OptimalPayload struct {
	Listings []domain.ScoredListing `json:"listings"`
	Stats    Stats                  `json:"stats"`
}

type TooManyPayload struct {
	Questions []Question `json:"questions"`
	Stats     Stats      `json:"stats"`
}

type Router struct {
	search *search.Engine
	scorer *matching.Engine
	th     Thresholds
}

func New(s *search.Engine, scorer *matching.Engine, th Thresholds) *Router {
	return &Router{search: s, scorer: scorer, th: th}
}

func (r *Router) Thresholds() Thresholds { return r.th }

// Route aggregates the full candidate set, picks the scenario from those
// aggregates and builds its payload. Listings are loaded only for the
// scenarios that show them, and then in full. It returns either a
// complete payload or an error, never both.
func (r *Router) Route(ctx context.Context, c domain.SearchCriteria, p domain.ClientProfile) (Payload, error) {
	facets, err := r.search.Facets(ctx, c)
	if err != nil {
		return Payload{}, err
	}

	complexID, conc := Concentration(facets)
	scenario := Select(facets.Total, conc, r.th)

	zap.L().Debug("router: scenario selected",
		zap.String("scenario", string(scenario)),
		zap.Int("total", facets.Total),
		zap.Float64("concentration", conc),
	)

	out := Payload{Scenario: scenario, Total: facets.Total}

	switch scenario {
	case NoResults:
		sugg, err := r.suggestRelaxations(ctx, c)
		if err != nil {
			return Payload{}, err
		}
		out.NoResults = &NoResultsPayload{Suggestions: sugg}

	case FewResults:
		listings, err := r.search.All(ctx, c)
		if err != nil {
			return Payload{}, err
		}
		broaden, err := r.bestBroadening(ctx, c, facets.Total)
		if err != nil {
			return Payload{}, err
		}
		out.Few = &FewPayload{
			Listings:   r.scorer.Rank(listings, p),
			Suggestion: broaden,
		}

	case ClusteredResults:
		listings, err := r.search.All(ctx, c)
		if err != nil {
			return Payload{}, err
		}
		out.Clustered = &ClusteredPayload{
			ComplexID:     complexID,
			Concentration: conc,
			Clusters:      clusterRanked(r.scorer.Rank(listings, p), r.th.AreaBucketSqm),
		}

	case OptimalResults:
		listings, err := r.search.All(ctx, c)
		if err != nil {
			return Payload{}, err
		}
		ranked := r.scorer.Rank(listings, p)
		if len(ranked) > r.th.OptimalTop {
			ranked = ranked[:r.th.OptimalTop]
		}
		out.Optimal = &OptimalPayload{
			Listings: ranked,
			Stats:    computeStats(facets),
		}

	case TooManyResults:
		out.TooMany = &TooManyPayload{
			Questions: narrowingQuestions(facets, r.th.MaxQuestionOptions),
			Stats:     computeStats(facets),
		}
	}
	return out, nil
}

// ExpandCluster returns the ranked members of one cluster from a
// ClusteredResults payload.
func (r *Router) ExpandCluster(ctx context.Context, c domain.SearchCriteria, p domain.ClientProfile, signature string) ([]domain.ScoredListing, error) {
	listings, err := r.search.All(ctx, c)
	if err != nil {
		return nil, err
	}
	var members []domain.Listing
	for _, l := range listings {
		if Signature(l, r.th.AreaBucketSqm) == signature {
			members = append(members, l)
		}
	}
	if len(members) == 0 {
		return nil, eris.Wrapf(ErrClusterNotFound, "router: signature %q", signature)
	}
	return r.scorer.Rank(members, p), nil
}
