// Package enrichment gathers listing context from independent, sometimes
// unavailable sources and reports how complete the picture is.
package enrichment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
)

const (
	SourceProximity = "proximity"
	SourceRoute     = "route"
	SourceVisual    = "visual"
	SourcePrice     = "price"
	SourceDeveloper = "developer"
)

// AllSources is the canonical source order.
var AllSources = []string{SourceProximity, SourceRoute, SourceVisual, SourcePrice, SourceDeveloper}

var (
	// ErrSourceUnavailable means the source lacks its credential or
	// dependency and was not attempted.
	ErrSourceUnavailable = eris.New("source unavailable")
	ErrSourceTimeout     = eris.New("source timed out")
	// ErrNoData means the source worked but has nothing for this listing.
	ErrNoData = eris.New("no data")
)

// Source is one enrichment provider producing T.
type Source[T any] interface {
	Name() string
	// Available reports whether the source is configured at all.
	Available() bool
	TTL() time.Duration
	// Key identifies the inputs the result depends on.
	Key(l domain.Listing, p domain.ClientProfile) string
	Fetch(ctx context.Context, l domain.Listing, p domain.ClientProfile) (T, error)
}

type Status string

const (
	StatusOK       Status = "ok"
	StatusMissing  Status = "missing"
	StatusDisabled Status = "disabled"
)

type CacheInfo struct {
	Hit        bool    `json:"hit"`
	Shared     bool    `json:"shared,omitempty"`
	AgeSeconds float64 `json:"age_seconds"`
}

// Outcome is either data or an explicit reason why there is none.
type Outcome[T any] struct {
	Status     Status     `json:"status"`
	Data       *T         `json:"data,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Cache      *CacheInfo `json:"cache,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

func (o Outcome[T]) OK() bool { return o.Status == StatusOK }

func disabled[T any]() Outcome[T] {
	return Outcome[T]{Status: StatusDisabled}
}

func missing[T any](reason string) Outcome[T] {
	return Outcome[T]{Status: StatusMissing, Reason: reason}
}

// Result is the enrichment of one listing.
type Result struct {
	ListingID string `json:"listing_id"`

	Proximity Outcome[Proximity]       `json:"proximity"`
	Route     Outcome[Routes]          `json:"route"`
	Visual    Outcome[VisualSignals]   `json:"visual"`
	Price     Outcome[PriceContext]    `json:"price"`
	Developer Outcome[DeveloperRecord] `json:"developer"`

	Enabled []string `json:"enabled"`
	// Completeness is the percentage of enabled sources that returned data.
	Completeness float64 `json:"completeness"`
}

func (r Result) statuses() map[string]Status {
	return map[string]Status{
		SourceProximity: r.Proximity.Status,
		SourceRoute:     r.Route.Status,
		SourceVisual:    r.Visual.Status,
		SourcePrice:     r.Price.Status,
		SourceDeveloper: r.Developer.Status,
	}
}

// ParseSources validates requested source names. Empty means all.
func ParseSources(names []string) ([]string, error) {
	if len(names) == 0 {
		return append([]string(nil), AllSources...), nil
	}
	want := make(map[string]bool, len(names))
	var bad []string
	for _, n := range names {
		n = domain.Normalize(n)
		if !isSource(n) {
			bad = append(bad, "unknown enrichment source "+n)
			continue
		}
		want[n] = true
	}
	if len(bad) > 0 {
		return nil, &domain.ValidationError{Problems: bad}
	}
	out := make([]string, 0, len(want))
	for _, s := range AllSources {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func isSource(name string) bool {
	for _, s := range AllSources {
		if s == name {
			return true
		}
	}
	return false
}
