package enrichment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/resilience"
)

const (
	DefaultORSURL = "https://api.openrouteservice.org"
	RouteTTL      = 30 * 24 * time.Hour
)

var DefaultRouteModes = []string{"driving-car", "foot-walking"}

type Routes struct {
	Legs []RouteLeg `json:"legs"`
}

type RouteLeg struct {
	Anchor      string  `json:"anchor"`
	Mode        string  `json:"mode"`
	DurationMin float64 `json:"duration_min"`
	DistanceKm  float64 `json:"distance_km"`
}

// RouteSource asks the OpenRouteService matrix API for travel times from
// the listing to the client's anchors. Without an API key it is never
// attempted.
type RouteSource struct {
	apiKey  string
	baseURL string
	modes   []string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

type RouteOption func(*RouteSource)

func WithRouteHTTPClient(c *http.Client) RouteOption {
	return func(s *RouteSource) { s.client = c }
}

func WithRouteModes(modes ...string) RouteOption {
	return func(s *RouteSource) {
		if len(modes) > 0 {
			s.modes = modes
		}
	}
}

func WithRouteRateLimit(rps float64, burst int) RouteOption {
	return func(s *RouteSource) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithRouteRetry(cfg resilience.RetryConfig) RouteOption {
	return func(s *RouteSource) { s.retry = cfg }
}

func NewRouteSource(apiKey, baseURL string, opts ...RouteOption) *RouteSource {
	if baseURL == "" {
		baseURL = DefaultORSURL
	}
	s := &RouteSource{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		modes:   DefaultRouteModes,
		client:  &http.Client{Timeout: 20 * time.Second},
		// Free ORS plans allow 40 matrix requests per minute.
		limiter: rate.NewLimiter(rate.Every(1500*time.Millisecond), 2),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(s)
	}
	s.retry.OnRetry = resilience.RetryLogger(SourceRoute)
	return s
}

func (s *RouteSource) Name() string       { return SourceRoute }
func (s *RouteSource) Available() bool    { return s.apiKey != "" }
func (s *RouteSource) TTL() time.Duration { return RouteTTL }

func (s *RouteSource) Key(l domain.Listing, p domain.ClientProfile) string {
	h := sha256.New()
	for _, a := range p.Anchors {
		fmt.Fprintf(h, "%s|%.5f|%.5f;", a.Name, a.Latitude, a.Longitude)
	}
	fmt.Fprint(h, strings.Join(s.modes, ","))
	return fmt.Sprintf("%.5f,%.5f:%s", l.Latitude, l.Longitude, hex.EncodeToString(h.Sum(nil))[:16])
}

func (s *RouteSource) Fetch(ctx context.Context, l domain.Listing, p domain.ClientProfile) (Routes, error) {
	if !s.Available() {
		return Routes{}, ErrSourceUnavailable
	}
	if !l.HasCoordinates() {
		return Routes{}, eris.Wrap(ErrNoData, "route: listing has no coordinates")
	}
	if len(p.Anchors) == 0 {
		return Routes{}, eris.Wrap(ErrNoData, "route: profile has no anchors")
	}

	var out Routes
	for _, mode := range s.modes {
		m, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (orsMatrix, error) {
			if err := s.limiter.Wait(ctx); err != nil {
				return orsMatrix{}, err
			}
			return s.matrix(ctx, mode, l, p.Anchors)
		})
		if err != nil {
			return Routes{}, err
		}
		for i, a := range p.Anchors {
			dur, dist := m.at(i)
			if dur == nil {
				// Unreachable in this mode.
				continue
			}
			leg := RouteLeg{Anchor: a.Name, Mode: mode, DurationMin: math.Round(*dur/6) / 10}
			if dist != nil {
				leg.DistanceKm = math.Round(*dist/100) / 10
			}
			out.Legs = append(out.Legs, leg)
		}
	}
	if len(out.Legs) == 0 {
		return Routes{}, eris.Wrap(ErrNoData, "route: no anchor is reachable")
	}
	return out, nil
}

type orsRequest struct {
	Locations    [][2]float64 `json:"locations"`
	Sources      []int        `json:"sources"`
	Destinations []int        `json:"destinations"`
	Metrics      []string     `json:"metrics"`
	Units        string       `json:"units"`
}

// orsMatrix rows are sources, columns destinations. Unroutable pairs are
// null.
type orsMatrix struct {
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

func (m orsMatrix) at(dest int) (*float64, *float64) {
	var dur, dist *float64
	if len(m.Durations) > 0 && dest < len(m.Durations[0]) {
		dur = m.Durations[0][dest]
	}
	if len(m.Distances) > 0 && dest < len(m.Distances[0]) {
		dist = m.Distances[0][dest]
	}
	return dur, dist
}

func (s *RouteSource) matrix(ctx context.Context, mode string, l domain.Listing, anchors []domain.Anchor) (orsMatrix, error) {
	body := orsRequest{
		Locations: [][2]float64{{l.Longitude, l.Latitude}},
		Sources:   []int{0},
		Metrics:   []string{"duration", "distance"},
		Units:     "m",
	}
	for i, a := range anchors {
		body.Locations = append(body.Locations, [2]float64{a.Longitude, a.Latitude})
		body.Destinations = append(body.Destinations, i+1)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return orsMatrix{}, eris.Wrap(err, "route: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/matrix/"+mode, bytes.NewReader(b))
	if err != nil {
		return orsMatrix{}, eris.Wrap(err, "route: build request")
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return orsMatrix{}, eris.Wrap(err, "route: matrix request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("route: matrix status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return orsMatrix{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return orsMatrix{}, err
	}

	var m orsMatrix
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return orsMatrix{}, eris.Wrap(err, "route: decode matrix")
	}
	return m, nil
}
