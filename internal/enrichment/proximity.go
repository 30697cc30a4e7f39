package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/resilience"
)

const (
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"
	ProximityTTL       = 7 * 24 * time.Hour
)

// POICategory is a kind of place searched within a fixed radius. Selector
// is an Overpass tag filter such as ["amenity"="school"].
type POICategory struct {
	Name      string
	RadiusM   float64
	Selectors []string
}

var DefaultPOICategories = []POICategory{
	{Name: "school", RadiusM: 1000, Selectors: []string{`["amenity"="school"]`}},
	{Name: "kindergarten", RadiusM: 700, Selectors: []string{`["amenity"="kindergarten"]`}},
	{Name: "park", RadiusM: 1000, Selectors: []string{`["leisure"="park"]`, `["leisure"="garden"]`}},
	{Name: "shop", RadiusM: 500, Selectors: []string{`["shop"="supermarket"]`, `["shop"="convenience"]`, `["shop"="mall"]`}},
}

type Proximity struct {
	Categories []POISummary `json:"categories"`
}

type POISummary struct {
	Category    string  `json:"category"`
	RadiusM     float64 `json:"radius_m"`
	Count       int     `json:"count"`
	NearestM    float64 `json:"nearest_m,omitempty"`
	NearestName string  `json:"nearest_name,omitempty"`
}

func (p Proximity) Summary(category string) (POISummary, bool) {
	for _, c := range p.Categories {
		if c.Category == category {
			return c, true
		}
	}
	return POISummary{}, false
}

// ProximitySource queries OpenStreetMap through the Overpass API. It needs
// no credential, so it is always available.
type ProximitySource struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	categories []POICategory
}

type ProximityOption func(*ProximitySource)

func WithProximityHTTPClient(c *http.Client) ProximityOption {
	return func(s *ProximitySource) { s.client = c }
}

// WithProximityRateLimit caps Overpass calls; the public instance asks
// for a handful of requests per second at most.
func WithProximityRateLimit(rps float64, burst int) ProximityOption {
	return func(s *ProximitySource) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithProximityRetry(cfg resilience.RetryConfig) ProximityOption {
	return func(s *ProximitySource) { s.retry = cfg }
}

func NewProximitySource(baseURL string, opts ...ProximityOption) *ProximitySource {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	s := &ProximitySource{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(2, 1),
		retry:      resilience.DefaultRetryConfig(),
		categories: DefaultPOICategories,
	}
	for _, o := range opts {
		o(s)
	}
	s.retry.OnRetry = resilience.RetryLogger(SourceProximity)
	return s
}

func (s *ProximitySource) Name() string       { return SourceProximity }
func (s *ProximitySource) Available() bool    { return true }
func (s *ProximitySource) TTL() time.Duration { return ProximityTTL }

// Key rounds coordinates to ~10 m so neighbouring listings in one building
// share a result.
func (s *ProximitySource) Key(l domain.Listing, _ domain.ClientProfile) string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

func (s *ProximitySource) Fetch(ctx context.Context, l domain.Listing, _ domain.ClientProfile) (Proximity, error) {
	if !l.HasCoordinates() {
		return Proximity{}, eris.Wrap(ErrNoData, "proximity: listing has no coordinates")
	}

	elements, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]overpassElement, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return s.query(ctx, s.buildQuery(l.Latitude, l.Longitude))
	})
	if err != nil {
		return Proximity{}, err
	}
	return s.summarise(l.Latitude, l.Longitude, elements), nil
}

func (s *ProximitySource) buildQuery(lat, lon float64) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];(")
	for _, c := range s.categories {
		for _, sel := range c.Selectors {
			for _, kind := range []string{"node", "way"} {
				fmt.Fprintf(&b, "%s%s(around:%.0f,%.6f,%.6f);", kind, sel, c.RadiusM, lat, lon)
			}
		}
	}
	b.WriteString(");out center tags;")
	return b.String()
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (e overpassElement) position() (float64, float64) {
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon
	}
	return e.Lat, e.Lon
}

func (s *ProximitySource) query(ctx context.Context, q string) ([]overpassElement, error) {
	form := url.Values{"data": {q}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "proximity: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "proximity: overpass request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("proximity: overpass status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "proximity: decode overpass response")
	}
	return out.Elements, nil
}

func (s *ProximitySource) summarise(lat, lon float64, elements []overpassElement) Proximity {
	byCat := make(map[string]*POISummary, len(s.categories))
	out := Proximity{Categories: make([]POISummary, len(s.categories))}
	for i, c := range s.categories {
		out.Categories[i] = POISummary{Category: c.Name, RadiusM: c.RadiusM}
		byCat[c.Name] = &out.Categories[i]
	}

	seen := make(map[string]bool)
	for _, e := range elements {
		plat, plon := e.position()
		d := haversineM(lat, lon, plat, plon)
		for _, c := range s.categories {
			if d > c.RadiusM || !matchesAny(e.Tags, c.Selectors) {
				continue
			}
			id := fmt.Sprintf("%s/%s/%d", c.Name, e.Type, e.ID)
			if seen[id] {
				continue
			}
			seen[id] = true

			sum := byCat[c.Name]
			sum.Count++
			if sum.Count == 1 || d < sum.NearestM {
				sum.NearestM = math.Round(d)
				sum.NearestName = e.Tags["name"]
			}
		}
	}
	sort.SliceStable(out.Categories, func(i, j int) bool { return out.Categories[i].Category < out.Categories[j].Category })
	return out
}

// matchesAny checks an element's tags against selectors of the form
// ["key"="value"].
func matchesAny(tags map[string]string, selectors []string) bool {
	for _, sel := range selectors {
		kv := strings.SplitN(strings.Trim(sel, "[]"), "=", 2)
		if len(kv) != 2 {
			continue
		}
		k, v := strings.Trim(kv[0], `"`), strings.Trim(kv[1], `"`)
		if tags[k] == v {
			return true
		}
	}
	return false
}

const earthRadiusM = 6_371_000

func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}
