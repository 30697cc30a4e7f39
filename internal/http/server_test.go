package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/enrichment"
	"github.com/denisok6893-rgb/dream-search/internal/matching"
	"github.com/denisok6893-rgb/dream-search/internal/router"
	"github.com/denisok6893-rgb/dream-search/internal/search"
	"github.com/denisok6893-rgb/dream-search/internal/storage"
)

type failingCatalog struct{}

func (failingCatalog) Find(context.Context, domain.SearchCriteria, int) ([]domain.Listing, error) {
	return nil, eris.New("disk on fire")
}

func (failingCatalog) Count(context.Context, domain.SearchCriteria) (int, error) {
	return 0, eris.New("disk on fire")
}

func (failingCatalog) Facets(context.Context, domain.SearchCriteria) (search.Facets, error) {
	return search.Facets{}, eris.New("disk on fire")
}

// newTestServer serves 30 Primorsky two-room listings. Only the local
// enrichment sources (price, developer) are configured.
func newTestServer(t *testing.T, searchCatalog search.Catalog) *httptest.Server {
	t.Helper()

	listings := storage.SampleListings("l", 30, func(i int, l *domain.Listing) {
		l.Price = 8_000_000 + float64(i)*100_000
	})
	catalog := storage.NewMemoryCatalog(listings)
	if searchCatalog == nil {
		searchCatalog = catalog
	}

	engine := search.NewEngine(searchCatalog, search.Config{})
	rt := router.New(engine, matching.NewEngine(matching.DefaultWeights()), router.DefaultThresholds())

	devs, err := enrichment.LoadDevelopers("")
	require.NoError(t, err)
	c := cache.New(cache.NewMemoryStore(1000), cache.Options{})
	orch := enrichment.NewOrchestrator(c, enrichment.Sources{
		Route:     enrichment.NewRouteSource("", ""),
		Visual:    enrichment.NewVisualSource(nil, 0),
		Price:     enrichment.NewPriceSource(search.NewEngine(catalog, search.Config{}), 0, 0),
		Developer: enrichment.NewDeveloperSource(devs),
	}, enrichment.Options{SourceTimeout: time.Second})

	srv := NewServer(Deps{Listings: catalog, Search: rt, Enricher: orch, CacheStats: c.Stats})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[healthResponse](t, resp)
	assert.Equal(t, "ok", got.Status)
	assert.False(t, got.Sources[enrichment.SourceRoute])
	assert.True(t, got.Sources[enrichment.SourceDeveloper])
	require.NotNil(t, got.Cache)
}

func TestListings_Paging(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts.URL+"/listings?limit=10&offset=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[ListingsPage](t, resp)
	assert.Equal(t, 30, got.Total)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, 5, got.Offset)
	require.Len(t, got.Items, 10)
	assert.Equal(t, "l-005", got.Items[0].ID)
	assert.Equal(t, "Primorsky", got.Items[0].District)
}

func TestListings_LimitCappedAndOffsetPastEnd(t *testing.T) {
	ts := newTestServer(t, nil)

	got := decode[ListingsPage](t, get(t, ts.URL+"/listings?limit=5000"))
	assert.Equal(t, 200, got.Limit)
	assert.Len(t, got.Items, 30)

	got = decode[ListingsPage](t, get(t, ts.URL+"/listings?offset=99"))
	assert.Empty(t, got.Items)
	assert.Equal(t, 30, got.Total)
}

func TestListingGet(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts.URL+"/listings/l-007")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.Listing](t, resp)
	assert.Equal(t, "l-007", got.ID)
	assert.Equal(t, 8_700_000.0, got.Price)

	resp = get(t, ts.URL+"/listings/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[errorBody](t, resp).Error)
}

func TestSearch_Optimal(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/search", SearchRequest{
		Criteria: domain.SearchCriteria{Districts: []string{"primorsky"}},
		Profile:  domain.ClientProfile{BudgetMax: 9_000_000},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[router.Payload](t, resp)
	assert.Equal(t, router.OptimalResults, got.Scenario)
	assert.Equal(t, 30, got.Total)
	require.NotNil(t, got.Optimal)
	assert.NotEmpty(t, got.Optimal.Listings)
	assert.Equal(t, 30, got.Optimal.Stats.Count)
}

func TestSearch_NoResults(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/search", SearchRequest{
		Criteria: domain.SearchCriteria{PriceMax: domain.Ptr(7_000_000.0)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[router.Payload](t, resp)
	assert.Equal(t, router.NoResults, got.Scenario)
	require.NotNil(t, got.NoResults)
	require.NotEmpty(t, got.NoResults.Suggestions)
	assert.Equal(t, router.RelaxBudget, got.NoResults.Suggestions[0].Kind)
}

func TestSearch_ValidationError(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/search", SearchRequest{
		Criteria: domain.SearchCriteria{PriceMin: domain.Ptr(10.0), PriceMax: domain.Ptr(5.0)},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decode[errorBody](t, resp)
	assert.Equal(t, "validation_failed", got.Error)
	assert.NotEmpty(t, got.Details)
}

func TestSearch_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/search", `{"criteria": [`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_json", decode[errorBody](t, resp).Error)
}

func TestSearch_UnknownFieldRejected(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, url := range []string{ts.URL + "/search", ts.URL + "/search/clusters/r2-a50-loggia-separate"} {
		resp := postJSON(t, url, `{"criteria": {"price_mx": 5000000}}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, url)
		got := decode[errorBody](t, resp)
		assert.Equal(t, "invalid_json", got.Error)
		require.NotEmpty(t, got.Details)
		assert.Contains(t, got.Details[0], "price_mx")
	}
}

func TestSearch_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, nil)

	body := `{"criteria": {"districts": ["` + strings.Repeat("a", 2<<20) + `"]}}`
	rec := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body)))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var got errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "body_too_large", got.Error)
}

func TestSearch_CatalogUnavailable(t *testing.T) {
	ts := newTestServer(t, failingCatalog{})

	resp := postJSON(t, ts.URL+"/search", SearchRequest{})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
	assert.Equal(t, "catalog_unavailable", decode[errorBody](t, resp).Error)
}

func TestExpandCluster(t *testing.T) {
	ts := newTestServer(t, nil)

	sig := router.Signature(storage.SampleListing("x"), router.DefaultThresholds().AreaBucketSqm)
	resp := postJSON(t, ts.URL+"/search/clusters/"+sig, SearchRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[ClusterResponse](t, resp)
	assert.Equal(t, sig, got.Signature)
	assert.Len(t, got.Listings, 30)

	resp = postJSON(t, ts.URL+"/search/clusters/r9-a0-none-none", SearchRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "cluster_not_found", decode[errorBody](t, resp).Error)
}

func TestEnrich_PartialSources(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/listings/l-003/enrich", EnrichRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[enrichment.Result](t, resp)
	assert.Equal(t, "l-003", got.ListingID)
	assert.Equal(t, 40.0, got.Completeness)
	assert.Equal(t, enrichment.StatusMissing, got.Route.Status)
	assert.Equal(t, enrichment.StatusMissing, got.Visual.Status)
	assert.Equal(t, enrichment.StatusMissing, got.Proximity.Status)
	require.True(t, got.Developer.OK())
	assert.Equal(t, "Setl Group", got.Developer.Data.Name)
	require.True(t, got.Price.OK())
	assert.Equal(t, 29, got.Price.Data.Comparables)
}

func TestEnrich_SelectedSourcesAndCache(t *testing.T) {
	ts := newTestServer(t, nil)
	req := EnrichRequest{Sources: []string{"price", "developer"}}

	first := decode[enrichment.Result](t, postJSON(t, ts.URL+"/listings/l-003/enrich", req))
	assert.Equal(t, 100.0, first.Completeness)
	assert.Equal(t, enrichment.StatusDisabled, first.Route.Status)
	require.NotNil(t, first.Price.Cache)
	assert.False(t, first.Price.Cache.Hit)

	second := decode[enrichment.Result](t, postJSON(t, ts.URL+"/listings/l-003/enrich", req))
	require.NotNil(t, second.Price.Cache)
	assert.True(t, second.Price.Cache.Hit)
}

func TestEnrich_Errors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/listings/l-003/enrich", EnrichRequest{Sources: []string{"weather"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/listings/missing/enrich", EnrichRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrichBatch(t *testing.T) {
	ts := newTestServer(t, nil)

	ids := []string{"l-009", "l-001", "l-020"}
	resp := postJSON(t, ts.URL+"/enrich/batch", BatchEnrichRequest{ListingIDs: ids, Sources: []string{"developer"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[BatchEnrichResponse](t, resp)
	require.Len(t, got.Results, 3)
	for i, r := range got.Results {
		assert.Equal(t, ids[i], r.ListingID)
		assert.Equal(t, 100.0, r.Completeness)
	}

	resp = postJSON(t, ts.URL+"/enrich/batch", BatchEnrichRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/enrich/batch", BatchEnrichRequest{ListingIDs: []string{"l-001", "ghost"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	id := uuid.New().String()
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-a-uuid; DROP TABLE")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	got := resp2.Header.Get(RequestIDHeader)
	assert.False(t, strings.Contains(got, "DROP"))
	_, err = uuid.Parse(got)
	assert.NoError(t, err)
}

func TestRecoverer(t *testing.T) {
	srv := NewServer(Deps{Listings: panickyListings{}})
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp := get(t, ts.URL+"/listings")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

type panickyListings struct{}

func (panickyListings) Get(context.Context, string) (domain.Listing, error) { panic("boom") }
func (panickyListings) List(context.Context, int, int) ([]domain.Listing, int, error) {
	panic("boom")
}
