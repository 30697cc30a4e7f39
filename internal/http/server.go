package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/denisok6893-rgb/dream-search/internal/cache"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/enrichment"
	"github.com/denisok6893-rgb/dream-search/internal/router"
)

const (
	maxBatchListings = 100
	retryAfterSecs   = 5
	maxBodyBytes     = 1 << 20
)

// Listings is the read-only catalog browse API.
type Listings interface {
	Get(ctx context.Context, id string) (domain.Listing, error)
	List(ctx context.Context, limit, offset int) ([]domain.Listing, int, error)
}

type Searcher interface {
	Route(ctx context.Context, c domain.SearchCriteria, p domain.ClientProfile) (router.Payload, error)
	ExpandCluster(ctx context.Context, c domain.SearchCriteria, p domain.ClientProfile, signature string) ([]domain.ScoredListing, error)
}

type Enricher interface {
	Enrich(ctx context.Context, l domain.Listing, p domain.ClientProfile, enabled []string) enrichment.Result
	EnrichBatch(ctx context.Context, listings []domain.Listing, p domain.ClientProfile, enabled []string) ([]enrichment.Result, error)
	Available() map[string]bool
}

// Deps wires the server. CacheStats is optional.
type Deps struct {
	Listings   Listings
	Search     Searcher
	Enricher   Enricher
	CacheStats func() cache.Stats
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(zap.L()), middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Get("/listings", s.handleListingsList)
	r.Get("/listings/{id}", s.handleListingGet)
	r.Post("/listings/{id}/enrich", s.handleEnrich)

	r.Post("/search", s.handleSearch)
	r.Post("/search/clusters/{signature}", s.handleExpandCluster)

	r.Post("/enrich/batch", s.handleEnrichBatch)
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http: listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zap.L().Info("http: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type healthResponse struct {
	Status  string          `json:"status"`
	Sources map[string]bool `json:"sources,omitempty"`
	Cache   *cache.Stats    `json:"cache,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Enricher != nil {
		resp.Sources = s.deps.Enricher.Available()
	}
	if s.deps.CacheStats != nil {
		st := s.deps.CacheStats()
		resp.Cache = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- Listings (read-only) ----

type ListingSummary struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Price        float64        `json:"price"`
	Rooms        int            `json:"rooms"`
	TotalArea    float64        `json:"total_area"`
	District     string         `json:"district"`
	MetroStation string         `json:"metro_station,omitempty"`
	Developer    string         `json:"developer,omitempty"`
	ComplexName  string         `json:"complex_name,omitempty"`
	Handover     domain.Quarter `json:"handover"`
}

type ListingsPage struct {
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Total  int              `json:"total"`
	Items  []ListingSummary `json:"items"`
}

func summarize(l domain.Listing) ListingSummary {
	return ListingSummary{
		ID:           l.ID,
		Title:        l.Title,
		Price:        l.Price,
		Rooms:        l.Rooms,
		TotalArea:    l.TotalArea,
		District:     l.District,
		MetroStation: l.MetroStation,
		Developer:    l.Developer,
		ComplexName:  l.ComplexName,
		Handover:     l.Handover,
	}
}

func (s *Server) handleListingsList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 20, 0)

	listings, total, err := s.deps.Listings.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]ListingSummary, 0, len(listings))
	for _, l := range listings {
		items = append(items, summarize(l))
	}
	writeJSON(w, http.StatusOK, ListingsPage{Limit: limit, Offset: offset, Total: total, Items: items})
}

func (s *Server) handleListingGet(w http.ResponseWriter, r *http.Request) {
	l, err := s.deps.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// ---- Search ----

type SearchRequest struct {
	Criteria domain.SearchCriteria `json:"criteria"`
	Profile  domain.ClientProfile  `json:"profile"`
}

type ClusterResponse struct {
	Signature string                 `json:"signature"`
	Listings  []domain.ScoredListing `json:"listings"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payload, err := s.deps.Search.Route(r.Context(), req.Criteria, req.Profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleExpandCluster(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sig := chi.URLParam(r, "signature")
	ranked, err := s.deps.Search.ExpandCluster(r.Context(), req.Criteria, req.Profile, sig)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClusterResponse{Signature: sig, Listings: ranked})
}

// ---- Enrichment ----

type EnrichRequest struct {
	Profile domain.ClientProfile `json:"profile"`
	Sources []string             `json:"sources"`
}

type BatchEnrichRequest struct {
	ListingIDs []string             `json:"listing_ids"`
	Profile    domain.ClientProfile `json:"profile"`
	Sources    []string             `json:"sources"`
}

type BatchEnrichResponse struct {
	Results []enrichment.Result `json:"results"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sources, err := enrichment.ParseSources(req.Sources)
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.deps.Listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Enricher.Enrich(r.Context(), l, req.Profile, sources))
}

func (s *Server) handleEnrichBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchEnrichRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sources, err := enrichment.ParseSources(req.Sources)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case len(req.ListingIDs) == 0:
		writeError(w, r, &domain.ValidationError{Problems: []string{"listing_ids must not be empty"}})
		return
	case len(req.ListingIDs) > maxBatchListings:
		writeError(w, r, &domain.ValidationError{Problems: []string{
			"listing_ids must hold at most " + strconv.Itoa(maxBatchListings) + " ids",
		}})
		return
	}

	listings := make([]domain.Listing, 0, len(req.ListingIDs))
	for _, id := range req.ListingIDs {
		l, err := s.deps.Listings.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		listings = append(listings, l)
	}

	results, err := s.deps.Enricher.EnrichBatch(r.Context(), listings, req.Profile, sources)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BatchEnrichResponse{Results: results})
}

// ---- helpers ----

// decodeJSON rejects unknown fields so a misspelled criteria key fails
// instead of silently meaning "no constraint".
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body_too_large", Details: []string{err.Error()}})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Details: []string{err.Error()}})
		return false
	}
	return true
}

func parseLimitOffset(r *http.Request, defLimit, defOffset int) (int, int) {
	q := r.URL.Query()

	limit := defLimit
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit <= 0 {
		limit = defLimit
	}
	// safety cap
	if limit > 200 {
		limit = 200
	}

	offset := defOffset
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = defOffset
	}

	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
