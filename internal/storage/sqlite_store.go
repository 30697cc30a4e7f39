package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"

	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/search"
)

// SQLiteStore is the catalog backed by a SQLite file. The engine only
// reads from it; UpsertMany exists for the import command and tests.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const createListings = `
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  price REAL NOT NULL,
  rooms INTEGER NOT NULL,
  total_area REAL NOT NULL DEFAULT 0,
  living_area REAL NOT NULL DEFAULT 0,
  kitchen_area REAL NOT NULL DEFAULT 0,
  floor INTEGER NOT NULL DEFAULT 0,
  floors_total INTEGER NOT NULL DEFAULT 0,
  ceiling_height REAL NOT NULL DEFAULT 0,
  building_type TEXT NOT NULL DEFAULT '',
  renovation TEXT NOT NULL DEFAULT '',
  balcony_type TEXT NOT NULL DEFAULT '',
  bathroom_type TEXT NOT NULL DEFAULT '',
  district TEXT NOT NULL DEFAULT '',
  district_norm TEXT NOT NULL DEFAULT '',
  metro_station TEXT NOT NULL DEFAULT '',
  metro_norm TEXT NOT NULL DEFAULT '',
  metro_walk_minutes INTEGER NOT NULL DEFAULT 0,
  latitude REAL NOT NULL DEFAULT 0,
  longitude REAL NOT NULL DEFAULT 0,
  mortgage_available INTEGER NOT NULL DEFAULT 0,
  payment_methods_json TEXT NOT NULL DEFAULT '[]',
  banks_json TEXT NOT NULL DEFAULT '[]',
  banks_norm_json TEXT NOT NULL DEFAULT '[]',
  haggle_allowed INTEGER NOT NULL DEFAULT 0,
  handover TEXT NOT NULL DEFAULT '',
  handover_idx INTEGER NOT NULL DEFAULT 0,
  developer TEXT NOT NULL DEFAULT '',
  developer_norm TEXT NOT NULL DEFAULT '',
  complex_id TEXT NOT NULL DEFAULT '',
  complex_name TEXT NOT NULL DEFAULT '',
  advantages_json TEXT NOT NULL DEFAULT '[]',
  media_json TEXT NOT NULL DEFAULT '{}',
  description TEXT NOT NULL DEFAULT '',
  active INTEGER NOT NULL DEFAULT 1
);
`

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createListings); err != nil {
		return eris.Wrap(err, "sqlite: create listings")
	}
	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_district ON listings(district_norm);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_rooms ON listings(rooms);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_complex ON listings(complex_id);`,
	} {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return eris.Wrap(err, "sqlite: create index")
		}
	}
	return nil
}

// UpsertMany replaces listings by id inside one transaction.
func (s *SQLiteStore) UpsertMany(ctx context.Context, items []domain.Listing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO listings
(id, category, title, price, rooms, total_area, living_area, kitchen_area, floor, floors_total,
 ceiling_height, building_type, renovation, balcony_type, bathroom_type, district, district_norm,
 metro_station, metro_norm, metro_walk_minutes, latitude, longitude, mortgage_available,
 payment_methods_json, banks_json, banks_norm_json, haggle_allowed, handover, handover_idx,
 developer, developer_norm, complex_id, complex_name, advantages_json, media_json, description, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for _, l := range items {
		if err := domain.ValidateListing(l); err != nil {
			return err
		}
		pm, _ := json.Marshal(nonNil(l.PaymentMethods))
		banks, _ := json.Marshal(nonNil(l.AccreditedBanks))
		banksNorm, _ := json.Marshal(domain.NormalizeAll(l.AccreditedBanks))
		adv, _ := json.Marshal(nonNil(l.Advantages))
		media, _ := json.Marshal(l.Media)

		handover := ""
		if !l.Handover.IsZero() {
			handover = l.Handover.String()
		}

		if _, err := stmt.ExecContext(ctx,
			l.ID, l.Category, l.Title, l.Price, l.Rooms, l.TotalArea, l.LivingArea, l.KitchenArea,
			l.Floor, l.FloorsTotal, l.CeilingHeight, string(l.BuildingType), string(l.Renovation),
			string(l.BalconyType), string(l.BathroomType), l.District, domain.Normalize(l.District),
			l.MetroStation, domain.Normalize(l.MetroStation), l.MetroWalkMinutes, l.Latitude, l.Longitude,
			boolInt(l.MortgageAvailable), string(pm), string(banks), string(banksNorm),
			boolInt(l.HaggleAllowed), handover, l.Handover.Index(), l.Developer,
			domain.Normalize(l.Developer), l.ComplexID, l.ComplexName, string(adv), string(media),
			l.Description, boolInt(l.Active),
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert listing %s", l.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

const selectListing = `
SELECT id, category, title, price, rooms, total_area, living_area, kitchen_area, floor, floors_total,
       ceiling_height, building_type, renovation, balcony_type, bathroom_type, district, metro_station,
       metro_walk_minutes, latitude, longitude, mortgage_available, payment_methods_json, banks_json,
       haggle_allowed, handover, developer, complex_id, complex_name, advantages_json, media_json,
       description, active
FROM listings
`

func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.Listing, error) {
	rows, err := s.db.QueryContext(ctx, selectListing+"WHERE id = ?", id)
	if err != nil {
		return domain.Listing{}, eris.Wrap(err, "sqlite: get listing")
	}
	defer rows.Close()

	out, err := scanListings(rows)
	if err != nil {
		return domain.Listing{}, err
	}
	if len(out) == 0 {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return out[0], nil
}

func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]domain.Listing, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count listings")
	}

	rows, err := s.db.QueryContext(ctx, selectListing+"ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	out, err := scanListings(rows)
	return out, total, err
}

func (s *SQLiteStore) Find(ctx context.Context, c domain.SearchCriteria, limit int) ([]domain.Listing, error) {
	where, args := applyCriteria(c)
	q := selectListing + where + "\nORDER BY id"
	if limit > 0 {
		q += "\nLIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find listings")
	}
	defer rows.Close()
	return scanListings(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, c domain.SearchCriteria) (int, error) {
	where, args := applyCriteria(c)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings "+where, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count matches")
	}
	return n, nil
}

const selectFacets = `
SELECT complex_id, complex_name, district, building_type, renovation, handover,
       COUNT(*), MIN(price), MAX(price), SUM(price), SUM(total_area)
FROM listings
`

// Facets groups the full match set in SQL; only one row per distinct
// facet key crosses into Go.
func (s *SQLiteStore) Facets(ctx context.Context, c domain.SearchCriteria) (search.Facets, error) {
	where, args := applyCriteria(c)
	q := selectFacets + where + "\nGROUP BY complex_id, complex_name, district, building_type, renovation, handover"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return search.Facets{}, eris.Wrap(err, "sqlite: facets")
	}
	defer rows.Close()

	var f search.Facets
	for rows.Next() {
		var (
			g                        search.FacetGroup
			buildingType, renovation string
			handover                 string
		)
		if err := rows.Scan(
			&g.Key.ComplexID, &g.Key.ComplexName, &g.Key.District, &buildingType, &renovation, &handover,
			&g.Count, &g.PriceMin, &g.PriceMax, &g.PriceSum, &g.AreaSum,
		); err != nil {
			return search.Facets{}, eris.Wrap(err, "sqlite: scan facets")
		}
		g.Key.BuildingType = domain.BuildingType(buildingType)
		g.Key.Renovation = domain.Renovation(renovation)
		hq, err := domain.ParseQuarter(handover)
		if err != nil {
			return search.Facets{}, eris.Wrapf(err, "sqlite: facet handover %q", handover)
		}
		g.Key.Handover = hq
		f.Add(g)
	}
	return f, eris.Wrap(rows.Err(), "sqlite: iterate facets")
}

func scanListings(rows *sql.Rows) ([]domain.Listing, error) {
	out := make([]domain.Listing, 0)
	for rows.Next() {
		var (
			l                                 domain.Listing
			buildingType, renovation          string
			balconyType, bathroomType         string
			mortgage, haggle, active          int
			pmJSON, banksJSON, advJSON, media string
			handover                          string
		)
		if err := rows.Scan(
			&l.ID, &l.Category, &l.Title, &l.Price, &l.Rooms, &l.TotalArea, &l.LivingArea, &l.KitchenArea,
			&l.Floor, &l.FloorsTotal, &l.CeilingHeight, &buildingType, &renovation, &balconyType,
			&bathroomType, &l.District, &l.MetroStation, &l.MetroWalkMinutes, &l.Latitude, &l.Longitude,
			&mortgage, &pmJSON, &banksJSON, &haggle, &handover, &l.Developer, &l.ComplexID,
			&l.ComplexName, &advJSON, &media, &l.Description, &active,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		l.BuildingType = domain.BuildingType(buildingType)
		l.Renovation = domain.Renovation(renovation)
		l.BalconyType = domain.BalconyType(balconyType)
		l.BathroomType = domain.BathroomType(bathroomType)
		l.MortgageAvailable = mortgage == 1
		l.HaggleAllowed = haggle == 1
		l.Active = active == 1

		q, err := domain.ParseQuarter(handover)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: listing %s handover", l.ID)
		}
		l.Handover = q

		if err := json.Unmarshal([]byte(pmJSON), &l.PaymentMethods); err != nil {
			return nil, eris.Wrapf(err, "sqlite: listing %s payment methods", l.ID)
		}
		if err := json.Unmarshal([]byte(banksJSON), &l.AccreditedBanks); err != nil {
			return nil, eris.Wrapf(err, "sqlite: listing %s banks", l.ID)
		}
		if err := json.Unmarshal([]byte(advJSON), &l.Advantages); err != nil {
			return nil, eris.Wrapf(err, "sqlite: listing %s advantages", l.ID)
		}
		if err := json.Unmarshal([]byte(media), &l.Media); err != nil {
			return nil, eris.Wrapf(err, "sqlite: listing %s media", l.ID)
		}

		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate listings")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
