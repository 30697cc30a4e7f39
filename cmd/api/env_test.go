package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/dream-search/internal/config"
	"github.com/denisok6893-rgb/dream-search/internal/domain"
	"github.com/denisok6893-rgb/dream-search/internal/enrichment"
	"github.com/denisok6893-rgb/dream-search/internal/router"
	"github.com/denisok6893-rgb/dream-search/internal/storage"
)

func writeSeed(t *testing.T, dir string, n int) string {
	t.Helper()
	b, err := json.Marshal(storage.SampleListings("seed", n))
	require.NoError(t, err)
	path := filepath.Join(dir, "listings.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)
	c.Catalog.Path = filepath.Join(dir, "db", "listings.db")
	c.Catalog.SeedPath = writeSeed(t, dir, 25)
	return c
}

func TestInitEnv_SQLiteWithSeed(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	_, total, err := env.Catalog.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	payload, err := env.Router.Route(ctx, domain.SearchCriteria{}, domain.ClientProfile{})
	require.NoError(t, err)
	assert.Equal(t, router.OptimalResults, payload.Scenario)

	avail := env.Enricher.Available()
	assert.True(t, avail[enrichment.SourceProximity])
	assert.False(t, avail[enrichment.SourceRoute])
	assert.False(t, avail[enrichment.SourceVisual])
	assert.True(t, avail[enrichment.SourcePrice])
	assert.True(t, avail[enrichment.SourceDeveloper])
}

func TestInitEnv_MemoryCatalogAndBadgerCache(t *testing.T) {
	c := testConfig(t)
	c.Catalog.Driver = "memory"
	c.Cache.Driver = "badger"
	c.Cache.Path = ""

	env, err := initEnv(context.Background(), c)
	require.NoError(t, err)
	defer env.Close()

	l, err := env.Catalog.Get(context.Background(), "seed-003")
	require.NoError(t, err)

	res := env.Enricher.Enrich(context.Background(), l, domain.ClientProfile{}, []string{"developer", "price"})
	assert.Equal(t, 100.0, res.Completeness)
	assert.Equal(t, 2, env.Cache.Stats().Entries)
}

func TestInitEnv_MemoryCatalogNeedsSeed(t *testing.T) {
	c := testConfig(t)
	c.Catalog.Driver = "memory"
	c.Catalog.SeedPath = ""

	_, err := initEnv(context.Background(), c)
	assert.Error(t, err)
}

func TestInitEnv_RejectsInvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Scoring.Weights.Price = 0.9

	_, err := initEnv(context.Background(), c)
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
