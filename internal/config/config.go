package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/denisok6893-rgb/dream-search/internal/matching"
	"github.com/denisok6893-rgb/dream-search/internal/router"
	"github.com/denisok6893-rgb/dream-search/internal/search"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
	Catalog    CatalogConfig     `yaml:"catalog" mapstructure:"catalog"`
	Search     search.Config     `yaml:"search" mapstructure:"search"`
	Router     router.Thresholds `yaml:"router" mapstructure:"router"`
	Scoring    ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Cache      CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Enrichment EnrichmentConfig  `yaml:"enrichment" mapstructure:"enrichment"`
}

type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CatalogConfig selects the listing store. Driver is sqlite or memory;
// SeedPath is a JSON listing file loaded at startup.
type CatalogConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Path     string `yaml:"path" mapstructure:"path"`
	SeedPath string `yaml:"seed_path" mapstructure:"seed_path"`
}

type ScoringConfig struct {
	Weights matching.Weights `yaml:"weights" mapstructure:"weights"`
	// WeightsPath points at a JSON file overriding Weights.
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`
}

// CacheConfig selects the enrichment cache store: memory or badger.
type CacheConfig struct {
	Driver       string        `yaml:"driver" mapstructure:"driver"`
	Path         string        `yaml:"path" mapstructure:"path"`
	MaxEntries   int           `yaml:"max_entries" mapstructure:"max_entries"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
}

type EnrichmentConfig struct {
	SourceTimeout time.Duration   `yaml:"source_timeout" mapstructure:"source_timeout"`
	BatchSize     int             `yaml:"batch_size" mapstructure:"batch_size"`
	Proximity     ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	Route         RouteConfig     `yaml:"route" mapstructure:"route"`
	Visual        VisualConfig    `yaml:"visual" mapstructure:"visual"`
	Price         PriceConfig     `yaml:"price" mapstructure:"price"`
	Developer     DeveloperConfig `yaml:"developer" mapstructure:"developer"`
}

type ProximityConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// RouteConfig configures OpenRouteService. An empty APIKey disables the
// source.
type RouteConfig struct {
	APIKey  string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Modes   []string `yaml:"modes" mapstructure:"modes"`
}

// VisualConfig configures the Anthropic vision model. An empty APIKey
// disables the source.
type VisualConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxPhotos int    `yaml:"max_photos" mapstructure:"max_photos"`
}

type PriceConfig struct {
	MinComparables int     `yaml:"min_comparables" mapstructure:"min_comparables"`
	AreaTolerance  float64 `yaml:"area_tolerance" mapstructure:"area_tolerance"`
}

type DeveloperConfig struct {
	// DatasetPath replaces the embedded developer dataset.
	DatasetPath string `yaml:"dataset_path" mapstructure:"dataset_path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Router.AdjacentDistricts) == 0 {
		cfg.Router.AdjacentDistricts = router.DefaultAdjacency()
	}
	if cfg.Scoring.WeightsPath != "" {
		w, err := matching.LoadWeightsFromFile(cfg.Scoring.WeightsPath)
		if err != nil {
			return nil, eris.Wrap(err, "config: load scoring weights")
		}
		cfg.Scoring.Weights = w
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.path", "data/listings.db")
	v.SetDefault("catalog.seed_path", "")

	v.SetDefault("search.default_limit", search.DefaultLimit)
	v.SetDefault("search.max_limit", search.MaxLimit)

	th := router.DefaultThresholds()
	v.SetDefault("router.few_max", th.FewMax)
	v.SetDefault("router.optimal_max", th.OptimalMax)
	v.SetDefault("router.cluster_min_count", th.ClusterMinCount)
	v.SetDefault("router.cluster_concentration", th.ClusterConcentration)
	v.SetDefault("router.optimal_top", th.OptimalTop)
	v.SetDefault("router.budget_widen_pct", th.BudgetWidenPct)
	v.SetDefault("router.area_bucket_sqm", th.AreaBucketSqm)
	v.SetDefault("router.max_question_options", th.MaxQuestionOptions)

	w := matching.DefaultWeights()
	v.SetDefault("scoring.weights.price", w.Price)
	v.SetDefault("scoring.weights.location", w.Location)
	v.SetDefault("scoring.weights.transport", w.Transport)
	v.SetDefault("scoring.weights.space", w.Space)
	v.SetDefault("scoring.weights.floor", w.Floor)
	v.SetDefault("scoring.weights.layout", w.Layout)
	v.SetDefault("scoring.weights.building", w.Building)
	v.SetDefault("scoring.weights.financial", w.Financial)
	v.SetDefault("scoring.weights.infrastructure", w.Infrastructure)
	v.SetDefault("scoring.weights_path", "")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.path", "data/cache")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.fetch_timeout", "30s")

	v.SetDefault("enrichment.source_timeout", "5s")
	v.SetDefault("enrichment.batch_size", 10)
	v.SetDefault("enrichment.proximity.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("enrichment.proximity.rps", 2)
	v.SetDefault("enrichment.route.api_key", "")
	v.SetDefault("enrichment.route.base_url", "https://api.openrouteservice.org")
	v.SetDefault("enrichment.route.modes", []string{"driving-car", "foot-walking"})
	v.SetDefault("enrichment.visual.api_key", "")
	v.SetDefault("enrichment.visual.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enrichment.visual.max_photos", 4)
	v.SetDefault("enrichment.price.min_comparables", 5)
	v.SetDefault("enrichment.price.area_tolerance", 0.2)
	v.SetDefault("enrichment.developer.dataset_path", "")
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	if err := c.Scoring.Weights.Validate(); err != nil {
		return eris.Wrap(err, "config: scoring weights")
	}
	if err := c.Router.Validate(); err != nil {
		return eris.Wrap(err, "config: router thresholds")
	}
	switch c.Catalog.Driver {
	case "sqlite", "memory":
	default:
		return eris.Errorf("config: unknown catalog driver %q", c.Catalog.Driver)
	}
	switch c.Cache.Driver {
	case "memory", "badger":
	default:
		return eris.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
