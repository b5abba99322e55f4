package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/biomap-cli/internal/match"
	"github.com/sells-group/biomap-cli/internal/model"
	"github.com/sells-group/biomap-cli/internal/resilience"
	"github.com/sells-group/biomap-cli/internal/resolve"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	UniProt  UniProtConfig  `yaml:"uniprot" mapstructure:"uniprot"`
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history and resolver cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	Disabled    bool   `yaml:"disabled" mapstructure:"disabled"`
}

// DSN returns the connection string for the configured driver.
func (s StoreConfig) DSN() string {
	if s.Driver == "postgres" {
		return s.DatabaseURL
	}
	return s.Path
}

// MatchingConfig holds engine defaults. Strategy step params override them.
type MatchingConfig struct {
	EntityType        string   `yaml:"entity_type" mapstructure:"entity_type"`
	Stages            []string `yaml:"stages" mapstructure:"stages"`
	MinConfidence     float64  `yaml:"min_confidence" mapstructure:"min_confidence"`
	BridgeThreshold   float64  `yaml:"bridge_threshold" mapstructure:"bridge_threshold"`
	BridgeEntityType  string   `yaml:"bridge_entity_type" mapstructure:"bridge_entity_type"`
	PostingLimit      int      `yaml:"posting_limit" mapstructure:"posting_limit"`
	CompositeMode     string   `yaml:"composite_mode" mapstructure:"composite_mode"`
	CompositeDiscount float64  `yaml:"composite_discount" mapstructure:"composite_discount"`
	HistoricalCap     float64  `yaml:"historical_cap" mapstructure:"historical_cap"`
	Delimiters        string   `yaml:"delimiters" mapstructure:"delimiters"`
	FirstOnly         bool     `yaml:"first_only" mapstructure:"first_only"`
}

// ResolverConfig selects the historical-resolution backend.
type ResolverConfig struct {
	// Kind is one of none, static or uniprot.
	Kind          string  `yaml:"kind" mapstructure:"kind"`
	MappingFile   string  `yaml:"mapping_file" mapstructure:"mapping_file"`
	FromField     string  `yaml:"from_field" mapstructure:"from_field"`
	ToField       string  `yaml:"to_field" mapstructure:"to_field"`
	ScoreField    string  `yaml:"score_field" mapstructure:"score_field"`
	Score         float64 `yaml:"score" mapstructure:"score"`
	Cache         bool    `yaml:"cache" mapstructure:"cache"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// CacheTTL returns the resolver cache lifetime.
func (r ResolverConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLHours) * time.Hour
}

// UniProtConfig configures the UniProt REST client.
type UniProtConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig mirrors resilience.RetryConfig in config-friendly units.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// Resilience converts to a resilience.RetryConfig.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

// CircuitConfig configures the circuit breaker around remote resolvers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Resilience converts to a resilience.CircuitBreakerConfig that only trips
// on transient failures.
func (c CircuitConfig) Resilience() resilience.CircuitBreakerConfig {
	cfg := resilience.FromCircuitConfig(c.FailureThreshold, c.ResetTimeoutSecs)
	cfg.ShouldTrip = resilience.IsTransient
	cfg.Name = "uniprot"
	return cfg
}

// InputConfig configures dataset loading.
type InputConfig struct {
	TempDir        string `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxConcurrency int    `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// OutputConfig configures result export.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path
// searches for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("BIOMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := resolve.DefaultConfig()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "biomap.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("matching.entity_type", string(def.EntityType))
	v.SetDefault("matching.stages", []string{"direct", "composite_expansion", "historical_resolution", "bridge"})
	v.SetDefault("matching.min_confidence", 0.0)
	v.SetDefault("matching.bridge_threshold", def.BridgeThreshold)
	v.SetDefault("matching.bridge_entity_type", string(def.BridgeEntityType))
	v.SetDefault("matching.posting_limit", def.PostingLimit)
	v.SetDefault("matching.composite_mode", string(def.Composite.Mode))
	v.SetDefault("matching.composite_discount", def.Composite.Discount)
	v.SetDefault("matching.historical_cap", def.HistoricalCap)
	v.SetDefault("matching.delimiters", def.Delimiters)
	v.SetDefault("resolver.kind", "none")
	v.SetDefault("resolver.from_field", "from")
	v.SetDefault("resolver.to_field", "to")
	v.SetDefault("resolver.score", 1.0)
	v.SetDefault("resolver.cache", true)
	v.SetDefault("resolver.cache_ttl_hours", 168)
	v.SetDefault("uniprot.base_url", "https://rest.uniprot.org")
	v.SetDefault("uniprot.rate_limit", 10.0)
	v.SetDefault("uniprot.timeout_secs", 30)
	v.SetDefault("uniprot.retry.max_attempts", 3)
	v.SetDefault("uniprot.retry.initial_backoff_ms", 500)
	v.SetDefault("uniprot.retry.max_backoff_ms", 30000)
	v.SetDefault("uniprot.retry.multiplier", 2.0)
	v.SetDefault("uniprot.retry.jitter_fraction", 0.25)
	v.SetDefault("uniprot.circuit.failure_threshold", 5)
	v.SetDefault("uniprot.circuit.reset_timeout_secs", 30)
	v.SetDefault("input.max_concurrency", 4)
	v.SetDefault("output.dir", "out")
}

// Resolve builds the engine configuration from the matching section.
func (m MatchingConfig) Resolve() (resolve.Config, error) {
	cfg := resolve.DefaultConfig()

	if m.EntityType != "" {
		t, err := model.ParseEntityType(m.EntityType)
		if err != nil {
			return cfg, eris.Wrap(err, "config: matching.entity_type")
		}
		cfg.EntityType = t
	}
	if m.BridgeEntityType != "" {
		t, err := model.ParseEntityType(m.BridgeEntityType)
		if err != nil {
			return cfg, eris.Wrap(err, "config: matching.bridge_entity_type")
		}
		cfg.BridgeEntityType = t
	}
	if len(m.Stages) > 0 {
		stages, err := resolve.ParseStages(m.Stages)
		if err != nil {
			return cfg, eris.Wrap(err, "config: matching.stages")
		}
		cfg.Stages = stages
	}
	if m.CompositeMode != "" {
		mode, err := match.ParseCompositeMode(m.CompositeMode)
		if err != nil {
			return cfg, eris.Wrap(err, "config: matching.composite_mode")
		}
		cfg.Composite.Mode = mode
	}
	if m.CompositeDiscount > 0 {
		cfg.Composite.Discount = m.CompositeDiscount
	}
	if m.BridgeThreshold > 0 {
		cfg.BridgeThreshold = m.BridgeThreshold
	}
	if m.HistoricalCap > 0 {
		cfg.HistoricalCap = m.HistoricalCap
	}
	if m.PostingLimit > 0 {
		cfg.PostingLimit = m.PostingLimit
	}
	if m.Delimiters != "" {
		cfg.Delimiters = m.Delimiters
	}
	cfg.MinConfidence = m.MinConfidence
	cfg.FirstOnly = m.FirstOnly

	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrap(err, "config: matching")
	}
	return cfg, nil
}

// Validate checks the settings a command mode depends on. Every problem
// is reported, not just the first.
func (c *Config) Validate(mode string) error {
	var problems []string

	storeChecks := func() {
		if c.Store.Disabled {
			return
		}
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for sqlite")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for postgres")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "run":
		storeChecks()
		if _, err := c.Matching.Resolve(); err != nil {
			problems = append(problems, err.Error())
		}
		switch c.Resolver.Kind {
		case "", "none", "uniprot":
		case "static":
			if c.Resolver.MappingFile == "" {
				problems = append(problems, "resolver.mapping_file is required for the static resolver")
			}
		default:
			problems = append(problems, "resolver.kind must be none, static or uniprot")
		}
		if c.Resolver.Kind == "uniprot" && c.UniProt.RateLimit <= 0 {
			problems = append(problems, "uniprot.rate_limit must be > 0")
		}
		if c.Input.MaxConcurrency < 1 {
			problems = append(problems, "input.max_concurrency must be >= 1")
		}
	case "runs":
		storeChecks()
	case "normalize":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
