// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Crawler   CrawlerConfig       `mapstructure:"crawler"`
	RateLimit RateLimitConfig     `mapstructure:"ratelimit"`
	Render    RenderConfig        `mapstructure:"render"`
	Discovery DiscoveryConfig     `mapstructure:"discovery"`
	DB        DBConfig            `mapstructure:"db"`
	Blob      BlobConfig          `mapstructure:"blob"`
	PubSub    PubSubConfig        `mapstructure:"pubsub"`
	LLM       LLMConfig           `mapstructure:"llm"`
	Schedules map[string]Schedule `mapstructure:"schedules"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs fetch behavior.
type CrawlerConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	RetryAfterMax    time.Duration `mapstructure:"retry_after_max"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	MaxPageBytes     int64         `mapstructure:"max_page_bytes"`
}

// RateLimitConfig controls the per-domain limiters.
type RateLimitConfig struct {
	RPS           float64 `mapstructure:"rps"`
	Adaptive      bool    `mapstructure:"adaptive"`
	MinRPS        float64 `mapstructure:"min_rps"`
	MaxRPS        float64 `mapstructure:"max_rps"`
	SpeedupFactor float64 `mapstructure:"speedup_factor"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"`
	MinHTMLBytes int           `mapstructure:"min_html_bytes"`
	Selectors    []string      `mapstructure:"selectors"`
	Keywords     []string      `mapstructure:"keywords"`
}

// DiscoveryConfig seeds the discovery sources.
type DiscoveryConfig struct {
	DirectoryURLs   []string `mapstructure:"directory_urls"`
	AcceleratorURLs []string `mapstructure:"accelerator_urls"`
	GitHubOrgs      []string `mapstructure:"github_orgs"`
	SeedURLs        []string `mapstructure:"seed_urls"`
	FundingFeeds    []string `mapstructure:"funding_feeds"`
	AggregatorURLs  []string `mapstructure:"aggregator_urls"`
	ProbeSlugs      []string `mapstructure:"probe_slugs"`
	SearchQueries   []string `mapstructure:"search_queries"`
	CrawlMaxDepth   int      `mapstructure:"crawl_max_depth"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BlobConfig sets where raw snapshot HTML is archived.
type BlobConfig struct {
	Provider  string `mapstructure:"provider"` // gcs, local, memory
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds the stage-invocation subscription metadata.
type PubSubConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	Subscription string `mapstructure:"subscription"`
}

// LLMConfig configures the last-resort model extractor.
type LLMConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Schedule maps a cron spec to a stage invocation.
type Schedule struct {
	Cron    string `mapstructure:"cron"`
	Stage   string `mapstructure:"stage"`
	Cascade bool   `mapstructure:"cascade"`
	Limit   int    `mapstructure:"limit"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)

	v.SetDefault("crawler.user_agent", "jobradar-bot/1.0 (+https://github.com/openhire/jobradar)")
	v.SetDefault("crawler.timeout", "15s")
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.backoff_base", "500ms")
	v.SetDefault("crawler.retry_after_max", "60s")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.max_page_bytes", 5*1024*1024)

	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.adaptive", true)
	v.SetDefault("ratelimit.min_rps", 0.1)
	v.SetDefault("ratelimit.max_rps", 4.0)
	v.SetDefault("ratelimit.speedup_factor", 1.1)
	v.SetDefault("ratelimit.backoff_factor", 0.5)

	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_workers", 2)
	v.SetDefault("render.nav_timeout", "20s")
	v.SetDefault("render.min_html_bytes", 2000)
	v.SetDefault("render.selectors", []string{})
	v.SetDefault("render.keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"loading...",
	})

	v.SetDefault("discovery.crawl_max_depth", 2)

	v.SetDefault("blob.provider", "local")
	v.SetDefault("blob.local_dir", "data/snapshots")
	v.SetDefault("blob.prefix", "pages")

	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.topic", "stage-invocations")
	v.SetDefault("pubsub.subscription", "jobradar")

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "gemini-2.0-flash")
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.RateLimit.Adaptive {
		if c.RateLimit.MinRPS <= 0 || c.RateLimit.MaxRPS < c.RateLimit.MinRPS {
			return fmt.Errorf("ratelimit bounds invalid: min=%f max=%f", c.RateLimit.MinRPS, c.RateLimit.MaxRPS)
		}
		if c.RateLimit.SpeedupFactor <= 1 {
			return fmt.Errorf("ratelimit.speedup_factor must exceed 1")
		}
		if c.RateLimit.BackoffFactor <= 0 || c.RateLimit.BackoffFactor >= 1 {
			return fmt.Errorf("ratelimit.backoff_factor must be in (0,1)")
		}
	} else if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be positive")
	}
	if c.Render.Enabled && c.Render.MaxWorkers <= 0 {
		return fmt.Errorf("render.max_workers must be positive when rendering is enabled")
	}
	switch c.Blob.Provider {
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket required for gcs provider")
		}
	case "local", "memory":
	default:
		return fmt.Errorf("unknown blob provider %q", c.Blob.Provider)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id required when pubsub is enabled")
	}
	for name, s := range c.Schedules {
		if s.Cron == "" || s.Stage == "" {
			return fmt.Errorf("schedule %q requires cron and stage", name)
		}
	}
	return nil
}
