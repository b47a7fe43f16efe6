package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Groq      GroqConfig      `yaml:"groq" mapstructure:"groq"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	Analyze   AnalyzeConfig   `yaml:"analyze" mapstructure:"analyze"`
	Market    MarketConfig    `yaml:"market" mapstructure:"market"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Telegram  TelegramConfig  `yaml:"telegram" mapstructure:"telegram"`
	Slack     SlackConfig     `yaml:"slack" mapstructure:"slack"`
	Run       RunConfig       `yaml:"run" mapstructure:"run"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// GeminiConfig holds Gemini API settings for the primary analyzer.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GroqConfig holds Groq API settings for the market impact funnel.
type GroqConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	FastModel string `yaml:"fast_model" mapstructure:"fast_model"`
	DeepModel string `yaml:"deep_model" mapstructure:"deep_model"`
	RPM       int    `yaml:"rpm" mapstructure:"rpm"`
}

// AnthropicConfig holds Anthropic API settings for the secondary analyzer.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// CollectConfig configures article collection.
type CollectConfig struct {
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
	FeedsFile    string   `yaml:"feeds_file" mapstructure:"feeds_file"`
	LookbackDays int      `yaml:"lookback_days" mapstructure:"lookback_days"`
	BanWords     []string `yaml:"ban_words" mapstructure:"ban_words"`
	MaxParallel  int      `yaml:"max_parallel" mapstructure:"max_parallel"`
	TimeoutSecs  int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalyzeConfig configures the AI analysis stage.
type AnalyzeConfig struct {
	BatchSize        int `yaml:"batch_size" mapstructure:"batch_size"`
	PacingSecs       int `yaml:"pacing_secs" mapstructure:"pacing_secs"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	QuotaRetries     int `yaml:"quota_retries" mapstructure:"quota_retries"`
	QuotaBackoffSecs int `yaml:"quota_backoff_secs" mapstructure:"quota_backoff_secs"`
}

// MarketConfig configures the Korea market impact stage.
type MarketConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// ReportConfig configures digest generation.
type ReportConfig struct {
	Hours      int `yaml:"hours" mapstructure:"hours"`
	ChunkLimit int `yaml:"chunk_limit" mapstructure:"chunk_limit"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	ChatID string `yaml:"chat_id" mapstructure:"chat_id"`
}

// SlackConfig holds the Slack incoming webhook URL.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// RunConfig configures the full pipeline run gate.
type RunConfig struct {
	IntervalHours int `yaml:"interval_hours" mapstructure:"interval_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An explicit path
// pins the config file; otherwise config.yaml is searched in the working
// directory and is optional.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if len(paths) > 0 && paths[0] != "" {
		v.SetConfigFile(paths[0])
	}

	// Environment
	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "newswatch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.fast_model", "llama-3.1-8b-instant")
	v.SetDefault("groq.deep_model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.rpm", 30)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("collect.keywords", []string{"웰다잉", "존엄사", "호스피스", "연명의료", "완화의료"})
	v.SetDefault("collect.lookback_days", 2)
	v.SetDefault("collect.max_parallel", 4)
	v.SetDefault("collect.timeout_secs", 30)
	v.SetDefault("analyze.batch_size", 10)
	v.SetDefault("analyze.pacing_secs", 20)
	v.SetDefault("analyze.breaker_threshold", 2)
	v.SetDefault("analyze.max_attempts", 3)
	v.SetDefault("analyze.quota_retries", 2)
	v.SetDefault("analyze.quota_backoff_secs", 15)
	v.SetDefault("market.batch_size", 10)
	v.SetDefault("report.hours", 24)
	v.SetDefault("report.chunk_limit", 4000)
	v.SetDefault("run.interval_hours", 6)

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

	return &cfg, nil
}

// Validate checks that the keys required by the given command mode are set.
// Modes: "collect", "analyze", "market", "report", "pipeline".
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
		if c.Store.Driver == "sqlite" && c.Store.SQLitePath == "" {
			missing = append(missing, "store.sqlite_path is required for the sqlite driver")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "collect":
		requireStore()
		if len(c.Collect.Keywords) == 0 && c.Collect.FeedsFile == "" {
			missing = append(missing, "collect.keywords or collect.feeds_file is required")
		}
	case "analyze":
		requireStore()
		if c.Gemini.Key == "" && c.Anthropic.Key == "" {
			missing = append(missing, "gemini.key or anthropic.key is required")
		}
	case "market":
		requireStore()
		if c.Groq.Key == "" {
			missing = append(missing, "groq.key is required")
		}
	case "report":
		requireStore()
	case "pipeline":
		requireStore()
		if len(c.Collect.Keywords) == 0 && c.Collect.FeedsFile == "" {
			missing = append(missing, "collect.keywords or collect.feeds_file is required")
		}
		if c.Gemini.Key == "" && c.Anthropic.Key == "" {
			missing = append(missing, "gemini.key or anthropic.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Analyze.BatchSize < 1 || c.Analyze.BatchSize > 100 {
		missing = append(missing, "analyze.batch_size must be between 1 and 100")
	}
	if c.Report.ChunkLimit < 100 {
		missing = append(missing, "report.chunk_limit must be >= 100")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// ScrapeTarget is one HTML listing page to scrape for articles.
type ScrapeTarget struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"` // CSS selector for one listing item
}

// Feeds is the optional YAML shape for extra sources.
//
//	feeds:
//	  - https://.../rss
//	scrapes:
//	  - name: hospice-news
//	    url: https://...
//	    selector: "article.post"
type Feeds struct {
	Feeds   []string       `yaml:"feeds"`
	Scrapes []ScrapeTarget `yaml:"scrapes"`
}

// LoadFeeds reads extra RSS feeds and scrape targets from a YAML file. A
// missing path returns an empty set.
func LoadFeeds(path string) (*Feeds, error) {
	if path == "" {
		return &Feeds{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Feeds{}, nil
		}
		return nil, eris.Wrapf(err, "config: read feeds file %s", path)
	}

	var f Feeds
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse feeds file %s", path)
	}
	return &f, nil
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
