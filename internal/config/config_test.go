package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "newswatch.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Groq.FastModel)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.Groq.DeepModel)
	assert.Equal(t, 2, cfg.Collect.LookbackDays)
	assert.Equal(t, 10, cfg.Analyze.BatchSize)
	assert.Equal(t, 20, cfg.Analyze.PacingSecs)
	assert.Equal(t, 2, cfg.Analyze.BreakerThreshold)
	assert.Equal(t, 3, cfg.Analyze.MaxAttempts)
	assert.Equal(t, 2, cfg.Analyze.QuotaRetries)
	assert.Equal(t, 15, cfg.Analyze.QuotaBackoffSecs)
	assert.Equal(t, 24, cfg.Report.Hours)
	assert.Equal(t, 4000, cfg.Report.ChunkLimit)
	assert.Equal(t, 6, cfg.Run.IntervalHours)
	assert.NotEmpty(t, cfg.Collect.Keywords)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/news
log:
  level: debug
  format: console
analyze:
  batch_size: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 5, cfg.Analyze.BatchSize)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Analyze.PacingSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("NEWSWATCH_STORE_DRIVER", "sqlite")
	t.Setenv("NEWSWATCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("NEWSWATCH_ANALYZE_BATCH_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Analyze.BatchSize)
}

func TestLoadFeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feeds.yaml")
	content := "feeds:\n" +
		"  - https://example.com/rss\n" +
		"  - https://example.org/feed\n" +
		"scrapes:\n" +
		"  - name: hospice-news\n" +
		"    url: https://example.net/news\n" +
		"    selector: article.post\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	feeds, err := LoadFeeds(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/rss", "https://example.org/feed"}, feeds.Feeds)
	require.Len(t, feeds.Scrapes, 1)
	assert.Equal(t, "hospice-news", feeds.Scrapes[0].Name)
	assert.Equal(t, "article.post", feeds.Scrapes[0].Selector)
}

func TestLoadFeedsMissingFile(t *testing.T) {
	feeds, err := LoadFeeds(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, feeds.Feeds)
	assert.Empty(t, feeds.Scrapes)
}

// validDefaults returns a Config with the knobs validation checks populated.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "newswatch.db"
	cfg.Analyze.BatchSize = 10
	cfg.Report.ChunkLimit = 4000
	cfg.Collect.Keywords = []string{"웰다잉"}
	return cfg
}

func TestValidateAnalyze_RequiresProviderKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.key or anthropic.key is required")

	cfg.Gemini.Key = "AIza-key"
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateMarket_RequiresGroqKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("market")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groq.key is required")
}

func TestValidateCollect_RequiresKeywordsOrFeeds(t *testing.T) {
	cfg := validDefaults()
	cfg.Collect.Keywords = nil

	err := cfg.Validate("collect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect.keywords or collect.feeds_file")

	cfg.Collect.FeedsFile = "feeds.yaml"
	assert.NoError(t, cfg.Validate("collect"))
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestValidateBatchSizeBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Gemini.Key = "k"

	cfg.Analyze.BatchSize = 0
	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze.batch_size must be between 1 and 100")

	cfg.Analyze.BatchSize = 101
	assert.Error(t, cfg.Validate("analyze"))

	cfg.Analyze.BatchSize = 100
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
