package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wda-labs/newswatch/internal/db"
	"github.com/wda-labs/newswatch/internal/model"
	"github.com/wda-labs/newswatch/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// bulkCopyThreshold is the batch size above which SaveArticles switches
// from chunked INSERTs to COPY through a temp table.
const bulkCopyThreshold = 200

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_article": `INSERT INTO articles (id, title, link, source, summary, content_hash, published_at, created_at, processed)
	                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false) ON CONFLICT (link) DO NOTHING`,
	"update_analysis": `UPDATE articles SET analysis = $1, processed = true WHERE id = $2`,
	"update_market":   `UPDATE articles SET market = $1 WHERE id = $2`,
	"get_setting":     `SELECT value FROM settings WHERE key = $1`,
	"set_setting": `INSERT INTO settings (key, value) VALUES ($1, $2)
	                ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	link         TEXT NOT NULL UNIQUE,
	source       TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed    BOOLEAN NOT NULL DEFAULT false,
	analysis     JSONB,
	market       JSONB
);

CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at);

CREATE TABLE IF NOT EXISTS ban_words (
	word TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id            TEXT PRIMARY KEY,
	date          TEXT NOT NULL UNIQUE,
	article_count INTEGER NOT NULL DEFAULT 0,
	content       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS failed_articles (
	id         TEXT PRIMARY KEY,
	article_id TEXT,
	link       TEXT,
	title      TEXT,
	stage      TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'transient',
	failed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_failed_articles_stage ON failed_articles(stage);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

var articleColumnList = []string{
	"id", "title", "link", "source", "summary", "content_hash",
	"published_at", "created_at", "processed",
}

func (s *PostgresStore) SaveArticles(ctx context.Context, articles []model.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	articles = prepareArticles(articles)

	if len(articles) >= bulkCopyThreshold {
		n, err := s.bulkSave(ctx, articles)
		if err == nil {
			return n, nil
		}
		zap.L().Warn("postgres: bulk save failed, falling back to chunked inserts", zap.Error(err))
	}

	saved := 0
	for start := 0; start < len(articles); start += saveChunkSize {
		end := start + saveChunkSize
		if end > len(articles) {
			end = len(articles)
		}
		chunk := articles[start:end]

		n, err := s.insertChunk(ctx, chunk)
		if err != nil {
			zap.L().Warn("postgres: chunk insert failed, retrying rows individually", zap.Error(err))
			n = s.insertRows(ctx, chunk)
		}
		saved += n
	}
	return saved, nil
}

func (s *PostgresStore) bulkSave(ctx context.Context, articles []model.Article) (int, error) {
	rows := make([][]any, len(articles))
	for i, a := range articles {
		rows[i] = []any{a.ID, a.Title, a.Link, a.Source, a.Summary, a.ContentHash,
			a.PublishedAt, a.CreatedAt, false}
	}
	n, err := db.InsertIgnore(ctx, s.pool, "articles", articleColumnList, "link", rows)
	return int(n), err
}

func (s *PostgresStore) insertChunk(ctx context.Context, chunk []model.Article) (int, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO articles (id, title, link, source, summary, content_hash, published_at, created_at, processed) VALUES `)

	args := make([]any, 0, len(chunk)*8)
	for i, a := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, false)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, a.ID, a.Title, a.Link, a.Source, a.Summary, a.ContentHash, a.PublishedAt, a.CreatedAt)
	}
	sb.WriteString(` ON CONFLICT (link) DO NOTHING`)

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert articles")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) insertRows(ctx context.Context, chunk []model.Article) int {
	saved := 0
	for _, a := range chunk {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO articles (id, title, link, source, summary, content_hash, published_at, created_at, processed)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false) ON CONFLICT (link) DO NOTHING`,
			a.ID, a.Title, a.Link, a.Source, a.Summary, a.ContentHash, a.PublishedAt, a.CreatedAt,
		)
		if err != nil {
			zap.L().Warn("postgres: skip article",
				zap.String("link", a.Link),
				zap.Error(err))
			continue
		}
		saved += int(tag.RowsAffected())
	}
	return saved
}

func (s *PostgresStore) RecentLinks(ctx context.Context, days int) (map[string]struct{}, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.pool.Query(ctx,
		`SELECT link FROM articles WHERE created_at >= $1`, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent links")
	}
	defer rows.Close()

	links := make(map[string]struct{})
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		links[link] = struct{}{}
	}
	return links, eris.Wrap(rows.Err(), "postgres: recent links iterate")
}

func (s *PostgresStore) BanWords(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT word FROM ban_words`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: ban words")
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ban word")
		}
		words = append(words, w)
	}
	return words, eris.Wrap(rows.Err(), "postgres: ban words iterate")
}

const pgArticleColumns = `id, title, link, source, summary, content_hash, published_at, created_at, processed, analysis, market`

func (s *PostgresStore) Unprocessed(ctx context.Context, limit int) ([]model.Article, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgArticleColumns+` FROM articles WHERE processed = false ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unprocessed")
	}
	defer rows.Close()
	return collectPgArticles(rows)
}

func (s *PostgresStore) UpdateAnalysis(ctx context.Context, id string, analysis model.Analysis) error {
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET analysis = $1, processed = true WHERE id = $2`,
		analysisJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("article not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, id string, market model.MarketImpact) error {
	marketJSON, err := json.Marshal(market)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal market impact")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET market = $1 WHERE id = $2`,
		marketJSON, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update market %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("article not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ProcessedSince(ctx context.Context, since time.Time) ([]model.Article, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgArticleColumns+` FROM articles
		 WHERE processed = true AND created_at >= $1
		 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: processed since")
	}
	defer rows.Close()
	return collectPgArticles(rows)
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByCategory:  make(map[string]int),
		BySentiment: make(map[string]int),
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles`).Scan(&stats.Total); err != nil {
		return nil, eris.Wrap(err, "postgres: count articles")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM articles WHERE processed = true`).Scan(&stats.Processed); err != nil {
		return nil, eris.Wrap(err, "postgres: count processed")
	}
	stats.Unprocessed = stats.Total - stats.Processed

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM articles WHERE created_at >= $1`, dayStart,
	).Scan(&stats.Today); err != nil {
		return nil, eris.Wrap(err, "postgres: count today")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT analysis FROM articles WHERE processed = true AND analysis IS NOT NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load analyses")
	}
	defer rows.Close()

	var analyses []model.Analysis
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		var a model.Analysis
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal analysis")
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: analyses iterate")
	}

	tallyAnalyses(stats, analyses)
	return stats, nil
}

func (s *PostgresStore) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return eris.Wrapf(err, "postgres: set setting %s", key)
}

func (s *PostgresStore) LastRunAt(ctx context.Context) (time.Time, error) {
	value, err := s.Setting(ctx, settingLastRun)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, eris.Wrap(err, "postgres: parse last run time")
	}
	return t, nil
}

func (s *PostgresStore) SetLastRunAt(ctx context.Context, t time.Time) error {
	return s.SetSetting(ctx, settingLastRun, t.UTC().Format(time.RFC3339))
}

func (s *PostgresStore) SaveReport(ctx context.Context, report model.Report) error {
	if report.ID == "" {
		report.ID = newID()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, date, article_count, content, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (date) DO UPDATE SET article_count = EXCLUDED.article_count,
		   content = EXCLUDED.content, created_at = EXCLUDED.created_at`,
		report.ID, report.Date, report.ArticleCount, report.Content, report.CreatedAt,
	)
	return eris.Wrap(err, "postgres: save report")
}

func (s *PostgresStore) LogFailure(ctx context.Context, failure resilience.FailedArticle) error {
	if failure.ID == "" {
		failure.ID = newID()
	}
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO failed_articles (id, article_id, link, title, stage, error, error_type, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		failure.ID, failure.ArticleID, failure.Link, failure.Title,
		failure.Stage, failure.Error, failure.ErrorType, failure.FailedAt,
	)
	return eris.Wrap(err, "postgres: log failure")
}

func (s *PostgresStore) FailureCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM failed_articles`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count failures")
}

func scanPgArticle(row pgx.Row) (*model.Article, error) {
	var a model.Article
	var analysisJSON, marketJSON []byte

	err := row.Scan(&a.ID, &a.Title, &a.Link, &a.Source, &a.Summary, &a.ContentHash,
		&a.PublishedAt, &a.CreatedAt, &a.Processed, &analysisJSON, &marketJSON)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan article")
	}

	if len(analysisJSON) > 0 {
		a.Analysis = &model.Analysis{}
		if err := json.Unmarshal(analysisJSON, a.Analysis); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal analysis")
		}
	}
	if len(marketJSON) > 0 {
		a.Market = &model.MarketImpact{}
		if err := json.Unmarshal(marketJSON, a.Market); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal market impact")
		}
	}
	return &a, nil
}

func collectPgArticles(rows pgx.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		a, err := scanPgArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: articles iterate")
}
