package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wda-labs/newswatch/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresUpdateAnalysis(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE articles SET analysis").
		WithArgs(pgxmock.AnyArg(), "a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateAnalysis(context.Background(), "a", model.Analysis{
		TitleKo:  "제목",
		Category: model.CategoryMedical,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateAnalysisNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE articles SET analysis").
		WithArgs(pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAnalysis(context.Background(), "missing", model.Analysis{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPostgresUnprocessed(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	cols := []string{"id", "title", "link", "source", "summary", "content_hash",
		"published_at", "created_at", "processed", "analysis", "market"}
	mock.ExpectQuery("SELECT .+ FROM articles WHERE processed = false").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("a", "title a", "https://example.com/a", "Example", "sum", "h",
				now, now, false, []byte(nil), []byte(nil)))

	got, err := s.Unprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Nil(t, got[0].Analysis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSettingMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT value FROM settings").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	v, err := s.Setting(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestPostgresSaveArticlesChunked(t *testing.T) {
	s, mock := newMockStore(t)

	args := make([]any, 16) // 2 articles x 8 bound columns
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO articles").
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	saved, err := s.SaveArticles(context.Background(), []model.Article{
		article("a", "https://example.com/a"),
		article("b", "https://example.com/b"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveArticlesBulkCopy(t *testing.T) {
	s, mock := newMockStore(t)

	var batch []model.Article
	for i := 0; i < bulkCopyThreshold; i++ {
		batch = append(batch, article("", fmt.Sprintf("https://example.com/%03d", i)))
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_insert_articles"}, articleColumnList).
		WillReturnResult(int64(len(batch)))
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", int64(len(batch))))
	mock.ExpectCommit()
	mock.ExpectRollback()

	saved, err := s.SaveArticles(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, bulkCopyThreshold, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFailureCount(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := s.FailureCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
