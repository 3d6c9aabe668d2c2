package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1700000000, 0).UTC()

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS recently_crawled_urls").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	store, err := NewWithPool(context.Background(), mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPoolRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(context.Background(), nil)
	require.Error(t, err)
}

func TestNewWithPoolSchemaFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	_, err = NewWithPool(context.Background(), mock)
	require.ErrorContains(t, err, "create ledger table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO recently_crawled_urls (url, crawl_timestamp) VALUES ($1, $2)")).
		WithArgs("https://example.com", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), "https://example.com", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCrawledSince(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	since := now.Add(-7 * 24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(existsSQL)).
		WithArgs("https://example.com", since).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	recent, err := store.CrawledSince(context.Background(), "https://example.com", since)
	require.NoError(t, err)
	assert.True(t, recent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCrawledSinceError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(existsSQL)).
		WithArgs("https://example.com", now).
		WillReturnError(errors.New("connection reset"))

	_, err := store.CrawledSince(context.Background(), "https://example.com", now)
	require.ErrorContains(t, err, "query crawl entry")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBefore(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(deleteSQL)).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := store.DeleteBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}
