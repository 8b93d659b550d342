package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
)

func newMockStore(t *testing.T) (*ChapterStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS quotes").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	store, err := NewWithPool(context.Background(), mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPool_RejectsInvalidTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(context.Background(), mock, "quotes; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPool_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(context.Background(), nil, "quotes")
	require.Error(t, err)
}

func TestOpen_RequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.ErrorContains(t, err, "store.dsn is required")
}

func TestInsertIfAbsent_CreatedAndDuplicate(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rec := harvest.ChapterRecord{Title: "Prologue", URL: "https://guide.example/prologue", Excerpt: "quote"}

	mock.ExpectExec("INSERT INTO quotes").
		WithArgs(rec.Title, rec.URL, rec.Excerpt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO quotes").
		WithArgs(rec.Title, rec.URL, rec.Excerpt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := store.InsertIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)

	created, err = store.InsertIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsent_ClassifiesLockErrors(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rec := harvest.ChapterRecord{Title: "A", URL: "a", Excerpt: "q"}

	mock.ExpectExec("INSERT INTO quotes").
		WithArgs(rec.Title, rec.URL, rec.Excerpt).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "could not obtain lock"})
	mock.ExpectExec("INSERT INTO quotes").
		WithArgs(rec.Title, rec.URL, rec.Excerpt).
		WillReturnError(&pgconn.PgError{Code: "53100", Message: "disk full"})

	_, err := store.InsertIfAbsent(context.Background(), rec)
	require.True(t, harvest.IsContention(err))

	_, err = store.InsertIfAbsent(context.Background(), rec)
	require.Error(t, err)
	require.False(t, harvest.IsContention(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_OrdersByID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"id", "chapter_title", "chapter_url", "quote"}).
		AddRow(int64(1), "Prologue", "u1", "q1").
		AddRow(int64(2), "Chapter 1", "u2", "q2")
	mock.ExpectQuery("SELECT id, chapter_title, chapter_url, quote FROM quotes ORDER BY id ASC").
		WillReturnRows(rows)

	records, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []harvest.ChapterRecord{
		{SequenceID: 1, Title: "Prologue", URL: "u1", Excerpt: "q1"},
		{SequenceID: 2, Title: "Chapter 1", URL: "u2", Excerpt: "q2"},
	}, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_QueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id").WillReturnError(errors.New("connection refused"))

	_, err := store.ListAll(context.Background())
	require.ErrorContains(t, err, "list chapters")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPingAndClose(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	var nilStore *ChapterStore
	require.NoError(t, nilStore.Close())
}
