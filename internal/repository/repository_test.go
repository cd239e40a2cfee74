package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

// newMockDB returns a sqlmock-backed *sql.DB that is closed with the test.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var movieColumnNames = []string{
	"id", "tmdb_id", "title", "overview", "poster_path", "backdrop_path", "release_date",
	"vote_average", "vote_count", "popularity", "genres", "runtime", "tagline", "status",
	"youtube_trailer_key", "is_hidden", "created_at", "updated_at",
}

func movieRow(id uint64, tmdbID int64, title string, trailer any, hidden bool) []driver.Value {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []driver.Value{
		id, tmdbID, title, "overview", "/p.jpg", "/b.jpg", time.Date(1999, 3, 30, 0, 0, 0, 0, time.UTC),
		8.2, int64(100), 55.5, []byte(`[{"id":28,"name":"Action"}]`), int64(136), "", "Released",
		trailer, hidden, now, now,
	}
}

func movieRows(rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(movieColumnNames)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func duplicateErr(key string) error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key '" + key + "'"}
}
