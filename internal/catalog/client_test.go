package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/aura/internal/upstream"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	caller := upstream.NewCaller("tmdb", upstream.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}, nil, nil, nil)
	opts = append([]Option{WithHTTPClient(srv.Client())}, opts...)
	client, err := New("test-token", srv.URL, caller, opts...)
	require.NoError(t, err)
	return client
}

func TestNewRequiresToken(t *testing.T) {
	caller := upstream.NewCaller("tmdb", upstream.DefaultPolicy(), nil, nil, nil)
	_, err := New(" ", "https://api.themoviedb.org/3", caller)
	require.Error(t, err)
}

func TestFetchByIDSendsAuthAndAppends(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/603", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "videos,credits,similar,recommendations", r.URL.Query().Get("append_to_response"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		_, _ = io.WriteString(w, `{
			"id": 603,
			"title": "The Matrix",
			"overview": "A hacker learns the truth.",
			"poster_path": "/p.jpg",
			"release_date": "1999-03-30",
			"vote_average": 8.2,
			"vote_count": 25000,
			"runtime": 136,
			"genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
			"videos": {"results": [{"key": "abc", "site": "YouTube", "type": "Trailer"}]},
			"credits": {"cast": [{"id": 6384, "name": "Keanu Reeves", "character": "Neo"}]},
			"similar": {"results": [{"id": 604, "title": "The Matrix Reloaded"}]}
		}`)
	}, WithAPIKey("k"))

	d, err := client.FetchByID(context.Background(), 603)
	require.NoError(t, err)

	assert.Equal(t, int64(603), d.ID)
	assert.Equal(t, "The Matrix", d.Title)
	require.NotNil(t, d.ReleaseDate)
	assert.Equal(t, "1999-03-30", d.ReleaseDate.Format("2006-01-02"))
	require.NotNil(t, d.Runtime)
	assert.Equal(t, 136, *d.Runtime)
	assert.Len(t, d.Genres, 2)
	assert.Equal(t, []Video{{Key: "abc", Site: "YouTube", Type: "Trailer"}}, d.Videos)
	assert.Equal(t, "Neo", d.Cast[0].Character)
	assert.Equal(t, "The Matrix Reloaded", d.Similar[0].Title)
	assert.Empty(t, d.Recommendations)

	m := d.Movie()
	assert.Equal(t, int64(603), m.TMDBID)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/p.jpg", m.PosterURL())
	assert.Equal(t, "", m.BackdropURL())
}

func TestFetchByIDNormalizesMalformedFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"id": 42,
			"title": "Partial",
			"overview": null,
			"poster_path": 17,
			"release_date": "not-a-date",
			"vote_average": "high",
			"runtime": null,
			"genres": [{"id": 18, "name": "Drama"}, "oops", {"name": "no id"}],
			"videos": "broken"
		}`)
	})

	d, err := client.FetchByID(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Partial", d.Title)
	assert.Equal(t, "", d.Overview)
	assert.Equal(t, "", d.PosterPath)
	assert.Nil(t, d.ReleaseDate)
	assert.Zero(t, d.VoteAverage)
	assert.Nil(t, d.Runtime)
	assert.Len(t, d.Genres, 1)
	assert.Empty(t, d.Videos)
}

func TestFetchByIDEmptyGenresBecomeEmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id": 7}`)
	})

	d, err := client.FetchByID(context.Background(), 7)
	require.NoError(t, err)
	m := d.Movie()
	assert.NotNil(t, m.Genres)
	assert.Empty(t, m.Genres)
}

func TestFetchByIDNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status_code":34}`)
	})

	_, err := client.FetchByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchByIDParseError(t *testing.T) {
	for _, body := range []string{`<html>oops</html>`, `[1,2,3]`, `null`} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})

		_, err := client.FetchByID(context.Background(), 1)
		assert.ErrorIs(t, err, ErrParse, body)
		assert.False(t, errors.Is(err, ErrNotFound))
	}
}

func TestFetchByIDUnavailableAfterRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchByID(context.Background(), 1)
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestListByCategoryPaths(t *testing.T) {
	tests := map[string]string{
		"popular":     "/movie/popular",
		"trending":    "/trending/movie/week",
		"top_rated":   "/movie/top_rated",
		"now_playing": "/movie/now_playing",
		"upcoming":    "/movie/upcoming",
		"bogus":       "/movie/popular",
		"":            "/movie/popular",
	}
	for category, wantPath := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, wantPath, r.URL.Path, category)
			_, _ = io.WriteString(w, `{"page":1,"results":[],"total_pages":1,"total_results":0}`)
		})
		_, err := client.ListByCategory(context.Background(), category, 1)
		require.NoError(t, err)
	}
}

func TestPageCountClamped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("page"))
		_, _ = io.WriteString(w, `{"page":500,"results":[{"id":1,"title":"A","genre_ids":[28,"x"]}],"total_pages":41234,"total_results":824680}`)
	})

	p, err := client.ListByCategory(context.Background(), CategoryPopular, 9999)
	require.NoError(t, err)
	assert.Equal(t, MaxPages, p.TotalPages)
	assert.Equal(t, 500, p.Page)
	assert.Equal(t, int64(824680), p.TotalResults)
	assert.Equal(t, []int64{28}, p.Results[0].GenreIDs)
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "matrix", r.URL.Query().Get("query"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = io.WriteString(w, `{"page":2,"results":[{"id":603,"title":"The Matrix"}],"total_pages":3,"total_results":45}`)
	})

	p, err := client.Search(context.Background(), "  matrix ", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(45), p.TotalResults)
	assert.Equal(t, "The Matrix", p.Results[0].Title)
}

func TestSearchEmptyQuerySkipsUpstream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called")
	})

	p, err := client.Search(context.Background(), "   ", 1)
	require.NoError(t, err)
	assert.Empty(t, p.Results)
	assert.Equal(t, 1, p.TotalPages)
}

func TestDiscoverAndGenres(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discover/movie":
			assert.Equal(t, "28", r.URL.Query().Get("with_genres"))
			_, _ = io.WriteString(w, `{"page":1,"results":[{"id":1}],"total_pages":0}`)
		case "/genre/movie/list":
			_, _ = io.WriteString(w, `{"genres":[{"id":28,"name":"Action"},{"id":35,"name":"Comedy"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p, err := client.Discover(context.Background(), 28, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalPages)

	genres, err := client.Genres(context.Background())
	require.NoError(t, err)
	assert.Len(t, genres, 2)
	assert.Equal(t, "Comedy", genres[1].Name)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 1, ClampPage(-3))
	assert.Equal(t, 1, ClampPage(0))
	assert.Equal(t, 17, ClampPage(17))
	assert.Equal(t, 500, ClampPage(501))
	assert.Equal(t, 500, ClampTotalPages(100000))
	assert.Equal(t, 12, ClampTotalPages(12))
}
