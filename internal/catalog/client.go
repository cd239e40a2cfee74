// Package catalog is the TMDB client.  Every call goes through the shared
// upstream retry policy and returns normalized records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/upstream"
)

var (
	// ErrNotFound is returned when TMDB answers 404 for a movie.
	ErrNotFound = errors.New("movie not found")
	// ErrParse is returned when a response body is not a JSON object.
	ErrParse = errors.New("unable to parse catalog response")

	errNullBody = errors.New("null body")
)

// Catalog is the read surface used by the HTTP handlers.
type Catalog interface {
	FetchByID(ctx context.Context, tmdbID int64) (*Detail, error)
	Search(ctx context.Context, query string, page int) (*Page, error)
	ListByCategory(ctx context.Context, category string, page int) (*Page, error)
	Discover(ctx context.Context, genreID int64, page int) (*Page, error)
	Genres(ctx context.Context) ([]model.Genre, error)
}

// Client talks to the TMDB v3 API.
type Client struct {
	accessToken string
	apiKey      string
	baseURL     string
	language    string
	httpClient  *http.Client
	caller      *upstream.Caller
}

var _ Catalog = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey adds the api_key query parameter to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithLanguage sets the language query parameter.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = strings.TrimSpace(lang) }
}

// New creates a TMDB client.  The per-attempt timeout lives in the caller's
// policy, so the HTTP client itself has none.
func New(accessToken, baseURL string, caller *upstream.Caller, opts ...Option) (*Client, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("tmdb access token required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	if caller == nil {
		return nil, errors.New("upstream caller required")
	}
	c := &Client{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		caller:      caller,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchByID loads a movie with videos, credits, similar and
// recommendations appended.
func (c *Client) FetchByID(ctx context.Context, tmdbID int64) (*Detail, error) {
	params := url.Values{}
	params.Set("append_to_response", "videos,credits,similar,recommendations")
	obj, err := c.get(ctx, "movie_detail", "/movie/"+strconv.FormatInt(tmdbID, 10), params)
	if err != nil {
		return nil, err
	}
	d := normalizeDetail(obj)
	if d.ID == 0 {
		d.ID = tmdbID
	}
	return d, nil
}

// Search runs a free-text movie search.
func (c *Client) Search(ctx context.Context, query string, page int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &Page{Page: 1, Results: []Item{}, TotalPages: 1}, nil
	}
	page = ClampPage(page)
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	obj, err := c.get(ctx, "search", "/search/movie", params)
	if err != nil {
		return nil, err
	}
	return normalizePage(obj, page), nil
}

// ListByCategory fetches one page of a browse category.  Unknown
// categories fall back to popular.
func (c *Client) ListByCategory(ctx context.Context, category string, page int) (*Page, error) {
	category = NormalizeCategory(category)
	page = ClampPage(page)
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	obj, err := c.get(ctx, "list_"+category, categoryPaths[category], params)
	if err != nil {
		return nil, err
	}
	return normalizePage(obj, page), nil
}

// Discover lists movies of one genre.
func (c *Client) Discover(ctx context.Context, genreID int64, page int) (*Page, error) {
	page = ClampPage(page)
	params := url.Values{}
	params.Set("with_genres", strconv.FormatInt(genreID, 10))
	params.Set("page", strconv.Itoa(page))
	obj, err := c.get(ctx, "discover", "/discover/movie", params)
	if err != nil {
		return nil, err
	}
	return normalizePage(obj, page), nil
}

// Genres returns the movie genre list.
func (c *Client) Genres(ctx context.Context) ([]model.Genre, error) {
	obj, err := c.get(ctx, "genres", "/genre/movie/list", url.Values{})
	if err != nil {
		return nil, err
	}
	return normalizeGenres(obj.objects("genres")), nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) (object, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.accessToken)

	body, err := c.caller.Get(ctx, c.httpClient, op, endpoint.String(), header)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	obj, err := parseObject(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, op, err)
	}
	return obj, nil
}
