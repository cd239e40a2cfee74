// Package trailer resolves an embeddable YouTube trailer for a movie.
package trailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/catalog"
	"github.com/iliyamo/aura/internal/upstream"
)

// Finder picks the first embeddable video among candidates, or searches
// YouTube by title when the catalog listed none.
type Finder interface {
	FindEmbeddableTrailer(ctx context.Context, candidateIDs []string) string
	SearchTrailer(ctx context.Context, title string, year int) string
}

// Candidates returns the keys of YouTube-hosted videos typed "Trailer",
// in the order TMDB listed them.
func Candidates(videos []catalog.Video) []string {
	out := make([]string, 0, len(videos))
	for _, v := range videos {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			out = append(out, v.Key)
		}
	}
	return out
}

// Client queries the YouTube Data API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	caller     *upstream.Caller
	logger     *zap.Logger
}

var _ Finder = (*Client)(nil)

// New creates a YouTube client.  An empty API key yields a client that
// never finds a trailer.
func New(apiKey, baseURL string, caller *upstream.Caller, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		caller:     caller,
		logger:     logger,
	}
}

// FindEmbeddableTrailer checks candidates one by one and stops at the
// first embeddable video.  A candidate whose lookup fails is skipped.
func (c *Client) FindEmbeddableTrailer(ctx context.Context, candidateIDs []string) string {
	if c.apiKey == "" || c.caller == nil {
		return ""
	}
	for _, id := range candidateIDs {
		ok, err := c.IsEmbeddable(ctx, id)
		if err != nil {
			c.logger.Warn("trailer embeddability lookup failed",
				zap.String("video_id", id), zap.Error(err))
			if ctx.Err() != nil {
				return ""
			}
			continue
		}
		if ok {
			return id
		}
	}
	return ""
}

// IsEmbeddable asks YouTube whether a video may be embedded.  Unknown
// videos are reported as not embeddable.
func (c *Client) IsEmbeddable(ctx context.Context, videoID string) (bool, error) {
	params := url.Values{}
	params.Set("part", "status")
	params.Set("id", videoID)
	params.Set("key", c.apiKey)

	body, err := c.caller.Get(ctx, c.httpClient, "video_status", c.baseURL+"/videos?"+params.Encode(), nil)
	if err != nil {
		return false, err
	}
	var payload struct {
		Items []struct {
			ID     string `json:"id"`
			Status struct {
				Embeddable bool `json:"embeddable"`
			} `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("decode youtube response: %w", err)
	}
	if len(payload.Items) == 0 {
		return false, nil
	}
	return payload.Items[0].Status.Embeddable, nil
}

// SearchTrailer searches for "<title> official trailer <year>" among
// embeddable videos and returns the top hit.  A zero year is left out.
// Failures are logged and reported as no trailer.
func (c *Client) SearchTrailer(ctx context.Context, title string, year int) string {
	title = strings.TrimSpace(title)
	if c.apiKey == "" || c.caller == nil || title == "" {
		return ""
	}
	query := title + " official trailer"
	if year > 0 {
		query += " " + strconv.Itoa(year)
	}
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("videoEmbeddable", "true")
	params.Set("maxResults", "1")
	params.Set("key", c.apiKey)

	body, err := c.caller.Get(ctx, c.httpClient, "search", c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		c.logger.Warn("trailer search failed", zap.String("query", query), zap.Error(err))
		return ""
	}
	var payload struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("decode youtube search response", zap.String("query", query), zap.Error(err))
		return ""
	}
	if len(payload.Items) == 0 {
		return ""
	}
	return payload.Items[0].ID.VideoID
}
