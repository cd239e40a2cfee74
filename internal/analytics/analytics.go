// Package analytics records movie detail views and derives the supervisor
// reports from them.
package analytics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// Report sizes.
const (
	SeriesDays    = 7
	TopMoviesN    = 10
	LiveFeedLimit = 20
	TopTodayN     = 5
	HiddenPerPage = 24
)

// ViewStore is the persistence the tracker needs.
type ViewStore interface {
	Insert(ctx context.Context, v model.MovieView) (uint64, error)
	CountsByDay(ctx context.Context, from, to time.Time) (map[string]int64, error)
	TopMovies(ctx context.Context, n int) ([]model.MovieViewCount, error)
	TopVisibleSince(ctx context.Context, since time.Time, n int) ([]model.MovieViewCount, error)
	LiveSince(ctx context.Context, since time.Time, limit int) ([]model.LiveActivity, error)
	CountAll(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// HiddenStore lists moderated movies for the dashboard.
type HiddenStore interface {
	ListHidden(ctx context.Context, limit, offset int) ([]model.Movie, error)
	CountHidden(ctx context.Context) (int64, error)
}

// Tracker writes views and builds reports.
type Tracker struct {
	views  ViewStore
	hidden HiddenStore
	now    func() time.Time
}

// NewTracker builds a Tracker.
func NewTracker(views ViewStore, hidden HiddenStore) *Tracker {
	return &Tracker{views: views, hidden: hidden, now: func() time.Time { return time.Now().UTC() }}
}

// RecordView appends one view.  Errors are returned to the caller.
func (t *Tracker) RecordView(ctx context.Context, movieID uint64, userID *uint64, ip string) (model.MovieView, error) {
	v := model.MovieView{MovieID: movieID, UserID: userID, IPAddress: ip, ViewedAt: t.now()}
	id, err := t.views.Insert(ctx, v)
	if err != nil {
		return v, fmt.Errorf("record view: %w", err)
	}
	v.ID = id
	return v, nil
}

// ClientIP prefers the first X-Forwarded-For entry and falls back to the
// connection address.  The header is client supplied and only used for
// analytics.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailySeries returns one point per day from today-6 to today.
func (t *Tracker) DailySeries(ctx context.Context, now time.Time) ([]model.DailyCount, error) {
	today := StartOfDay(now)
	from := today.AddDate(0, 0, -(SeriesDays - 1))
	counts, err := t.views.CountsByDay(ctx, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return ZeroFill(from, SeriesDays, counts), nil
}

// ZeroFill expands sparse per-day counts into exactly days points starting
// at from.
func ZeroFill(from time.Time, days int, counts map[string]int64) []model.DailyCount {
	out := make([]model.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		key := d.Format("2006-01-02")
		out = append(out, model.DailyCount{Date: key, Label: d.Format("Jan 02"), Count: counts[key]})
	}
	return out
}

// TopMovies returns the n most viewed movies of all time.
func (t *Tracker) TopMovies(ctx context.Context, n int) ([]model.MovieViewCount, error) {
	return t.views.TopMovies(ctx, n)
}

// LiveToday lists movies viewed since UTC midnight, most recent first.
func (t *Tracker) LiveToday(ctx context.Context, now time.Time, limit int) ([]model.LiveActivity, error) {
	return t.views.LiveSince(ctx, StartOfDay(now), limit)
}

// TopToday returns the n most viewed visible movies today.
func (t *Tracker) TopToday(ctx context.Context, now time.Time, n int) ([]model.MovieViewCount, error) {
	return t.views.TopVisibleSince(ctx, StartOfDay(now), n)
}

// Dashboard is the supervisor overview.
type Dashboard struct {
	HiddenMovies []model.Movie          `json:"-"`
	Page         int                    `json:"page"`
	TotalPages   int                    `json:"total_pages"`
	HiddenCount  int64                  `json:"hidden_count"`
	TotalViews   int64                  `json:"total_views"`
	ViewsToday   int64                  `json:"views_today"`
	TopMovies    []model.MovieViewCount `json:"top_movies"`
	LiveToday    []model.LiveActivity   `json:"live_today"`
	Daily        []model.DailyCount     `json:"daily"`
}

// Dashboard aggregates every report for one page of hidden movies.
func (t *Tracker) Dashboard(ctx context.Context, now time.Time, page int) (*Dashboard, error) {
	d := &Dashboard{}
	var err error

	if d.HiddenCount, err = t.hidden.CountHidden(ctx); err != nil {
		return nil, err
	}
	d.TotalPages = int((d.HiddenCount + HiddenPerPage - 1) / HiddenPerPage)
	if d.TotalPages < 1 {
		d.TotalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > d.TotalPages {
		page = d.TotalPages
	}
	d.Page = page
	if d.HiddenMovies, err = t.hidden.ListHidden(ctx, HiddenPerPage, (page-1)*HiddenPerPage); err != nil {
		return nil, err
	}
	if d.TotalViews, err = t.views.CountAll(ctx); err != nil {
		return nil, err
	}
	if d.ViewsToday, err = t.views.CountSince(ctx, StartOfDay(now)); err != nil {
		return nil, err
	}
	if d.TopMovies, err = t.TopMovies(ctx, TopMoviesN); err != nil {
		return nil, err
	}
	if d.LiveToday, err = t.LiveToday(ctx, now, LiveFeedLimit); err != nil {
		return nil, err
	}
	if d.Daily, err = t.DailySeries(ctx, now); err != nil {
		return nil, err
	}
	return d, nil
}
