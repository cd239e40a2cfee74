package handler

import (
	"time"

	"github.com/iliyamo/aura/internal/catalog"
	"github.com/iliyamo/aura/internal/model"
)

type movieResp struct {
	ID          uint64        `json:"id"`
	TMDBID      int64         `json:"tmdb_id"`
	Title       string        `json:"title"`
	Overview    string        `json:"overview"`
	PosterURL   string        `json:"poster_url"`
	BackdropURL string        `json:"backdrop_url"`
	ReleaseDate string        `json:"release_date,omitempty"`
	VoteAverage float64       `json:"vote_average"`
	VoteCount   int64         `json:"vote_count"`
	Popularity  float64       `json:"popularity"`
	Genres      []model.Genre `json:"genres"`
	Runtime     *int          `json:"runtime,omitempty"`
	Tagline     string        `json:"tagline,omitempty"`
	Status      string        `json:"status,omitempty"`
	TrailerKey  string        `json:"trailer_key,omitempty"`
	IsHidden    bool          `json:"is_hidden"`
}

func toMovieResp(m *model.Movie) movieResp {
	r := movieResp{
		ID:          m.ID,
		TMDBID:      m.TMDBID,
		Title:       m.Title,
		Overview:    m.Overview,
		PosterURL:   m.PosterURL(),
		BackdropURL: m.BackdropURL(),
		VoteAverage: m.VoteAverage,
		VoteCount:   m.VoteCount,
		Popularity:  m.Popularity,
		Genres:      m.Genres,
		Runtime:     m.Runtime,
		Tagline:     m.Tagline,
		Status:      m.Status,
		TrailerKey:  m.YouTubeTrailerKey,
		IsHidden:    m.IsHidden,
	}
	if r.Genres == nil {
		r.Genres = []model.Genre{}
	}
	if m.ReleaseDate != nil {
		r.ReleaseDate = m.ReleaseDate.Format("2006-01-02")
	}
	return r
}

type watchlistResp struct {
	AddedAt time.Time `json:"added_at"`
	Movie   movieResp `json:"movie"`
}

type ratingResp struct {
	Score     int        `json:"score"`
	Review    string     `json:"review"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Movie     *movieResp `json:"movie,omitempty"`
}

func toRatingResp(r *model.Rating, withMovie bool) ratingResp {
	out := ratingResp{Score: r.Score, Review: r.Review, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if withMovie {
		m := toMovieResp(&r.Movie)
		out.Movie = &m
	}
	return out
}

type castResp struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Character  string `json:"character"`
	ProfileURL string `json:"profile_url,omitempty"`
}

func toCastResp(cast []catalog.CastMember, limit int) []castResp {
	if len(cast) > limit {
		cast = cast[:limit]
	}
	out := make([]castResp, 0, len(cast))
	for _, m := range cast {
		out = append(out, castResp{ID: m.ID, Name: m.Name, Character: m.Character, ProfileURL: model.PosterURL(m.ProfilePath)})
	}
	return out
}
