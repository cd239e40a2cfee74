package catalog

import (
	"encoding/json"
	"time"

	"github.com/iliyamo/aura/internal/model"
)

// object is a decoded JSON object whose members are parsed one at a time
// so a single malformed member only blanks that field.
type object map[string]json.RawMessage

func parseObject(body []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		if err == nil {
			err = errNullBody
		}
		return nil, err
	}
	return obj, nil
}

func (o object) str(key string) string {
	var s string
	if raw, ok := o[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func (o object) float(key string) float64 {
	var f float64
	if raw, ok := o[key]; ok && json.Unmarshal(raw, &f) == nil {
		return f
	}
	return 0
}

func (o object) int(key string) int64 {
	return int64(o.float(key))
}

func (o object) optInt(key string) *int {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var f *float64
	if json.Unmarshal(raw, &f) != nil || f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func (o object) date(key string) *time.Time {
	s := o.str(key)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func (o object) objects(key string) []object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]object, 0, len(items))
	for _, it := range items {
		var obj object
		if json.Unmarshal(it, &obj) == nil && obj != nil {
			out = append(out, obj)
		}
	}
	return out
}

func (o object) child(key string) object {
	raw, ok := o[key]
	if !ok {
		return nil
	}
	var obj object
	if json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	return obj
}

func (o object) ints(key string) []int64 {
	raw, ok := o[key]
	if !ok {
		return []int64{}
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return []int64{}
	}
	out := make([]int64, 0, len(items))
	for _, it := range items {
		var f float64
		if json.Unmarshal(it, &f) == nil {
			out = append(out, int64(f))
		}
	}
	return out
}

func normalizeItem(o object) Item {
	poster := o.str("poster_path")
	return Item{
		ID:           o.int("id"),
		Title:        o.str("title"),
		Overview:     o.str("overview"),
		PosterPath:   poster,
		BackdropPath: o.str("backdrop_path"),
		PosterURL:    model.PosterURL(poster),
		ReleaseDate:  o.str("release_date"),
		VoteAverage:  o.float("vote_average"),
		VoteCount:    o.int("vote_count"),
		Popularity:   o.float("popularity"),
		GenreIDs:     o.ints("genre_ids"),
	}
}

func normalizeItems(objs []object) []Item {
	out := make([]Item, 0, len(objs))
	for _, o := range objs {
		out = append(out, normalizeItem(o))
	}
	return out
}

func normalizePage(o object, requested int) *Page {
	page := int(o.int("page"))
	if page < 1 {
		page = requested
	}
	total := int(o.int("total_pages"))
	if total < 1 {
		total = 1
	}
	return &Page{
		Page:         page,
		Results:      normalizeItems(o.objects("results")),
		TotalPages:   ClampTotalPages(total),
		TotalResults: o.int("total_results"),
	}
}

func normalizeGenres(objs []object) []model.Genre {
	out := make([]model.Genre, 0, len(objs))
	for _, g := range objs {
		id := g.int("id")
		if id == 0 {
			continue
		}
		out = append(out, model.Genre{ID: id, Name: g.str("name")})
	}
	return out
}

func normalizeDetail(o object) *Detail {
	d := &Detail{
		ID:           o.int("id"),
		Title:        o.str("title"),
		Overview:     o.str("overview"),
		PosterPath:   o.str("poster_path"),
		BackdropPath: o.str("backdrop_path"),
		ReleaseDate:  o.date("release_date"),
		VoteAverage:  o.float("vote_average"),
		VoteCount:    o.int("vote_count"),
		Popularity:   o.float("popularity"),
		Genres:       normalizeGenres(o.objects("genres")),
		Runtime:      o.optInt("runtime"),
		Tagline:      o.str("tagline"),
		Status:       o.str("status"),
	}
	for _, v := range o.child("videos").objects("results") {
		d.Videos = append(d.Videos, Video{
			Key:  v.str("key"),
			Site: v.str("site"),
			Type: v.str("type"),
			Name: v.str("name"),
		})
	}
	for _, c := range o.child("credits").objects("cast") {
		d.Cast = append(d.Cast, CastMember{
			ID:          c.int("id"),
			Name:        c.str("name"),
			Character:   c.str("character"),
			ProfilePath: c.str("profile_path"),
		})
	}
	d.Similar = normalizeItems(o.child("similar").objects("results"))
	d.Recommendations = normalizeItems(o.child("recommendations").objects("results"))
	return d
}

// ClampPage bounds a requested page to 1..MaxPages.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPages {
		return MaxPages
	}
	return page
}

// ClampTotalPages bounds an upstream page count to MaxPages.
func ClampTotalPages(total int) int {
	if total > MaxPages {
		return MaxPages
	}
	return total
}
