package models

import (
	"strconv"
	"strings"
	"time"
)

type Genre string

const (
	GenreAction  Genre = "Action"
	GenreComedy  Genre = "Comedy"
	GenreDrama   Genre = "Drama"
	GenreHorror  Genre = "Horror"
	GenreRomance Genre = "Romance"
	GenreSciFi   Genre = "SciFi"

	// GenreOthers is the synthetic bucket for records with no whitelisted genre.
	GenreOthers Genre = "Others"
)

// KnownGenres is the whitelist upstream genre tokens are matched against.
var KnownGenres = []Genre{GenreAction, GenreComedy, GenreDrama, GenreHorror, GenreRomance, GenreSciFi}

type Status string

const (
	StatusWishlist Status = "wishlist"
	StatusWatched  Status = "watched"
)

func (s Status) Valid() bool {
	return s == StatusWishlist || s == StatusWatched
}

// Opposite returns the status a toggle moves to.
func (s Status) Opposite() Status {
	if s == StatusWatched {
		return StatusWishlist
	}
	return StatusWatched
}

// ParseStatus maps a query or form value to a Status, defaulting to wishlist.
func ParseStatus(v string) Status {
	if s := Status(strings.ToLower(strings.TrimSpace(v))); s.Valid() {
		return s
	}
	return StatusWishlist
}

type Movie struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Poster     *string   `json:"poster,omitempty"`
	Genres     []Genre   `json:"genres"`
	Plot       *string   `json:"plot,omitempty"`
	Actors     *string   `json:"actors,omitempty"`
	Website    *string   `json:"website,omitempty"`
	IMDbRating *string   `json:"imdb_rating,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasGenre reports whether g is one of the movie's genre tags.
func (m Movie) HasGenre(g Genre) bool {
	for _, mg := range m.Genres {
		if mg == g {
			return true
		}
	}
	return false
}

// Rating parses the IMDb rating. ok is false for a missing or non-numeric rating.
func (m Movie) Rating() (float64, bool) {
	if m.IMDbRating == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*m.IMDbRating), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Display strings used when a field is absent.
const (
	PlotUnavailable    = "Plot not available"
	ActorsUnavailable  = "Cast not available"
	WebsiteUnavailable = "Not available"
	RatingUnavailable  = "N/A"
)

func (m Movie) PlotText() string    { return orDefault(m.Plot, PlotUnavailable) }
func (m Movie) ActorsText() string  { return orDefault(m.Actors, ActorsUnavailable) }
func (m Movie) WebsiteText() string { return orDefault(m.Website, WebsiteUnavailable) }
func (m Movie) RatingText() string  { return orDefault(m.IMDbRating, RatingUnavailable) }

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// MovieDetails is the normalised metadata for a title before it is stored.
type MovieDetails struct {
	Name       string
	Poster     *string
	Genres     []Genre
	Plot       *string
	Actors     *string
	Website    *string
	IMDbRating *string
}
