package services

import (
	"fmt"
	"strings"

	"github.com/justbri/moviepicker/models"
)

// notAvailable is the upstream placeholder for a missing field.
const notAvailable = "N/A"

// OMDbResponse is the subset of the OMDb title lookup we consume.
type OMDbResponse struct {
	Response   string `json:"Response"`
	Error      string `json:"Error"`
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Poster     string `json:"Poster"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Actors     string `json:"Actors"`
	Website    string `json:"Website"`
	IMDbRating string `json:"imdbRating"`
}

var genreTokens = map[string]models.Genre{
	"Action":  models.GenreAction,
	"Comedy":  models.GenreComedy,
	"Drama":   models.GenreDrama,
	"Horror":  models.GenreHorror,
	"Romance": models.GenreRomance,
	"Sci-Fi":  models.GenreSciFi,
	"SciFi":   models.GenreSciFi,
}

// NormalizeGenres maps a comma separated upstream genre string onto the whitelist.
// Unknown tokens are dropped and the result keeps first-seen order without duplicates.
// An empty result is returned as a non-nil empty slice; see GenresOrOthers.
func NormalizeGenres(raw string) []models.Genre {
	genres := []models.Genre{}
	seen := make(map[models.Genre]bool)
	for _, tok := range strings.Split(raw, ",") {
		g, ok := genreTokens[strings.TrimSpace(tok)]
		if !ok || seen[g] {
			continue
		}
		seen[g] = true
		genres = append(genres, g)
	}
	return genres
}

// GenresOrOthers substitutes the Others bucket for an empty genre set.
func GenresOrOthers(genres []models.Genre) []models.Genre {
	if len(genres) == 0 {
		return []models.Genre{models.GenreOthers}
	}
	return genres
}

// NormalizeMetadata validates an OMDb response and converts it to MovieDetails.
// Placeholder and empty values become nil.
func NormalizeMetadata(raw OMDbResponse) (models.MovieDetails, error) {
	if !strings.EqualFold(raw.Response, "True") {
		if raw.Error != "" {
			return models.MovieDetails{}, fmt.Errorf("%w: %s", ErrNotFound, raw.Error)
		}
		return models.MovieDetails{}, ErrNotFound
	}

	name := strings.TrimSpace(raw.Title)
	if name == "" {
		return models.MovieDetails{}, fmt.Errorf("%w: response has no title", ErrNotFound)
	}

	return models.MovieDetails{
		Name:       name,
		Poster:     optional(raw.Poster),
		Genres:     GenresOrOthers(NormalizeGenres(raw.Genre)),
		Plot:       optional(raw.Plot),
		Actors:     optional(raw.Actors),
		Website:    optional(raw.Website),
		IMDbRating: optional(raw.IMDbRating),
	}, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" || v == notAvailable {
		return nil
	}
	return &v
}
