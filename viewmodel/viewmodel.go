// Package viewmodel derives the grouped, filtered and paginated movie list from a
// collection snapshot. Views are always rebuilt from scratch.
package viewmodel

import (
	"strconv"
	"strings"

	"github.com/justbri/moviepicker/models"
)

const (
	DefaultPageSize = 5
	// AllGenres disables the genre filter.
	AllGenres = "All"
)

type Filters struct {
	Status    models.Status `json:"status"`
	Search    string        `json:"search"`
	Genre     string        `json:"genre"`
	MinRating string        `json:"min_rating"`
}

// DefaultFilters shows the whole wishlist.
func DefaultFilters() Filters {
	return Filters{Status: models.StatusWishlist, Genre: AllGenres}
}

type Bucket struct {
	Genre  models.Genre   `json:"genre"`
	Movies []models.Movie `json:"movies"`
}

type ViewModel struct {
	Filters      Filters        `json:"filters"`
	Groups       []Bucket       `json:"groups"`
	Flat         []models.Movie `json:"flat"`
	PageItems    []models.Movie `json:"page_items"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
	Total        int            `json:"total"`
	ScrollTarget string         `json:"scroll_target,omitempty"`
}

// Build filters, groups and paginates records. It is deterministic and never fails:
// an unparsable MinRating means no floor, and page is clamped into [1, TotalPages].
func Build(records []models.Movie, f Filters, page, pageSize int) ViewModel {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if !f.Status.Valid() {
		f.Status = models.StatusWishlist
	}
	if f.Genre == "" {
		f.Genre = AllGenres
	}

	search := strings.ToLower(f.Search)
	floor, hasFloor := parseFloor(f.MinRating)

	flat := make([]models.Movie, 0, len(records))
	for _, m := range records {
		if m.Status != f.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Name), search) {
			continue
		}
		if hasFloor {
			r, ok := m.Rating()
			if !ok || r < floor {
				continue
			}
		}
		if f.Genre != AllGenres && !m.HasGenre(models.Genre(f.Genre)) {
			continue
		}
		flat = append(flat, m)
	}

	vm := ViewModel{
		Filters:  f,
		Groups:   group(flat),
		Flat:     flat,
		PageSize: pageSize,
		Total:    len(records),
	}

	vm.TotalPages = TotalPages(len(flat), pageSize)
	vm.Page = ClampPage(page, vm.TotalPages)

	start := (vm.Page - 1) * pageSize
	end := min(start+pageSize, len(flat))
	vm.PageItems = flat[start:end]
	return vm
}

func parseFloor(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// group appends each movie to the bucket of every genre it carries.
// Buckets appear in first-seen order.
func group(flat []models.Movie) []Bucket {
	buckets := []Bucket{}
	index := make(map[models.Genre]int)
	for _, m := range flat {
		genres := m.Genres
		if len(genres) == 0 {
			genres = []models.Genre{models.GenreOthers}
		}
		for _, g := range genres {
			i, ok := index[g]
			if !ok {
				i = len(buckets)
				index[g] = i
				buckets = append(buckets, Bucket{Genre: g})
			}
			buckets[i].Movies = append(buckets[i].Movies, m)
		}
	}
	return buckets
}

// TotalPages is ceil(n/pageSize), never less than 1.
func TotalPages(n, pageSize int) int {
	if n == 0 || pageSize < 1 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Contains reports whether the filtered set includes id.
func (vm ViewModel) Contains(id string) bool {
	return vm.PageOf(id) > 0
}

// PageOf returns the page the movie with id lands on, or 0 when it is filtered out.
func (vm ViewModel) PageOf(id string) int {
	for i, m := range vm.Flat {
		if m.ID == id {
			return i/vm.PageSize + 1
		}
	}
	return 0
}
