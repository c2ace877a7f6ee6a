package viewmodel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justbri/moviepicker/models"
)

func rating(v string) *string { return &v }

func rec(id string, status models.Status, rate string, genres ...models.Genre) models.Movie {
	m := models.Movie{ID: id, Name: "Movie " + id, Status: status, Genres: genres}
	if rate != "" {
		m.IMDbRating = rating(rate)
	}
	return m
}

func ids(movies []models.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.ID
	}
	return out
}

func bucketIDs(vm ViewModel) map[models.Genre][]string {
	out := make(map[models.Genre][]string)
	for _, b := range vm.Groups {
		out[b.Genre] = ids(b.Movies)
	}
	return out
}

func TestBuild_GroupsByEveryGenre(t *testing.T) {
	records := []models.Movie{
		rec("1", models.StatusWishlist, "8.0", models.GenreAction),
		rec("2", models.StatusWishlist, "5.0", models.GenreAction, models.GenreComedy),
	}

	vm := Build(records, DefaultFilters(), 1, DefaultPageSize)

	assert.Equal(t, []string{"1", "2"}, ids(vm.Flat))
	assert.Equal(t, map[models.Genre][]string{
		models.GenreAction: {"1", "2"},
		models.GenreComedy: {"2"},
	}, bucketIDs(vm))
	require.Len(t, vm.Groups, 2)
	assert.Equal(t, models.GenreAction, vm.Groups[0].Genre)
	assert.Equal(t, models.GenreComedy, vm.Groups[1].Genre)
}

func TestBuild_BucketOrderIsFirstSeen(t *testing.T) {
	records := []models.Movie{
		rec("1", models.StatusWishlist, "", models.GenreHorror),
		rec("2", models.StatusWishlist, "", models.GenreDrama, models.GenreHorror),
		rec("3", models.StatusWishlist, ""),
	}

	vm := Build(records, DefaultFilters(), 1, DefaultPageSize)

	var order []models.Genre
	for _, b := range vm.Groups {
		order = append(order, b.Genre)
	}
	assert.Equal(t, []models.Genre{models.GenreHorror, models.GenreDrama, models.GenreOthers}, order)
	assert.Equal(t, []string{"1", "2"}, bucketIDs(vm)[models.GenreHorror])
	assert.Equal(t, []string{"3"}, bucketIDs(vm)[models.GenreOthers])
}

func TestBuild_StatusFilter(t *testing.T) {
	records := []models.Movie{
		rec("1", models.StatusWishlist, "", models.GenreAction),
		rec("2", models.StatusWatched, "", models.GenreAction),
	}

	f := DefaultFilters()
	f.Status = models.StatusWatched
	vm := Build(records, f, 1, DefaultPageSize)

	assert.Equal(t, []string{"2"}, ids(vm.Flat))
	assert.Equal(t, 2, vm.Total)
}

func TestBuild_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	m := rec("1", models.StatusWishlist, "", models.GenreSciFi)
	m.Name = "The Matrix"

	f := DefaultFilters()
	f.Search = "matrix"
	assert.Len(t, Build([]models.Movie{m}, f, 1, 5).Flat, 1)

	f.Search = " MATR"
	assert.Len(t, Build([]models.Movie{m}, f, 1, 5).Flat, 1)

	f.Search = "   "
	assert.Empty(t, Build([]models.Movie{m}, f, 1, 5).Flat, "only the empty term matches everything")

	f.Search = "reloaded"
	assert.Empty(t, Build([]models.Movie{m}, f, 1, 5).Flat)
}

func TestBuild_RatingFloor(t *testing.T) {
	records := []models.Movie{
		rec("seven", models.StatusWishlist, "7.0", models.GenreDrama),
		rec("missing", models.StatusWishlist, "", models.GenreDrama),
		rec("junk", models.StatusWishlist, "N/A", models.GenreDrama),
	}

	tests := []struct {
		minRating string
		want      []string
	}{
		{"", []string{"seven", "missing", "junk"}},
		{"7.0", []string{"seven"}},
		{"7", []string{"seven"}},
		{"7.1", []string{}},
		{"abc", []string{"seven", "missing", "junk"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("min=%q", tt.minRating), func(t *testing.T) {
			f := DefaultFilters()
			f.MinRating = tt.minRating
			assert.Equal(t, tt.want, ids(Build(records, f, 1, 5).Flat))
		})
	}
}

func TestBuild_GenreFilter(t *testing.T) {
	records := []models.Movie{
		rec("1", models.StatusWishlist, "", models.GenreAction),
		rec("2", models.StatusWishlist, "", models.GenreAction, models.GenreComedy),
		rec("3", models.StatusWishlist, "", models.GenreDrama),
	}

	f := DefaultFilters()
	f.Genre = string(models.GenreComedy)
	vm := Build(records, f, 1, 5)

	assert.Equal(t, []string{"2"}, ids(vm.Flat))
	assert.Equal(t, map[models.Genre][]string{
		models.GenreAction: {"2"},
		models.GenreComedy: {"2"},
	}, bucketIDs(vm))

	f.Genre = ""
	assert.Len(t, Build(records, f, 1, 5).Flat, 3)
}

func TestBuild_Pagination(t *testing.T) {
	var records []models.Movie
	for i := 1; i <= 12; i++ {
		records = append(records, rec(fmt.Sprint(i), models.StatusWishlist, "", models.GenreAction))
	}

	vm := Build(records, DefaultFilters(), 3, DefaultPageSize)
	assert.Equal(t, 3, vm.TotalPages)
	assert.Equal(t, 3, vm.Page)
	assert.Equal(t, []string{"11", "12"}, ids(vm.PageItems))

	vm = Build(records, DefaultFilters(), 9, DefaultPageSize)
	assert.Equal(t, 3, vm.Page)

	vm = Build(records, DefaultFilters(), 0, DefaultPageSize)
	assert.Equal(t, 1, vm.Page)
	assert.Len(t, vm.PageItems, 5)
}

func TestBuild_EmptySetHasOnePage(t *testing.T) {
	vm := Build(nil, DefaultFilters(), 4, DefaultPageSize)
	assert.Equal(t, 1, vm.TotalPages)
	assert.Equal(t, 1, vm.Page)
	assert.Empty(t, vm.PageItems)
	assert.Empty(t, vm.Groups)
}

func TestBuild_PageClampsAfterDelete(t *testing.T) {
	records := []models.Movie{
		rec("1", models.StatusWishlist, "8.0", models.GenreAction),
		rec("2", models.StatusWishlist, "5.0", models.GenreAction, models.GenreComedy),
	}

	vm := Build(records, DefaultFilters(), 2, 1)
	require.Equal(t, 2, vm.TotalPages)
	require.Equal(t, 2, vm.Page)

	vm = Build(records[:1], DefaultFilters(), vm.Page, 1)
	assert.Equal(t, 1, vm.TotalPages)
	assert.Equal(t, 1, vm.Page)
	assert.Equal(t, []string{"1"}, ids(vm.PageItems))
}

func TestBuild_HoldsAcrossFiltersAndPages(t *testing.T) {
	genres := models.KnownGenres
	var records []models.Movie
	for i := 0; i < 23; i++ {
		status := models.StatusWishlist
		if i%4 == 0 {
			status = models.StatusWatched
		}
		g := []models.Genre{genres[i%len(genres)]}
		if i%3 == 0 {
			g = append(g, genres[(i+1)%len(genres)])
		}
		if i%7 == 0 {
			g = nil
		}
		records = append(records, rec(fmt.Sprint(i), status, fmt.Sprintf("%d.5", i%10), g...))
	}

	filters := []Filters{
		DefaultFilters(),
		{Status: models.StatusWatched, Genre: AllGenres},
		{Status: models.StatusWishlist, Genre: string(models.GenreDrama)},
		{Status: models.StatusWishlist, Genre: AllGenres, MinRating: "4"},
		{Status: models.StatusWishlist, Genre: AllGenres, Search: "1"},
	}

	for _, f := range filters {
		for _, pageSize := range []int{1, 2, 5} {
			for page := -1; page <= 25; page++ {
				vm := Build(records, f, page, pageSize)
				again := Build(records, f, page, pageSize)
				require.Equal(t, vm, again, "build is deterministic")

				require.GreaterOrEqual(t, vm.Page, 1)
				require.LessOrEqual(t, vm.Page, max(1, vm.TotalPages))
				require.LessOrEqual(t, len(vm.PageItems), pageSize)
				if vm.Page < vm.TotalPages {
					require.Len(t, vm.PageItems, pageSize)
				} else if len(vm.Flat) > 0 {
					require.Len(t, vm.PageItems, len(vm.Flat)-(vm.TotalPages-1)*pageSize)
				}

				seen := make(map[string]bool)
				for _, b := range vm.Groups {
					for _, m := range b.Movies {
						seen[m.ID] = true
					}
				}
				require.Len(t, seen, len(vm.Flat))
				for _, m := range vm.Flat {
					require.True(t, seen[m.ID], "movie %s missing from buckets", m.ID)
				}
			}
		}
	}
}

func TestViewModel_Contains(t *testing.T) {
	vm := Build([]models.Movie{rec("1", models.StatusWishlist, "", models.GenreAction)}, DefaultFilters(), 1, 5)
	assert.True(t, vm.Contains("1"))
	assert.False(t, vm.Contains("2"))
}

func TestViewModel_PageOf(t *testing.T) {
	var records []models.Movie
	for i := 1; i <= 7; i++ {
		records = append(records, rec(fmt.Sprint(i), models.StatusWishlist, "", models.GenreAction))
	}
	vm := Build(records, DefaultFilters(), 1, 3)
	assert.Equal(t, 1, vm.PageOf(vm.Flat[0].ID))
	assert.Equal(t, 2, vm.PageOf(vm.Flat[3].ID))
	assert.Equal(t, 3, vm.PageOf(vm.Flat[6].ID))
	assert.Equal(t, 0, vm.PageOf("missing"))
}
