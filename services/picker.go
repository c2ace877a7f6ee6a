package services

import (
	"math/rand/v2"

	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/viewmodel"
)

// NoMoviesMessage is reported by PickRandom when nothing is visible.
const NoMoviesMessage = "No movies in list"

// Picker selects uniformly from the buckets currently on screen.
type Picker struct {
	intN func(n int) int
}

func NewPicker() *Picker {
	return &Picker{intN: rand.IntN}
}

// NewSeededPicker is a Picker with a reproducible sequence.
func NewSeededPicker(seed uint64) *Picker {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Picker{intN: r.IntN}
}

// PickRandom flattens every bucket in display order and draws one index from [0, n).
// A movie shown under several genres is counted once per bucket. ok is false when
// the grouping is empty.
func (p *Picker) PickRandom(groups []viewmodel.Bucket) (models.Movie, bool) {
	var all []models.Movie
	for _, b := range groups {
		all = append(all, b.Movies...)
	}
	if len(all) == 0 {
		return models.Movie{}, false
	}
	return all[p.intN(len(all))], true
}
