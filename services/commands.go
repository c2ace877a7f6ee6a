package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
	"github.com/justbri/moviepicker/store"
	"github.com/justbri/moviepicker/viewmodel"
)

// ScrollTargets receives the id of a newly created movie. viewmodel.Engine implements it.
type ScrollTargets interface {
	MarkNewlyAdded(id string) bool
}

// Commands are the user operations on a collection. They never wait for the
// subscription to reflect a mutation.
type Commands struct {
	metadata MetadataLookup
	trailers TrailerSearch
	store    store.Store
	picker   *Picker
	targets  ScrollTargets
	now      func() time.Time
}

type CommandOption func(*Commands)

func WithClock(now func() time.Time) CommandOption {
	return func(c *Commands) { c.now = now }
}

func WithPicker(p *Picker) CommandOption {
	return func(c *Commands) { c.picker = p }
}

func NewCommands(metadata MetadataLookup, trailers TrailerSearch, st store.Store, opts ...CommandOption) *Commands {
	c := &Commands{
		metadata: metadata,
		trailers: trailers,
		store:    st,
		picker:   NewPicker(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTargets returns a copy of c that reports created ids to t.
func (c *Commands) WithTargets(t ScrollTargets) *Commands {
	cp := *c
	cp.targets = t
	return &cp
}

// AddMovie looks the title up and stores it on the owner's wishlist.
func (c *Commands) AddMovie(ctx context.Context, ownerID, title, year string) (id string, err error) {
	defer func() { metrics.RecordCommand("add", err) }()

	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: movie title is required", ErrValidation)
	}

	details, err := c.metadata.Lookup(ctx, title, strings.TrimSpace(year))
	if err != nil {
		return "", err
	}

	id, err = c.store.Create(ctx, models.Movie{
		OwnerID:    ownerID,
		Name:       details.Name,
		Poster:     details.Poster,
		Genres:     GenresOrOthers(details.Genres),
		Plot:       details.Plot,
		Actors:     details.Actors,
		Website:    details.Website,
		IMDbRating: details.IMDbRating,
		Status:     models.StatusWishlist,
		CreatedAt:  c.now(),
	})
	if err != nil {
		return "", storeError("add movie", err)
	}

	slog.Info("Movie added", "owner_id", ownerID, "movie_id", id, "name", details.Name)
	if c.targets != nil {
		c.targets.MarkNewlyAdded(id)
	}
	return id, nil
}

// DeleteMovie removes a movie. The visible list changes once the store re-emits.
func (c *Commands) DeleteMovie(ctx context.Context, ownerID, id string) (err error) {
	defer func() { metrics.RecordCommand("delete", err) }()

	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: movie id is required", ErrValidation)
	}
	if err := c.store.Delete(ctx, ownerID, id); err != nil {
		return storeError("delete movie", err)
	}
	return nil
}

// ToggleStatus moves a movie to the status opposite the list it is shown in.
func (c *Commands) ToggleStatus(ctx context.Context, ownerID, id string, currentFilter models.Status) (err error) {
	defer func() { metrics.RecordCommand("toggle", err) }()

	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: movie id is required", ErrValidation)
	}
	if !currentFilter.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, currentFilter)
	}
	next := currentFilter.Opposite()
	if err := c.store.Update(ctx, ownerID, id, store.Patch{Status: &next}); err != nil {
		return storeError("toggle status", err)
	}
	return nil
}

// PickRandom draws from the grouping currently displayed.
func (c *Commands) PickRandom(groups []viewmodel.Bucket) (models.Movie, bool) {
	m, ok := c.picker.PickRandom(groups)
	metrics.RecordCommand("pick", nil)
	return m, ok
}

// Trailer returns the embed URL of a title's trailer.
func (c *Commands) Trailer(ctx context.Context, title string) (url string, err error) {
	defer func() { metrics.RecordCommand("trailer", err) }()
	return c.trailers.SearchTrailer(ctx, title)
}

// Details returns one of the owner's movies.
func (c *Commands) Details(ctx context.Context, ownerID, id string) (models.Movie, error) {
	m, err := c.store.Get(ctx, ownerID, id)
	if err != nil {
		return models.Movie{}, storeError("movie details", err)
	}
	return m, nil
}

// storeError maps store failures onto the command error kinds.
func storeError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
