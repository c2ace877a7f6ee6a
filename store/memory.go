package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
)

// MemoryStore is an in-process Store. Records are kept per owner in creation order.
type MemoryStore struct {
	mu     sync.Mutex
	movies map[string][]models.Movie
	feeds  map[string]map[*feed]struct{}
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		movies: make(map[string][]models.Movie),
		feeds:  make(map[string]map[*feed]struct{}),
		now:    time.Now,
	}
}

// Subscribe registers a subscription and queues the current set as its first snapshot.
// ctx only bounds registration; the subscription lives until Cancel.
func (s *MemoryStore) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, fmt.Errorf("subscribe: owner id is required")
	}

	var f *feed
	f = newFeed(func() {
		s.mu.Lock()
		delete(s.feeds[ownerID], f)
		if len(s.feeds[ownerID]) == 0 {
			delete(s.feeds, ownerID)
		}
		s.mu.Unlock()
		metrics.ActiveSubscriptions.WithLabelValues("memory").Dec()
	})

	s.mu.Lock()
	if s.feeds[ownerID] == nil {
		s.feeds[ownerID] = make(map[*feed]struct{})
	}
	s.feeds[ownerID][f] = struct{}{}
	f.enqueue(Snapshot{Movies: s.snapshotLocked(ownerID)})
	s.mu.Unlock()

	metrics.ActiveSubscriptions.WithLabelValues("memory").Inc()
	return f, nil
}

func (s *MemoryStore) Create(ctx context.Context, m models.Movie) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.OwnerID == "" {
		return "", fmt.Errorf("create: owner id is required")
	}
	if !m.Status.Valid() {
		return "", fmt.Errorf("create: invalid status %q", m.Status)
	}

	m = cloneMovie(m)
	m.ID = uuid.NewString()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.OwnerID] = append(s.movies[m.OwnerID], m)
	s.publishLocked(m.OwnerID)
	return m.ID, nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID, id string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("update: invalid status %q", *patch.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(ownerID, id)
	if i < 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	if patch.Status != nil {
		s.movies[ownerID][i].Status = *patch.Status
	}
	s.publishLocked(ownerID)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(ownerID, id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	s.movies[ownerID] = slices.Delete(s.movies[ownerID], i, i+1)
	s.publishLocked(ownerID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, id string) (models.Movie, error) {
	if err := ctx.Err(); err != nil {
		return models.Movie{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(ownerID, id)
	if i < 0 {
		return models.Movie{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return cloneMovie(s.movies[ownerID][i]), nil
}

func (s *MemoryStore) indexLocked(ownerID, id string) int {
	return slices.IndexFunc(s.movies[ownerID], func(m models.Movie) bool { return m.ID == id })
}

func (s *MemoryStore) snapshotLocked(ownerID string) []models.Movie {
	src := s.movies[ownerID]
	out := make([]models.Movie, len(src))
	for i, m := range src {
		out[i] = cloneMovie(m)
	}
	return out
}

func (s *MemoryStore) publishLocked(ownerID string) {
	for f := range s.feeds[ownerID] {
		if f.cancelled() {
			continue
		}
		f.enqueue(Snapshot{Movies: s.snapshotLocked(ownerID)})
		metrics.SnapshotsTotal.WithLabelValues("memory").Inc()
	}
}

func cloneMovie(m models.Movie) models.Movie {
	m.Genres = slices.Clone(m.Genres)
	m.Poster = cloneString(m.Poster)
	m.Plot = cloneString(m.Plot)
	m.Actors = cloneString(m.Actors)
	m.Website = cloneString(m.Website)
	m.IMDbRating = cloneString(m.IMDbRating)
	return m
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
