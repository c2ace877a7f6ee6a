// Package store is the per-owner reactive movie collection.
//
// A Subscription delivers the full, ordered set of an owner's movies after every
// mutation. Consumers treat each Snapshot as authoritative; there are no diffs.
package store

import (
	"context"
	"errors"

	"github.com/justbri/moviepicker/models"
)

var ErrNotFound = errors.New("movie not found")

// Snapshot is one emission of a subscription. Err is set when the store failed to
// produce the set; Movies is then nil and consumers keep their previous state.
type Snapshot struct {
	Movies []models.Movie
	Err    error
}

type Subscription interface {
	// Snapshots yields emissions in order. It is closed once the subscription ends,
	// either through Cancel or because the driver lost its change feed.
	Snapshots() <-chan Snapshot
	// Cancel stops the subscription and releases its resources. It is idempotent and
	// nothing is delivered after it returns.
	Cancel()
}

// Patch lists the mutable fields of a movie. Nil fields are left unchanged.
type Patch struct {
	Status *models.Status
}

type Store interface {
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
	Create(ctx context.Context, m models.Movie) (string, error)
	Update(ctx context.Context, ownerID, id string, patch Patch) error
	Delete(ctx context.Context, ownerID, id string) error
	Get(ctx context.Context, ownerID, id string) (models.Movie, error)
}

// First subscribes, waits for the initial snapshot and cancels.
func First(ctx context.Context, s Store, ownerID string) ([]models.Movie, error) {
	sub, err := s.Subscribe(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	defer sub.Cancel()

	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			return nil, errors.New("subscription closed before first snapshot")
		}
		return snap.Movies, snap.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
