package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justbri/moviepicker/metrics"
	"github.com/justbri/moviepicker/models"
)

// NotifyChannel is the LISTEN/NOTIFY channel the movies trigger publishes owner ids on.
const NotifyChannel = "movies_changed"

const movieColumns = `id, owner_id, name, poster, genres, plot, actors, website, imdb_rating, status, created_at`

// PostgresStore keeps movies in Postgres and turns row changes into snapshots through
// LISTEN/NOTIFY. Each subscription holds one pooled connection while it is open.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("subscribe: owner id is required")
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe: acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("subscribe: listen: %w", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	listening := make(chan struct{})

	f := newFeed(func() {
		stop()
		<-listening
		if !conn.Conn().IsClosed() {
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := conn.Exec(unlistenCtx, "UNLISTEN *"); err != nil {
				slog.Warn("Failed to unlisten", "owner_id", ownerID, "error", err)
			}
			cancel()
		}
		conn.Release()
		metrics.ActiveSubscriptions.WithLabelValues("postgres").Dec()
	})
	metrics.ActiveSubscriptions.WithLabelValues("postgres").Inc()

	go func() {
		c := conn.Conn()
		listen(listenCtx, c, func(ctx context.Context) ([]models.Movie, error) {
			return queryMovies(ctx, c, ownerID)
		}, ownerID, f)
		close(listening)
		// The listener only stops on its own when the connection is unusable.
		if listenCtx.Err() == nil {
			f.end()
		}
	}()

	return f, nil
}

type notifier interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// listen emits a snapshot up front and again for every notification carrying
// ownerID. A failed query is reported and listening goes on; it returns when ctx
// is done or waiting for notifications fails.
func listen(ctx context.Context, n notifier, query func(context.Context) ([]models.Movie, error), ownerID string, f *feed) {
	emit := func() {
		movies, err := query(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("Movie snapshot query failed", "owner_id", ownerID, "error", err)
			f.enqueue(Snapshot{Err: err})
			return
		}
		f.enqueue(Snapshot{Movies: movies})
		metrics.SnapshotsTotal.WithLabelValues("postgres").Inc()
	}

	emit()
	for {
		note, err := n.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Movie subscription lost", "owner_id", ownerID, "error", err)
				f.enqueue(Snapshot{Err: fmt.Errorf("wait for notification: %w", err)})
			}
			return
		}
		if note.Payload != ownerID {
			continue
		}
		emit()
	}
}

func queryMovies(ctx context.Context, conn *pgx.Conn, ownerID string) ([]models.Movie, error) {
	rows, err := conn.Query(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	movies, err := pgx.CollectRows(rows, scanMovie)
	if err != nil {
		return nil, fmt.Errorf("scan movies: %w", err)
	}
	return movies, nil
}

func scanMovie(row pgx.CollectableRow) (models.Movie, error) {
	var m models.Movie
	var genres []string
	var status string
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Poster, &genres, &m.Plot, &m.Actors,
		&m.Website, &m.IMDbRating, &status, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.Status = models.Status(status)
	m.Genres = make([]models.Genre, len(genres))
	for i, g := range genres {
		m.Genres[i] = models.Genre(g)
	}
	return m, nil
}

func (s *PostgresStore) Create(ctx context.Context, m models.Movie) (string, error) {
	if m.OwnerID == "" {
		return "", fmt.Errorf("create: owner id is required")
	}
	if !m.Status.Valid() {
		return "", fmt.Errorf("create: invalid status %q", m.Status)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	genres := make([]string, len(m.Genres))
	for i, g := range m.Genres {
		genres[i] = string(g)
	}

	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO movies (`+movieColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, m.OwnerID, m.Name, m.Poster, genres, m.Plot, m.Actors, m.Website, m.IMDbRating,
		string(m.Status), m.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert movie: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, ownerID, id string, patch Patch) error {
	var status *string
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return fmt.Errorf("update: invalid status %q", *patch.Status)
		}
		v := string(*patch.Status)
		status = &v
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE movies SET status = COALESCE($3, status) WHERE owner_id = $1 AND id = $2`,
		ownerID, id, status)
	if err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM movies WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, id string) (models.Movie, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+movieColumns+` FROM movies WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return models.Movie{}, fmt.Errorf("get movie: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMovie)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Movie{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Movie{}, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}
