package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/justbri/moviepicker/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username or email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// Identity is what the rest of the service knows about the signed-in user.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func IdentityOf(u *models.User) Identity {
	return Identity{ID: strconv.FormatInt(u.ID, 10), DisplayName: u.Name()}
}

// Users is the account store behind login and registration.
type Users interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	Register(ctx context.Context, username, email, displayName, password string) (*models.User, error)
	ByID(ctx context.Context, id int64) (*models.User, error)
}

const userColumns = `id, username, email, display_name, password_hash, is_admin, created_at, updated_at`

type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PostgresUsers) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := scanUser(p.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (p *PostgresUsers) Register(ctx context.Context, username, email, displayName, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := scanUser(p.pool.QueryRow(ctx,
		"INSERT INTO users (username, email, display_name, password_hash) VALUES ($1, $2, $3, $4) RETURNING "+userColumns,
		username, email, displayName, string(hash)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

func (p *PostgresUsers) ByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(p.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

// MemoryUsers keeps accounts in process, for the memory store driver and tests.
type MemoryUsers struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.User
	cost   int
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: make(map[int64]*models.User), cost: bcrypt.DefaultCost}
}

func (m *MemoryUsers) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	m.mu.RLock()
	var found *models.User
	for _, u := range m.byID {
		if u.Username == username {
			found = u
			break
		}
	}
	m.mu.RUnlock()

	if found == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := *found
	return &u, nil
}

func (m *MemoryUsers) Register(ctx context.Context, username, email, displayName, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username || strings.EqualFold(u.Email, email) {
			return nil, ErrUserExists
		}
	}
	m.nextID++
	now := time.Now()
	u := &models.User{
		ID:           m.nextID,
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *MemoryUsers) ByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}
