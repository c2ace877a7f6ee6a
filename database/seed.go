package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/services"
)

// SeedAdminUser registers the configured admin account. Without a password it does nothing,
// and an existing account is left untouched.
func SeedAdminUser(ctx context.Context, cfg config.AdminConfig, users services.Users) error {
	if cfg.Password == "" {
		return nil
	}

	_, err := users.Register(ctx, cfg.Username, cfg.Email, cfg.Username, cfg.Password)
	if errors.Is(err, services.ErrUserExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	slog.Info("Seeded admin user", "username", cfg.Username)
	return nil
}
