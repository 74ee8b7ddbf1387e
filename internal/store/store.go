// Package store opens the submission backend selected by the database URL.
package store

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/store/postgres"
	"github.com/Skufu/heartrisk/internal/store/sqlite"
	"github.com/Skufu/heartrisk/internal/submission"
)

// Backend names a store implementation.
type Backend string

const (
	SQLite   Backend = "sqlite"
	Postgres Backend = "postgres"
)

// Resolve maps a database URL to a backend and the location that backend expects.
// postgres:// and postgresql:// select PostgreSQL; sqlite:// prefixes are stripped;
// anything else is a SQLite file path.
func Resolve(url string) (Backend, string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, strings.TrimPrefix(url, "sqlite://")
	default:
		return SQLite, url
	}
}

// Open connects to the backend named by url.
func Open(ctx context.Context, url string, pingTimeout time.Duration, logger *zap.Logger) (submission.Store, error) {
	backend, location := Resolve(url)
	logger.Info("opening submission store", zap.String("backend", string(backend)))

	if backend == Postgres {
		s, err := postgres.Open(ctx, location, pingTimeout, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := sqlite.Open(ctx, location, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
