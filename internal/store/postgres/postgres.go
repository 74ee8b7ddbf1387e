// Package postgres stores submissions in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/submission"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements submission.Store on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ submission.Store = (*Store)(nil)

// Open connects to url, pings it within pingTimeout and applies pending migrations.
func Open(ctx context.Context, url string, pingTimeout time.Duration, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create pool: %v", domain.ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping db: %v", domain.ErrStoreUnavailable, err)
	}

	if err := migrateUp(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: migrate postgres: %v", domain.ErrStoreUnavailable, err)
	}

	logger.Info("postgres store ready", zap.String("host", cfg.ConnConfig.Host), zap.String("database", cfg.ConnConfig.Database))
	return &Store{pool: pool, logger: logger}, nil
}

func migrateUp(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate instance: %w", err)
	}
	defer func() {
		m.Close()
		db.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

const columns = `id, created_at, age, sex, cp, trtbps, chol, fbs, restecg, thalachh, exng, ca,
	predicted_label, predicted_probability, note, user_agent, ip`

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Append inserts sub and fills in its ID and CreatedAt.
func (s *Store) Append(ctx context.Context, sub *submission.Submission) error {
	sub.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO submissions (created_at, age, sex, cp, trtbps, chol, fbs, restecg, thalachh, exng, ca,
			predicted_label, predicted_probability, note, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`,
		sub.CreatedAt, sub.Age, sub.Sex, sub.CP, sub.Trtbps, sub.Chol, sub.FBS, sub.RestECG, sub.Thalachh, sub.Exng, sub.CA,
		sub.Label, sub.Probability, sub.Note, optional(sub.UserAgent), optional(sub.IP),
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("%w: insert submission: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// where renders the filter with placeholders numbered from next.
func where(f submission.Filter, next int) (string, []any) {
	var conds []string
	var args []any
	if f.From != nil {
		conds = append(conds, fmt.Sprintf("created_at >= $%d", next+len(args)))
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, fmt.Sprintf("created_at < $%d", next+len(args)))
		args = append(args, *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scan(row pgx.Row) (submission.Submission, error) {
	var (
		sub       submission.Submission
		userAgent *string
		ip        *string
	)
	err := row.Scan(
		&sub.ID, &sub.CreatedAt,
		&sub.Age, &sub.Sex, &sub.CP, &sub.Trtbps, &sub.Chol, &sub.FBS, &sub.RestECG, &sub.Thalachh, &sub.Exng, &sub.CA,
		&sub.Label, &sub.Probability, &sub.Note, &userAgent, &ip,
	)
	if err != nil {
		return sub, err
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	if userAgent != nil {
		sub.UserAgent = *userAgent
	}
	if ip != nil {
		sub.IP = *ip
	}
	return sub, nil
}

// List returns one page, newest first.
func (s *Store) List(ctx context.Context, f submission.Filter, p submission.Page) ([]submission.Submission, int, error) {
	cond, args := where(f, 1)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM submissions"+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%w: count submissions: %v", domain.ErrStoreUnavailable, err)
	}

	query := fmt.Sprintf("SELECT %s FROM submissions%s ORDER BY id DESC LIMIT $%d OFFSET $%d",
		columns, cond, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list submissions: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]submission.Submission, 0, p.Size)
	for rows.Next() {
		sub, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scan submission: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterate submissions: %v", domain.ErrStoreUnavailable, err)
	}
	return out, total, nil
}

// Each streams every matching submission, newest first.
func (s *Store) Each(ctx context.Context, f submission.Filter, fn func(submission.Submission) error) error {
	cond, args := where(f, 1)
	rows, err := s.pool.Query(ctx, "SELECT "+columns+" FROM submissions"+cond+" ORDER BY id DESC", args...)
	if err != nil {
		return fmt.Errorf("%w: query submissions: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		sub, err := scan(rows)
		if err != nil {
			return fmt.Errorf("%w: scan submission: %v", domain.ErrStoreUnavailable, err)
		}
		if err := fn(sub); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate submissions: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Stats aggregates matching submissions in a single query.
func (s *Store) Stats(ctx context.Context, f submission.Filter) (submission.Stats, error) {
	cond, args := where(f, 3)
	query := `SELECT
		COUNT(*),
		COALESCE(SUM(predicted_probability), 0),
		COUNT(*) FILTER (WHERE predicted_probability < $1),
		COUNT(*) FILTER (WHERE predicted_probability >= $1 AND predicted_probability < $2),
		COUNT(*) FILTER (WHERE predicted_probability >= $2)
		FROM submissions` + cond

	var (
		count int
		sum   float64
		dist  submission.RiskDistribution
	)
	err := s.pool.QueryRow(ctx, query, append([]any{domain.LowRiskBelow, domain.HighRiskFrom}, args...)...).
		Scan(&count, &sum, &dist.Low, &dist.Medium, &dist.High)
	if err != nil {
		return submission.Stats{}, fmt.Errorf("%w: submission stats: %v", domain.ErrStoreUnavailable, err)
	}
	return submission.NewStats(count, sum, dist), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
