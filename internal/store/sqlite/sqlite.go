// Package sqlite is the default on-disk submission store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/submission"
)

//go:embed migrations/*.sql
var migrations embed.FS

const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Store implements submission.Store on a single SQLite file.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ submission.Store = (*Store)(nil)

// Open creates or opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("sqlite store needs a file path, got %q", path)
	}
	dsn := buildDSN(path)

	if err := migrateUp(dsn); err != nil {
		return nil, fmt.Errorf("%w: migrate sqlite: %v", domain.ErrStoreUnavailable, err)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", domain.ErrStoreUnavailable, err)
	}
	// One writer; ids come from AUTOINCREMENT under the connection's lock.
	db.SetMaxOpenConns(1)

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func buildDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func migrateUp(dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("migration driver: %w", err)
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate instance: %w", err)
	}
	// Closing m also closes db.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

type row struct {
	ID          int64          `db:"id"`
	CreatedAt   int64          `db:"created_at"`
	Age         int            `db:"age"`
	Sex         int            `db:"sex"`
	CP          int            `db:"cp"`
	Trtbps      int            `db:"trtbps"`
	Chol        int            `db:"chol"`
	FBS         int            `db:"fbs"`
	RestECG     int            `db:"restecg"`
	Thalachh    int            `db:"thalachh"`
	Exng        int            `db:"exng"`
	CA          int            `db:"ca"`
	Label       int            `db:"predicted_label"`
	Probability float64        `db:"predicted_probability"`
	Note        sql.NullString `db:"note"`
	UserAgent   sql.NullString `db:"user_agent"`
	IP          sql.NullString `db:"ip"`
}

func toRow(s *submission.Submission) row {
	return row{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt.UnixMicro(),
		Age:         s.Age,
		Sex:         s.Sex,
		CP:          s.CP,
		Trtbps:      s.Trtbps,
		Chol:        s.Chol,
		FBS:         s.FBS,
		RestECG:     s.RestECG,
		Thalachh:    s.Thalachh,
		Exng:        s.Exng,
		CA:          s.CA,
		Label:       s.Label,
		Probability: s.Probability,
		Note:        nullString(s.Note),
		UserAgent:   sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		IP:          sql.NullString{String: s.IP, Valid: s.IP != ""},
	}
}

func (r row) submission() submission.Submission {
	s := submission.Submission{
		ID:        r.ID,
		CreatedAt: time.UnixMicro(r.CreatedAt).UTC(),
		FeatureVector: domain.FeatureVector{
			Age: r.Age, Sex: r.Sex, CP: r.CP, Trtbps: r.Trtbps, Chol: r.Chol,
			FBS: r.FBS, RestECG: r.RestECG, Thalachh: r.Thalachh, Exng: r.Exng, CA: r.CA,
		},
		Prediction: domain.Prediction{Label: r.Label, Probability: r.Probability},
		UserAgent:  r.UserAgent.String,
		IP:         r.IP.String,
	}
	if r.Note.Valid {
		note := r.Note.String
		s.Note = &note
	}
	return s
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

const columns = `id, created_at, age, sex, cp, trtbps, chol, fbs, restecg, thalachh, exng, ca,
	predicted_label, predicted_probability, note, user_agent, ip`

// Append inserts s and fills in its ID and CreatedAt.
func (s *Store) Append(ctx context.Context, sub *submission.Submission) error {
	sub.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO submissions (created_at, age, sex, cp, trtbps, chol, fbs, restecg, thalachh, exng, ca,
			predicted_label, predicted_probability, note, user_agent, ip)
		VALUES (:created_at, :age, :sex, :cp, :trtbps, :chol, :fbs, :restecg, :thalachh, :exng, :ca,
			:predicted_label, :predicted_probability, :note, :user_agent, :ip)`, toRow(sub))
	if err != nil {
		return fmt.Errorf("%w: insert submission: %v", domain.ErrStoreUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: submission id: %v", domain.ErrStoreUnavailable, err)
	}
	sub.ID = id
	return nil
}

func where(f submission.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UnixMicro())
	}
	if f.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UnixMicro())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page, newest first.
func (s *Store) List(ctx context.Context, f submission.Filter, p submission.Page) ([]submission.Submission, int, error) {
	cond, args := where(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM submissions"+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count submissions: %v", domain.ErrStoreUnavailable, err)
	}

	var rows []row
	query := "SELECT " + columns + " FROM submissions" + cond + " ORDER BY id DESC LIMIT ? OFFSET ?"
	if err := s.db.SelectContext(ctx, &rows, query, append(args, p.Size, p.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("%w: list submissions: %v", domain.ErrStoreUnavailable, err)
	}

	out := make([]submission.Submission, len(rows))
	for i, r := range rows {
		out[i] = r.submission()
	}
	return out, total, nil
}

// Each streams every matching submission, newest first.
func (s *Store) Each(ctx context.Context, f submission.Filter, fn func(submission.Submission) error) error {
	cond, args := where(f)
	rows, err := s.db.QueryxContext(ctx, "SELECT "+columns+" FROM submissions"+cond+" ORDER BY id DESC", args...)
	if err != nil {
		return fmt.Errorf("%w: query submissions: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("%w: scan submission: %v", domain.ErrStoreUnavailable, err)
		}
		if err := fn(r.submission()); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: iterate submissions: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type statsRow struct {
	Count  int     `db:"n"`
	Sum    float64 `db:"total"`
	Low    int     `db:"low"`
	Medium int     `db:"medium"`
	High   int     `db:"high"`
}

// Stats aggregates matching submissions in a single query.
func (s *Store) Stats(ctx context.Context, f submission.Filter) (submission.Stats, error) {
	cond, args := where(f)
	query := `SELECT
		COUNT(*) AS n,
		COALESCE(SUM(predicted_probability), 0) AS total,
		COALESCE(SUM(CASE WHEN predicted_probability < ? THEN 1 ELSE 0 END), 0) AS low,
		COALESCE(SUM(CASE WHEN predicted_probability >= ? AND predicted_probability < ? THEN 1 ELSE 0 END), 0) AS medium,
		COALESCE(SUM(CASE WHEN predicted_probability >= ? THEN 1 ELSE 0 END), 0) AS high
		FROM submissions` + cond

	bounds := []any{domain.LowRiskBelow, domain.LowRiskBelow, domain.HighRiskFrom, domain.HighRiskFrom}
	var sr statsRow
	if err := s.db.GetContext(ctx, &sr, query, append(bounds, args...)...); err != nil {
		return submission.Stats{}, fmt.Errorf("%w: submission stats: %v", domain.ErrStoreUnavailable, err)
	}
	return submission.NewStats(sr.Count, sr.Sum, submission.RiskDistribution{Low: sr.Low, Medium: sr.Medium, High: sr.High}), nil
}

// Ping checks that the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
