// Package store persists fetched records through gorm, one transaction per
// chunk.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/swapi-loader/pkg/people"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	rowsPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_rows_persisted_total",
		Help: "Total rows committed by storage mode",
	}, []string{"mode"})

	rowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_rows_skipped_total",
		Help: "Total not-found records skipped by the columns mode",
	})

	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapi_commit_duration_seconds",
		Help:    "Duration of one chunk transaction",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	persistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_persist_errors_total",
		Help: "Total chunk transactions that failed and were rolled back",
	})
)

// ErrEmptyBatch is returned by Persist when called without records.
var ErrEmptyBatch = errors.New("empty batch")

// PingTimeout bounds the startup connectivity check.
const PingTimeout = 10 * time.Second

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the postgres:// connection URL for c.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Options tune the store independent of the driver.
type Options struct {
	// Mode selects the table layout (default ModeJSON).
	Mode Mode
	// InsertBatchSize is the number of rows per INSERT statement (default 100).
	InsertBatchSize int
	// SlowThreshold logs statements slower than this at warn (0 disables).
	SlowThreshold time.Duration
}

// Store wraps the gorm connection pool. It is safe for concurrent use.
type Store struct {
	DB        *gorm.DB
	mode      Mode
	batchSize int
	logger    zerolog.Logger
}

// Open connects to PostgreSQL and creates the mode's table if absent.
func Open(ctx context.Context, cfg PostgresConfig, opts Options) (*Store, error) {
	s, err := open(ctx, postgres.Open(cfg.DSN()), opts)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("Connected to the database")

	return s, nil
}

// OpenSQLite opens (or creates) the SQLite database at path and creates the
// mode's table if absent.
func OpenSQLite(ctx context.Context, path string, opts Options) (*Store, error) {
	s, err := open(ctx, sqlite.Open(path), opts)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	sqlDB, err := s.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s.logger.Info().Str("path", path).Msg("Opened SQLite database")

	return s, nil
}

func open(ctx context.Context, dialector gorm.Dialector, opts Options) (*Store, error) {
	if opts.Mode == "" {
		opts.Mode = ModeJSON
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown storage mode %q", opts.Mode)
	}
	if opts.InsertBatchSize <= 0 {
		opts.InsertBatchSize = 100
	}

	logger := log.With().Str("component", "store").Str("mode", string(opts.Mode)).Logger()

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger, opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Existing tables are used as they are; only a missing table is created.
	model := modelFor(opts.Mode)
	migrator := db.WithContext(ctx).Migrator()
	if !migrator.HasTable(model) {
		if err := migrator.CreateTable(model); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	return &Store{
		DB:        db,
		mode:      opts.Mode,
		batchSize: opts.InsertBatchSize,
		logger:    logger,
	}, nil
}

// Mode returns the storage mode of the store.
func (s *Store) Mode() Mode {
	return s.mode
}

// Persist writes one row per record in a single transaction and commits.
// In ModeColumns not-found records are skipped; a batch consisting only of
// not-found records commits nothing. Any failure rolls the whole batch back.
func (s *Store) Persist(ctx context.Context, records []*people.Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	start := time.Now()

	var (
		rows    any
		n       int
		skipped int
	)
	switch s.mode {
	case ModeColumns:
		persons, skip := personRows(records)
		rows, n, skipped = &persons, len(persons), skip
	default:
		heroes, err := heroRows(records)
		if err != nil {
			persistErrorsTotal.Inc()
			return fmt.Errorf("persist: %w", err)
		}
		rows, n = &heroes, len(heroes)
	}

	if skipped > 0 {
		rowsSkippedTotal.Add(float64(skipped))
	}
	if n == 0 {
		s.logger.Debug().
			Int("records", len(records)).
			Msg("No rows to persist")
		return nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
	if err != nil {
		persistErrorsTotal.Inc()
		s.logger.Error().
			Err(err).
			Int("rows", n).
			Msg("Transaction rolled back")
		return fmt.Errorf("persist %d rows: %w", n, err)
	}

	rowsPersistedTotal.WithLabelValues(string(s.mode)).Add(float64(n))
	commitDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug().
		Int("records", len(records)).
		Int("rows", n).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("Chunk committed")

	return nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(modelFor(s.mode)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

// IDs returns the stored row ids in ascending order.
func (s *Store) IDs(ctx context.Context) ([]int, error) {
	var ids []int
	if err := s.DB.WithContext(ctx).Model(modelFor(s.mode)).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.logger.Info().Msg("Closing database connection pool")

	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
