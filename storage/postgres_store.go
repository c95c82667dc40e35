package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"krisha-pipeline/models"
	"krisha-pipeline/utils"
)

var (
	// ErrStoreConnection means the store could not be reached; nothing was written.
	ErrStoreConnection = errors.New("store connection failed")
	// ErrStoreWrite means a batch write failed and was rolled back.
	ErrStoreWrite = errors.New("store write failed")
)

var tableNameRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresOptions tunes a PostgresStore.
type PostgresOptions struct {
	Table        string
	PingAttempts int
	PingDelay    time.Duration
	// Now stamps created_at/updated_at; defaults to time.Now.
	Now func() time.Time
}

// PostgresStore persists clean listings in a single table keyed by url.
type PostgresStore struct {
	db     *sql.DB
	table  string
	now    func() time.Time
	logger *utils.Logger
}

// NewPostgresStore opens a connection with the given database/sql driver
// ("postgres" for lib/pq, "pgx" for pgx) and pings until the server answers.
func NewPostgresStore(ctx context.Context, driver, dsn string, opts PostgresOptions, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w: %w", ErrStoreConnection, err)
	}

	if err := pingWithRetry(ctx, db, opts.PingAttempts, opts.PingDelay, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w: %w", ErrStoreConnection, err)
	}

	return newPostgresStore(db, opts, logger)
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int, delay time.Duration, logger *utils.Logger) error {
	var err error
	for i := 1; ; i++ {
		if err = db.PingContext(ctx); err == nil || i >= attempts {
			return err
		}
		logger.Warn("[postgres] Ping failed (attempt %d/%d): %v", i, attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB, opts PostgresOptions, logger *utils.Logger) (*PostgresStore, error) {
	return newPostgresStore(db, opts, logger)
}

func newPostgresStore(db *sql.DB, opts PostgresOptions, logger *utils.Logger) (*PostgresStore, error) {
	table := opts.Table
	if table == "" {
		table = "apartments"
	}
	if !tableNameRegexp.MatchString(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, table: table, now: now, logger: logger}, nil
}

// Ping checks connectivity; used by the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the table and its indexes when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id          BIGSERIAL PRIMARY KEY,
			url         TEXT             NOT NULL UNIQUE,
			title       TEXT             NOT NULL DEFAULT 'unknown',
			price       DOUBLE PRECISION,
			rooms       INTEGER,
			area        DOUBLE PRECISION,
			floor       INTEGER,
			max_floor   INTEGER,
			location    TEXT             NOT NULL DEFAULT 'unknown',
			district    TEXT             NOT NULL DEFAULT 'unknown',
			address     TEXT             NOT NULL DEFAULT 'unknown',
			currency    TEXT             NOT NULL,
			city        TEXT             NOT NULL,
			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_district ON %[1]s(district);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_price    ON %[1]s(price);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_rooms    ON %[1]s(rooms);
	`, s.table))
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) upsertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			url, title, price, rooms, area, floor, max_floor,
			location, district, address, currency, city, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (url) DO UPDATE SET
			title      = EXCLUDED.title,
			price      = EXCLUDED.price,
			rooms      = EXCLUDED.rooms,
			area       = EXCLUDED.area,
			floor      = EXCLUDED.floor,
			max_floor  = EXCLUDED.max_floor,
			location   = EXCLUDED.location,
			district   = EXCLUDED.district,
			address    = EXCLUDED.address,
			currency   = EXCLUDED.currency,
			city       = EXCLUDED.city,
			updated_at = EXCLUDED.updated_at
	`, s.table)
}

// Upsert writes the whole batch in one transaction. New URLs are inserted;
// existing rows get every mutable column overwritten and updated_at refreshed
// while created_at is kept. Any failure rolls the batch back and returns
// ErrStoreWrite. An empty batch writes nothing and returns models.ErrEmptyBatch.
// A cancelled ctx prevents the transaction from starting but never interrupts
// one in flight.
func (s *PostgresStore) Upsert(ctx context.Context, listings []*models.CleanListing) (int, error) {
	if len(listings) == 0 {
		s.logger.Warn("[postgres] No listings to upsert")
		return 0, models.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("postgres: upsert not started: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w: %w", ErrStoreConnection, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return 0, fmt.Errorf("postgres: prepare upsert: %w: %w", ErrStoreWrite, err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, l := range listings {
		if l.URL == "" {
			return 0, fmt.Errorf("postgres: listing %d has no url: %w", i, ErrStoreWrite)
		}
		if _, err := stmt.ExecContext(ctx,
			l.URL, l.Title, l.Price, l.Rooms, l.Area, l.Floor, l.MaxFloor,
			l.Location, l.District, l.Address, l.Currency, l.City, now,
		); err != nil {
			return 0, fmt.Errorf("postgres: upsert %s: %w: %w", l.URL, ErrStoreWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w: %w", ErrStoreWrite, err)
	}

	s.logger.Info("[postgres] Inserted/updated %d listings", len(listings))
	return len(listings), nil
}

const selectColumns = `id, url, title, price, rooms, area, floor, max_floor,
	location, district, address, currency, city, created_at, updated_at`

// Verify reports the row count and up to sampleSize rows. It never writes.
func (s *PostgresStore) Verify(ctx context.Context, sampleSize int) (*models.Verification, error) {
	v := &models.Verification{}
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&v.Count); err != nil {
		return nil, fmt.Errorf("postgres: count: %w", err)
	}

	sample, err := s.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY id LIMIT $1`, selectColumns, s.table), sampleSize)
	if err != nil {
		return nil, err
	}
	v.Sample = sample

	s.logger.Info("[postgres] Total records in DB: %d", v.Count)
	for _, l := range v.Sample {
		s.logger.Info("[postgres] sample: %s | %s | %s | %s", l.URL, l.Title, models.FormatFloat(l.Price), l.District)
	}
	return v, nil
}

// FetchAll retrieves all stored listings for the insight report.
func (s *PostgresStore) FetchAll(ctx context.Context) ([]*models.StoredListing, error) {
	return s.query(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, selectColumns, s.table))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.StoredListing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var listings []*models.StoredListing
	for rows.Next() {
		l := &models.StoredListing{}
		var price, area sql.NullFloat64
		var rooms, floor, maxFloor sql.NullInt64
		if err := rows.Scan(
			&l.ID, &l.URL, &l.Title, &price, &rooms, &area, &floor, &maxFloor,
			&l.Location, &l.District, &l.Address, &l.Currency, &l.City,
			&l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.Price = nullFloat(price)
		l.Area = nullFloat(area)
		l.Rooms = nullInt(rooms)
		l.Floor = nullInt(floor)
		l.MaxFloor = nullInt(maxFloor)
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
