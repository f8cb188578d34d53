package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"equialert/internal/domain"
	"equialert/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.StockRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if necessary) the database at cfg.DBPath and
// ensures the schema exists.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/stocks.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the fetch path and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// The Go driver benefits from a single connection against SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite store ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		name TEXT DEFAULT '',
		sector TEXT DEFAULT '',
		industry TEXT DEFAULT '',
		market_cap INTEGER DEFAULT NULL,
		currency TEXT DEFAULT 'USD',
		last_source TEXT DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (symbol, exchange)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL REFERENCES stocks(id),
		timestamp TIMESTAMP NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER DEFAULT NULL,
		change REAL DEFAULT NULL,
		change_percent REAL DEFAULT NULL,
		previous_close REAL DEFAULT NULL,
		data_source TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_stocks_symbol_exchange ON stocks (symbol, exchange);
	CREATE INDEX IF NOT EXISTS idx_price_history_stock_ts ON price_history (stock_id, timestamp);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// GetInstrument retrieves an instrument by (symbol, exchange).
// Returns nil, nil when not found.
func (r *Repository) GetInstrument(ctx context.Context, symbol, exchange string) (*ports.Instrument, error) {
	const query = `
	SELECT id, symbol, exchange, name, sector, industry, market_cap, currency,
	       last_source, created_at, updated_at
	FROM stocks
	WHERE symbol = ? AND exchange = ?`

	inst := &ports.Instrument{}
	var marketCap sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, symbol, exchange).Scan(
		&inst.ID, &inst.Symbol, &inst.Exchange, &inst.Name, &inst.Sector, &inst.Industry,
		&marketCap, &inst.Currency, &inst.LastSource, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: querying instrument %s:%s: %v", ports.ErrQueryFailed, symbol, exchange, err)
	}
	if marketCap.Valid {
		inst.MarketCap = &marketCap.Int64
	}
	return inst, nil
}

// CreateInstrument registers a new instrument and returns it with its ID set.
func (r *Repository) CreateInstrument(ctx context.Context, symbol, exchange string) (*ports.Instrument, error) {
	const query = `
	INSERT INTO stocks (symbol, exchange, created_at, updated_at)
	VALUES (?, ?, ?, ?)`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, symbol, exchange, now, now)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting instrument %s:%s: %v", ports.ErrUpdateFailed, symbol, exchange, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: reading insert ID for %s:%s: %v", ports.ErrUpdateFailed, symbol, exchange, err)
	}
	r.logger.Debug(ctx, "Instrument created", map[string]interface{}{"id": id, "symbol": symbol, "exchange": exchange})
	return &ports.Instrument{
		ID: id, Symbol: symbol, Exchange: exchange,
		Currency: "USD", CreatedAt: now, UpdatedAt: now,
	}, nil
}

// UpdateProfile overwrites the instrument's descriptive fields.
func (r *Repository) UpdateProfile(ctx context.Context, inst *ports.Instrument, profile *domain.Profile) error {
	const query = `
	UPDATE stocks
	SET name = ?, sector = ?, industry = ?, market_cap = ?, currency = ?,
	    last_source = ?, updated_at = ?
	WHERE id = ?`

	var marketCap sql.NullInt64
	if profile.MarketCap != nil {
		marketCap = sql.NullInt64{Int64: *profile.MarketCap, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		profile.Name, profile.Sector, profile.Industry, marketCap, profile.Currency,
		profile.Source, time.Now().UTC(), inst.ID)
	if err != nil {
		return fmt.Errorf("%w: updating profile for instrument %d: %v", ports.ErrUpdateFailed, inst.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: reading rows affected for instrument %d: %v", ports.ErrUpdateFailed, inst.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("instrument %d not found for profile update: %w", inst.ID, ports.ErrNotFound)
	}
	return nil
}

// AppendPriceBar appends one observation to the instrument's price history.
func (r *Repository) AppendPriceBar(ctx context.Context, instrumentID int64, bar *domain.PriceBar) error {
	const query = `
	INSERT INTO price_history (stock_id, timestamp, open, high, low, close, volume,
	                           change, change_percent, previous_close, data_source)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		instrumentID, bar.Timestamp.UTC(), bar.Open, bar.High, bar.Low, bar.Close,
		nullInt(bar.Volume), nullFloat(bar.Change), nullFloat(bar.ChangePercent),
		nullFloat(bar.PreviousClose), bar.Source); err != nil {
		return fmt.Errorf("%w: appending price bar for instrument %d: %v", ports.ErrUpdateFailed, instrumentID, err)
	}
	return nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// GetPriceBars returns the instrument's bars since the given time, ascending
// by timestamp.
func (r *Repository) GetPriceBars(ctx context.Context, instrumentID int64, since time.Time) ([]domain.PriceBar, error) {
	const query = `
	SELECT timestamp, open, high, low, close, volume, change, change_percent, previous_close, data_source
	FROM price_history
	WHERE stock_id = ? AND timestamp >= ?
	ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, instrumentID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: querying price history for instrument %d: %v", ports.ErrQueryFailed, instrumentID, err)
	}
	defer rows.Close()

	bars := make([]domain.PriceBar, 0)
	for rows.Next() {
		var bar domain.PriceBar
		var volume sql.NullInt64
		var change, changePct, prevClose sql.NullFloat64
		if err := rows.Scan(&bar.Timestamp, &bar.Open, &bar.High, &bar.Low, &bar.Close,
			&volume, &change, &changePct, &prevClose, &bar.Source); err != nil {
			return nil, fmt.Errorf("%w: scanning price bar for instrument %d: %v", ports.ErrQueryFailed, instrumentID, err)
		}
		if volume.Valid {
			bar.Volume = &volume.Int64
		}
		if change.Valid {
			bar.Change = &change.Float64
		}
		if changePct.Valid {
			bar.ChangePercent = &changePct.Float64
		}
		if prevClose.Valid {
			bar.PreviousClose = &prevClose.Float64
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating price history rows: %v", ports.ErrQueryFailed, err)
	}
	return bars, nil
}
