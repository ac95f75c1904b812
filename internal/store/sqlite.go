// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"callput-engine/internal/errors"
	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/tokenid"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS holdings (
		token_id TEXT PRIMARY KEY,
		asset INTEGER NOT NULL,
		expiry INTEGER NOT NULL,
		strategy INTEGER NOT NULL,
		size REAL NOT NULL,
		execution_price REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settle_prices (
		expiry INTEGER NOT NULL,
		asset INTEGER NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY (expiry, asset)
	);

	CREATE TABLE IF NOT EXISTS mark_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		as_of INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshot_options (
		snapshot_id INTEGER NOT NULL REFERENCES mark_snapshots(id) ON DELETE CASCADE,
		instrument TEXT NOT NULL,
		strike REAL,
		mark_price REAL,
		mark_iv REAL,
		delta REAL,
		gamma REAL,
		vega REAL,
		theta REAL,
		available INTEGER,
		expiry INTEGER,
		PRIMARY KEY (snapshot_id, instrument)
	);

	CREATE TABLE IF NOT EXISTS snapshot_forwards (
		snapshot_id INTEGER NOT NULL REFERENCES mark_snapshots(id) ON DELETE CASCADE,
		asset INTEGER NOT NULL,
		price REAL NOT NULL,
		PRIMARY KEY (snapshot_id, asset)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_holdings_expiry ON holdings(expiry);
	CREATE INDEX IF NOT EXISTS idx_holdings_asset ON holdings(asset);
	CREATE INDEX IF NOT EXISTS idx_snapshots_as_of ON mark_snapshots(as_of);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Holdings Methods
// ============================================================================

// SaveHolding inserts or replaces a holding. The token id is derived from
// the position; a caller-supplied id must match it.
func (s *SQLiteStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	id, err := tokenid.Encode(h.Position)
	if err != nil {
		return fmt.Errorf("failed to encode position: %w", err)
	}
	encoded := tokenid.Format(id)
	if h.TokenID != "" {
		given, err := tokenid.Parse(h.TokenID)
		if err != nil {
			return err
		}
		if given.Cmp(id) != 0 {
			return errors.NewPositionError(h.Position.Strategy.String(), -1,
				fmt.Sprintf("token id %s does not encode the given position", h.TokenID))
		}
	}
	h.TokenID = encoded

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO holdings (token_id, asset, expiry, strategy, size, execution_price, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, encoded, h.Position.UnderlyingAssetIndex, h.Position.Expiry, uint8(h.Position.Strategy), h.Size, h.ExecutionPrice, time.Now())
	if err != nil {
		return errors.NewDataError("holding", encoded, "save failed", errors.Wrap(errors.ErrDatabaseError, err.Error()))
	}
	return nil
}

// GetHoldings retrieves holdings ordered by expiry then token id.
func (s *SQLiteStore) GetHoldings(ctx context.Context, filter HoldingFilter) ([]models.Holding, error) {
	query := `SELECT token_id, size, execution_price FROM holdings WHERE 1=1`
	var args []interface{}

	if filter.Asset != nil {
		query += ` AND asset = ?`
		args = append(args, *filter.Asset)
	}
	if filter.Strategy != models.StrategyNotSupported {
		query += ` AND strategy = ?`
		args = append(args, uint8(filter.Strategy))
	}
	if filter.ExpiryFrom > 0 {
		query += ` AND expiry >= ?`
		args = append(args, filter.ExpiryFrom)
	}
	if filter.ExpiryTo > 0 {
		query += ` AND expiry <= ?`
		args = append(args, filter.ExpiryTo)
	}
	query += ` ORDER BY expiry ASC, token_id ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.TokenID, &h.Size, &h.ExecutionPrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		if err := decodeHolding(&h); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// GetHolding retrieves one holding by token id.
func (s *SQLiteStore) GetHolding(ctx context.Context, tokenID string) (*models.Holding, error) {
	key, err := canonicalID(tokenID)
	if err != nil {
		return nil, err
	}

	h := models.Holding{TokenID: key}
	err = s.db.QueryRowContext(ctx, `
		SELECT size, execution_price FROM holdings WHERE token_id = ?
	`, key).Scan(&h.Size, &h.ExecutionPrice)
	if err == sql.ErrNoRows {
		return nil, errors.NewDataError("holding", key, "not found", errors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}
	if err := decodeHolding(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteHolding removes a holding.
func (s *SQLiteStore) DeleteHolding(ctx context.Context, tokenID string) error {
	key, err := canonicalID(tokenID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE token_id = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewDataError("holding", key, "not found", errors.ErrDataNotFound)
	}
	return nil
}

func canonicalID(tokenID string) (string, error) {
	id, err := tokenid.Parse(tokenID)
	if err != nil {
		return "", err
	}
	return tokenid.Format(id), nil
}

func decodeHolding(h *models.Holding) error {
	id, err := tokenid.Parse(h.TokenID)
	if err != nil {
		return err
	}
	p, err := tokenid.DecodeStrict(id)
	if err != nil {
		return errors.NewDataError("holding", h.TokenID, "stored token id does not decode", err)
	}
	h.Position = p
	return nil
}

// ============================================================================
// Settle Price Methods
// ============================================================================

// SaveSettlePrice records the settle price of an asset at an expiry.
func (s *SQLiteStore) SaveSettlePrice(ctx context.Context, expiry int64, asset uint16, price float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settle_prices (expiry, asset, price) VALUES (?, ?, ?)
	`, expiry, asset, price)
	if err != nil {
		return fmt.Errorf("failed to save settle price: %w", err)
	}
	return nil
}

// GetSettleTable loads every settle price.
func (s *SQLiteStore) GetSettleTable(ctx context.Context) (*market.SettleTable, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT expiry, asset, price FROM settle_prices`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settle prices: %w", err)
	}
	defer rows.Close()

	table := market.NewSettleTable()
	for rows.Next() {
		var (
			expiry int64
			asset  uint16
			price  float64
		)
		if err := rows.Scan(&expiry, &asset, &price); err != nil {
			return nil, fmt.Errorf("failed to scan settle price: %w", err)
		}
		table.Set(expiry, asset, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settle prices: %w", err)
	}
	return table, nil
}

// ============================================================================
// Snapshot Methods
// ============================================================================

// SaveSnapshot stores a snapshot and returns its id.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *market.Snapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO mark_snapshots (as_of) VALUES (?)`, snap.AsOf)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_options (snapshot_id, instrument, strike, mark_price, mark_iv, delta, gamma, vega, theta, available, expiry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range snap.Entries() {
		available := 0
		if d.IsOptionAvailable {
			available = 1
		}
		if _, err := stmt.ExecContext(ctx, id, d.Instrument, d.StrikePrice, d.MarkPrice, d.MarkIV,
			d.Delta, d.Gamma, d.Vega, d.Theta, available, d.Expiry); err != nil {
			return 0, fmt.Errorf("failed to insert option %s: %w", d.Instrument, err)
		}
	}

	for asset, price := range snap.Forwards() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot_forwards (snapshot_id, asset, price) VALUES (?, ?, ?)
		`, id, asset, price); err != nil {
			return 0, fmt.Errorf("failed to insert forward: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// LatestSnapshot loads the snapshot with the greatest as-of time.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, reg *market.Registry) (*market.Snapshot, error) {
	var (
		id   int64
		asOf int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, as_of FROM mark_snapshots ORDER BY as_of DESC, id DESC LIMIT 1
	`).Scan(&id, &asOf)
	if err == sql.ErrNoRows {
		return nil, errors.NewDataError("snapshot", "latest", "no snapshot imported", errors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snap := market.NewSnapshot(reg, asOf)

	rows, err := s.db.QueryContext(ctx, `
		SELECT instrument, strike, mark_price, mark_iv, delta, gamma, vega, theta, available, expiry
		FROM snapshot_options WHERE snapshot_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d         models.OptionMarketData
			available int
		)
		if err := rows.Scan(&d.Instrument, &d.StrikePrice, &d.MarkPrice, &d.MarkIV,
			&d.Delta, &d.Gamma, &d.Vega, &d.Theta, &available, &d.Expiry); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		d.IsOptionAvailable = available == 1
		snap.Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}

	fwd, err := s.db.QueryContext(ctx, `SELECT asset, price FROM snapshot_forwards WHERE snapshot_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query forwards: %w", err)
	}
	defer fwd.Close()
	for fwd.Next() {
		var (
			asset uint16
			price float64
		)
		if err := fwd.Scan(&asset, &price); err != nil {
			return nil, fmt.Errorf("failed to scan forward: %w", err)
		}
		snap.SetForward(asset, price)
	}
	if err := fwd.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forwards: %w", err)
	}

	return snap, nil
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM mark_snapshots WHERE id NOT IN (
			SELECT id FROM mark_snapshots ORDER BY as_of DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// ============================================================================
// Sync Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, strings.ToLower(dataType)).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, strings.ToLower(dataType), t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
