package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Store persists per-asset last-access timestamps
type Store struct {
	db *sql.DB
}

// Ensure Store implements port.RecencyStore
var _ port.RecencyStore = (*Store)(nil)

// Open opens a connection to the SQLite database
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	// Open database with WAL mode and busy timeout
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

// migrate creates or updates the database schema
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS asset_access (
			media_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			last_access_at INTEGER NOT NULL,
			PRIMARY KEY (media_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_asset_access_last ON asset_access(last_access_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

// LoadAccessTimes returns every stored timestamp. Rows with an unknown kind
// are ignored.
func (s *Store) LoadAccessTimes() (map[domain.CacheKey]time.Time, error) {
	rows, err := s.db.Query(`SELECT media_id, kind, last_access_at FROM asset_access`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	times := make(map[domain.CacheKey]time.Time)
	for rows.Next() {
		var mediaID, kindName string
		var nanos int64
		if err := rows.Scan(&mediaID, &kindName, &nanos); err != nil {
			return nil, err
		}
		kind, ok := domain.ParseAssetKind(kindName)
		if !ok {
			continue
		}
		times[domain.CacheKey{MediaID: mediaID, Kind: kind}] = time.Unix(0, nanos)
	}
	return times, rows.Err()
}

// SaveAccessTimes upserts touched keys and deletes removed keys in one transaction
func (s *Store) SaveAccessTimes(touched map[domain.CacheKey]time.Time, removed []domain.CacheKey) error {
	if len(touched) == 0 && len(removed) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.Prepare(`
		INSERT INTO asset_access (media_id, kind, last_access_at) VALUES (?, ?, ?)
		ON CONFLICT(media_id, kind) DO UPDATE SET last_access_at = excluded.last_access_at
	`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	for key, at := range touched {
		if _, err := upsert.Exec(key.MediaID, key.Kind.String(), at.UnixNano()); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", key, err)
		}
	}

	for _, key := range removed {
		if _, err := tx.Exec(`DELETE FROM asset_access WHERE media_id = ? AND kind = ?`,
			key.MediaID, key.Kind.String()); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}

	return tx.Commit()
}
