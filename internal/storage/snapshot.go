// Package storage persists the latest index snapshot for downstream
// consumers. Snapshots are write-only from the engine's point of view:
// every run replaces the previous snapshot wholesale, so nothing here
// feeds back into extraction.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"repomap/internal/logging"
	"repomap/internal/model"
)

// DB wraps the snapshot database at <repoRoot>/.repomap/repomap.db.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
}

// Open opens or creates the snapshot database.
func Open(repoRoot string, logger *logging.Logger) (*DB, error) {
	dir := filepath.Join(repoRoot, ".repomap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .repomap directory: %w", err)
	}

	dbPath := filepath.Join(dir, "repomap.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger, dbPath: dbPath}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    kind       TEXT PRIMARY KEY,      -- 'code' or 'infra'
    run_id     TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload    BLOB NOT NULL
);`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveCodeIndex replaces the stored code snapshot.
func (db *DB) SaveCodeIndex(idx *model.StructureIndex) error {
	return db.save("code", idx.RunID, idx)
}

// SaveInfraIndex replaces the stored infrastructure snapshot.
func (db *DB) SaveInfraIndex(idx *model.InfraIndex) error {
	return db.save("infra", idx.RunID, idx)
}

func (db *DB) save(kind, runID string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s snapshot: %w", kind, err)
	}

	_, err = db.conn.Exec(`
INSERT INTO snapshots (kind, run_id, created_at, payload) VALUES (?, ?, ?, ?)
ON CONFLICT(kind) DO UPDATE SET run_id=excluded.run_id, created_at=excluded.created_at, payload=excluded.payload`,
		kind, runID, time.Now().UTC().Format(time.RFC3339), payload)
	if err != nil {
		return fmt.Errorf("failed to save %s snapshot: %w", kind, err)
	}

	db.logger.Debug("snapshot saved", map[string]interface{}{
		"kind":  kind,
		"runId": runID,
	})
	return nil
}

// LoadCodeIndex returns the stored code snapshot, or nil if none exists.
func (db *DB) LoadCodeIndex() (*model.StructureIndex, error) {
	var idx model.StructureIndex
	ok, err := db.load("code", &idx)
	if err != nil || !ok {
		return nil, err
	}
	return &idx, nil
}

// LoadInfraIndex returns the stored infrastructure snapshot, or nil.
func (db *DB) LoadInfraIndex() (*model.InfraIndex, error) {
	var idx model.InfraIndex
	ok, err := db.load("infra", &idx)
	if err != nil || !ok {
		return nil, err
	}
	return &idx, nil
}

func (db *DB) load(kind string, v interface{}) (bool, error) {
	var payload []byte
	err := db.conn.QueryRow(`SELECT payload FROM snapshots WHERE kind = ?`, kind).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s snapshot: %w", kind, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s snapshot: %w", kind, err)
	}
	return true, nil
}
