package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/vessel/internal/errors"
	"github.com/hpungsan/vessel/internal/vault"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// SQLite is the durable Store implementation. The capsule aggregate is
// persisted as a JSON document alongside indexed columns; the physical
// encoding is invisible to the core.
type SQLite struct {
	db    *sql.DB
	quota int64
}

// Open initializes the SQLite database at baseDir/vessel.db.
// The baseDir parameter allows tests to use t.TempDir() instead of
// ~/.vessel. quotaBytes bounds the global stored-bytes counter.
func Open(baseDir string, quotaBytes int64) (*SQLite, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	dbPath := filepath.Join(baseDir, "vessel.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return &SQLite{db: db, quota: quotaBytes}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the underlying handle for pool tuning.
func (s *SQLite) DB() *sql.DB { return s.db }

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS capsules (
		  id           TEXT PRIMARY KEY,
		  subject      TEXT NOT NULL,
		  doc          TEXT NOT NULL,
		  inline_bytes INTEGER NOT NULL,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_capsules_subject
		ON capsules(subject);

		CREATE TABLE IF NOT EXISTS capsule_access (
		  capsule_id TEXT NOT NULL,
		  identity   TEXT NOT NULL,
		  role       TEXT NOT NULL,
		  PRIMARY KEY (capsule_id, identity, role)
		);

		CREATE INDEX IF NOT EXISTS idx_capsule_access_identity
		ON capsule_access(identity);

		CREATE TABLE IF NOT EXISTS meta (
		  key   TEXT PRIMARY KEY,
		  value INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO meta (key, value) VALUES ('stored_bytes', 0);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func getUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// GetCapsule retrieves a capsule by id.
func (s *SQLite) GetCapsule(id string) (*vault.Capsule, error) {
	var doc string
	err := s.db.QueryRow("SELECT doc FROM capsules WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("capsule", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var c vault.Capsule
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, errors.NewInternal(err)
	}
	return &c, nil
}

// UpsertCapsule writes the whole aggregate and refreshes the access
// index rows in one transaction.
func (s *SQLite) UpsertCapsule(c *vault.Capsule) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return errors.NewInternal(err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO capsules (id, subject, doc, inline_bytes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			doc = excluded.doc,
			inline_bytes = excluded.inline_bytes,
			updated_at = excluded.updated_at
	`, c.ID, string(c.Subject), string(doc), c.InlineBytesUsed, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	if _, err := tx.Exec("DELETE FROM capsule_access WHERE capsule_id = ?", c.ID); err != nil {
		return errors.NewInternal(err)
	}
	for identity, role := range accessRows(c) {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO capsule_access (capsule_id, identity, role) VALUES (?, ?, ?)",
			c.ID, string(identity), role,
		); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// accessRows flattens the identities that make a capsule visible.
// Owner wins over controller wins over subject when one identity holds
// several roles; visibility queries only care that a row exists.
func accessRows(c *vault.Capsule) map[vault.Identity]string {
	rows := make(map[vault.Identity]string)
	rows[c.Subject] = "subject"
	for id := range c.Controllers {
		rows[id] = "controller"
	}
	for id := range c.Owners {
		rows[id] = "owner"
	}
	return rows
}

// DeleteCapsule removes the capsule and its access rows.
func (s *SQLite) DeleteCapsule(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	defer tx.Rollback()

	result, err := tx.Exec("DELETE FROM capsules WHERE id = ?", id)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	if _, err := tx.Exec("DELETE FROM capsule_access WHERE capsule_id = ?", id); err != nil {
		return false, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return false, errors.NewInternal(err)
	}
	return affected > 0, nil
}

// ListCapsules scans capsules in id order from cursor (exclusive).
func (s *SQLite) ListCapsules(cursor string, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 20
	}

	// Fetch one extra row to decide whether another page exists.
	rows, err := s.db.Query(
		"SELECT doc FROM capsules WHERE id > ? ORDER BY id LIMIT ?",
		cursor, limit+1,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	page := &Page{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.NewInternal(err)
		}
		var c vault.Capsule
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, errors.NewInternal(err)
		}
		page.Capsules = append(page.Capsules, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if len(page.Capsules) > limit {
		page.Capsules = page.Capsules[:limit]
		page.NextCursor = page.Capsules[limit-1].ID
	}
	return page, nil
}

// AccessibleCapsules returns ids of capsules visible to identity.
func (s *SQLite) AccessibleCapsules(identity vault.Identity) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT capsule_id FROM capsule_access WHERE identity = ? ORDER BY capsule_id",
		string(identity),
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return ids, nil
}

// AddStoredBytes moves the global counter by delta. The check and the
// commit are one UPDATE, so concurrent writers cannot jointly exceed the
// quota.
func (s *SQLite) AddStoredBytes(delta int64) error {
	if delta >= 0 {
		result, err := s.db.Exec(
			"UPDATE meta SET value = value + ? WHERE key = 'stored_bytes' AND value + ? <= ?",
			delta, delta, s.quota,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.NewInternal(err)
		}
		if affected == 0 {
			return errors.NewResourceExhausted(fmt.Sprintf("storage quota of %d bytes exceeded", s.quota))
		}
		return nil
	}

	_, err := s.db.Exec(
		"UPDATE meta SET value = MAX(0, value + ?) WHERE key = 'stored_bytes'",
		delta,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// StoredBytes returns the counter's current value.
func (s *SQLite) StoredBytes() (int64, error) {
	var value int64
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'stored_bytes'").Scan(&value); err != nil {
		return 0, errors.NewInternal(err)
	}
	return value, nil
}
