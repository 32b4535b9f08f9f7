// Package sqlite implements domain.Store on a single SQLite database file.
// Documents keep their JSON bodies verbatim in a key→body table, so the
// stored shapes are identical to the file backend and the two backends are
// interchangeable behind the Store interface.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/observability"
)

// DB is the SQLite-backed document store.
type DB struct {
	db      *sql.DB
	seedDir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// Migrations returns the schema statements. Each string is one statement
// (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			key        TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

// Open opens (or creates) the database at dir/ecotree.db and applies the
// schema. seedDir may be empty.
func Open(dir, seedDir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "ecotree.db"))
	if err != nil {
		return nil, err
	}
	// Serialized access: the modernc driver is not safe for concurrent
	// writes on a single connection pool without busy handling.
	db.SetMaxOpenConns(1)
	for _, stmt := range Migrations() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &DB{db: db, seedDir: seedDir, locks: make(map[string]*sync.RWMutex)}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) lock(key string) *sync.RWMutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		d.locks[key] = l
	}
	return l
}

// ─── Defaults & Seeding ─────────────────────────────────────────────────────

func defaultBody(key string) any {
	switch key {
	case domain.KeyGroups:
		return domain.DefaultGroups()
	case domain.KeyChildren:
		return domain.DefaultChildren()
	case domain.KeyActionsConfig:
		return domain.DefaultActionRules()
	case domain.KeyRolloverMarker:
		return domain.RolloverMarker{}
	default:
		return []any{}
	}
}

func (d *DB) seedBody(key string) ([]byte, bool) {
	if d.seedDir == "" {
		return nil, false
	}
	raw, err := os.ReadFile(filepath.Join(d.seedDir, key+".json"))
	if err != nil || !json.Valid(raw) {
		return nil, false
	}
	return raw, true
}

// ensure inserts the seed or default document when key is absent.
func (d *DB) ensureLocked(key string) error {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE key = ?`, key).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	body, ok := d.seedBody(key)
	if !ok {
		var err error
		body, err = json.MarshalIndent(defaultBody(key), "", "  ")
		if err != nil {
			return err
		}
	}
	_, err := d.db.Exec(`INSERT OR IGNORE INTO documents (key, body) VALUES (?, ?)`, key, string(body))
	return err
}

// ResetActions overwrites the action rules from seed else defaults.
func (d *DB) ResetActions() error {
	l := d.lock(domain.KeyActionsConfig)
	l.Lock()
	defer l.Unlock()
	body, ok := d.seedBody(domain.KeyActionsConfig)
	if !ok {
		var err error
		body, err = json.MarshalIndent(domain.DefaultActionRules(), "", "  ")
		if err != nil {
			return err
		}
	}
	return d.put(domain.KeyActionsConfig, body)
}

// ─── Row I/O ────────────────────────────────────────────────────────────────

func (d *DB) get(key string, out any) error {
	var body string
	err := d.db.QueryRow(`SELECT body FROM documents WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		observability.StoreReadErrors.Inc()
		log.Printf("sqlite: read %s: %v", key, err)
		return nil
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		observability.StoreReadErrors.Inc()
		log.Printf("sqlite: decode %s: %v", key, err)
	}
	return nil
}

func (d *DB) put(key string, body []byte) error {
	_, err := d.db.Exec(`
		INSERT INTO documents (key, body, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			body       = excluded.body,
			updated_at = datetime('now')
	`, key, string(body))
	return err
}

func (d *DB) save(key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return d.put(key, body)
}

// ─── domain.Store ───────────────────────────────────────────────────────────

// Load reads the document for key under the shared lock.
func (d *DB) Load(key string, out any) error {
	l := d.lock(key)
	l.Lock()
	if err := d.ensureLocked(key); err != nil {
		l.Unlock()
		return err
	}
	l.Unlock()
	l.RLock()
	defer l.RUnlock()
	return d.get(key, out)
}

// Save replaces the document for key under the exclusive lock.
func (d *DB) Save(key string, v any) error {
	l := d.lock(key)
	l.Lock()
	defer l.Unlock()
	return d.save(key, v)
}

// Update runs fn under the exclusive lock for key.
func (d *DB) Update(key string, fn func(tx domain.Tx) error) error {
	l := d.lock(key)
	l.Lock()
	defer l.Unlock()
	if err := d.ensureLocked(key); err != nil {
		return err
	}
	return fn(&tx{db: d, key: key})
}

type tx struct {
	db  *DB
	key string
}

func (t *tx) Load(out any) error { return t.db.get(t.key, out) }
func (t *tx) Save(v any) error   { return t.db.save(t.key, v) }

var _ domain.Store = (*DB)(nil)
