// Package docstore implements domain.Store on pretty-printed JSON files,
// one file per document key, with a per-key read/write lock table.
//
// On first access a missing document is seeded from the seed directory when
// a file of the same name exists there, otherwise from the hardcoded
// defaults. Corrupt or empty documents read as empty collections — the read
// path never fails the caller (the previous system behaved the same way).
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/ecotree-app/ecotree/internal/domain"
	"github.com/ecotree-app/ecotree/internal/infra/observability"
)

// Store is the file-backed document store.
type Store struct {
	dataDir string
	seedDir string // optional; "" disables seeding

	mu    sync.Mutex // guards locks map
	locks map[string]*sync.RWMutex
}

// New creates a Store rooted at dataDir. seedDir may be empty.
func New(dataDir, seedDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{
		dataDir: dataDir,
		seedDir: seedDir,
		locks:   make(map[string]*sync.RWMutex),
	}, nil
}

// lock returns the RW lock for key, creating it on first use.
func (s *Store) lock(key string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dataDir, key+".json")
}

// ─── Defaults & Seeding ─────────────────────────────────────────────────────

// defaultDoc returns the first-run value for key.
func defaultDoc(key string) any {
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
		// events, monthly_results, admins all start empty
		return []any{}
	}
}

// seedFile copies the document from the seed directory if present and valid.
func (s *Store) seedFile(key string) bool {
	if s.seedDir == "" {
		return false
	}
	raw, err := os.ReadFile(filepath.Join(s.seedDir, key+".json"))
	if err != nil {
		return false
	}
	if !json.Valid(raw) {
		log.Printf("docstore: seed file for %q is not valid JSON, ignoring", key)
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return s.writeFile(key, v) == nil
}

// ensure creates the document for key if its file does not exist yet.
// Caller must not hold the key's lock.
func (s *Store) ensure(key string) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return s.ensureLocked(key)
}

func (s *Store) ensureLocked(key string) error {
	if _, err := os.Stat(s.path(key)); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if s.seedFile(key) {
		return nil
	}
	return s.writeFile(key, defaultDoc(key))
}

// ResetActions overwrites the action rules from the seed directory, falling
// back to the hardcoded defaults. Operator maintenance only.
func (s *Store) ResetActions() error {
	l := s.lock(domain.KeyActionsConfig)
	l.Lock()
	defer l.Unlock()
	if s.seedFile(domain.KeyActionsConfig) {
		return nil
	}
	return s.writeFile(domain.KeyActionsConfig, domain.DefaultActionRules())
}

// ─── Raw File I/O ───────────────────────────────────────────────────────────

// readFile decodes the document into out. A missing, empty, or corrupt file
// leaves out at its zero value.
func (s *Store) readFile(key string, out any) error {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		observability.StoreReadErrors.Inc()
		log.Printf("docstore: read %s: %v", key, err)
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		observability.StoreReadErrors.Inc()
		log.Printf("docstore: decode %s: %v", key, err)
		return nil
	}
	return nil
}

// writeFile persists v pretty-printed via a temp file and rename, so a
// crashed write never leaves a torn document behind.
func (s *Store) writeFile(key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(s.dataDir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// ─── domain.Store ───────────────────────────────────────────────────────────

// Load reads the document for key under the shared lock.
func (s *Store) Load(key string, out any) error {
	if err := s.ensure(key); err != nil {
		return err
	}
	l := s.lock(key)
	l.RLock()
	defer l.RUnlock()
	return s.readFile(key, out)
}

// Save replaces the document for key under the exclusive lock.
func (s *Store) Save(key string, v any) error {
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return s.writeFile(key, v)
}

// Update runs fn under the exclusive lock for key.
func (s *Store) Update(key string, fn func(tx domain.Tx) error) error {
	if err := s.ensure(key); err != nil {
		return err
	}
	l := s.lock(key)
	l.Lock()
	defer l.Unlock()
	return fn(&tx{store: s, key: key})
}

type tx struct {
	store *Store
	key   string
}

func (t *tx) Load(out any) error { return t.store.readFile(t.key, out) }
func (t *tx) Save(v any) error   { return t.store.writeFile(t.key, v) }

var _ domain.Store = (*Store)(nil)
