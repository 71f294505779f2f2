package tree

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
)

// State is the persisted expand/collapse state of a tree.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "expanded": {
//	    "servers[0]": true,
//	    "logging": false
//	  }
//	}
//
// Only containers whose state differs from the default (expanded above the
// expand depth) are recorded. Paths that no longer resolve are ignored on
// load.
type State struct {
	Version  int             `json:"version"`
	Expanded map[string]bool `json:"expanded"`
}

// StateVersion is the current schema version.
const StateVersion = 1

// DefaultState returns an empty State.
func DefaultState() *State {
	return &State{Version: StateVersion, Expanded: make(map[string]bool)}
}

// ExpansionState captures the containers whose expansion differs from the
// default.
func (m *Model) ExpansionState() *State {
	state := DefaultState()
	m.walk(m.root, func(id NodeID, n *node) bool {
		if !n.isContainer() {
			return false
		}
		if def := m.Depth(id) < m.expandDepth; n.expanded != def {
			state.Expanded[m.Path(id).String()] = n.expanded
		}
		return true
	})
	return state
}

// ApplyExpansionState restores recorded expansion. It returns the number
// of entries that applied.
func (m *Model) ApplyExpansionState(state *State) int {
	if state == nil {
		return 0
	}
	applied, changed := 0, false
	for key, expanded := range state.Expanded {
		p, err := modelpath.Parse(key)
		if err != nil {
			debug.Log("tree: state entry %q: %v", key, err)
			continue
		}
		id, err := m.NodeAtPath(p)
		if err != nil {
			continue
		}
		n := m.node(id)
		if !n.isContainer() {
			continue
		}
		applied++
		if n.expanded != expanded {
			n.expanded = expanded
			changed = true
		}
	}
	if changed {
		m.notify()
	}
	return applied
}

// StateStore persists expansion state per document. docKey identifies the
// document, usually its absolute path.
type StateStore interface {
	Load(docKey string) (*State, error)
	Save(docKey string, state *State) error
}

// FileStore keeps one JSON file per document under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the state file used for docKey.
func (s *FileStore) Path(docKey string) string {
	sum := sha256.Sum256([]byte(docKey))
	return filepath.Join(s.Dir, hex.EncodeToString(sum[:8])+".json")
}

// Load reads the state for docKey. A missing file yields an empty state; a
// corrupted one is reported so callers can fall back to defaults.
func (s *FileStore) Load(docKey string) (*State, error) {
	data, err := os.ReadFile(s.Path(docKey))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultState(), nil
	}
	if err != nil {
		return nil, err
	}
	state := DefaultState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("invalid tree state file: %w", err)
	}
	if state.Expanded == nil {
		state.Expanded = make(map[string]bool)
	}
	return state, nil
}

// Save writes the state for docKey.
func (s *FileStore) Save(docKey string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tree state: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create state directory %s: %w", s.Dir, err)
	}
	return os.WriteFile(s.Path(docKey), data, 0644)
}

// SQLiteStore keeps the state of many documents in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS tree_state (
	doc      TEXT NOT NULL,
	path     TEXT NOT NULL,
	expanded INTEGER NOT NULL,
	PRIMARY KEY (doc, path)
)`

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create state directory %s: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open state database: %w", err)
	}
	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the state recorded for docKey.
func (s *SQLiteStore) Load(docKey string) (*State, error) {
	rows, err := s.db.Query(`SELECT path, expanded FROM tree_state WHERE doc = ?`, docKey)
	if err != nil {
		return nil, fmt.Errorf("query tree state: %w", err)
	}
	defer rows.Close()

	state := DefaultState()
	for rows.Next() {
		var (
			path     string
			expanded bool
		)
		if err := rows.Scan(&path, &expanded); err != nil {
			return nil, fmt.Errorf("scan tree state: %w", err)
		}
		state.Expanded[path] = expanded
	}
	return state, rows.Err()
}

// Save replaces the state recorded for docKey.
func (s *SQLiteStore) Save(docKey string, state *State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tree_state WHERE doc = ?`, docKey); err != nil {
		return fmt.Errorf("clear tree state: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO tree_state (doc, path, expanded) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for path, expanded := range state.Expanded {
		if _, err := stmt.Exec(docKey, path, expanded); err != nil {
			return fmt.Errorf("save tree state %s: %w", path, err)
		}
	}
	return tx.Commit()
}
