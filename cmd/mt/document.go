package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/debug"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/metrics"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

// loadDocument reads path, timing the decode.
func loadDocument(path string) (*document.Document, error) {
	stop := metrics.TimerWithCallback(metrics.DocumentLoad, func(d time.Duration) {
		debug.LogTiming("load "+filepath.Base(path), d)
	})
	doc, err := document.Load(path)
	stop()
	return doc, err
}

// treeOptions turns config and flag overrides into tree options. A negative
// depth keeps the configured one.
func treeOptions(cfg config.Config, mode string, depth int) ([]tree.Option, error) {
	if mode == "" {
		mode = cfg.UI.DefaultMode
	}
	m, err := tree.ParseMode(strings.ToLower(mode))
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		depth = cfg.Tree.ExpandDepth
	}
	return []tree.Option{tree.WithExpandDepth(depth), tree.WithMode(m)}, nil
}

// stateStore persists expansion state with the configured backend.
type stateStore struct {
	tree.StateStore
	close func() error
}

func (s *stateStore) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// openStateStore returns nil when state persistence is off or no state
// directory can be resolved.
func openStateStore(cfg config.Config) (*stateStore, error) {
	if !cfg.Tree.PersistState {
		return nil, nil
	}
	path := cfg.StatePath()
	if path == "" {
		return nil, nil
	}
	switch cfg.Tree.StateBackend {
	case config.BackendSQLite:
		db, err := tree.OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return &stateStore{StateStore: db, close: db.Close}, nil
	case config.BackendJSON, "":
		return &stateStore{StateStore: tree.NewFileStore(path)}, nil
	}
	return nil, fmt.Errorf("%w: state backend %q", config.ErrInvalid, cfg.Tree.StateBackend)
}

// documentKey identifies a document in the state store.
func documentKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// restoreState applies saved expansion to m. Failures only cost the saved
// state.
func restoreState(store *stateStore, key string, m *tree.Model) {
	if store == nil {
		return
	}
	state, err := store.Load(key)
	if err != nil {
		debug.Log("state: load %s: %v", key, err)
		return
	}
	n := m.ApplyExpansionState(state)
	debug.Log("state: restored %d entries for %s", n, key)
}

func saveState(store *stateStore, key string, m *tree.Model) error {
	if store == nil {
		return nil
	}
	if err := store.Save(key, m.ExpansionState()); err != nil {
		return fmt.Errorf("save tree state: %w", err)
	}
	return nil
}

// openReadOnlyTree loads path into a view-mode tree. Saved expansion state
// applies unless an explicit depth or all is given.
func openReadOnlyTree(cfg config.Config, path string, depth int, all bool) (*document.Document, *tree.Model, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, nil, err
	}
	treeOpts, err := treeOptions(cfg, "view", depth)
	if err != nil {
		return nil, nil, err
	}
	m := tree.New(doc, treeOpts...)
	switch {
	case all:
		m.ExpandAll()
	case depth < 0:
		store, err := openStateStore(cfg)
		if err != nil {
			debug.Log("state: %v", err)
			break
		}
		if store != nil {
			restoreState(store, documentKey(path), m)
			store.Close()
		}
	}
	return doc, m, nil
}

var errNoTerminal = errors.New("view needs a terminal; use mt dump for non-interactive output")

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
