// Package execution turns signals into broker orders: safety checks,
// two-leg sequencing with partial-failure handling, crash-safe position
// tracking, and an append-only decision journal.
package execution

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/models"
)

// Store persists the open position so it survives restarts. The storage
// medium is swappable; the engine only needs load/save.
type Store interface {
	Load() (models.Position, error)
	Save(models.Position) error
}

// FileStore keeps the position in a single JSON file, written with a
// temp-file-then-rename so a crash mid-write cannot leave a torn record.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (models.Position, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Position{}, nil
		}
		return models.Position{}, err
	}

	var pos models.Position
	if err := json.Unmarshal(b, &pos); err != nil {
		return models.Position{}, fmt.Errorf("parse position state %s: %w", s.path, err)
	}
	return pos, nil
}

func (s *FileStore) Save(pos models.Position) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Tracker owns the in-memory position and is the source of truth for
// "am I in a trade". Every mutation persists before returning.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	pos    models.Position
	logger *logrus.Logger
}

// NewTracker loads the persisted position. Malformed or missing state
// starts empty with a warning; the engine must never refuse to start over
// corrupt local state.
func NewTracker(store Store, logger *logrus.Logger) *Tracker {
	t := &Tracker{store: store, logger: logger}

	pos, err := store.Load()
	if err != nil {
		logger.WithError(err).Warn("Failed to load position state, starting empty")
		pos = models.Position{}
	}
	if pos.IsOpen() {
		logger.WithFields(logrus.Fields{
			"etf_shares":        pos.ETFShares,
			"etf_symbol":        pos.ETFSymbol,
			"futures_contracts": pos.FuturesContracts,
			"futures_symbol":    pos.FuturesSymbol,
		}).Info("Loaded open position")
	}
	t.pos = pos
	return t
}

// Position returns a copy of the current position.
func (t *Tracker) Position() models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

// UpdateOnEntry replaces the position after both entry legs filled.
func (t *Tracker) UpdateOnEntry(pos models.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pos.OpenedAt == "" {
		pos.OpenedAt = time.Now().Format(time.RFC3339)
	}
	if err := t.store.Save(pos); err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	t.pos = pos
	return nil
}

// UpdateOnPartialExit reduces both legs by the filled amounts. Reducing
// both legs to zero clears the position entirely.
func (t *Tracker) UpdateOnPartialExit(etfSharesSold, contractsClosed int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.pos
	next.ETFShares -= etfSharesSold
	if next.ETFShares < 0 {
		next.ETFShares = 0
	}
	next.FuturesContracts -= contractsClosed
	if next.FuturesContracts < 0 {
		next.FuturesContracts = 0
	}
	if !next.IsOpen() {
		next = models.Position{}
	}

	if err := t.store.Save(next); err != nil {
		return fmt.Errorf("persist partial exit: %w", err)
	}
	t.pos = next
	return nil
}

// Clear empties the position after a full exit.
func (t *Tracker) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Save(models.Position{}); err != nil {
		return fmt.Errorf("persist clear: %w", err)
	}
	t.pos = models.Position{}
	t.logger.Info("Position cleared")
	return nil
}
