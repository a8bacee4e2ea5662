package marketdata

import (
	"context"
	"sync"

	"github.com/gregtusar/carry/pkg/models"
)

// StaticSource serves pre-loaded snapshots, for offline runs and tests.
// It is the terminal fallback in the default chain.
type StaticSource struct {
	mu    sync.RWMutex
	snaps map[string]models.MarketSnapshot
}

func NewStaticSource() *StaticSource {
	return &StaticSource{snaps: make(map[string]models.MarketSnapshot)}
}

func (s *StaticSource) Name() string { return "static" }

// Set installs the snapshot returned for the pair.
func (s *StaticSource) Set(pairID string, snap models.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[pairID] = snap
}

func (s *StaticSource) Snapshot(ctx context.Context, pair models.PairConfig) (models.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[pair.ID]
	if !ok {
		return models.MarketSnapshot{}, ErrUnavailable
	}
	snap.PairID = pair.ID
	return snap, nil
}
