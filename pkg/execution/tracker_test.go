package execution

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/carry/pkg/models"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openPosition() models.Position {
	return models.Position{
		ETFShares:         880,
		ETFSymbol:         "IBIT",
		ETFEntryPrice:     28.40,
		FuturesContracts:  2,
		FuturesSymbol:     "BTCF26",
		FuturesEntryPrice: 51000,
		FuturesExpiry:     "2026-01-30",
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(openPosition()))

	loaded, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, openPosition(), loaded)

	// temp file must not linger after the rename
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope", "position.json"))

	pos, err := store.Load()
	require.NoError(t, err)
	assert.False(t, pos.IsOpen())
}

func TestTrackerEntrySurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")

	tracker := NewTracker(NewFileStore(path), discardLogger())
	require.False(t, tracker.Position().IsOpen())

	require.NoError(t, tracker.UpdateOnEntry(openPosition()))
	assert.NotEmpty(t, tracker.Position().OpenedAt)

	restarted := NewTracker(NewFileStore(path), discardLogger())
	got := restarted.Position()
	assert.True(t, got.IsOpen())
	assert.Equal(t, 880, got.ETFShares)
	assert.Equal(t, 2, got.FuturesContracts)
	assert.Equal(t, tracker.Position().OpenedAt, got.OpenedAt)
}

func TestTrackerPartialExitToZeroClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	tracker := NewTracker(NewFileStore(path), discardLogger())
	require.NoError(t, tracker.UpdateOnEntry(openPosition()))

	require.NoError(t, tracker.UpdateOnPartialExit(400, 1))
	got := tracker.Position()
	assert.True(t, got.IsOpen())
	assert.Equal(t, 480, got.ETFShares)
	assert.Equal(t, 1, got.FuturesContracts)

	require.NoError(t, tracker.UpdateOnPartialExit(480, 1))
	assert.False(t, tracker.Position().IsOpen())
	assert.Empty(t, tracker.Position().OpenedAt)

	// the cleared state is what a restart sees
	restarted := NewTracker(NewFileStore(path), discardLogger())
	assert.False(t, restarted.Position().IsOpen())
}

func TestTrackerPartialExitClampsAtZero(t *testing.T) {
	tracker := NewTracker(NewFileStore(filepath.Join(t.TempDir(), "position.json")), discardLogger())
	require.NoError(t, tracker.UpdateOnEntry(openPosition()))

	require.NoError(t, tracker.UpdateOnPartialExit(5000, 10))
	assert.False(t, tracker.Position().IsOpen())
	assert.Equal(t, 0, tracker.Position().ETFShares)
}

func TestTrackerMalformedStateStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tracker := NewTracker(NewFileStore(path), discardLogger())
	assert.False(t, tracker.Position().IsOpen())
}

func TestTrackerClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	tracker := NewTracker(NewFileStore(path), discardLogger())
	require.NoError(t, tracker.UpdateOnEntry(openPosition()))

	require.NoError(t, tracker.Clear())
	assert.False(t, tracker.Position().IsOpen())

	loaded, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.False(t, loaded.IsOpen())
}
