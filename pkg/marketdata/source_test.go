package marketdata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func btcPair() models.PairConfig {
	return models.PairConfig{
		ID:            "BTC",
		SpotSymbol:    "IBIT",
		FuturesSymbol: "BTC-27MAR26",
		CryptoSymbol:  "BTC-USD",
		Enabled:       true,
	}
}

func TestChainFallsThroughToFirstHealthySource(t *testing.T) {
	static := NewStaticSource()
	static.Set("BTC", models.MarketSnapshot{SpotPrice: 50000, FuturesPrice: 51000})

	chain := NewChain(discardLogger(), NewStaticSource(), static)

	snap, err := chain.Snapshot(context.Background(), btcPair())
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.SpotPrice)
	assert.Equal(t, "BTC", snap.PairID)
}

func TestChainAllSourcesDownIsUnavailable(t *testing.T) {
	chain := NewChain(discardLogger(), NewStaticSource(), NewStaticSource())

	_, err := chain.Snapshot(context.Background(), btcPair())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSpotClientParsesTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/BTC-USD/ticker", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"price":"50123.45","time":"2025-03-05T12:00:00Z"}`))
	}))
	defer srv.Close()

	client := NewSpotClient(srv.URL, discardLogger())
	price, err := client.Price(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 50123.45, price)
}

func TestSpotClientRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewSpotClient(srv.URL, discardLogger()).Price(context.Background(), "BTC-USD")
	assert.Error(t, err)
}

func TestSentimentClientNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"value":"82","value_classification":"Extreme Greed"}]}`))
	}))
	defer srv.Close()

	idx, err := NewSentimentClient(srv.URL).Index(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.82, idx, 1e-9)
}

func TestEstimatedSourceBuildsContangoSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"50000"}`))
	}))
	defer srv.Close()

	src := NewEstimatedSource(NewSpotClient(srv.URL, discardLogger()), nil, 0.015, discardLogger())
	src.now = func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) }

	snap, err := src.Snapshot(context.Background(), btcPair())
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.SpotPrice)
	assert.Greater(t, snap.FuturesPrice, snap.SpotPrice)
	assert.True(t, snap.FuturesExpiry.After(snap.AsOf))

	// the assumed curve must land near the configured monthly basis
	assert.InDelta(t, 0.015, snap.MonthlyBasis(), 0.003)
}

func TestEstimatedSourceNeedsCryptoSymbol(t *testing.T) {
	src := NewEstimatedSource(NewSpotClient("http://127.0.0.1:0", discardLogger()), nil, 0.015, discardLogger())

	pair := btcPair()
	pair.CryptoSymbol = ""
	_, err := src.Snapshot(context.Background(), pair)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFeedSourceServesFreshQuotes(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	feed := NewFeed("", discardLogger())
	feed.setPrice("BTC-USD", 50000, now)
	feed.setPrice("BTC-27MAR26", 51000, now)

	src := NewFeedSource(feed, time.Minute)
	src.now = func() time.Time { return now }

	snap, err := src.Snapshot(context.Background(), btcPair())
	require.NoError(t, err)
	assert.Equal(t, 50000.0, snap.SpotPrice)
	assert.Equal(t, 51000.0, snap.FuturesPrice)
}

func TestFeedSourceRejectsStaleQuotes(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	feed := NewFeed("", discardLogger())
	feed.setPrice("BTC-USD", 50000, now.Add(-2*time.Minute))
	feed.setPrice("BTC-27MAR26", 51000, now)

	src := NewFeedSource(feed, time.Minute)
	src.now = func() time.Time { return now }

	_, err := src.Snapshot(context.Background(), btcPair())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNextQuarterlyExpiry(t *testing.T) {
	// last Friday of March 2025 is the 28th
	got := NextQuarterlyExpiry(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 28, got.Day())
	assert.Equal(t, time.Friday, got.Weekday())

	// past the March expiry, roll to June
	got = NextQuarterlyExpiry(time.Date(2025, 3, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.June, got.Month())
	assert.Equal(t, time.Friday, got.Weekday())
}
