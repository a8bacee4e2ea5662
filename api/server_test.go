package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregtusar/carry/pkg/marketdata"
	"github.com/gregtusar/carry/pkg/models"
	"github.com/gregtusar/carry/pkg/monitor"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	asOf := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	source := marketdata.NewStaticSource()
	source.Set("BTC", models.MarketSnapshot{
		SpotPrice:     50_000,
		FuturesPrice:  51_000,
		FuturesExpiry: asOf.AddDate(0, 0, 30),
		AsOf:          asOf,
	})

	pairs := []models.PairConfig{{ID: "BTC", SpotSymbol: "IBIT", FuturesSymbol: "BTCF26", Enabled: true}}
	mon := monitor.New(monitor.Config{Interval: 5 * time.Millisecond}, models.DefaultStrategyConfig(), pairs, source, nil, logger)
	require.NoError(t, mon.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	mon.Stop()

	srv := httptest.NewServer(NewServer(mon, logger, 0).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSignalsEndpoint(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/signals")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]monitor.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body, "BTC")
	assert.Equal(t, models.SignalStrongEntry, body["BTC"].Signal)
}

func TestHistoryEndpointNeedsPair(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/history?pair=BTC")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []monitor.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.NotEmpty(t, entries)
}

func TestPositionsEndpointEmptyWithoutManagers(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/api/positions")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]models.Position
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body)
}
