package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gregtusar/carry/pkg/models"
)

const (
	defaultSpotURL      = "https://api.exchange.coinbase.com"
	defaultSentimentURL = "https://api.alternative.me/fng/"
)

// SpotClient fetches spot prices from a public exchange ticker endpoint.
// Requests are rate-limited so multi-pair polling stays under public API
// quotas.
type SpotClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

func NewSpotClient(baseURL string, logger *logrus.Logger) *SpotClient {
	if baseURL == "" {
		baseURL = defaultSpotURL
	}
	return &SpotClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(3), 5),
		logger:     logger,
	}
}

// Price returns the last trade price for a product like "BTC-USD".
func (c *SpotClient) Price(ctx context.Context, product string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/products/%s/ticker", c.baseURL, product)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch ticker %s: %w", product, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ticker %s: status %d", product, resp.StatusCode)
	}

	var body struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode ticker %s: %w", product, err)
	}

	price, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticker price %q: %w", body.Price, err)
	}
	return price, nil
}

// SentimentClient reads the Fear & Greed index and normalizes it to 0..1.
type SentimentClient struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewSentimentClient(url string) *SentimentClient {
	if url == "" {
		url = defaultSentimentURL
	}
	return &SentimentClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

func (c *SentimentClient) Index(ctx context.Context) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch sentiment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sentiment: status %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode sentiment: %w", err)
	}
	if len(body.Data) == 0 {
		return 0, fmt.Errorf("sentiment: empty response")
	}

	value, err := strconv.ParseFloat(body.Data[0].Value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sentiment %q: %w", body.Data[0].Value, err)
	}
	return value / 100, nil
}

// EstimatedSource builds a snapshot from a live spot price and an
// assumed contango curve, for pairs with no reachable futures quote.
// The futures premium scales with days to the next quarterly expiry.
type EstimatedSource struct {
	spot           *SpotClient
	sentiment      *SentimentClient
	assumedMonthly float64
	logger         *logrus.Logger
	now            func() time.Time
}

func NewEstimatedSource(spot *SpotClient, sentiment *SentimentClient, assumedMonthly float64, logger *logrus.Logger) *EstimatedSource {
	if assumedMonthly <= 0 {
		assumedMonthly = 0.015
	}
	return &EstimatedSource{
		spot:           spot,
		sentiment:      sentiment,
		assumedMonthly: assumedMonthly,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *EstimatedSource) Name() string { return "estimated" }

func (s *EstimatedSource) Snapshot(ctx context.Context, pair models.PairConfig) (models.MarketSnapshot, error) {
	if pair.CryptoSymbol == "" {
		return models.MarketSnapshot{}, ErrUnavailable
	}

	spotPrice, err := s.spot.Price(ctx, pair.CryptoSymbol)
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	now := s.now()
	expiry := NextQuarterlyExpiry(now)
	days := expiry.Sub(now).Hours() / 24
	futuresPrice := spotPrice * (1 + s.assumedMonthly*days/30)

	snap := models.MarketSnapshot{
		PairID:        pair.ID,
		SpotSymbol:    pair.SpotSymbol,
		FuturesSymbol: pair.FuturesSymbol,
		SpotPrice:     spotPrice,
		FuturesPrice:  futuresPrice,
		FuturesExpiry: expiry,
		AsOf:          now,
	}

	if s.sentiment != nil {
		if idx, err := s.sentiment.Index(ctx); err == nil {
			snap.SentimentIndex = idx
		} else {
			s.logger.WithError(err).Debug("Sentiment unavailable, leaving unset")
		}
	}

	return snap, nil
}
