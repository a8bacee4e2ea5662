package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/carry/pkg/models"
)

// Feed keeps a live last-price cache from an exchange ticker stream.
// It reconnect-tolerantly degrades: a dropped stream just stops updating
// and downstream sources fall back to polling.
type Feed struct {
	url    string
	conn   *websocket.Conn
	logger *logrus.Logger

	mu        sync.RWMutex
	connected bool
	prices    map[string]feedPrice
}

type feedPrice struct {
	price float64
	asOf  time.Time
}

type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

func NewFeed(url string, logger *logrus.Logger) *Feed {
	if url == "" {
		url = "wss://ws-feed.exchange.coinbase.com"
	}
	return &Feed{
		url:    url,
		logger: logger,
		prices: make(map[string]feedPrice),
	}
}

// Connect dials the stream and subscribes to tickers for the products.
func (f *Feed) Connect(ctx context.Context, products []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("connect ticker feed: %w", err)
	}

	sub := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: products,
		Channels:   []string{"ticker"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe ticker feed: %w", err)
	}

	f.conn = conn
	f.connected = true

	go f.readLoop(ctx)
	go f.keepAlive(ctx)

	f.logger.WithField("products", products).Info("Ticker feed connected")
	return nil
}

func (f *Feed) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.disconnect()
			return
		default:
			var raw json.RawMessage
			if err := f.conn.ReadJSON(&raw); err != nil {
				f.logger.WithError(err).Warn("Ticker feed read failed")
				f.disconnect()
				return
			}

			var msg tickerMessage
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "ticker" {
				continue
			}

			price, err := strconv.ParseFloat(msg.Price, 64)
			if err != nil {
				continue
			}

			asOf := time.Now()
			if t, err := time.Parse(time.RFC3339, msg.Time); err == nil {
				asOf = t
			}

			f.mu.Lock()
			f.prices[msg.ProductID] = feedPrice{price: price, asOf: asOf}
			f.mu.Unlock()
		}
	}
}

func (f *Feed) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.connected {
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.logger.WithError(err).Warn("Ticker feed ping failed")
					f.mu.Unlock()
					f.disconnect()
					return
				}
			}
			f.mu.Unlock()
		}
	}
}

func (f *Feed) disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.conn != nil {
		f.conn.Close()
	}
	f.connected = false
}

// Connected reports whether the stream is live.
func (f *Feed) Connected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// LastPrice returns the most recent price for a product, if any.
func (f *Feed) LastPrice(product string) (float64, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.prices[product]
	return p.price, p.asOf, ok
}

// setPrice seeds the cache directly, for tests.
func (f *Feed) setPrice(product string, price float64, asOf time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[product] = feedPrice{price: price, asOf: asOf}
}

// FeedSource builds snapshots from streamed prices. A pair is served
// only when both of its products have a quote no older than maxAge.
type FeedSource struct {
	feed   *Feed
	maxAge time.Duration
	now    func() time.Time
}

func NewFeedSource(feed *Feed, maxAge time.Duration) *FeedSource {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &FeedSource{feed: feed, maxAge: maxAge, now: time.Now}
}

func (s *FeedSource) Name() string { return "feed" }

func (s *FeedSource) Snapshot(ctx context.Context, pair models.PairConfig) (models.MarketSnapshot, error) {
	if pair.CryptoSymbol == "" || pair.FuturesSymbol == "" {
		return models.MarketSnapshot{}, ErrUnavailable
	}

	spot, spotAt, ok := s.feed.LastPrice(pair.CryptoSymbol)
	if !ok {
		return models.MarketSnapshot{}, ErrUnavailable
	}
	futures, futAt, ok := s.feed.LastPrice(pair.FuturesSymbol)
	if !ok {
		return models.MarketSnapshot{}, ErrUnavailable
	}

	now := s.now()
	if now.Sub(spotAt) > s.maxAge || now.Sub(futAt) > s.maxAge {
		return models.MarketSnapshot{}, fmt.Errorf("%w: stale feed quote", ErrUnavailable)
	}

	return models.MarketSnapshot{
		PairID:        pair.ID,
		SpotSymbol:    pair.SpotSymbol,
		FuturesSymbol: pair.FuturesSymbol,
		SpotPrice:     spot,
		FuturesPrice:  futures,
		FuturesExpiry: NextQuarterlyExpiry(now),
		AsOf:          now,
	}, nil
}
