package venue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

// QuoteStream maintains a websocket subscription to a venue's quote feed and
// delivers decoded quotes on a channel. It reconnects with exponential
// backoff and jitter, and resubscribes to the tracked markets after every
// reconnect. For venues without a streaming feed the scan loop's HTTP polling
// is the only quote path and no stream is started.
type QuoteStream struct {
	venue    types.Venue
	url      string
	logger   *zap.Logger
	quotes   chan *types.Quote
	interval streamBackoff

	mu         sync.Mutex
	subscribed []string
	conn       *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type streamBackoff struct {
	initial time.Duration
	max     time.Duration
	mult    float64
}

// QuoteStreamConfig holds quote stream configuration.
type QuoteStreamConfig struct {
	Venue                 types.Venue
	URL                   string
	BufferSize            int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	Logger                *zap.Logger
}

// NewQuoteStream creates a quote stream. Call Start to connect.
func NewQuoteStream(cfg *QuoteStreamConfig) *QuoteStream {
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 1000
	}
	backoff := streamBackoff{
		initial: cfg.ReconnectInitialDelay,
		max:     cfg.ReconnectMaxDelay,
		mult:    cfg.ReconnectBackoffMult,
	}
	if backoff.initial <= 0 {
		backoff.initial = time.Second
	}
	if backoff.max <= 0 {
		backoff.max = 30 * time.Second
	}
	if backoff.mult < 1 {
		backoff.mult = 2.0
	}

	return &QuoteStream{
		venue:    cfg.Venue,
		url:      cfg.URL,
		logger:   cfg.Logger,
		quotes:   make(chan *types.Quote, bufSize),
		interval: backoff,
	}
}

// Quotes returns the channel of decoded quote updates.
func (s *QuoteStream) Quotes() <-chan *types.Quote {
	return s.quotes
}

// Subscribe adds markets to the subscription set. Applied on the live
// connection if one exists, and replayed after every reconnect.
func (s *QuoteStream) Subscribe(marketIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribed = append(s.subscribed, marketIDs...)
	if s.conn != nil {
		err := s.sendSubscribeLocked(marketIDs)
		if err != nil {
			s.logger.Warn("stream-subscribe-failed", zap.Error(err))
		}
	}
}

// Start connects and begins the read loop.
func (s *QuoteStream) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Close tears down the stream and waits for the read loop to exit.
func (s *QuoteStream) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	close(s.quotes)
	return nil
}

func (s *QuoteStream) run() {
	defer s.wg.Done()

	delay := s.interval.initial
	for {
		if s.ctx.Err() != nil {
			return
		}

		err := s.connect()
		if err != nil {
			jitter := time.Duration(rand.Int63n(int64(delay) / 5))
			s.logger.Warn("stream-connect-failed",
				zap.String("venue", string(s.venue)),
				zap.Duration("retry-in", delay+jitter),
				zap.Error(err))

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay + jitter):
			}

			delay = time.Duration(float64(delay) * s.interval.mult)
			if delay > s.interval.max {
				delay = s.interval.max
			}
			continue
		}

		delay = s.interval.initial
		s.readLoop()
	}
}

func (s *QuoteStream) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	err = s.sendSubscribeLocked(s.subscribed)
	s.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return err
	}

	s.logger.Info("stream-connected",
		zap.String("venue", string(s.venue)),
		zap.String("url", s.url))

	return nil
}

type subscribeMessage struct {
	Type    string   `json:"type"`
	Markets []string `json:"markets"`
}

func (s *QuoteStream) sendSubscribeLocked(marketIDs []string) error {
	if len(marketIDs) == 0 || s.conn == nil {
		return nil
	}
	return s.conn.WriteJSON(subscribeMessage{Type: "subscribe", Markets: marketIDs})
}

type quoteMessage struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
}

func (s *QuoteStream) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("stream-read-error",
				zap.String("venue", string(s.venue)),
				zap.Error(err))
			_ = conn.Close()
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			return
		}

		var msg quoteMessage
		err = json.Unmarshal(data, &msg)
		if err != nil || msg.MarketID == "" {
			continue
		}

		side := types.SideYes
		if msg.Side == "no" || msg.Side == "NO" {
			side = types.SideNo
		}

		quote := &types.Quote{
			Venue:        s.venue,
			MarketID:     msg.MarketID,
			Side:         side,
			BestBidPrice: msg.BidPrice,
			BestBidSize:  msg.BidSize,
			BestAskPrice: msg.AskPrice,
			BestAskSize:  msg.AskSize,
			ObservedAt:   time.Now(),
		}

		select {
		case s.quotes <- quote:
		default:
			StreamDroppedTotal.WithLabelValues(string(s.venue)).Inc()
		}
	}
}
