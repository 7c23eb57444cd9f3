package venue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crossvenue/arb/pkg/types"
)

// HTTPClient implements QuoteSource and OrderGateway over a venue's REST API.
// All requests pass through a client-side rate limiter so polling for fills
// inside the order timeout window cannot trip venue rate limits.
type HTTPClient struct {
	venue      types.Venue
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// HTTPClientConfig holds configuration for an HTTP venue client.
type HTTPClientConfig struct {
	Venue             types.Venue
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Timeout           time.Duration
	Logger            *zap.Logger
}

// NewHTTPClient creates a venue client for a REST API.
func NewHTTPClient(cfg *HTTPClientConfig) *HTTPClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		venue:      cfg.Venue,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:     cfg.Logger,
	}
}

type quoteResponse struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
}

// FetchQuotes returns top-of-book quotes for both sides of a market.
func (c *HTTPClient) FetchQuotes(ctx context.Context, marketID string) ([]*types.Quote, error) {
	var raw []quoteResponse
	err := c.doJSON(ctx, http.MethodGet, "/markets/"+marketID+"/book", nil, &raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	quotes := make([]*types.Quote, 0, len(raw))
	for _, q := range raw {
		side := types.SideYes
		if q.Side == "no" || q.Side == "NO" {
			side = types.SideNo
		}
		quotes = append(quotes, &types.Quote{
			Venue:        c.venue,
			MarketID:     q.MarketID,
			Side:         side,
			BestBidPrice: q.BidPrice,
			BestBidSize:  q.BidSize,
			BestAskPrice: q.AskPrice,
			BestAskSize:  q.AskSize,
			ObservedAt:   now,
		})
	}

	return quotes, nil
}

type submitRequest struct {
	MarketID string `json:"market_id"`
	Side     string `json:"side"`
	Action   string `json:"action"`
	Price    string `json:"price"`
	Size     string `json:"size"`
}

type submitResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// SubmitOrder places a limit order and returns the venue order ID.
func (c *HTTPClient) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	action := "sell"
	if req.Buy {
		action = "buy"
	}

	body := submitRequest{
		MarketID: req.MarketID,
		Side:     string(req.Side),
		Action:   action,
		Price:    strconv.FormatFloat(req.Price, 'f', -1, 64),
		Size:     strconv.FormatFloat(req.Size, 'f', -1, 64),
	}

	var resp submitResponse
	err := c.doJSON(ctx, http.MethodPost, "/orders", body, &resp)
	if err != nil {
		return "", err
	}

	c.logger.Info("order-submitted",
		zap.String("venue", string(c.venue)),
		zap.String("market-id", req.MarketID),
		zap.String("side", string(req.Side)),
		zap.String("action", action),
		zap.Float64("price", req.Price),
		zap.Float64("size", req.Size),
		zap.String("order-id", resp.OrderID))

	return resp.OrderID, nil
}

// CancelOrder requests cancellation of an open order.
func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/orders/"+orderID, nil, nil)
	if err != nil {
		return err
	}

	c.logger.Info("order-cancel-requested",
		zap.String("venue", string(c.venue)),
		zap.String("order-id", orderID))

	return nil
}

type statusResponse struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	FilledSize   float64 `json:"filled_size"`
	AvgFillPrice float64 `json:"avg_fill_price"`
}

// OrderStatus reports the last confirmed fill state of an order.
func (c *HTTPClient) OrderStatus(ctx context.Context, orderID string) (*types.OrderStatus, error) {
	var resp statusResponse
	err := c.doJSON(ctx, http.MethodGet, "/orders/"+orderID, nil, &resp)
	if err != nil {
		return nil, err
	}

	return &types.OrderStatus{
		OrderID:      resp.OrderID,
		State:        mapOrderState(resp.Status),
		FilledSize:   resp.FilledSize,
		AvgFillPrice: resp.AvgFillPrice,
	}, nil
}

func mapOrderState(status string) types.OrderState {
	switch status {
	case "filled", "executed":
		return types.OrderFilled
	case "partially_filled", "partial":
		return types.OrderPartiallyFilled
	case "cancelled", "canceled":
		return types.OrderCancelled
	case "expired":
		return types.OrderExpired
	case "new", "pending":
		return types.OrderNew
	default:
		return types.OrderSubmitted
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	err := c.limiter.Wait(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrOrderNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: http %d: %s", ErrRejected, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
