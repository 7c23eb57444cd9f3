// Package venue defines the narrow collaborator interfaces the engine uses to
// talk to trading venues, plus the HTTP and websocket implementations and the
// paper-trading gateway.
package venue

import (
	"context"

	"github.com/crossvenue/arb/pkg/types"
)

// QuoteSource fetches top-of-book quotes for a market. Failures surface as
// ErrUnavailable; the engine treats that as "no fresh quote", never as fatal.
type QuoteSource interface {
	FetchQuotes(ctx context.Context, marketID string) ([]*types.Quote, error)
}

// OrderRequest describes an order submission.
type OrderRequest struct {
	MarketID string
	Side     types.Side
	Buy      bool
	Price    float64
	Size     float64
}

// OrderGateway submits, cancels and tracks orders on one venue.
type OrderGateway interface {
	// SubmitOrder places an order and returns the venue-assigned order ID.
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder requests cancellation. Best-effort: a fill can race the
	// cancel, and the caller must trust the last confirmed status.
	CancelOrder(ctx context.Context, orderID string) error

	// OrderStatus reports the last confirmed fill state of an order.
	OrderStatus(ctx context.Context, orderID string) (*types.OrderStatus, error)
}
