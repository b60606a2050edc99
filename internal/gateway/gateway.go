// Package gateway abstracts order routing to a broker or exchange. The
// engine talks to a single Gateway; Limited decorates any implementation
// with request pacing.
package gateway

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/schema"
)

// Sink receives order and trade updates pushed back by a gateway.
type Sink interface {
	OnOrderUpdate(order schema.OrderData)
	OnTradeUpdate(trade schema.TradeData)
}

// Gateway submits and cancels orders at a venue.
type Gateway interface {
	// Name identifies the gateway in order records.
	Name() string
	// Convert expands one logical request into the venue-specific requests,
	// applying position locking or netting rules. Venues without such rules
	// return the request unchanged.
	Convert(req schema.OrderRequest, lock, net bool) []schema.OrderRequest
	// Submit sends one order and returns its venue order id.
	Submit(ctx context.Context, req schema.OrderRequest) (string, error)
	// Cancel withdraws a live order.
	Cancel(ctx context.Context, req schema.CancelRequest) error
}

// Limited wraps a gateway with a token-bucket rate limit covering submits
// and cancels.
type Limited struct {
	inner   Gateway
	limiter *rate.Limiter
}

// NewLimited paces the inner gateway at rps requests per second with the
// given burst.
func NewLimited(inner Gateway, rps float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) Name() string { return l.inner.Name() }

func (l *Limited) Convert(req schema.OrderRequest, lock, net bool) []schema.OrderRequest {
	return l.inner.Convert(req, lock, net)
}

func (l *Limited) Submit(ctx context.Context, req schema.OrderRequest) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", errs.New("gateway/submit", errs.CodeGateway, errs.WithCause(err))
	}
	return l.inner.Submit(ctx, req)
}

func (l *Limited) Cancel(ctx context.Context, req schema.CancelRequest) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errs.New("gateway/cancel", errs.CodeGateway, errs.WithCause(err))
	}
	return l.inner.Cancel(ctx, req)
}
