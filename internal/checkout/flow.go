// Package checkout drives the preview-then-pay flow and keeps an order's
// price lock alive while the buyer completes payment.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/domain"
)

var errFlowClientRequired = errors.New("checkout flow: api client is required")

// ErrCartEmpty indicates there is nothing to check out.
var ErrCartEmpty = errors.New("checkout flow: cart is empty")

// FlowDeps wires the API client used by the checkout flow.
type FlowDeps struct {
	Client *api.Client
	Logger *zap.Logger
}

// Flow sequences a checkout: Preview prices the cart under a lock window,
// Pay opens the order and hands back the Paystack authorization URL.
type Flow struct {
	client *api.Client
	logger *zap.Logger
}

// NewFlow constructs a Flow enforcing dependency validation.
func NewFlow(deps FlowDeps) (*Flow, error) {
	if deps.Client == nil {
		return nil, errFlowClientRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{client: deps.Client, logger: logger}, nil
}

// Preview prices the current cart. The returned preview carries the window
// during which the quoted prices hold.
func (f *Flow) Preview(ctx context.Context) (domain.CheckoutPreview, error) {
	preview, err := f.client.PreviewCheckout(ctx)
	if err != nil {
		return domain.CheckoutPreview{}, err
	}
	if len(preview.Lines) == 0 {
		return domain.CheckoutPreview{}, ErrCartEmpty
	}

	f.logger.Debug("checkout previewed",
		zap.Int("lines", len(preview.Lines)),
		zap.String("total", preview.Total.String()),
		zap.Time("lock_expires_at", preview.LockExpiresAt),
	)
	return preview, nil
}

// Pay opens an order from the cart and initialises a Paystack transaction.
// The buyer finishes the charge on the returned authorization URL; escrow
// holds the funds until delivery is confirmed.
func (f *Flow) Pay(ctx context.Context, email string) (domain.PaymentInit, error) {
	init, err := f.client.InitPaystack(ctx, email)
	if err != nil {
		return domain.PaymentInit{}, err
	}
	if init.AuthorizationURL == "" {
		return domain.PaymentInit{}, fmt.Errorf("checkout flow: payment init for order %s returned no authorization url", init.OrderID)
	}

	f.logger.Info("payment initialised",
		zap.String("order_id", init.OrderID),
		zap.String("reference", init.Reference),
		zap.String("amount", init.Amount.String()),
	)
	return init, nil
}
