package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// ErrCheckoutInvalidInput flags checkout input rejected before any network call.
var ErrCheckoutInvalidInput = errors.New("api client: invalid checkout input")

// PreviewCheckout asks the backend to price the current cart: line totals,
// fees, and the price-lock window. Previews are never cached, every call
// reflects live stock and pricing.
func (c *Client) PreviewCheckout(ctx context.Context) (domain.CheckoutPreview, error) {
	var payload previewPayload
	req := apiRequest{method: http.MethodPost, path: "/checkout/preview"}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.CheckoutPreview{}, fmt.Errorf("checkout: preview: %w", err)
	}
	return payload.toDomain(), nil
}

// InitPaystack opens an order from the current cart and initialises a
// Paystack transaction for it. The call carries an idempotency key so a
// timed-out response can be replayed without double-charging.
func (c *Client) InitPaystack(ctx context.Context, email string) (domain.PaymentInit, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return domain.PaymentInit{}, fmt.Errorf("%w: email is required", ErrCheckoutInvalidInput)
	}

	var payload paymentInitPayload
	req := apiRequest{
		method:     http.MethodPost,
		path:       "/payments/paystack/init",
		body:       map[string]string{"email": email},
		idempotent: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.PaymentInit{}, fmt.Errorf("checkout: paystack init: %w", err)
	}

	// The cart was consumed into an order.
	c.cache.Invalidate(ctx, TagCart, TagOrders)
	return payload.toDomain(), nil
}

type previewPayload struct {
	Lines         []previewLinePayload `json:"lines"`
	SubtotalMinor int64                `json:"subtotal_minor"`
	Fees          []feePayload         `json:"fees"`
	TotalMinor    int64                `json:"total_minor"`
	Currency      string               `json:"currency"`
	LockExpiresAt string               `json:"lock_expires_at"`
}

type previewLinePayload struct {
	ListingID  string `json:"listing_id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int    `json:"quantity"`
	TotalMinor int64  `json:"total_minor"`
}

type feePayload struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	AmountMinor int64  `json:"amount_minor"`
}

func (p previewPayload) toDomain() domain.CheckoutPreview {
	lines := make([]domain.PreviewLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, domain.PreviewLine{
			ListingID: strings.TrimSpace(line.ListingID),
			Title:     strings.TrimSpace(line.Title),
			UnitPrice: moneyFromMinor(line.PriceMinor, p.Currency),
			Quantity:  line.Quantity,
			LineTotal: moneyFromMinor(line.TotalMinor, p.Currency),
		})
	}
	fees := make([]domain.FeeLine, 0, len(p.Fees))
	for _, fee := range p.Fees {
		fees = append(fees, domain.FeeLine{
			Code:   strings.TrimSpace(fee.Code),
			Label:  strings.TrimSpace(fee.Label),
			Amount: moneyFromMinor(fee.AmountMinor, p.Currency),
		})
	}
	return domain.CheckoutPreview{
		Lines:         lines,
		Subtotal:      moneyFromMinor(p.SubtotalMinor, p.Currency),
		Fees:          fees,
		Total:         moneyFromMinor(p.TotalMinor, p.Currency),
		LockExpiresAt: parseTime(p.LockExpiresAt),
	}
}

type paymentInitPayload struct {
	OrderID          string `json:"order_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
}

func (p paymentInitPayload) toDomain() domain.PaymentInit {
	return domain.PaymentInit{
		OrderID:          strings.TrimSpace(p.OrderID),
		Reference:        strings.TrimSpace(p.Reference),
		AuthorizationURL: strings.TrimSpace(p.AuthorizationURL),
		AccessCode:       strings.TrimSpace(p.AccessCode),
		Amount:           moneyFromMinor(p.AmountMinor, p.Currency),
	}
}
