package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// ErrOrderInvalidInput flags order input rejected before any network call.
var ErrOrderInvalidInput = errors.New("api client: invalid order input")

// Orders fetches the authenticated buyer's orders, newest first.
func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	return Cached(ctx, c.cache, "orders", []Tag{TagOrders}, func(ctx context.Context) ([]domain.Order, error) {
		var payload ordersPayload
		req := apiRequest{method: http.MethodGet, path: "/orders"}
		if err := c.do(ctx, req, &payload); err != nil {
			return nil, fmt.Errorf("orders: list: %w", err)
		}
		return payload.toDomain(), nil
	})
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: id is required", ErrOrderInvalidInput)
	}
	key := cacheKey("orders/"+id, nil)
	return Cached(ctx, c.cache, key, []Tag{TagOrder(id)}, func(ctx context.Context) (domain.Order, error) {
		var payload orderPayload
		req := apiRequest{method: http.MethodGet, path: "/orders/" + url.PathEscape(id)}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.Order{}, fmt.Errorf("orders: fetch %s: %w", id, err)
		}
		return payload.toDomain(), nil
	})
}

// RefreshPriceLock extends the order's price-lock window while the buyer is
// still completing payment. Idempotent: replaying a timed-out refresh is safe.
func (c *Client) RefreshPriceLock(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var payload orderPayload
	req := apiRequest{
		method:     http.MethodPost,
		path:       "/orders/" + url.PathEscape(orderID) + "/refresh-lock",
		idempotent: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Order{}, fmt.Errorf("orders: refresh lock %s: %w", orderID, err)
	}

	c.cache.Invalidate(ctx, TagOrder(orderID))
	return payload.toDomain(), nil
}

// CancelOrder voids an order that has not completed.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var payload orderPayload
	req := apiRequest{
		method:     http.MethodPost,
		path:       "/orders/" + url.PathEscape(orderID) + "/cancel",
		idempotent: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Order{}, fmt.Errorf("orders: cancel %s: %w", orderID, err)
	}

	c.cache.Invalidate(ctx, TagOrder(orderID), TagOrders)
	return payload.toDomain(), nil
}

type orderPayload struct {
	ID            string             `json:"id"`
	Reference     string             `json:"reference"`
	BuyerID       string             `json:"buyer_id"`
	Lines         []orderLinePayload `json:"lines"`
	SubtotalMinor int64              `json:"subtotal_minor"`
	Fees          []feePayload       `json:"fees"`
	TotalMinor    int64              `json:"total_minor"`
	Currency      string             `json:"currency"`
	Status        string             `json:"status"`
	LockExpiresAt string             `json:"lock_expires_at"`
	CreatedAt     string             `json:"created_at"`
	UpdatedAt     string             `json:"updated_at"`
}

type orderLinePayload struct {
	ListingID  string `json:"listing_id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int    `json:"quantity"`
}

func (p orderPayload) toDomain() domain.Order {
	lines := make([]domain.OrderLine, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, domain.OrderLine{
			ListingID: strings.TrimSpace(line.ListingID),
			Title:     strings.TrimSpace(line.Title),
			UnitPrice: moneyFromMinor(line.PriceMinor, p.Currency),
			Quantity:  line.Quantity,
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
	return domain.Order{
		ID:            strings.TrimSpace(p.ID),
		Reference:     strings.TrimSpace(p.Reference),
		BuyerID:       strings.TrimSpace(p.BuyerID),
		Lines:         lines,
		Subtotal:      moneyFromMinor(p.SubtotalMinor, p.Currency),
		Fees:          fees,
		Total:         moneyFromMinor(p.TotalMinor, p.Currency),
		Status:        domain.OrderStatus(defaultString(p.Status, string(domain.OrderPendingPayment))),
		LockExpiresAt: parseTimePtr(p.LockExpiresAt),
		CreatedAt:     parseTime(p.CreatedAt),
		UpdatedAt:     parseTime(p.UpdatedAt),
	}
}

type ordersPayload struct {
	Items []orderPayload `json:"items"`
}

func (p ordersPayload) toDomain() []domain.Order {
	items := make([]domain.Order, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.toDomain())
	}
	return items
}
