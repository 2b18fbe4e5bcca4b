package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// ErrBuyRequestInvalidInput flags buy-request input rejected before any
// network call.
var ErrBuyRequestInvalidInput = errors.New("api client: invalid buy request input")

// BuyRequestsQuery narrows the buy request board.
type BuyRequestsQuery struct {
	Species   string
	Status    domain.BuyRequestStatus
	Mine      bool
	PageSize  int
	PageToken string
}

func (q BuyRequestsQuery) values() url.Values {
	values := url.Values{}
	if s := strings.TrimSpace(q.Species); s != "" {
		values.Set("species", strings.ToLower(s))
	}
	if q.Status != "" {
		values.Set("status", string(q.Status))
	}
	if q.Mine {
		values.Set("mine", "true")
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.PageToken != "" {
		values.Set("pageToken", q.PageToken)
	}
	return values
}

// BuyRequestInput describes the demand a buyer publishes or updates.
type BuyRequestInput struct {
	Species     string
	Breed       string
	Quantity    int
	TargetPrice *domain.Money
	Location    string
	Notes       string
}

func (in BuyRequestInput) validate() error {
	if strings.TrimSpace(in.Species) == "" {
		return fmt.Errorf("%w: species is required", ErrBuyRequestInvalidInput)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrBuyRequestInvalidInput)
	}
	return nil
}

func (in BuyRequestInput) body() map[string]any {
	body := map[string]any{
		"species":  strings.ToLower(strings.TrimSpace(in.Species)),
		"breed":    strings.TrimSpace(in.Breed),
		"quantity": in.Quantity,
		"location": strings.TrimSpace(in.Location),
		"notes":    strings.TrimSpace(in.Notes),
	}
	if in.TargetPrice != nil {
		body["target_price_minor"] = in.TargetPrice.Minor()
		body["currency"] = in.TargetPrice.Currency.String()
	}
	return body
}

// OfferInput describes a seller's response to a buy request.
type OfferInput struct {
	ListingID string
	UnitPrice domain.Money
	Quantity  int
	Message   string
}

// BuyRequests fetches one page of the buy request board.
func (c *Client) BuyRequests(ctx context.Context, q BuyRequestsQuery) (domain.Page[domain.BuyRequest], error) {
	query := q.values()
	key := cacheKey("buy-requests", query)
	return Cached(ctx, c.cache, key, []Tag{TagBuyRequests}, func(ctx context.Context) (domain.Page[domain.BuyRequest], error) {
		var payload buyRequestsPagePayload
		req := apiRequest{method: http.MethodGet, path: "/buy-requests", query: query}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.Page[domain.BuyRequest]{}, fmt.Errorf("buy-requests: list: %w", err)
		}
		return payload.toDomain(), nil
	})
}

// BuyRequest fetches one buy request.
func (c *Client) BuyRequest(ctx context.Context, id string) (domain.BuyRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.BuyRequest{}, fmt.Errorf("%w: id is required", ErrBuyRequestInvalidInput)
	}
	key := cacheKey("buy-requests/"+id, nil)
	return Cached(ctx, c.cache, key, []Tag{TagBuyRequest(id)}, func(ctx context.Context) (domain.BuyRequest, error) {
		var payload buyRequestPayload
		req := apiRequest{method: http.MethodGet, path: "/buy-requests/" + url.PathEscape(id)}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.BuyRequest{}, fmt.Errorf("buy-requests: fetch %s: %w", id, err)
		}
		return payload.toDomain(), nil
	})
}

// CreateBuyRequest publishes new demand and invalidates the board.
func (c *Client) CreateBuyRequest(ctx context.Context, input BuyRequestInput) (domain.BuyRequest, error) {
	if err := input.validate(); err != nil {
		return domain.BuyRequest{}, err
	}

	var payload buyRequestPayload
	req := apiRequest{method: http.MethodPost, path: "/buy-requests", body: input.body()}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.BuyRequest{}, fmt.Errorf("buy-requests: create: %w", err)
	}

	c.cache.Invalidate(ctx, TagBuyRequests)
	return payload.toDomain(), nil
}

// UpdateBuyRequest replaces an open request's fields.
func (c *Client) UpdateBuyRequest(ctx context.Context, id string, input BuyRequestInput) (domain.BuyRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.BuyRequest{}, fmt.Errorf("%w: id is required", ErrBuyRequestInvalidInput)
	}
	if err := input.validate(); err != nil {
		return domain.BuyRequest{}, err
	}

	var payload buyRequestPayload
	req := apiRequest{method: http.MethodPut, path: "/buy-requests/" + url.PathEscape(id), body: input.body()}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.BuyRequest{}, fmt.Errorf("buy-requests: update %s: %w", id, err)
	}

	c.cache.Invalidate(ctx, TagBuyRequest(id), TagBuyRequests)
	return payload.toDomain(), nil
}

// CancelBuyRequest withdraws an open request.
func (c *Client) CancelBuyRequest(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrBuyRequestInvalidInput)
	}

	req := apiRequest{method: http.MethodPost, path: "/buy-requests/" + url.PathEscape(id) + "/cancel"}
	if err := c.do(ctx, req, nil); err != nil {
		return fmt.Errorf("buy-requests: cancel %s: %w", id, err)
	}

	c.cache.Invalidate(ctx, TagBuyRequest(id), TagBuyRequests)
	return nil
}

// Offers fetches the offer thread under a buy request.
func (c *Client) Offers(ctx context.Context, buyRequestID string) ([]domain.Offer, error) {
	buyRequestID = strings.TrimSpace(buyRequestID)
	if buyRequestID == "" {
		return nil, fmt.Errorf("%w: buy request id is required", ErrBuyRequestInvalidInput)
	}
	key := cacheKey("buy-requests/"+buyRequestID+"/offers", nil)
	return Cached(ctx, c.cache, key, []Tag{TagOffers(buyRequestID)}, func(ctx context.Context) ([]domain.Offer, error) {
		var payload offersPayload
		req := apiRequest{method: http.MethodGet, path: "/buy-requests/" + url.PathEscape(buyRequestID) + "/offers"}
		if err := c.do(ctx, req, &payload); err != nil {
			return nil, fmt.Errorf("buy-requests: offers for %s: %w", buyRequestID, err)
		}
		return payload.toDomain(), nil
	})
}

// SendOffer posts a seller's offer onto a buy request.
func (c *Client) SendOffer(ctx context.Context, buyRequestID string, input OfferInput) (domain.Offer, error) {
	buyRequestID = strings.TrimSpace(buyRequestID)
	if buyRequestID == "" {
		return domain.Offer{}, fmt.Errorf("%w: buy request id is required", ErrBuyRequestInvalidInput)
	}
	if input.Quantity <= 0 {
		return domain.Offer{}, fmt.Errorf("%w: quantity must be positive", ErrBuyRequestInvalidInput)
	}
	if !input.UnitPrice.Amount.IsPositive() {
		return domain.Offer{}, fmt.Errorf("%w: unit price must be positive", ErrBuyRequestInvalidInput)
	}

	body := map[string]any{
		"listing_id":  strings.TrimSpace(input.ListingID),
		"price_minor": input.UnitPrice.Minor(),
		"currency":    input.UnitPrice.Currency.String(),
		"quantity":    input.Quantity,
		"message":     strings.TrimSpace(input.Message),
	}

	var payload offerPayload
	req := apiRequest{method: http.MethodPost, path: "/buy-requests/" + url.PathEscape(buyRequestID) + "/offers", body: body}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Offer{}, fmt.Errorf("buy-requests: send offer: %w", err)
	}

	c.cache.Invalidate(ctx, TagOffers(buyRequestID), TagBuyRequest(buyRequestID))
	return payload.toDomain(), nil
}

// AcceptOffer marks one offer as the winner. The backend rejects the
// siblings, closes the request, and opens a pending order; the call is
// idempotent so a network blip cannot double-accept.
func (c *Client) AcceptOffer(ctx context.Context, buyRequestID, offerID string) (domain.Order, error) {
	buyRequestID = strings.TrimSpace(buyRequestID)
	offerID = strings.TrimSpace(offerID)
	if buyRequestID == "" || offerID == "" {
		return domain.Order{}, fmt.Errorf("%w: buy request id and offer id are required", ErrBuyRequestInvalidInput)
	}

	var payload orderPayload
	req := apiRequest{
		method:     http.MethodPost,
		path:       "/buy-requests/" + url.PathEscape(buyRequestID) + "/offers/" + url.PathEscape(offerID) + "/accept",
		idempotent: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Order{}, fmt.Errorf("buy-requests: accept offer %s: %w", offerID, err)
	}

	c.cache.Invalidate(ctx,
		TagOffers(buyRequestID),
		TagBuyRequest(buyRequestID),
		TagBuyRequests,
		TagOrders,
	)
	return payload.toDomain(), nil
}

type buyRequestPayload struct {
	ID               string `json:"id"`
	BuyerID          string `json:"buyer_id"`
	Species          string `json:"species"`
	Breed            string `json:"breed"`
	Quantity         int    `json:"quantity"`
	TargetPriceMinor *int64 `json:"target_price_minor"`
	Currency         string `json:"currency"`
	Location         string `json:"location"`
	Notes            string `json:"notes"`
	Status           string `json:"status"`
	OfferCount       int    `json:"offer_count"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func (p buyRequestPayload) toDomain() domain.BuyRequest {
	out := domain.BuyRequest{
		ID:         strings.TrimSpace(p.ID),
		BuyerID:    strings.TrimSpace(p.BuyerID),
		Species:    strings.ToLower(strings.TrimSpace(p.Species)),
		Breed:      strings.TrimSpace(p.Breed),
		Quantity:   p.Quantity,
		Location:   strings.TrimSpace(p.Location),
		Notes:      strings.TrimSpace(p.Notes),
		Status:     domain.BuyRequestStatus(defaultString(p.Status, string(domain.BuyRequestOpen))),
		OfferCount: p.OfferCount,
		CreatedAt:  parseTime(p.CreatedAt),
		UpdatedAt:  parseTime(p.UpdatedAt),
	}
	if p.TargetPriceMinor != nil {
		price := moneyFromMinor(*p.TargetPriceMinor, p.Currency)
		out.TargetPrice = &price
	}
	return out
}

type buyRequestsPagePayload struct {
	Items         []buyRequestPayload `json:"items"`
	NextPageToken string              `json:"next_page_token"`
}

func (p buyRequestsPagePayload) toDomain() domain.Page[domain.BuyRequest] {
	items := make([]domain.BuyRequest, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.toDomain())
	}
	return domain.Page[domain.BuyRequest]{Items: items, NextPageToken: strings.TrimSpace(p.NextPageToken)}
}

type offerPayload struct {
	ID           string `json:"id"`
	BuyRequestID string `json:"buy_request_id"`
	SellerID     string `json:"seller_id"`
	SellerName   string `json:"seller_name"`
	ListingID    string `json:"listing_id"`
	PriceMinor   int64  `json:"price_minor"`
	Currency     string `json:"currency"`
	Quantity     int    `json:"quantity"`
	Message      string `json:"message"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func (p offerPayload) toDomain() domain.Offer {
	return domain.Offer{
		ID:           strings.TrimSpace(p.ID),
		BuyRequestID: strings.TrimSpace(p.BuyRequestID),
		SellerID:     strings.TrimSpace(p.SellerID),
		SellerName:   strings.TrimSpace(p.SellerName),
		ListingID:    strings.TrimSpace(p.ListingID),
		UnitPrice:    moneyFromMinor(p.PriceMinor, p.Currency),
		Quantity:     p.Quantity,
		Message:      strings.TrimSpace(p.Message),
		Status:       domain.OfferStatus(defaultString(p.Status, string(domain.OfferPending))),
		CreatedAt:    parseTime(p.CreatedAt),
	}
}

type offersPayload struct {
	Items []offerPayload `json:"items"`
}

func (p offersPayload) toDomain() []domain.Offer {
	items := make([]domain.Offer, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.toDomain())
	}
	return items
}
