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

// ErrCartInvalidInput flags cart input rejected before any network call.
var ErrCartInvalidInput = errors.New("api client: invalid cart input")

// FetchCart returns the server-side cart for the authenticated user.
func (c *Client) FetchCart(ctx context.Context) (domain.Cart, error) {
	return Cached(ctx, c.cache, "cart", []Tag{TagCart}, func(ctx context.Context) (domain.Cart, error) {
		var payload cartPayload
		req := apiRequest{method: http.MethodGet, path: "/cart"}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.Cart{}, fmt.Errorf("cart: fetch: %w", err)
		}
		return payload.toDomain(), nil
	})
}

// AddCartLine adds quantity of a listing to the server cart and returns the
// updated snapshot. The backend folds repeated listings into one line.
func (c *Client) AddCartLine(ctx context.Context, listingID string, quantity int) (domain.Cart, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return domain.Cart{}, fmt.Errorf("%w: listing id is required", ErrCartInvalidInput)
	}
	if quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	// The add endpoint expects "qty" even though cart reads render
	// "quantity". The server shapes predate the client; both stay.
	body := map[string]any{"listing_id": listingID, "qty": quantity}

	var payload cartPayload
	req := apiRequest{method: http.MethodPost, path: "/cart/add", body: body}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Cart{}, fmt.Errorf("cart: add %s: %w", listingID, err)
	}

	c.cache.Invalidate(ctx, TagCart)
	return payload.toDomain(), nil
}

// RemoveCartLine drops a listing's line from the server cart entirely.
func (c *Client) RemoveCartLine(ctx context.Context, listingID string) (domain.Cart, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return domain.Cart{}, fmt.Errorf("%w: listing id is required", ErrCartInvalidInput)
	}

	var payload cartPayload
	req := apiRequest{method: http.MethodDelete, path: "/cart/items/" + url.PathEscape(listingID)}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Cart{}, fmt.Errorf("cart: remove %s: %w", listingID, err)
	}

	c.cache.Invalidate(ctx, TagCart)
	return payload.toDomain(), nil
}

// ClearCart empties the server cart.
func (c *Client) ClearCart(ctx context.Context) error {
	req := apiRequest{method: http.MethodDelete, path: "/cart"}
	if err := c.do(ctx, req, nil); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}

	c.cache.Invalidate(ctx, TagCart)
	return nil
}

// cartPayload mirrors the cart read shape: each line nests a partial listing
// and reports "quantity", unlike the add endpoint's flat "qty" input.
type cartPayload struct {
	Items     []cartLinePayload `json:"items"`
	UpdatedAt string            `json:"updated_at"`
}

type cartLinePayload struct {
	Listing  cartListingPayload `json:"listing"`
	Quantity int                `json:"quantity"`
	AddedAt  string             `json:"added_at"`
}

type cartListingPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	Unit        string `json:"unit"`
	Species     string `json:"species"`
	ProductType string `json:"product_type"`
	Location    string `json:"location"`
	ImageURL    string `json:"image_url"`
	SellerID    string `json:"seller_id"`
}

func (p cartPayload) toDomain() domain.Cart {
	items := make([]domain.CartItem, 0, len(p.Items))
	for _, line := range p.Items {
		items = append(items, domain.CartItem{
			ListingID:   strings.TrimSpace(line.Listing.ID),
			Title:       strings.TrimSpace(line.Listing.Title),
			UnitPrice:   moneyFromMinor(line.Listing.PriceMinor, line.Listing.Currency),
			Quantity:    line.Quantity,
			Unit:        strings.TrimSpace(line.Listing.Unit),
			Species:     strings.TrimSpace(line.Listing.Species),
			ProductType: strings.TrimSpace(line.Listing.ProductType),
			Location:    strings.TrimSpace(line.Listing.Location),
			ImageURL:    strings.TrimSpace(line.Listing.ImageURL),
			SellerID:    strings.TrimSpace(line.Listing.SellerID),
			AddedAt:     parseTime(line.AddedAt),
		})
	}
	return domain.Cart{Items: items, UpdatedAt: parseTime(p.UpdatedAt)}
}
