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

// ErrListingInvalidInput flags listing input rejected before any network call.
var ErrListingInvalidInput = errors.New("api client: invalid listing input")

// ListingsQuery narrows the browsable listings collection.
type ListingsQuery struct {
	Species   string
	Location  string
	Search    string
	MaxPrice  *domain.Money
	Sort      string
	PageSize  int
	PageToken string
}

func (q ListingsQuery) values() url.Values {
	values := url.Values{}
	if s := strings.TrimSpace(q.Species); s != "" {
		values.Set("species", strings.ToLower(s))
	}
	if l := strings.TrimSpace(q.Location); l != "" {
		values.Set("location", l)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		values.Set("q", s)
	}
	if q.MaxPrice != nil {
		values.Set("max_price_minor", strconv.FormatInt(q.MaxPrice.Minor(), 10))
	}
	if s := strings.TrimSpace(q.Sort); s != "" {
		values.Set("orderBy", s)
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.PageToken != "" {
		values.Set("pageToken", q.PageToken)
	}
	return values
}

// CreateListingInput describes a new lot a seller wants to publish.
type CreateListingInput struct {
	Title       string
	Description string
	Species     string
	Breed       string
	AgeMonths   int
	WeightKG    float64
	Quantity    int
	UnitPrice   domain.Money
	Location    string
	MediaURLs   []string
}

// Listings fetches one page of the listings collection. Pages are cached
// under the listings tag until a listing mutation invalidates them.
func (c *Client) Listings(ctx context.Context, q ListingsQuery) (domain.Page[domain.Listing], error) {
	query := q.values()
	key := cacheKey("listings", query)
	return Cached(ctx, c.cache, key, []Tag{TagListings}, func(ctx context.Context) (domain.Page[domain.Listing], error) {
		var payload listingsPagePayload
		req := apiRequest{method: http.MethodGet, path: "/listings", query: query}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.Page[domain.Listing]{}, fmt.Errorf("listings: list: %w", err)
		}
		return payload.toDomain(), nil
	})
}

// Listing fetches one listing's detail view. The backend serves it under the
// legacy "/pdp" suffix.
func (c *Client) Listing(ctx context.Context, id string) (domain.Listing, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Listing{}, fmt.Errorf("%w: id is required", ErrListingInvalidInput)
	}
	key := cacheKey("listings/"+id, nil)
	return Cached(ctx, c.cache, key, []Tag{TagListing(id)}, func(ctx context.Context) (domain.Listing, error) {
		var payload listingPayload
		req := apiRequest{method: http.MethodGet, path: "/listings/" + url.PathEscape(id) + "/pdp"}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.Listing{}, fmt.Errorf("listings: fetch %s: %w", id, err)
		}
		return payload.toDomain(), nil
	})
}

// CreateListing publishes a new lot and invalidates cached listing pages.
func (c *Client) CreateListing(ctx context.Context, input CreateListingInput) (domain.Listing, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Species) == "" {
		return domain.Listing{}, fmt.Errorf("%w: title and species are required", ErrListingInvalidInput)
	}
	if input.Quantity <= 0 {
		return domain.Listing{}, fmt.Errorf("%w: quantity must be positive", ErrListingInvalidInput)
	}
	if !input.UnitPrice.Amount.IsPositive() {
		return domain.Listing{}, fmt.Errorf("%w: unit price must be positive", ErrListingInvalidInput)
	}

	body := map[string]any{
		"title":       strings.TrimSpace(input.Title),
		"description": strings.TrimSpace(input.Description),
		"species":     strings.ToLower(strings.TrimSpace(input.Species)),
		"breed":       strings.TrimSpace(input.Breed),
		"age_months":  input.AgeMonths,
		"weight_kg":   input.WeightKG,
		"quantity":    input.Quantity,
		"price_minor": input.UnitPrice.Minor(),
		"currency":    input.UnitPrice.Currency.String(),
		"location":    strings.TrimSpace(input.Location),
		"media_urls":  input.MediaURLs,
	}

	var payload listingPayload
	req := apiRequest{method: http.MethodPost, path: "/listings", body: body}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.Listing{}, fmt.Errorf("listings: create: %w", err)
	}

	c.cache.Invalidate(ctx, TagListings)
	return payload.toDomain(), nil
}

type listingPayload struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"seller_id"`
	SellerName  string   `json:"seller_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Species     string   `json:"species"`
	Breed       string   `json:"breed"`
	AgeMonths   int      `json:"age_months"`
	WeightKG    float64  `json:"weight_kg"`
	Quantity    int      `json:"quantity"`
	PriceMinor  int64    `json:"price_minor"`
	Currency    string   `json:"currency"`
	Location    string   `json:"location"`
	MediaURLs   []string `json:"media_urls"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func (p listingPayload) toDomain() domain.Listing {
	return domain.Listing{
		ID:          strings.TrimSpace(p.ID),
		SellerID:    strings.TrimSpace(p.SellerID),
		SellerName:  strings.TrimSpace(p.SellerName),
		Title:       strings.TrimSpace(p.Title),
		Description: strings.TrimSpace(p.Description),
		Species:     strings.ToLower(strings.TrimSpace(p.Species)),
		Breed:       strings.TrimSpace(p.Breed),
		AgeMonths:   p.AgeMonths,
		WeightKG:    p.WeightKG,
		Quantity:    p.Quantity,
		UnitPrice:   moneyFromMinor(p.PriceMinor, p.Currency),
		Location:    strings.TrimSpace(p.Location),
		MediaURLs:   p.MediaURLs,
		Status:      domain.ListingStatus(defaultString(p.Status, string(domain.ListingActive))),
		CreatedAt:   parseTime(p.CreatedAt),
		UpdatedAt:   parseTime(p.UpdatedAt),
	}
}

type listingsPagePayload struct {
	Items         []listingPayload `json:"items"`
	NextPageToken string           `json:"next_page_token"`
}

func (p listingsPagePayload) toDomain() domain.Page[domain.Listing] {
	items := make([]domain.Listing, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, item.toDomain())
	}
	return domain.Page[domain.Listing]{Items: items, NextPageToken: strings.TrimSpace(p.NextPageToken)}
}
