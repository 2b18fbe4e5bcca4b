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

// ErrSearchInvalidInput flags search input rejected before any network call.
var ErrSearchInvalidInput = errors.New("api client: invalid search input")

// SmartSearch sends a free-text query to the backend's AI search and returns
// its interpretation alongside the matched listings. The matching itself is
// entirely server-side; the client only shapes the response. Results are
// cached under the listings tag since new or changed listings shift them.
func (c *Client) SmartSearch(ctx context.Context, query string, limit int) (domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: query is required", ErrSearchInvalidInput)
	}

	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	key := cacheKey("search/smart", values)
	return Cached(ctx, c.cache, key, []Tag{TagListings}, func(ctx context.Context) (domain.SearchResult, error) {
		var payload searchResultPayload
		req := apiRequest{method: http.MethodGet, path: "/search/smart", query: values}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.SearchResult{}, fmt.Errorf("search: smart %q: %w", query, err)
		}
		return payload.toDomain(), nil
	})
}

// Matches fetches the backend matcher's listing suggestions for a buy
// request, best fit first.
func (c *Client) Matches(ctx context.Context, buyRequestID string) ([]domain.ListingMatch, error) {
	buyRequestID = strings.TrimSpace(buyRequestID)
	if buyRequestID == "" {
		return nil, fmt.Errorf("%w: buy request id is required", ErrSearchInvalidInput)
	}
	key := cacheKey("buy-requests/"+buyRequestID+"/matches", nil)
	return Cached(ctx, c.cache, key, []Tag{TagBuyRequest(buyRequestID), TagListings}, func(ctx context.Context) ([]domain.ListingMatch, error) {
		var payload matchesPayload
		req := apiRequest{method: http.MethodGet, path: "/buy-requests/" + url.PathEscape(buyRequestID) + "/matches"}
		if err := c.do(ctx, req, &payload); err != nil {
			return nil, fmt.Errorf("search: matches for %s: %w", buyRequestID, err)
		}
		return payload.toDomain(), nil
	})
}

type searchResultPayload struct {
	Query          string           `json:"query"`
	Interpretation string           `json:"interpretation"`
	Results        []listingPayload `json:"results"`
}

func (p searchResultPayload) toDomain() domain.SearchResult {
	listings := make([]domain.Listing, 0, len(p.Results))
	for _, item := range p.Results {
		listings = append(listings, item.toDomain())
	}
	return domain.SearchResult{
		Query:          strings.TrimSpace(p.Query),
		Interpretation: strings.TrimSpace(p.Interpretation),
		Listings:       listings,
	}
}

type matchPayload struct {
	Listing listingPayload `json:"listing"`
	Score   float64        `json:"score"`
	Reason  string         `json:"reason"`
}

type matchesPayload struct {
	Items []matchPayload `json:"items"`
}

func (p matchesPayload) toDomain() []domain.ListingMatch {
	items := make([]domain.ListingMatch, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, domain.ListingMatch{
			Listing: item.Listing.toDomain(),
			Score:   item.Score,
			Reason:  strings.TrimSpace(item.Reason),
		})
	}
	return items
}
