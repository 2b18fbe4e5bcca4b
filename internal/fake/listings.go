package fake

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/platform/pagination"
)

type listingRecord struct {
	ID          string
	SellerID    string
	SellerName  string
	Title       string
	Description string
	Species     string
	Breed       string
	AgeMonths   int
	WeightKG    float64
	Quantity    int
	PriceMinor  int64
	Currency    string
	Unit        string
	ProductType string
	Location    string
	MediaURLs   []string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Server) listingRoutes(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(s.optionalAuth)
		g.Get("/", s.listListings)
		g.Get("/{listingID}/pdp", s.getListing)
	})
	r.Group(func(g chi.Router) {
		g.Use(s.requireAuth)
		g.Post("/", s.createListing)
	})
}

func (s *Server) listListings(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, pagination.Options{
		AllowedOrderFields: []string{"created_at", "price_minor"},
	})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	species := strings.ToLower(strings.TrimSpace(query.Get("species")))
	location := strings.ToLower(strings.TrimSpace(query.Get("location")))
	search := strings.ToLower(strings.TrimSpace(query.Get("q")))
	maxPrice := int64(-1)
	if raw := strings.TrimSpace(query.Get("max_price_minor")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_filter", "max_price_minor must be a non-negative integer", http.StatusBadRequest))
			return
		}
		maxPrice = value
	}

	s.mu.Lock()
	matched := make([]listingRecord, 0, len(s.listingOrder))
	for _, id := range s.listingOrder {
		record := s.listings[id]
		if species != "" && record.Species != species {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(record.Location), location) {
			continue
		}
		if search != "" && !matchesSearch(*record, search) {
			continue
		}
		if maxPrice >= 0 && record.PriceMinor > maxPrice {
			continue
		}
		matched = append(matched, *record)
	}
	s.mu.Unlock()

	sortListings(matched, params.Orders)

	start, end, next, err := pagination.Window(params, len(matched))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("pagination_failed", err.Error(), http.StatusInternalServerError))
		return
	}

	items := make([]listingView, 0, end-start)
	for _, record := range matched[start:end] {
		items = append(items, listingViewOf(record))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":           items,
		"next_page_token": next,
	})
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listingID")

	s.mu.Lock()
	record, ok := s.listings[id]
	var view listingView
	if ok {
		view = listingViewOf(*record)
	}
	s.mu.Unlock()

	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("listing_not_found", fmt.Sprintf("listing %s does not exist", id), http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	var body struct {
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
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}

	switch {
	case strings.TrimSpace(body.Title) == "":
		writeValidationError(r.Context(), w, "title is required")
		return
	case strings.TrimSpace(body.Species) == "":
		writeValidationError(r.Context(), w, "species is required")
		return
	case body.Quantity <= 0:
		writeValidationError(r.Context(), w, "quantity must be positive")
		return
	case body.PriceMinor <= 0:
		writeValidationError(r.Context(), w, "price_minor must be positive")
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "NGN"
	}

	s.mu.Lock()
	user := s.users[userID]
	if user == nil || !user.hasRole("seller") {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only sellers can publish listings", http.StatusForbidden))
		return
	}
	now := s.now()
	record := &listingRecord{
		ID:          newID("lst"),
		SellerID:    user.ID,
		SellerName:  user.displayName(),
		Title:       strings.TrimSpace(body.Title),
		Description: strings.TrimSpace(body.Description),
		Species:     strings.ToLower(strings.TrimSpace(body.Species)),
		Breed:       strings.ToLower(strings.TrimSpace(body.Breed)),
		AgeMonths:   body.AgeMonths,
		WeightKG:    body.WeightKG,
		Quantity:    body.Quantity,
		PriceMinor:  body.PriceMinor,
		Currency:    currency,
		Unit:        "head",
		ProductType: "live_animal",
		Location:    strings.TrimSpace(body.Location),
		MediaURLs:   body.MediaURLs,
		Status:      "active",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.listings[record.ID] = record
	s.listingOrder = append(s.listingOrder, record.ID)
	view := listingViewOf(*record)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusCreated, view)
}

func matchesSearch(record listingRecord, needle string) bool {
	for _, hay := range []string{record.Title, record.Description, record.Breed} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// sortListings orders the snapshot by the requested clauses, defaulting to
// newest first.
func sortListings(items []listingRecord, orders []pagination.Order) {
	if len(orders) == 0 {
		orders = []pagination.Order{{Field: "created_at", Desc: true}}
	}
	sort.SliceStable(items, func(i, j int) bool {
		for _, order := range orders {
			var less, equal bool
			switch order.Field {
			case "price_minor":
				less = items[i].PriceMinor < items[j].PriceMinor
				equal = items[i].PriceMinor == items[j].PriceMinor
			default:
				less = items[i].CreatedAt.Before(items[j].CreatedAt)
				equal = items[i].CreatedAt.Equal(items[j].CreatedAt)
			}
			if equal {
				continue
			}
			if order.Desc {
				return !less
			}
			return less
		}
		return false
	})
}

type listingView struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"seller_id"`
	SellerName  string   `json:"seller_name,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Species     string   `json:"species"`
	Breed       string   `json:"breed,omitempty"`
	AgeMonths   int      `json:"age_months,omitempty"`
	WeightKG    float64  `json:"weight_kg,omitempty"`
	Quantity    int      `json:"quantity"`
	PriceMinor  int64    `json:"price_minor"`
	Currency    string   `json:"currency"`
	Location    string   `json:"location,omitempty"`
	MediaURLs   []string `json:"media_urls,omitempty"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

func listingViewOf(record listingRecord) listingView {
	return listingView{
		ID:          record.ID,
		SellerID:    record.SellerID,
		SellerName:  record.SellerName,
		Title:       record.Title,
		Description: record.Description,
		Species:     record.Species,
		Breed:       record.Breed,
		AgeMonths:   record.AgeMonths,
		WeightKG:    record.WeightKG,
		Quantity:    record.Quantity,
		PriceMinor:  record.PriceMinor,
		Currency:    record.Currency,
		Location:    record.Location,
		MediaURLs:   record.MediaURLs,
		Status:      record.Status,
		CreatedAt:   renderTime(record.CreatedAt),
		UpdatedAt:   renderTime(record.UpdatedAt),
	}
}
