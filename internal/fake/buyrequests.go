package fake

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/platform/pagination"
)

type buyRequestRecord struct {
	ID               string
	BuyerID          string
	Species          string
	Breed            string
	Quantity         int
	TargetPriceMinor *int64
	Currency         string
	Location         string
	Notes            string
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type offerRecord struct {
	ID           string
	BuyRequestID string
	SellerID     string
	SellerName   string
	ListingID    string
	PriceMinor   int64
	Currency     string
	Quantity     int
	Message      string
	Status       string
	CreatedAt    time.Time
}

func (s *Server) buyRequestRoutes(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(s.optionalAuth)
		g.Get("/", s.listBuyRequests)
		g.Get("/{requestID}", s.getBuyRequest)
		g.Get("/{requestID}/offers", s.listOffers)
		g.Get("/{requestID}/matches", s.matchBuyRequest)
	})
	r.Group(func(g chi.Router) {
		g.Use(s.requireAuth)
		g.Post("/", s.createBuyRequest)
		g.Put("/{requestID}", s.updateBuyRequest)
		g.Post("/{requestID}/cancel", s.cancelBuyRequest)
		g.Post("/{requestID}/offers", s.sendOffer)
		g.With(s.idem).Post("/{requestID}/offers/{offerID}/accept", s.acceptOffer)
	})
}

func (s *Server) listBuyRequests(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, pagination.Options{
		AllowedOrderFields: []string{"created_at"},
	})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	species := strings.ToLower(strings.TrimSpace(query.Get("species")))
	status := strings.ToLower(strings.TrimSpace(query.Get("status")))
	mine := query.Get("mine") == "true"
	userID := identityFromContext(r.Context())
	if mine && userID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "mine=true requires authentication", http.StatusUnauthorized))
		return
	}

	s.mu.Lock()
	matched := make([]buyRequestRecord, 0, len(s.requestOrder))
	counts := make([]int, 0, len(s.requestOrder))
	for _, id := range s.requestOrder {
		record := s.requests[id]
		if species != "" && record.Species != species {
			continue
		}
		if status != "" && record.Status != status {
			continue
		}
		if mine && record.BuyerID != userID {
			continue
		}
		matched = append(matched, *record)
		counts = append(counts, len(s.offerOrder[id]))
	}
	s.mu.Unlock()

	// Newest first; the board has no other orderings.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].CreatedAt.Before(matched[i].CreatedAt)
	})

	start, end, next, err := pagination.Window(params, len(matched))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("pagination_failed", err.Error(), http.StatusInternalServerError))
		return
	}

	items := make([]buyRequestView, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, buyRequestViewOf(matched[i], counts[i]))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":           items,
		"next_page_token": next,
	})
}

func (s *Server) getBuyRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")

	s.mu.Lock()
	record, ok := s.requests[id]
	var view buyRequestView
	if ok {
		view = buyRequestViewOf(*record, len(s.offerOrder[id]))
	}
	s.mu.Unlock()

	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) createBuyRequest(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	body, ok := s.decodeBuyRequestBody(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	user := s.users[userID]
	if user == nil || !user.hasRole("buyer") {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only buyers can post buy requests", http.StatusForbidden))
		return
	}
	now := s.now()
	record := &buyRequestRecord{
		ID:               newID("req"),
		BuyerID:          userID,
		Species:          body.species(),
		Breed:            strings.ToLower(strings.TrimSpace(body.Breed)),
		Quantity:         body.Quantity,
		TargetPriceMinor: body.TargetPriceMinor,
		Currency:         body.currency(),
		Location:         strings.TrimSpace(body.Location),
		Notes:            strings.TrimSpace(body.Notes),
		Status:           "open",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.requests[record.ID] = record
	s.requestOrder = append(s.requestOrder, record.ID)
	view := buyRequestViewOf(*record, 0)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusCreated, view)
}

func (s *Server) updateBuyRequest(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "requestID")

	body, ok := s.decodeBuyRequestBody(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	record, found := s.requests[id]
	if !found {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}
	if record.BuyerID != userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only the owner can edit a buy request", http.StatusForbidden))
		return
	}
	if record.Status != "open" {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_closed", fmt.Sprintf("buy request %s is %s", id, record.Status), http.StatusConflict))
		return
	}
	record.Species = body.species()
	record.Breed = strings.ToLower(strings.TrimSpace(body.Breed))
	record.Quantity = body.Quantity
	record.TargetPriceMinor = body.TargetPriceMinor
	record.Currency = body.currency()
	record.Location = strings.TrimSpace(body.Location)
	record.Notes = strings.TrimSpace(body.Notes)
	record.UpdatedAt = s.now()
	view := buyRequestViewOf(*record, len(s.offerOrder[id]))
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) cancelBuyRequest(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "requestID")

	s.mu.Lock()
	record, found := s.requests[id]
	if !found {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}
	if record.BuyerID != userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only the owner can cancel a buy request", http.StatusForbidden))
		return
	}
	switch record.Status {
	case "open":
		record.Status = "cancelled"
		record.UpdatedAt = s.now()
		// Pending offers die with the request.
		for _, offerID := range s.offerOrder[id] {
			if offer := s.offers[offerID]; offer.Status == "pending" {
				offer.Status = "rejected"
			}
		}
	case "cancelled":
		// Replaying a cancel is fine.
	default:
		status := record.Status
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_closed", fmt.Sprintf("buy request %s is %s", id, status), http.StatusConflict))
		return
	}
	view := buyRequestViewOf(*record, len(s.offerOrder[id]))
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")

	s.mu.Lock()
	_, found := s.requests[id]
	items := make([]offerView, 0, len(s.offerOrder[id]))
	for _, offerID := range s.offerOrder[id] {
		items = append(items, offerViewOf(*s.offers[offerID]))
	}
	s.mu.Unlock()

	if !found {
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) sendOffer(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "requestID")

	var body struct {
		ListingID  string `json:"listing_id"`
		PriceMinor int64  `json:"price_minor"`
		Currency   string `json:"currency"`
		Quantity   int    `json:"quantity"`
		Message    string `json:"message"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	switch {
	case body.PriceMinor <= 0:
		writeValidationError(r.Context(), w, "price_minor must be positive")
		return
	case body.Quantity <= 0:
		writeValidationError(r.Context(), w, "quantity must be positive")
		return
	}

	s.mu.Lock()
	request, found := s.requests[id]
	if !found {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", id), http.StatusNotFound))
		return
	}
	user := s.users[userID]
	if user == nil || !user.hasRole("seller") {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only sellers can send offers", http.StatusForbidden))
		return
	}
	if request.BuyerID == userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "cannot offer on your own buy request", http.StatusForbidden))
		return
	}
	if request.Status != "open" {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_closed", fmt.Sprintf("buy request %s is %s", id, request.Status), http.StatusConflict))
		return
	}
	listingID := strings.TrimSpace(body.ListingID)
	if listingID != "" {
		listing, ok := s.listings[listingID]
		if !ok || listing.SellerID != userID {
			s.mu.Unlock()
			writeValidationError(r.Context(), w, "listing_id must reference one of your listings")
			return
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(body.Currency))
	if currency == "" {
		currency = "NGN"
	}
	offer := &offerRecord{
		ID:           newID("off"),
		BuyRequestID: id,
		SellerID:     userID,
		SellerName:   user.displayName(),
		ListingID:    listingID,
		PriceMinor:   body.PriceMinor,
		Currency:     currency,
		Quantity:     body.Quantity,
		Message:      strings.TrimSpace(body.Message),
		Status:       "pending",
		CreatedAt:    s.now(),
	}
	s.offers[offer.ID] = offer
	s.offerOrder[id] = append(s.offerOrder[id], offer.ID)
	view := offerViewOf(*offer)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusCreated, view)
}

func (s *Server) acceptOffer(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	requestID := chi.URLParam(r, "requestID")
	offerID := chi.URLParam(r, "offerID")

	s.mu.Lock()
	request, found := s.requests[requestID]
	if !found {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_not_found", fmt.Sprintf("buy request %s does not exist", requestID), http.StatusNotFound))
		return
	}
	if request.BuyerID != userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "only the owner can accept an offer", http.StatusForbidden))
		return
	}
	offer, found := s.offers[offerID]
	if !found || offer.BuyRequestID != requestID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("offer_not_found", fmt.Sprintf("offer %s does not exist", offerID), http.StatusNotFound))
		return
	}
	if request.Status != "open" {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("request_closed", fmt.Sprintf("buy request %s is %s", requestID, request.Status), http.StatusConflict))
		return
	}
	if offer.Status != "pending" {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("offer_closed", fmt.Sprintf("offer %s is %s", offerID, offer.Status), http.StatusConflict))
		return
	}

	offer.Status = "accepted"
	for _, siblingID := range s.offerOrder[requestID] {
		if sibling := s.offers[siblingID]; siblingID != offerID && sibling.Status == "pending" {
			sibling.Status = "rejected"
		}
	}
	request.Status = "matched"
	request.UpdatedAt = s.now()

	title := strings.TrimSpace(request.Breed + " " + request.Species)
	if listing, ok := s.listings[offer.ListingID]; ok {
		title = listing.Title
	}
	priced := priceLines([]lineItem{{
		ListingID:  offer.ListingID,
		Title:      title,
		PriceMinor: offer.PriceMinor,
		Quantity:   offer.Quantity,
		TotalMinor: offer.PriceMinor * int64(offer.Quantity),
	}})
	order := s.openOrderLocked(userID, priced)
	view := orderViewOf(*order)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusCreated, view)
}

// buyRequestBody is shared by create and update.
type buyRequestBody struct {
	Species          string `json:"species"`
	Breed            string `json:"breed"`
	Quantity         int    `json:"quantity"`
	TargetPriceMinor *int64 `json:"target_price_minor"`
	Currency         string `json:"currency"`
	Location         string `json:"location"`
	Notes            string `json:"notes"`
}

func (b buyRequestBody) species() string {
	return strings.ToLower(strings.TrimSpace(b.Species))
}

func (b buyRequestBody) currency() string {
	currency := strings.ToUpper(strings.TrimSpace(b.Currency))
	if currency == "" {
		return "NGN"
	}
	return currency
}

func (s *Server) decodeBuyRequestBody(w http.ResponseWriter, r *http.Request) (buyRequestBody, bool) {
	var body buyRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return buyRequestBody{}, false
	}
	switch {
	case body.species() == "":
		writeValidationError(r.Context(), w, "species is required")
		return buyRequestBody{}, false
	case body.Quantity <= 0:
		writeValidationError(r.Context(), w, "quantity must be positive")
		return buyRequestBody{}, false
	case body.TargetPriceMinor != nil && *body.TargetPriceMinor <= 0:
		writeValidationError(r.Context(), w, "target_price_minor must be positive")
		return buyRequestBody{}, false
	}
	return body, true
}

type buyRequestView struct {
	ID               string `json:"id"`
	BuyerID          string `json:"buyer_id"`
	Species          string `json:"species"`
	Breed            string `json:"breed,omitempty"`
	Quantity         int    `json:"quantity"`
	TargetPriceMinor *int64 `json:"target_price_minor,omitempty"`
	Currency         string `json:"currency,omitempty"`
	Location         string `json:"location,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Status           string `json:"status"`
	OfferCount       int    `json:"offer_count"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func buyRequestViewOf(record buyRequestRecord, offerCount int) buyRequestView {
	return buyRequestView{
		ID:               record.ID,
		BuyerID:          record.BuyerID,
		Species:          record.Species,
		Breed:            record.Breed,
		Quantity:         record.Quantity,
		TargetPriceMinor: record.TargetPriceMinor,
		Currency:         record.Currency,
		Location:         record.Location,
		Notes:            record.Notes,
		Status:           record.Status,
		OfferCount:       offerCount,
		CreatedAt:        renderTime(record.CreatedAt),
		UpdatedAt:        renderTime(record.UpdatedAt),
	}
}

type offerView struct {
	ID           string `json:"id"`
	BuyRequestID string `json:"buy_request_id"`
	SellerID     string `json:"seller_id"`
	SellerName   string `json:"seller_name,omitempty"`
	ListingID    string `json:"listing_id,omitempty"`
	PriceMinor   int64  `json:"price_minor"`
	Currency     string `json:"currency"`
	Quantity     int    `json:"quantity"`
	Message      string `json:"message,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func offerViewOf(record offerRecord) offerView {
	return offerView{
		ID:           record.ID,
		BuyRequestID: record.BuyRequestID,
		SellerID:     record.SellerID,
		SellerName:   record.SellerName,
		ListingID:    record.ListingID,
		PriceMinor:   record.PriceMinor,
		Currency:     record.Currency,
		Quantity:     record.Quantity,
		Message:      record.Message,
		Status:       record.Status,
		CreatedAt:    renderTime(record.CreatedAt),
	}
}
