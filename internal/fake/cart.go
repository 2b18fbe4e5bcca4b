package fake

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
)

// cartLine is one listing held in a user's server-side cart. The listing ID
// is the identity key: adding the same listing again folds quantities.
type cartLine struct {
	ListingID string
	Quantity  int
	AddedAt   time.Time
}

func (s *Server) cartRoutes(r chi.Router) {
	r.Use(s.requireAuth)
	r.Get("/", s.getCart)
	r.Post("/add", s.addToCart)
	r.Delete("/items/{listingID}", s.removeFromCart)
	r.Delete("/", s.clearCart)
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	view := s.cartViewLocked(userID)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	// Historical shape: writes say "qty", reads render "quantity".
	var body struct {
		ListingID string `json:"listing_id"`
		Qty       int    `json:"qty"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	listingID := strings.TrimSpace(body.ListingID)
	switch {
	case listingID == "":
		writeValidationError(r.Context(), w, "listing_id is required")
		return
	case body.Qty <= 0:
		writeValidationError(r.Context(), w, "qty must be positive")
		return
	}

	s.mu.Lock()
	listing, ok := s.listings[listingID]
	if !ok {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("listing_not_found", fmt.Sprintf("listing %s does not exist", listingID), http.StatusNotFound))
		return
	}
	if listing.Status != "active" {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("listing_unavailable", fmt.Sprintf("listing %s is %s", listingID, listing.Status), http.StatusConflict))
		return
	}

	lines := s.carts[userID]
	folded := false
	for i := range lines {
		if lines[i].ListingID == listingID {
			lines[i].Quantity += body.Qty
			folded = true
			break
		}
	}
	if !folded {
		lines = append(lines, cartLine{ListingID: listingID, Quantity: body.Qty, AddedAt: s.now()})
	}
	s.carts[userID] = lines
	s.cartUpdated[userID] = s.now()
	view := s.cartViewLocked(userID)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	listingID := chi.URLParam(r, "listingID")

	s.mu.Lock()
	lines := s.carts[userID]
	kept := lines[:0]
	for _, line := range lines {
		if line.ListingID != listingID {
			kept = append(kept, line)
		}
	}
	s.carts[userID] = kept
	s.cartUpdated[userID] = s.now()
	view := s.cartViewLocked(userID)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	delete(s.carts, userID)
	s.cartUpdated[userID] = s.now()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// cartViewLocked renders the user's cart with its nested listing snippets.
// Callers hold s.mu.
func (s *Server) cartViewLocked(userID string) cartView {
	lines := s.carts[userID]
	items := make([]cartLineView, 0, len(lines))
	for _, line := range lines {
		item := cartLineView{
			Quantity: line.Quantity,
			AddedAt:  renderTime(line.AddedAt),
		}
		item.Listing.ID = line.ListingID
		if listing, ok := s.listings[line.ListingID]; ok {
			item.Listing.Title = listing.Title
			item.Listing.PriceMinor = listing.PriceMinor
			item.Listing.Currency = listing.Currency
			item.Listing.Unit = listing.Unit
			item.Listing.Species = listing.Species
			item.Listing.ProductType = listing.ProductType
			item.Listing.Location = listing.Location
			if len(listing.MediaURLs) > 0 {
				item.Listing.ImageURL = listing.MediaURLs[0]
			}
			item.Listing.SellerID = listing.SellerID
		}
		items = append(items, item)
	}
	return cartView{Items: items, UpdatedAt: renderTime(s.cartUpdated[userID])}
}

type cartView struct {
	Items     []cartLineView `json:"items"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

type cartLineView struct {
	Listing  cartListingView `json:"listing"`
	Quantity int             `json:"quantity"`
	AddedAt  string          `json:"added_at,omitempty"`
}

type cartListingView struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Species     string `json:"species,omitempty"`
	ProductType string `json:"product_type,omitempty"`
	Location    string `json:"location,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SellerID    string `json:"seller_id,omitempty"`
}
