package fake

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kraal-market/client/internal/platform/httpx"
)

// Marketplace fees charged on top of the cart subtotal.
const (
	escrowFeeBps     = 150       // 1.5% escrow handling
	deliveryFeeMinor = 1_500_000 // flat delivery coordination, in kobo
)

func (s *Server) checkoutRoutes(r chi.Router) {
	r.Use(s.requireAuth)
	r.Post("/preview", s.previewCheckout)
}

func (s *Server) paymentRoutes(r chi.Router) {
	r.Use(s.requireAuth)
	r.With(s.idem).Post("/paystack/init", s.initPaystack)
}

func (s *Server) previewCheckout(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	priced := s.priceCartLocked(userID)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, previewView{
		Lines:         priced.Lines,
		SubtotalMinor: priced.SubtotalMinor,
		Fees:          priced.Fees,
		TotalMinor:    priced.TotalMinor,
		Currency:      "NGN",
		LockExpiresAt: renderTime(s.now().Add(s.lockWindow)),
	})
}

func (s *Server) initPaystack(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	if !strings.Contains(strings.TrimSpace(body.Email), "@") {
		writeValidationError(r.Context(), w, "a valid email is required")
		return
	}

	s.mu.Lock()
	priced := s.priceCartLocked(userID)
	if len(priced.Lines) == 0 {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_empty", "cart has no purchasable items", http.StatusUnprocessableEntity))
		return
	}
	order := s.openOrderLocked(userID, priced)
	// The cart is consumed into the order.
	delete(s.carts, userID)
	s.cartUpdated[userID] = s.now()
	orderID := order.ID
	reference := order.Reference
	total := order.TotalMinor
	s.mu.Unlock()

	accessCode := newID("acc")
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"order_id":          orderID,
		"reference":         reference,
		"authorization_url": "https://checkout.paystack.test/" + accessCode,
		"access_code":       accessCode,
		"amount_minor":      total,
		"currency":          "NGN",
	})
}

// pricedCart is a cart snapshot with fees applied, ready to render as a
// preview or to open an order from.
type pricedCart struct {
	Lines         []lineItem
	SubtotalMinor int64
	Fees          []feeItem
	TotalMinor    int64
}

// priceCartLocked prices the user's cart against current listings. Lines
// whose listing has vanished are dropped rather than priced at zero. Callers
// hold s.mu.
func (s *Server) priceCartLocked(userID string) pricedCart {
	lines := make([]lineItem, 0, len(s.carts[userID]))
	for _, line := range s.carts[userID] {
		listing, ok := s.listings[line.ListingID]
		if !ok {
			continue
		}
		lines = append(lines, lineItem{
			ListingID:  line.ListingID,
			Title:      listing.Title,
			PriceMinor: listing.PriceMinor,
			Quantity:   line.Quantity,
			TotalMinor: listing.PriceMinor * int64(line.Quantity),
		})
	}
	return priceLines(lines)
}

// priceLines totals the given lines and applies marketplace fees.
func priceLines(lines []lineItem) pricedCart {
	out := pricedCart{Lines: lines}
	for _, line := range lines {
		out.SubtotalMinor += line.TotalMinor
	}
	out.Fees = marketplaceFees(out.SubtotalMinor)
	out.TotalMinor = out.SubtotalMinor
	for _, fee := range out.Fees {
		out.TotalMinor += fee.AmountMinor
	}
	return out
}

func marketplaceFees(subtotalMinor int64) []feeItem {
	if subtotalMinor <= 0 {
		return []feeItem{}
	}
	return []feeItem{
		{Code: "escrow", Label: "Escrow protection", AmountMinor: subtotalMinor * escrowFeeBps / 10_000},
		{Code: "delivery", Label: "Delivery coordination", AmountMinor: deliveryFeeMinor},
	}
}

type lineItem struct {
	ListingID  string `json:"listing_id"`
	Title      string `json:"title"`
	PriceMinor int64  `json:"price_minor"`
	Quantity   int    `json:"quantity"`
	TotalMinor int64  `json:"total_minor"`
}

type feeItem struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	AmountMinor int64  `json:"amount_minor"`
}

type previewView struct {
	Lines         []lineItem `json:"lines"`
	SubtotalMinor int64      `json:"subtotal_minor"`
	Fees          []feeItem  `json:"fees"`
	TotalMinor    int64      `json:"total_minor"`
	Currency      string     `json:"currency"`
	LockExpiresAt string     `json:"lock_expires_at"`
}
