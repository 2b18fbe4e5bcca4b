package fake

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kraal-market/client/internal/platform/httpx"
)

type orderRecord struct {
	ID            string
	Reference     string
	BuyerID       string
	Lines         []lineItem
	SubtotalMinor int64
	Fees          []feeItem
	TotalMinor    int64
	Currency      string
	Status        string
	LockExpiresAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *Server) orderRoutes(r chi.Router) {
	r.Use(s.requireAuth)
	r.Get("/", s.listOrders)
	r.Get("/{orderID}", s.getOrder)
	r.With(s.idem).Post("/{orderID}/refresh-lock", s.refreshOrderLock)
	r.With(s.idem).Post("/{orderID}/cancel", s.cancelOrder)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	items := make([]orderView, 0, len(s.orderOrder))
	for i := len(s.orderOrder) - 1; i >= 0; i-- {
		record := s.orders[s.orderOrder[i]]
		if record.BuyerID != userID {
			continue
		}
		items = append(items, orderViewOf(*record))
	}
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	s.mu.Lock()
	record, ok := s.orders[id]
	var view orderView
	// Foreign orders read as missing so order IDs cannot be probed.
	if ok && record.BuyerID == userID {
		view = orderViewOf(*record)
	} else {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", fmt.Sprintf("order %s does not exist", id), http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) refreshOrderLock(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	s.mu.Lock()
	record, ok := s.orders[id]
	if !ok || record.BuyerID != userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", fmt.Sprintf("order %s does not exist", id), http.StatusNotFound))
		return
	}
	if record.Status != "pending_payment" {
		status := record.Status
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("order_"+status, "price lock can only be refreshed while payment is pending", http.StatusConflict))
		return
	}
	now := s.now()
	record.LockExpiresAt = now.Add(s.lockWindow)
	record.UpdatedAt = now
	view := orderViewOf(*record)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())
	id := chi.URLParam(r, "orderID")

	s.mu.Lock()
	record, ok := s.orders[id]
	if !ok || record.BuyerID != userID {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("order_not_found", fmt.Sprintf("order %s does not exist", id), http.StatusNotFound))
		return
	}
	switch record.Status {
	case "pending_payment":
		record.Status = "cancelled"
		record.UpdatedAt = s.now()
	case "cancelled":
		// Replaying a cancel is fine.
	default:
		status := record.Status
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("order_"+status, "order can no longer be cancelled", http.StatusConflict))
		return
	}
	view := orderViewOf(*record)
	s.mu.Unlock()

	writeJSONResponse(w, http.StatusOK, view)
}

// SettlePayment marks the pending order carrying reference as paid, the way
// the Paystack webhook would after a successful charge. It reports whether a
// matching order existed.
func (s *Server) SettlePayment(reference string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.orderOrder {
		record := s.orders[id]
		if record.Reference != reference || record.Status != "pending_payment" {
			continue
		}
		record.Status = "paid"
		record.UpdatedAt = s.now()
		return true
	}
	return false
}

// openOrderLocked creates a pending order from a priced cart. Callers hold
// s.mu.
func (s *Server) openOrderLocked(buyerID string, priced pricedCart) *orderRecord {
	now := s.now()
	record := &orderRecord{
		ID:            newID("ord"),
		Reference:     "KRL-" + ulid.Make().String(),
		BuyerID:       buyerID,
		Lines:         priced.Lines,
		SubtotalMinor: priced.SubtotalMinor,
		Fees:          priced.Fees,
		TotalMinor:    priced.TotalMinor,
		Currency:      "NGN",
		Status:        "pending_payment",
		LockExpiresAt: now.Add(s.lockWindow),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.orders[record.ID] = record
	s.orderOrder = append(s.orderOrder, record.ID)
	return record
}

type orderView struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	BuyerID       string     `json:"buyer_id"`
	Lines         []lineItem `json:"lines"`
	SubtotalMinor int64      `json:"subtotal_minor"`
	Fees          []feeItem  `json:"fees"`
	TotalMinor    int64      `json:"total_minor"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	LockExpiresAt string     `json:"lock_expires_at,omitempty"`
	CreatedAt     string     `json:"created_at"`
	UpdatedAt     string     `json:"updated_at,omitempty"`
}

func orderViewOf(record orderRecord) orderView {
	return orderView{
		ID:            record.ID,
		Reference:     record.Reference,
		BuyerID:       record.BuyerID,
		Lines:         record.Lines,
		SubtotalMinor: record.SubtotalMinor,
		Fees:          record.Fees,
		TotalMinor:    record.TotalMinor,
		Currency:      record.Currency,
		Status:        record.Status,
		LockExpiresAt: renderTime(record.LockExpiresAt),
		CreatedAt:     renderTime(record.CreatedAt),
		UpdatedAt:     renderTime(record.UpdatedAt),
	}
}
