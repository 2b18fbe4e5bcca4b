// Package cart keeps the locally persisted shopping cart. Mutations follow
// reducer semantics: each operation rewrites the in-memory line list and
// mirrors the result to the storage bridge before returning, so a process
// restart resumes from the last completed mutation.
package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/kraal-market/client/internal/domain"
	"github.com/kraal-market/client/internal/storage"
)

var errStoreBridgeRequired = errors.New("cart store: bridge is required")

// ErrItemInvalid indicates the caller supplied an unusable cart line.
var ErrItemInvalid = errors.New("cart store: invalid item")

// ErrMixedCurrency indicates a line priced in a currency different from the
// lines already in the cart.
var ErrMixedCurrency = errors.New("cart store: mixed currencies")

// StoreDeps wires the persistence bridge and ambient dependencies.
type StoreDeps struct {
	Bridge storage.Bridge
	// Key selects the bridge entry the store mirrors to. Defaults to the
	// guest cart key; the session layer rekeys to the authenticated cart
	// after login.
	Key    string
	Logger *zap.Logger
	Clock  func() time.Time
}

// Store holds cart lines keyed by listing ID: a listing never appears twice,
// adding an existing listing folds into its quantity. Corrupted persisted
// payloads are discarded and the store starts empty.
type Store struct {
	mu        sync.Mutex
	bridge    storage.Bridge
	key       string
	logger    *zap.Logger
	now       func() time.Time
	items     []domain.CartItem
	updatedAt time.Time
}

// NewStore builds a Store seeded from whatever the bridge holds under the
// configured key.
func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Bridge == nil {
		return nil, errStoreBridgeRequired
	}

	key := strings.TrimSpace(deps.Key)
	if key == "" {
		key = storage.KeyGuestCart
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Store{
		bridge: deps.Bridge,
		key:    key,
		logger: logger,
		now:    func() time.Time { return clock().UTC() },
	}
	s.items = loadItems(deps.Bridge, key)
	return s, nil
}

// Add appends a line. When the cart already holds the listing the quantities
// fold into the existing line and the stored unit price is kept.
func (s *Store) Add(item domain.CartItem) error {
	item.ListingID = strings.TrimSpace(item.ListingID)
	if item.ListingID == "" {
		return fmt.Errorf("%w: listing id is required", ErrItemInvalid)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrItemInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ListingID == item.ListingID {
			s.items[i].Quantity += item.Quantity
			return s.persistLocked("cart.add")
		}
	}

	if len(s.items) > 0 && item.UnitPrice.Currency != s.items[0].UnitPrice.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrMixedCurrency, item.UnitPrice.Currency, s.items[0].UnitPrice.Currency)
	}

	if item.AddedAt.IsZero() {
		item.AddedAt = s.now()
	}
	s.items = append(s.items, item)
	return s.persistLocked("cart.add")
}

// SetQuantity replaces the quantity on the listing's line. Zero or negative
// quantities remove the line. Unknown listings are ignored.
func (s *Store) SetQuantity(listingID string, quantity int) error {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return fmt.Errorf("%w: listing id is required", ErrItemInvalid)
	}
	if quantity <= 0 {
		return s.Remove(listingID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ListingID == listingID {
			s.items[i].Quantity = quantity
			return s.persistLocked("cart.set_quantity")
		}
	}
	return nil
}

// Remove drops the listing's line. Removing an absent listing is a no-op
// that still persists the (unchanged) snapshot.
func (s *Store) Remove(listingID string) error {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return fmt.Errorf("%w: listing id is required", ErrItemInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, item := range s.items {
		if item.ListingID != listingID {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return s.persistLocked("cart.remove")
}

// Clear empties the cart.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistLocked("cart.clear")
}

// ReplaceFromServer overwrites the cart wholesale with a server snapshot.
// The server copy wins: local lines absent from it are dropped.
func (s *Store) ReplaceFromServer(server domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = cloneItems(server.Items)
	return s.persistLocked("cart.sync")
}

// Rekey switches the bridge entry the store mirrors to and reloads whatever
// that entry holds. Used when a guest session becomes authenticated (and
// back on logout).
func (s *Store) Rekey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrItemInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.key = key
	s.items = loadItems(s.bridge, key)
	s.updatedAt = time.Time{}
	return nil
}

// Key reports the bridge entry the store currently mirrors to.
func (s *Store) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Items returns a copy of the current lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Len reports the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalQuantity sums quantities across every line.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums line totals. An empty cart totals zero naira.
func (s *Store) Subtotal() (domain.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := domain.NewMoney(decimal.Zero, domain.NGN)
	if len(s.items) > 0 {
		total.Currency = s.items[0].UnitPrice.Currency
	}
	for _, item := range s.items {
		sum, err := total.Add(item.LineTotal())
		if err != nil {
			return domain.Money{}, fmt.Errorf("cart store: subtotal: %w", err)
		}
		total = sum
	}
	return total, nil
}

// UpdatedAt reports when the last mutation was persisted. Zero until the
// first mutation after construction or a rekey.
func (s *Store) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Store) persistLocked(op string) error {
	stored := make([]storedItem, 0, len(s.items))
	for _, item := range s.items {
		stored = append(stored, toStored(item))
	}
	if err := storage.WriteJSON(s.bridge, s.key, stored); err != nil {
		return fmt.Errorf("cart store: persist %s: %w", s.key, err)
	}
	s.updatedAt = s.now()
	s.logger.Debug("cart persisted",
		zap.String("op", op),
		zap.String("key", s.key),
		zap.Int("lines", len(s.items)),
	)
	return nil
}

func loadItems(bridge storage.Bridge, key string) []domain.CartItem {
	var stored []storedItem
	if !storage.ReadJSON(bridge, key, &stored) {
		return nil
	}
	items := make([]domain.CartItem, 0, len(stored))
	for _, entry := range stored {
		item := entry.toDomain()
		if item.ListingID == "" || item.Quantity <= 0 {
			continue
		}
		items = append(items, item)
	}
	return items
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}

// storedItem is the persisted layout: a flat JSON array of these, prices in
// minor units so the blob round-trips without decimal drift.
type storedItem struct {
	ListingID   string    `json:"listing_id"`
	Title       string    `json:"title"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	Quantity    int       `json:"quantity"`
	Unit        string    `json:"unit,omitempty"`
	Species     string    `json:"species,omitempty"`
	ProductType string    `json:"product_type,omitempty"`
	Location    string    `json:"location,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	SellerID    string    `json:"seller_id,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

func toStored(item domain.CartItem) storedItem {
	return storedItem{
		ListingID:   item.ListingID,
		Title:       item.Title,
		PriceMinor:  item.UnitPrice.Minor(),
		Currency:    item.UnitPrice.Currency.String(),
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		Species:     item.Species,
		ProductType: item.ProductType,
		Location:    item.Location,
		ImageURL:    item.ImageURL,
		SellerID:    item.SellerID,
		AddedAt:     item.AddedAt,
	}
}

func (e storedItem) toDomain() domain.CartItem {
	unit, err := currency.ParseISO(strings.TrimSpace(e.Currency))
	if err != nil {
		unit = domain.NGN
	}
	return domain.CartItem{
		ListingID:   strings.TrimSpace(e.ListingID),
		Title:       e.Title,
		UnitPrice:   domain.MoneyFromMinor(e.PriceMinor, unit),
		Quantity:    e.Quantity,
		Unit:        e.Unit,
		Species:     e.Species,
		ProductType: e.ProductType,
		Location:    e.Location,
		ImageURL:    e.ImageURL,
		SellerID:    e.SellerID,
		AddedAt:     e.AddedAt,
	}
}
