package domain

import (
	"time"
)

// SessionStatus describes the auth session lifecycle observed by consumers.
type SessionStatus string

const (
	// SessionLoading means the session store has not yet resolved whether a
	// persisted token is usable.
	SessionLoading SessionStatus = "loading"
	// SessionAuthenticated means a profile is loaded and requests carry a token.
	SessionAuthenticated SessionStatus = "authenticated"
	// SessionAnonymous means no usable credentials exist.
	SessionAnonymous SessionStatus = "anonymous"
)

// Role identifies what a user is allowed to do on the marketplace.
type Role string

const (
	// RoleBuyer can browse, post buy requests, and check out.
	RoleBuyer Role = "buyer"
	// RoleSeller can publish listings and respond to buy requests with offers.
	RoleSeller Role = "seller"
	// RoleAgent inspects livestock and vouches for listings.
	RoleAgent Role = "agent"
)

// UserProfile is the authenticated user's account as served by /auth/me.
type UserProfile struct {
	ID        string
	Email     string
	Phone     string
	FirstName string
	LastName  string
	Roles     []Role
	AvatarURL string
	Verified  bool
	CreatedAt time.Time
}

// HasRole reports whether the profile carries the given role.
func (p UserProfile) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DisplayName renders a human-readable name, falling back to the email.
func (p UserProfile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Email
	}
}

// ListingStatus enumerates the lifecycle states of a listing.
type ListingStatus string

const (
	// ListingActive is visible and purchasable.
	ListingActive ListingStatus = "active"
	// ListingSold has no remaining quantity.
	ListingSold ListingStatus = "sold"
	// ListingSuspended was pulled by moderation and cannot be bought.
	ListingSuspended ListingStatus = "suspended"
)

// Listing is a seller's livestock lot offered for sale.
type Listing struct {
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
	UnitPrice   Money
	Location    string
	MediaURLs   []string
	Status      ListingStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem is one listing held in the cart with a chosen quantity. The
// listing ID is the identity key: a cart never holds two lines for the
// same listing.
type CartItem struct {
	ListingID   string
	Title       string
	UnitPrice   Money
	Quantity    int
	Unit        string
	Species     string
	ProductType string
	Location    string
	ImageURL    string
	SellerID    string
	AddedAt     time.Time
}

// LineTotal returns unit price multiplied by quantity.
func (i CartItem) LineTotal() Money {
	return i.UnitPrice.MulInt(int64(i.Quantity))
}

// Cart is the full cart snapshot persisted locally and mirrored server-side
// for authenticated users.
type Cart struct {
	Items     []CartItem
	UpdatedAt time.Time
}

// BuyRequestStatus enumerates buy request lifecycle states.
type BuyRequestStatus string

const (
	// BuyRequestOpen is accepting offers from sellers.
	BuyRequestOpen BuyRequestStatus = "open"
	// BuyRequestMatched has an accepted offer awaiting checkout.
	BuyRequestMatched BuyRequestStatus = "matched"
	// BuyRequestFulfilled completed through checkout.
	BuyRequestFulfilled BuyRequestStatus = "fulfilled"
	// BuyRequestCancelled was withdrawn by the buyer.
	BuyRequestCancelled BuyRequestStatus = "cancelled"
)

// BuyRequest is a buyer's published demand for livestock.
type BuyRequest struct {
	ID          string
	BuyerID     string
	Species     string
	Breed       string
	Quantity    int
	TargetPrice *Money
	Location    string
	Notes       string
	Status      BuyRequestStatus
	OfferCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OfferStatus enumerates offer lifecycle states.
type OfferStatus string

const (
	// OfferPending awaits the buyer's decision.
	OfferPending OfferStatus = "pending"
	// OfferAccepted was chosen by the buyer; siblings become rejected.
	OfferAccepted OfferStatus = "accepted"
	// OfferRejected was declined, explicitly or by accepting another offer.
	OfferRejected OfferStatus = "rejected"
	// OfferWithdrawn was retracted by the seller before a decision.
	OfferWithdrawn OfferStatus = "withdrawn"
)

// Offer is a seller's response to a buy request.
type Offer struct {
	ID           string
	BuyRequestID string
	SellerID     string
	SellerName   string
	ListingID    string
	UnitPrice    Money
	Quantity     int
	Message      string
	Status       OfferStatus
	CreatedAt    time.Time
}

// ListingMatch pairs a listing with the backend matcher's confidence in it
// satisfying a buy request, plus a short explanation of the fit.
type ListingMatch struct {
	Listing Listing
	Score   float64
	Reason  string
}

// SearchResult carries the smart-search backend's reading of a free-text
// query and the listings it resolved.
type SearchResult struct {
	Query          string
	Interpretation string
	Listings       []Listing
}

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	// OrderPendingPayment awaits a successful Paystack charge.
	OrderPendingPayment OrderStatus = "pending_payment"
	// OrderPaid has funds held in escrow.
	OrderPaid OrderStatus = "paid"
	// OrderInDelivery is en route to the buyer.
	OrderInDelivery OrderStatus = "in_delivery"
	// OrderCompleted released escrow to the seller.
	OrderCompleted OrderStatus = "completed"
	// OrderCancelled was voided before completion.
	OrderCancelled OrderStatus = "cancelled"
)

// OrderLine is one purchased lot inside an order.
type OrderLine struct {
	ListingID string
	Title     string
	UnitPrice Money
	Quantity  int
}

// Order is a buyer's purchase moving through escrow.
type Order struct {
	ID            string
	Reference     string
	BuyerID       string
	Lines         []OrderLine
	Subtotal      Money
	Fees          []FeeLine
	Total         Money
	Status        OrderStatus
	LockExpiresAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FeeLine is a named charge added on top of the subtotal.
type FeeLine struct {
	Code   string
	Label  string
	Amount Money
}

// PreviewLine is one cart line priced by the checkout preview.
type PreviewLine struct {
	ListingID string
	Title     string
	UnitPrice Money
	Quantity  int
	LineTotal Money
}

// CheckoutPreview is the server-priced view of the cart: line totals, fees,
// and the window during which the quoted prices are locked.
type CheckoutPreview struct {
	Lines         []PreviewLine
	Subtotal      Money
	Fees          []FeeLine
	Total         Money
	LockExpiresAt time.Time
}

// PaymentInit carries everything needed to hand the buyer to Paystack.
type PaymentInit struct {
	OrderID          string
	Reference        string
	AuthorizationURL string
	AccessCode       string
	Amount           Money
}

// Upload describes a stored media asset returned by the uploads endpoint.
type Upload struct {
	ID          string
	URL         string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Page carries one page of a listing-style collection along with the token
// for fetching the next page. An empty NextPageToken means the end.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}
