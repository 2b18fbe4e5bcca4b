package api

// Tag groups cached reads so mutations can invalidate exactly the data they
// touched. Collection tags cover list endpoints; entity tags carry the ID.
type Tag string

const (
	// TagListings covers the browsable listings collection.
	TagListings Tag = "listings"
	// TagCart covers the server-side cart snapshot.
	TagCart Tag = "cart"
	// TagBuyRequests covers the buy request collection.
	TagBuyRequests Tag = "buy_requests"
	// TagOrders covers the order collection.
	TagOrders Tag = "orders"
	// TagProfile covers the authenticated user's profile.
	TagProfile Tag = "profile"
)

// TagListing identifies one listing's detail view.
func TagListing(id string) Tag { return Tag("listing:" + id) }

// TagBuyRequest identifies one buy request.
func TagBuyRequest(id string) Tag { return Tag("buy_request:" + id) }

// TagOffers identifies the offer thread under one buy request.
func TagOffers(buyRequestID string) Tag { return Tag("offers:" + buyRequestID) }

// TagOrder identifies one order.
func TagOrder(id string) Tag { return Tag("order:" + id) }
