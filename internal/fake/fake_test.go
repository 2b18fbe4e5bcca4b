package fake_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/domain"
	"github.com/kraal-market/client/internal/fake"
	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/storage"
)

func newSeededServer(t *testing.T) (*fake.Server, *httptest.Server) {
	t.Helper()
	srv := fake.NewServer(fake.ServerDeps{})
	srv.SeedDemo()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newClient(t *testing.T, baseURL string) *api.Client {
	t.Helper()
	client, err := api.NewClient(api.ClientDeps{
		BaseURL: baseURL,
		Tokens:  api.NewTokenStore(storage.NewMemStore()),
		Retry:   api.RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(client.CloseIdleConnections)
	return client
}

func login(t *testing.T, client *api.Client, email string) domain.UserProfile {
	t.Helper()
	profile, err := client.Login(context.Background(), api.Credentials{Email: email, Password: "sannu123"})
	require.NoError(t, err)
	return profile
}

func TestLoginMeAndLegacyRoles(t *testing.T) {
	_, ts := newSeededServer(t)

	client := newClient(t, ts.URL)
	profile := login(t, client, "amina@kraal.africa")
	require.Equal(t, "usr-amina", profile.ID)
	require.Equal(t, []domain.Role{domain.RoleBuyer}, profile.Roles)

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, profile.ID, me.ID)
	require.True(t, me.Verified)
	require.Equal(t, "Amina Bello", me.DisplayName())

	// Accounts from before multi-role support report roles as a bare
	// string, which the client still parses into a slice.
	legacy := newClient(t, ts.URL)
	tunde := login(t, legacy, "tunde@kraal.africa")
	require.Equal(t, []domain.Role{domain.RoleBuyer}, tunde.Roles)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	_, ts := newSeededServer(t)
	ctx := context.Background()

	client := newClient(t, ts.URL)
	profile, err := client.Register(ctx, api.RegisterInput{
		Email:     "ify@kraal.africa",
		Password:  "sannu123",
		FirstName: "Ify",
		Roles:     []domain.Role{domain.RoleSeller},
	})
	require.NoError(t, err)
	require.Equal(t, []domain.Role{domain.RoleSeller}, profile.Roles)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, profile.ID, me.ID, "registering signs the new account in")

	other := newClient(t, ts.URL)
	_, err = other.Register(ctx, api.RegisterInput{Email: "ify@kraal.africa", Password: "sannu456"})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusConflict))
}

func TestListingsPaginationWalk(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)

	seen := map[string]bool{}
	token := ""
	pages := 0
	for {
		page, err := client.Listings(context.Background(), api.ListingsQuery{PageSize: 3, PageToken: token})
		require.NoError(t, err)
		pages++
		for _, listing := range page.Items {
			require.False(t, seen[listing.ID], "listing %s repeated across pages", listing.ID)
			seen[listing.ID] = true
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	require.Len(t, seen, 8)
	require.Equal(t, 3, pages)
}

func TestListingsFiltersAndSort(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	ctx := context.Background()

	goats, err := client.Listings(ctx, api.ListingsQuery{Species: "goat"})
	require.NoError(t, err)
	require.Len(t, goats.Items, 2)
	for _, listing := range goats.Items {
		require.Equal(t, "goat", listing.Species)
	}

	ceiling := domain.MoneyFromMinor(10_000_000, domain.NGN)
	cheap, err := client.Listings(ctx, api.ListingsQuery{MaxPrice: &ceiling})
	require.NoError(t, err)
	require.Len(t, cheap.Items, 4)
	for _, listing := range cheap.Items {
		require.LessOrEqual(t, listing.UnitPrice.Minor(), int64(10_000_000))
	}

	sallah, err := client.Listings(ctx, api.ListingsQuery{Search: "sallah"})
	require.NoError(t, err)
	require.Len(t, sallah.Items, 1)
	require.Equal(t, "lst-balami-rams", sallah.Items[0].ID)

	priced, err := client.Listings(ctx, api.ListingsQuery{Sort: "price_minor asc"})
	require.NoError(t, err)
	require.Equal(t, "lst-broiler-batch", priced.Items[0].ID)
	require.Equal(t, "lst-muturu-pair", priced.Items[len(priced.Items)-1].ID)
}

func TestCreateListingRequiresSellerRole(t *testing.T) {
	_, ts := newSeededServer(t)
	ctx := context.Background()

	buyer := newClient(t, ts.URL)
	login(t, buyer, "amina@kraal.africa")
	_, err := buyer.CreateListing(ctx, api.CreateListingInput{
		Title:     "Two stubborn goats",
		Species:   "goat",
		Quantity:  2,
		UnitPrice: domain.MoneyFromMinor(5_000_000, domain.NGN),
	})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusForbidden))

	seller := newClient(t, ts.URL)
	login(t, seller, "musa@kraal.africa")
	listing, err := seller.CreateListing(ctx, api.CreateListingInput{
		Title:     "Ouda rams, market ready",
		Species:   "sheep",
		Breed:     "ouda",
		Quantity:  6,
		UnitPrice: domain.MoneyFromMinor(12_000_000, domain.NGN),
		Location:  "Katsina",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ListingActive, listing.Status)
	require.Equal(t, "usr-musa", listing.SellerID)

	fetched, err := seller.Listing(ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, listing.Title, fetched.Title)
}

func TestCartFoldsAndClears(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	cart, err := client.AddCartLine(ctx, "lst-kano-brown", 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = client.AddCartLine(ctx, "lst-kano-brown", 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "same listing folds into one line")
	require.Equal(t, 5, cart.Items[0].Quantity)
	require.Equal(t, "Kano Brown does", cart.Items[0].Title)
	require.Equal(t, int64(8_500_000), cart.Items[0].UnitPrice.Minor())
	require.Equal(t, "usr-musa", cart.Items[0].SellerID)

	fetched, err := client.FetchCart(ctx)
	require.NoError(t, err)
	require.Len(t, fetched.Items, 1)
	require.Equal(t, 5, fetched.Items[0].Quantity)

	cart, err = client.RemoveCartLine(ctx, "lst-kano-brown")
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	_, err = client.AddCartLine(ctx, "lst-red-sokoto", 1)
	require.NoError(t, err)
	require.NoError(t, client.ClearCart(ctx))
	fetched, err = client.FetchCart(ctx)
	require.NoError(t, err)
	require.Empty(t, fetched.Items)
}

func TestCheckoutPreviewAndPaystackInit(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	_, err := client.AddCartLine(ctx, "lst-balami-rams", 2)
	require.NoError(t, err)
	_, err = client.AddCartLine(ctx, "lst-kano-brown", 1)
	require.NoError(t, err)

	preview, err := client.PreviewCheckout(ctx)
	require.NoError(t, err)
	require.Len(t, preview.Lines, 2)
	require.Equal(t, int64(38_500_000), preview.Subtotal.Minor())
	require.Len(t, preview.Fees, 2)
	require.Equal(t, "escrow", preview.Fees[0].Code)
	require.Equal(t, int64(577_500), preview.Fees[0].Amount.Minor())
	require.Equal(t, "delivery", preview.Fees[1].Code)
	require.Equal(t, int64(1_500_000), preview.Fees[1].Amount.Minor())
	require.Equal(t, int64(40_577_500), preview.Total.Minor())
	require.True(t, preview.LockExpiresAt.After(time.Now()))

	payment, err := client.InitPaystack(ctx, "amina@kraal.africa")
	require.NoError(t, err)
	require.NotEmpty(t, payment.OrderID)
	require.True(t, strings.HasPrefix(payment.Reference, "KRL-"))
	require.Contains(t, payment.AuthorizationURL, "checkout.paystack.test")
	require.NotEmpty(t, payment.AccessCode)
	require.Equal(t, preview.Total.Minor(), payment.Amount.Minor())

	// The cart was consumed into the order.
	cart, err := client.FetchCart(ctx)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	orders, err := client.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, payment.OrderID, orders[0].ID)
	require.Equal(t, domain.OrderPendingPayment, orders[0].Status)
	require.Equal(t, preview.Total.Minor(), orders[0].Total.Minor())
}

func TestOrderLockRefreshAndCancel(t *testing.T) {
	srv, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	_, err := client.AddCartLine(ctx, "lst-yankasa-ewes", 1)
	require.NoError(t, err)
	payment, err := client.InitPaystack(ctx, "amina@kraal.africa")
	require.NoError(t, err)

	order, err := client.Order(ctx, payment.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.LockExpiresAt)

	refreshed, err := client.RefreshPriceLock(ctx, payment.OrderID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LockExpiresAt)
	require.False(t, refreshed.LockExpiresAt.Before(*order.LockExpiresAt))

	// A paid order's lock can no longer be refreshed.
	require.True(t, srv.SettlePayment(payment.Reference))
	_, err = client.RefreshPriceLock(ctx, payment.OrderID)
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusConflict))

	paid, err := client.Order(ctx, payment.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderPaid, paid.Status)
}

func TestCancelOrderReplaysCleanly(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	_, err := client.AddCartLine(ctx, "lst-broiler-batch", 20)
	require.NoError(t, err)
	payment, err := client.InitPaystack(ctx, "amina@kraal.africa")
	require.NoError(t, err)

	cancelled, err := client.CancelOrder(ctx, payment.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, cancelled.Status)

	again, err := client.CancelOrder(ctx, payment.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderCancelled, again.Status)
}

func TestAcceptOfferOpensOrder(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	offers, err := client.Offers(ctx, "req-amina-rams")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, domain.OfferPending, offers[0].Status)

	order, err := client.AcceptOffer(ctx, "req-amina-rams", offers[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderPendingPayment, order.Status)
	require.Len(t, order.Lines, 1)
	require.Equal(t, 4, order.Lines[0].Quantity)
	require.Equal(t, int64(13_500_000), order.Lines[0].UnitPrice.Minor())
	require.Equal(t, "Balami rams for Sallah", order.Lines[0].Title)
	require.Equal(t, int64(54_000_000), order.Subtotal.Minor())
	require.Equal(t, int64(54_000_000+810_000+1_500_000), order.Total.Minor())

	request, err := client.BuyRequest(ctx, "req-amina-rams")
	require.NoError(t, err)
	require.Equal(t, domain.BuyRequestMatched, request.Status)

	offers, err = client.Offers(ctx, "req-amina-rams")
	require.NoError(t, err)
	require.Equal(t, domain.OfferAccepted, offers[0].Status)

	// The matched request no longer accepts decisions.
	_, err = client.AcceptOffer(ctx, "req-amina-rams", offers[0].ID)
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusConflict))
}

func TestBuyRequestLifecycle(t *testing.T) {
	_, ts := newSeededServer(t)
	ctx := context.Background()

	buyer := newClient(t, ts.URL)
	login(t, buyer, "amina@kraal.africa")
	seller := newClient(t, ts.URL)
	login(t, seller, "musa@kraal.africa")

	target := domain.MoneyFromMinor(30_000_000, domain.NGN)
	created, err := buyer.CreateBuyRequest(ctx, api.BuyRequestInput{
		Species:     "cattle",
		Breed:       "white fulani",
		Quantity:    2,
		TargetPrice: &target,
		Location:    "Lagos",
		Notes:       "For a December wedding.",
	})
	require.NoError(t, err)
	require.Equal(t, domain.BuyRequestOpen, created.Status)
	require.NotNil(t, created.TargetPrice)

	updated, err := buyer.UpdateBuyRequest(ctx, created.ID, api.BuyRequestInput{
		Species:  "cattle",
		Quantity: 3,
		Location: "Lagos",
	})
	require.NoError(t, err)
	require.Equal(t, 3, updated.Quantity)
	require.Nil(t, updated.TargetPrice, "omitting the target clears it")

	offer, err := seller.SendOffer(ctx, created.ID, api.OfferInput{
		ListingID: "lst-white-fulani",
		UnitPrice: domain.MoneyFromMinor(42_000_000, domain.NGN),
		Quantity:  3,
		Message:   "Can deliver to Lagos.",
	})
	require.NoError(t, err)
	require.Equal(t, domain.OfferPending, offer.Status)
	require.Equal(t, "usr-musa", offer.SellerID)

	board, err := buyer.BuyRequests(ctx, api.BuyRequestsQuery{Mine: true})
	require.NoError(t, err)
	require.Len(t, board.Items, 2)
	require.Equal(t, created.ID, board.Items[0].ID, "newest request leads the board")
	require.Equal(t, 1, board.Items[0].OfferCount)

	require.NoError(t, buyer.CancelBuyRequest(ctx, created.ID))
	request, err := buyer.BuyRequest(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BuyRequestCancelled, request.Status)

	// Pending offers die with the request.
	offers, err := buyer.Offers(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, domain.OfferRejected, offers[0].Status)

	_, err = seller.SendOffer(ctx, created.ID, api.OfferInput{
		UnitPrice: domain.MoneyFromMinor(40_000_000, domain.NGN),
		Quantity:  1,
	})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusConflict))
}

func TestSendOfferGuards(t *testing.T) {
	_, ts := newSeededServer(t)
	ctx := context.Background()

	buyer := newClient(t, ts.URL)
	login(t, buyer, "amina@kraal.africa")
	seller := newClient(t, ts.URL)
	login(t, seller, "musa@kraal.africa")

	// Buyers cannot respond to buy requests.
	_, err := buyer.SendOffer(ctx, "req-amina-rams", api.OfferInput{
		UnitPrice: domain.MoneyFromMinor(10_000_000, domain.NGN),
		Quantity:  1,
	})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusForbidden))

	// Offers may only reference the seller's own listings.
	_, err = seller.SendOffer(ctx, "req-amina-rams", api.OfferInput{
		ListingID: "lst-unknown",
		UnitPrice: domain.MoneyFromMinor(10_000_000, domain.NGN),
		Quantity:  1,
	})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusUnprocessableEntity))
}

func TestIdempotencyKeyReplay(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	_, err := client.AddCartLine(ctx, "lst-red-sokoto", 2)
	require.NoError(t, err)

	token, ok := client.Tokens().AccessToken()
	require.True(t, ok)

	post := func(body string) (*http.Response, []byte) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/payments/paystack/init", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "init-once")
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, payload
	}

	first, firstBody := post(`{"email":"amina@kraal.africa"}`)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, secondBody := post(`{"email":"amina@kraal.africa"}`)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	require.Equal(t, "true", second.Header.Get("X-Idempotent-Replay"))
	require.JSONEq(t, string(firstBody), string(secondBody))

	// Reusing the key with a different body is a conflict, not a replay.
	third, _ := post(`{"email":"other@kraal.africa"}`)
	require.Equal(t, http.StatusConflict, third.StatusCode)

	orders, err := client.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1, "the replayed init must not open a second order")
}

func TestScriptedFailuresRetryThrough(t *testing.T) {
	srv, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	ctx := context.Background()

	srv.FailNext(http.MethodGet, "/listings", 2, http.StatusServiceUnavailable)
	page, err := client.Listings(ctx, api.ListingsQuery{})
	require.NoError(t, err, "reads retry through transient upstream failures")
	require.NotEmpty(t, page.Items)

	// Three consecutive failures exhaust the attempt budget.
	srv.FailNext(http.MethodGet, "/buy-requests", 3, http.StatusTooManyRequests)
	_, err = client.BuyRequests(ctx, api.BuyRequestsQuery{})
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusTooManyRequests))
}

func TestStaleAccessTokenRecovery(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	profile := login(t, client, "amina@kraal.africa")

	refreshBefore, ok := client.Tokens().RefreshToken()
	require.True(t, ok)

	// A corrupted access token with a healthy refresh token, as after a
	// partial persistence failure.
	require.NoError(t, client.Tokens().Save("stale-garbage", ""))

	me, err := client.Me(context.Background())
	require.NoError(t, err, "a 401 triggers one refresh and a replay")
	require.Equal(t, profile.ID, me.ID)

	access, ok := client.Tokens().AccessToken()
	require.True(t, ok)
	require.NotEqual(t, "stale-garbage", access)

	refreshAfter, ok := client.Tokens().RefreshToken()
	require.True(t, ok)
	require.NotEqual(t, refreshBefore, refreshAfter, "refresh tokens rotate on use")
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "amina@kraal.africa")
	ctx := context.Background()

	refreshBefore, ok := client.Tokens().RefreshToken()
	require.True(t, ok)

	require.NoError(t, client.Logout(ctx))
	_, hasToken := client.Tokens().AccessToken()
	require.False(t, hasToken)

	// The old refresh token is dead server-side, so recovery fails and the
	// original 401 surfaces.
	require.NoError(t, client.Tokens().Save("stale-garbage", refreshBefore))
	_, err := client.Me(ctx)
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusUnauthorized))
}

func TestSmartSearchUnderstandsQueries(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	ctx := context.Background()

	result, err := client.SmartSearch(ctx, "rams for sallah in kaduna", 0)
	require.NoError(t, err)
	require.Equal(t, `sheep listings, matching "sallah kaduna"`, result.Interpretation)
	require.Len(t, result.Listings, 1)
	require.Equal(t, "lst-balami-rams", result.Listings[0].ID)

	capped, err := client.SmartSearch(ctx, "goats under 80k", 0)
	require.NoError(t, err)
	require.Equal(t, "goat listings, capped at NGN 80000", capped.Interpretation)
	require.Len(t, capped.Listings, 1)
	require.Equal(t, "lst-red-sokoto", capped.Listings[0].ID)

	_, err = client.SmartSearch(ctx, "   ", 5)
	require.ErrorIs(t, err, api.ErrSearchInvalidInput)
}

func TestBuyRequestMatchesRankListings(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	ctx := context.Background()

	matches, err := client.Matches(ctx, "req-amina-rams")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	best := matches[0]
	require.Equal(t, "lst-balami-rams", best.Listing.ID)
	require.InDelta(t, 0.90, best.Score, 0.001)
	require.Equal(t, "breed and species match; 7% over target; 8 head available", best.Reason)

	runnerUp := matches[1]
	require.Equal(t, "lst-yankasa-ewes", runnerUp.Listing.ID)
	require.InDelta(t, 0.70, runnerUp.Score, 0.001)
	require.Equal(t, "species match; within target price; 10 head available", runnerUp.Reason)

	_, err = client.Matches(ctx, "req-ghost")
	require.Error(t, err)
	require.True(t, httpx.IsStatus(err, http.StatusNotFound))
}

func TestStalledReadRetriesAfterTimeout(t *testing.T) {
	srv, ts := newSeededServer(t)

	client, err := api.NewClient(api.ClientDeps{
		BaseURL:    ts.URL,
		Tokens:     api.NewTokenStore(storage.NewMemStore()),
		HTTPClient: &http.Client{Timeout: 75 * time.Millisecond},
		Retry:      api.RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(client.CloseIdleConnections)

	srv.StallNext(http.MethodGet, "/listings", 1, time.Second)
	page, err := client.Listings(context.Background(), api.ListingsQuery{})
	require.NoError(t, err, "a timed-out attempt retries like any transport failure")
	require.Len(t, page.Items, 8)
}

func TestUploadMedia(t *testing.T) {
	_, ts := newSeededServer(t)
	client := newClient(t, ts.URL)
	login(t, client, "musa@kraal.africa")

	payload := strings.Repeat("jpeg-bytes ", 100)
	upload, err := client.UploadMedia(context.Background(), api.UploadInput{
		FileName:    "white-fulani.jpg",
		ContentType: "image/jpeg",
		Kind:        "listing-media",
		Data:        strings.NewReader(payload),
	})
	require.NoError(t, err)
	require.NotEmpty(t, upload.ID)
	require.Contains(t, upload.URL, "https://cdn.kraal.test/listing-media/")
	require.Contains(t, upload.URL, "white-fulani.jpg")
	require.Equal(t, int64(len(payload)), upload.Size)
	require.Equal(t, "image/jpeg", upload.ContentType)
	require.False(t, upload.CreatedAt.IsZero())

	vet, err := client.UploadMedia(context.Background(), api.UploadInput{
		FileName: "vet-report.pdf",
		Kind:     "vet-certificate",
		Data:     strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	require.Contains(t, vet.URL, "https://cdn.kraal.test/vet-certificate/")

	_, err = client.UploadMedia(context.Background(), api.UploadInput{
		FileName: "malware.exe",
		Kind:     "firmware",
		Data:     strings.NewReader("MZ"),
	})
	require.True(t, httpx.IsStatus(err, http.StatusBadRequest), "unknown kind must be rejected: %v", err)
}
