package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kraal-market/client/internal/domain"
	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/storage"
)

const emptyListingsPage = `{"items":[],"next_page_token":""}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *TokenStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := NewTokenStore(storage.NewMemStore())
	client, err := NewClient(ClientDeps{
		BaseURL: server.URL,
		Tokens:  tokens,
		Retry:   RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, tokens
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClientAttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotRequestID.Store(r.Header.Get("X-Request-Id"))
		writeBody(w, http.StatusOK, emptyListingsPage)
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("tok-123", "ref-123"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, err := client.Listings(context.Background(), ListingsQuery{}); err != nil {
		t.Fatalf("Listings returned error: %v", err)
	}
	if gotAuth.Load() != "Bearer tok-123" {
		t.Fatalf("expected bearer header got %v", gotAuth.Load())
	}
	if id, _ := gotRequestID.Load().(string); id == "" {
		t.Fatal("expected X-Request-Id header to be set")
	}
}

func TestClientRefreshesOnceOnUnauthorized(t *testing.T) {
	var listingCalls, refreshCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listings":
			listingCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh" {
				httpx.WriteError(r.Context(), w, httpx.NewError("token_expired", "token expired", http.StatusUnauthorized))
				return
			}
			writeBody(w, http.StatusOK, emptyListingsPage)
		case "/auth/refresh":
			refreshCalls.Add(1)
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh_token"] != "ref-1" {
				httpx.WriteError(r.Context(), w, httpx.NewError("refresh_invalid", "unknown refresh token", http.StatusUnauthorized))
				return
			}
			writeBody(w, http.StatusOK, `{"token":"fresh","refresh_token":"ref-2"}`)
		default:
			http.NotFound(w, r)
		}
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("stale", "ref-1"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, err := client.Listings(context.Background(), ListingsQuery{}); err != nil {
		t.Fatalf("Listings returned error: %v", err)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call got %d", got)
	}
	if got := listingCalls.Load(); got != 2 {
		t.Fatalf("expected the original call plus one replay got %d", got)
	}
	if access, _ := tokens.AccessToken(); access != "fresh" {
		t.Fatalf("expected rotated access token got %q", access)
	}
	if refresh, _ := tokens.RefreshToken(); refresh != "ref-2" {
		t.Fatalf("expected rotated refresh token got %q", refresh)
	}
}

func TestClientSurfacesOriginalErrorWhenRefreshFails(t *testing.T) {
	var refreshCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/listings":
			httpx.WriteError(r.Context(), w, httpx.NewError("token_expired", "token expired", http.StatusUnauthorized))
		case "/auth/refresh":
			refreshCalls.Add(1)
			httpx.WriteError(r.Context(), w, httpx.NewError("refresh_revoked", "refresh token revoked", http.StatusUnauthorized))
		default:
			http.NotFound(w, r)
		}
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("stale", "ref-1"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	_, err := client.Listings(context.Background(), ListingsQuery{})
	if err == nil {
		t.Fatal("expected error when refresh fails")
	}

	var envelope httpx.Error
	if !errors.As(err, &envelope) {
		t.Fatalf("expected envelope error got %T: %v", err, err)
	}
	if envelope.Code != "token_expired" {
		t.Fatalf("expected the original failure to surface, got code %q", envelope.Code)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh attempt got %d", got)
	}
	if _, ok := tokens.AccessToken(); ok {
		t.Fatal("expected tokens cleared after failed refresh")
	}
	if _, ok := tokens.RefreshToken(); ok {
		t.Fatal("expected refresh token cleared after failed refresh")
	}
}

func TestClientDoesNotRefreshWithoutCredentials(t *testing.T) {
	var refreshCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
		}
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "sign in required", http.StatusUnauthorized))
	})

	client, _ := newTestClient(t, handler)

	_, err := client.FetchCart(context.Background())
	if !httpx.IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 got %v", err)
	}
	if got := refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh attempt without a token, got %d", got)
	}
}

func TestClientRetriesIdempotentReads(t *testing.T) {
	var calls atomic.Int32
	var requestIDs atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		ids, _ := requestIDs.Load().([]string)
		requestIDs.Store(append(ids, r.Header.Get("X-Request-Id")))
		switch n {
		case 1:
			w.Header().Set("Retry-After", "0")
			httpx.WriteError(r.Context(), w, httpx.NewError("too_many_requests", "slow down", http.StatusTooManyRequests))
		case 2:
			httpx.WriteError(r.Context(), w, httpx.NewError("bad_gateway", "upstream flake", http.StatusBadGateway))
		default:
			writeBody(w, http.StatusOK, emptyListingsPage)
		}
	})

	client, _ := newTestClient(t, handler)

	if _, err := client.Listings(context.Background(), ListingsQuery{}); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts got %d", got)
	}

	ids, _ := requestIDs.Load().([]string)
	if len(ids) != 3 {
		t.Fatalf("expected 3 recorded request ids got %d", len(ids))
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected a stable request id across retries, got %v", ids)
		}
	}
}

func TestClientStopsAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "maintenance", http.StatusServiceUnavailable))
	})

	client, _ := newTestClient(t, handler)

	_, err := client.Listings(context.Background(), ListingsQuery{})
	if !httpx.IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 to surface got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 attempts got %d", got)
	}
}

func TestClientDoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "maintenance", http.StatusServiceUnavailable))
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("tok", "ref"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	_, err := client.AddCartLine(context.Background(), "lst-1", 1)
	if !httpx.IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt for a mutation got %d", got)
	}
}

func TestClientRetriesTransportTimeouts(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(80 * time.Millisecond)
		writeBody(w, http.StatusOK, emptyListingsPage)
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := NewTokenStore(storage.NewMemStore())
	client, err := NewClient(ClientDeps{
		BaseURL:    server.URL,
		Tokens:     tokens,
		HTTPClient: &http.Client{Timeout: 10 * time.Millisecond},
		Retry:      RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.Listings(context.Background(), ListingsQuery{}); err == nil {
		t.Fatal("expected timeout error")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected timeout to consume the retry budget, got %d attempts", got)
	}
}

func TestClientKeepsIdempotencyKeyAcrossRefreshReplay(t *testing.T) {
	var keys atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/buy-requests/br-1/offers/off-1/accept":
			stored, _ := keys.Load().([]string)
			keys.Store(append(stored, r.Header.Get("Idempotency-Key")))
			if r.Header.Get("Authorization") != "Bearer fresh" {
				httpx.WriteError(r.Context(), w, httpx.NewError("token_expired", "token expired", http.StatusUnauthorized))
				return
			}
			writeBody(w, http.StatusOK, `{"id":"ord-1","reference":"KRL-1","buyer_id":"u1","lines":[],"subtotal_minor":0,"total_minor":0,"currency":"NGN","status":"pending_payment"}`)
		case "/auth/refresh":
			writeBody(w, http.StatusOK, `{"token":"fresh"}`)
		default:
			http.NotFound(w, r)
		}
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("stale", "ref-1"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	order, err := client.AcceptOffer(context.Background(), "br-1", "off-1")
	if err != nil {
		t.Fatalf("AcceptOffer returned error: %v", err)
	}
	if order.ID != "ord-1" {
		t.Fatalf("expected order ord-1 got %q", order.ID)
	}

	stored, _ := keys.Load().([]string)
	if len(stored) != 2 {
		t.Fatalf("expected 2 accept attempts got %d", len(stored))
	}
	if stored[0] == "" || stored[0] != stored[1] {
		t.Fatalf("expected a stable idempotency key across the replay, got %v", stored)
	}
}

func TestClientNormalizesCartWireShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart" {
			http.NotFound(w, r)
			return
		}
		writeBody(w, http.StatusOK, `{
			"items": [
				{"listing": {"id": "lst-1", "title": "White Fulani bull", "price_minor": 45000000, "currency": "NGN", "seller_id": "s1"}, "quantity": 2}
			],
			"updated_at": "2026-05-01T10:00:00Z"
		}`)
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("tok", "ref"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	cart, err := client.FetchCart(context.Background())
	if err != nil {
		t.Fatalf("FetchCart returned error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one cart item got %d", len(cart.Items))
	}
	item := cart.Items[0]
	if item.ListingID != "lst-1" || item.Quantity != 2 {
		t.Fatalf("unexpected normalized item %+v", item)
	}
	if item.UnitPrice.Minor() != 45000000 {
		t.Fatalf("expected unit price 45000000 minor got %d", item.UnitPrice.Minor())
	}
	if got := item.LineTotal().Minor(); got != 90000000 {
		t.Fatalf("expected line total 90000000 minor got %d", got)
	}
}

func TestClientSendsQtyOnCartAdd(t *testing.T) {
	var body atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cart/add" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body.Store(string(raw))
		writeBody(w, http.StatusOK, `{"items":[{"listing":{"id":"lst-1","title":"Goat","price_minor":8000000,"currency":"NGN"},"quantity":3}],"updated_at":"2026-05-01T10:00:00Z"}`)
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("tok", "ref"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if _, err := client.AddCartLine(context.Background(), "lst-1", 3); err != nil {
		t.Fatalf("AddCartLine returned error: %v", err)
	}

	var decoded map[string]any
	raw, _ := body.Load().(string)
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("decoding captured body: %v", err)
	}
	if decoded["qty"] != float64(3) {
		t.Fatalf("expected qty field in add payload, got %v", decoded)
	}
	if _, hasQuantity := decoded["quantity"]; hasQuantity {
		t.Fatalf("add payload should use qty, not quantity: %v", decoded)
	}
}

func TestClientParsesScalarRole(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			writeBody(w, http.StatusOK, `{
				"token": "tok-1",
				"refresh_token": "ref-1",
				"user": {"id": "u1", "email": "amina@kraal.test", "roles": "buyer", "created_at": "2026-01-10T08:00:00Z"}
			}`)
		default:
			http.NotFound(w, r)
		}
	})

	client, tokens := newTestClient(t, handler)

	profile, err := client.Login(context.Background(), Credentials{Email: "Amina@kraal.test", Password: "pw"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if len(profile.Roles) != 1 || profile.Roles[0] != domain.RoleBuyer {
		t.Fatalf("expected scalar role normalized to [buyer], got %v", profile.Roles)
	}
	if access, _ := tokens.AccessToken(); access != "tok-1" {
		t.Fatalf("expected access token persisted got %q", access)
	}
}

func TestClientLogoutClearsLocalStateDespiteServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(r.Context(), w, httpx.NewError("internal", "revocation store down", http.StatusInternalServerError))
	})

	client, tokens := newTestClient(t, handler)
	if err := tokens.Save("tok", "ref"); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	err := client.Logout(context.Background())
	if err == nil {
		t.Fatal("expected logout to report the server error")
	}
	if _, ok := tokens.AccessToken(); ok {
		t.Fatal("expected tokens cleared even when the server call fails")
	}
}
