// Package session tracks who is signed in. It layers a small state machine
// over the API client: loading until the first profile check resolves, then
// authenticated or anonymous. Successful checks are debounced so repeated
// callers do not hammer the profile endpoint, and transient network failures
// fall back to the profile persisted on the bridge instead of signing the
// user out. A confirmed 401 always signs out.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/cart"
	"github.com/kraal-market/client/internal/domain"
	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/platform/observability"
	"github.com/kraal-market/client/internal/storage"
)

var (
	errSessionClientRequired = errors.New("session store: api client is required")
	errSessionBridgeRequired = errors.New("session store: bridge is required")
)

// ErrNotAuthenticated is returned when no usable credentials exist.
var ErrNotAuthenticated = errors.New("session store: not authenticated")

const defaultRecheckInterval = 5 * time.Minute

// StoreDeps wires the API client, persistence bridge, and ambient
// dependencies. Cart is optional; when present the store migrates the guest
// cart on login and switches back on sign-out.
type StoreDeps struct {
	Client          *api.Client
	Bridge          storage.Bridge
	Cart            *cart.Store
	Logger          *zap.Logger
	Clock           func() time.Time
	RecheckInterval time.Duration
}

// Store holds the current session state.
type Store struct {
	mu          sync.Mutex
	client      *api.Client
	bridge      storage.Bridge
	cart        *cart.Store
	logger      *zap.Logger
	now         func() time.Time
	recheck     time.Duration
	status      domain.SessionStatus
	profile     domain.UserProfile
	hasProfile  bool
	lastChecked time.Time
}

// NewStore builds a Store in the loading state, hydrated with any profile the
// bridge still holds from a previous run.
func NewStore(deps StoreDeps) (*Store, error) {
	if deps.Client == nil {
		return nil, errSessionClientRequired
	}
	if deps.Bridge == nil {
		return nil, errSessionBridgeRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	recheck := deps.RecheckInterval
	if recheck <= 0 {
		recheck = defaultRecheckInterval
	}

	s := &Store{
		client:  deps.Client,
		bridge:  deps.Bridge,
		cart:    deps.Cart,
		logger:  logger,
		now:     func() time.Time { return clock().UTC() },
		recheck: recheck,
		status:  domain.SessionLoading,
	}

	var stored storedProfile
	if storage.ReadJSON(deps.Bridge, storage.KeyUser, &stored) {
		s.profile = stored.toDomain()
		s.hasProfile = true
	}
	return s, nil
}

// LoadProfile resolves the session against the backend. Checks within the
// recheck window are skipped unless forceRefresh is set. On failure the
// outcome depends on the error: a 401 signs the session out, a transient
// network failure (without forceRefresh) falls back to the profile persisted
// on the bridge, anything else signs out too.
func (s *Store) LoadProfile(ctx context.Context, forceRefresh bool) (domain.UserProfile, error) {
	s.mu.Lock()
	if !forceRefresh && s.status == domain.SessionAuthenticated && !s.lastChecked.IsZero() &&
		s.now().Sub(s.lastChecked) < s.recheck {
		profile := s.profile
		s.mu.Unlock()
		return profile, nil
	}
	s.mu.Unlock()

	tokens := s.client.Tokens()
	access, ok := tokens.AccessToken()
	if !ok {
		s.signOutLocal()
		return domain.UserProfile{}, ErrNotAuthenticated
	}
	if _, hasRefresh := tokens.RefreshToken(); !hasRefresh && tokenLooksExpired(access, s.now()) {
		s.signOutLocal()
		return domain.UserProfile{}, ErrNotAuthenticated
	}

	// Always revalidate against the backend; the debounce window above is
	// the only read suppression for the profile.
	s.client.Cache().Invalidate(ctx, api.TagProfile)

	profile, err := s.client.Me(ctx)
	if err != nil {
		return s.reconcileFailure(err, forceRefresh)
	}

	s.adopt(profile)
	return profile, nil
}

// Login signs in, persists the profile, and folds any guest cart into the
// account's server-side cart.
func (s *Store) Login(ctx context.Context, creds api.Credentials) (domain.UserProfile, error) {
	profile, err := s.client.Login(ctx, creds)
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.adopt(profile)
	s.mergeGuestCart(ctx)
	return profile, nil
}

// Register creates an account, signs it in, and folds any guest cart into
// the new account's server-side cart.
func (s *Store) Register(ctx context.Context, input api.RegisterInput) (domain.UserProfile, error) {
	profile, err := s.client.Register(ctx, input)
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.adopt(profile)
	s.mergeGuestCart(ctx)
	return profile, nil
}

// Logout revokes the session server-side on a best-effort basis and always
// clears local state.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("logout revoke failed", zap.Error(err))
	}
	s.signOutLocal()
	return nil
}

// Status reports the current lifecycle state.
func (s *Store) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Profile returns the current profile. ok is false unless the session is
// authenticated or still loading with a hydrated profile from a prior run.
func (s *Store) Profile() (domain.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.hasProfile
}

// LastCheckedAt reports when the profile last validated against the backend.
func (s *Store) LastCheckedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChecked
}

// adopt records a successfully validated profile and mirrors it to the
// bridge. A failed mirror write keeps the live session and is only logged.
func (s *Store) adopt(profile domain.UserProfile) {
	s.mu.Lock()
	s.status = domain.SessionAuthenticated
	s.profile = profile
	s.hasProfile = true
	s.lastChecked = s.now()
	s.mu.Unlock()

	s.logger.Debug("session adopted", zap.String("user_id", observability.SanitizeUserID(profile.ID)))
	if err := storage.WriteJSON(s.bridge, storage.KeyUser, toStored(profile)); err != nil {
		s.logger.Warn("profile not persisted", zap.Error(err))
	}
}

func (s *Store) reconcileFailure(fetchErr error, forceRefresh bool) (domain.UserProfile, error) {
	if httpx.IsStatus(fetchErr, http.StatusUnauthorized) {
		s.signOutLocal()
		return domain.UserProfile{}, fetchErr
	}

	if !forceRefresh && isNetworkFailure(fetchErr) {
		var stored storedProfile
		if storage.ReadJSON(s.bridge, storage.KeyUser, &stored) {
			profile := stored.toDomain()
			s.mu.Lock()
			s.status = domain.SessionAuthenticated
			s.profile = profile
			s.hasProfile = true
			s.mu.Unlock()
			s.logger.Warn("profile check unreachable, serving persisted profile", zap.Error(fetchErr))
			return profile, nil
		}
	}

	s.signOutLocal()
	return domain.UserProfile{}, fetchErr
}

// signOutLocal drops credentials, cached reads, and the persisted profile,
// and points the cart back at the guest entry. The authenticated cart blob
// stays on the bridge; it is only rewritten by cart mutations.
func (s *Store) signOutLocal() {
	s.client.Tokens().Clear()
	s.client.Cache().Reset()
	s.bridge.Delete(storage.KeyUser)

	s.mu.Lock()
	s.status = domain.SessionAnonymous
	s.profile = domain.UserProfile{}
	s.hasProfile = false
	s.lastChecked = time.Time{}
	s.mu.Unlock()

	if s.cart != nil && s.cart.Key() != storage.KeyGuestCart {
		if err := s.cart.Rekey(storage.KeyGuestCart); err != nil {
			s.logger.Warn("cart not rekeyed to guest", zap.Error(err))
		}
	}
}

// mergeGuestCart reconciles a guest cart against the account's server cart:
// guest lines are pushed up, the merged server snapshot wins locally, and
// the guest entry is dropped. Every step is best effort.
func (s *Store) mergeGuestCart(ctx context.Context) {
	if s.cart == nil {
		return
	}

	var guestLines []domain.CartItem
	if s.cart.Key() == storage.KeyGuestCart {
		guestLines = s.cart.Items()
	}

	if err := s.cart.Rekey(storage.KeyCart); err != nil {
		s.logger.Warn("cart not rekeyed after login", zap.Error(err))
		return
	}

	for _, line := range guestLines {
		if _, err := s.client.AddCartLine(ctx, line.ListingID, line.Quantity); err != nil {
			s.logger.Warn("guest cart line not merged",
				zap.String("listing_id", line.ListingID),
				zap.Error(err),
			)
		}
	}

	server, err := s.client.FetchCart(ctx)
	if err != nil {
		s.logger.Warn("server cart fetch failed after login", zap.Error(err))
		return
	}
	if err := s.cart.ReplaceFromServer(server); err != nil {
		s.logger.Warn("server cart not mirrored", zap.Error(err))
		return
	}
	s.bridge.Delete(storage.KeyGuestCart)
}

// isNetworkFailure reports whether the error looks like the backend was
// unreachable or overloaded rather than rejecting the request outright.
func isNetworkFailure(err error) bool {
	status := httpx.StatusOf(err)
	if status == 0 {
		// No HTTP envelope: the request never completed.
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// tokenLooksExpired decodes the access token without verifying its signature
// and reports whether its exp claim is in the past. Verification belongs to
// the backend; this only avoids a doomed network round trip.
func tokenLooksExpired(raw string, now time.Time) bool {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// storedProfile is the bridge layout for the persisted profile.
type storedProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Roles     []string  `json:"roles"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Verified  bool      `json:"verified,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toStored(profile domain.UserProfile) storedProfile {
	roles := make([]string, 0, len(profile.Roles))
	for _, role := range profile.Roles {
		roles = append(roles, string(role))
	}
	return storedProfile{
		ID:        profile.ID,
		Email:     profile.Email,
		Phone:     profile.Phone,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Roles:     roles,
		AvatarURL: profile.AvatarURL,
		Verified:  profile.Verified,
		CreatedAt: profile.CreatedAt,
	}
}

func (p storedProfile) toDomain() domain.UserProfile {
	roles := make([]domain.Role, 0, len(p.Roles))
	for _, role := range p.Roles {
		roles = append(roles, domain.Role(role))
	}
	return domain.UserProfile{
		ID:        p.ID,
		Email:     p.Email,
		Phone:     p.Phone,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Roles:     roles,
		AvatarURL: p.AvatarURL,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt,
	}
}
