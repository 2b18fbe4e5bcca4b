// Package fake hosts an in-process marketplace backend for tests and the
// CLI's demo mode. It speaks the production wire dialect, including the
// quirks clients have to cope with: the cart add endpoint takes "qty" while
// cart reads render "quantity" beside a nested listing, login reports the
// access token as "token" where refresh reports "access_token", legacy
// accounts carry a bare string in "roles" instead of an array, and the
// listing detail view hangs off a "/pdp" suffix.
package fake

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/platform/idempotency"
	"github.com/kraal-market/client/internal/platform/requestctx"
)

const (
	defaultTokenTTL   = 15 * time.Minute
	defaultLockWindow = 10 * time.Minute
)

// ServerDeps configures the fake backend. Every field has a usable default.
type ServerDeps struct {
	Logger *zap.Logger
	Clock  func() time.Time
	// TokenTTL bounds minted access tokens. Short or negative values
	// exercise the client's refresh recovery.
	TokenTTL time.Duration
	// LockWindow is how long checkout price locks stay valid.
	LockWindow time.Duration
	// Secret signs access tokens. A random one is generated when empty.
	Secret []byte
}

// Server holds the whole marketplace in memory: accounts, listings, the buy
// request board, carts, and orders. All state sits behind one mutex and
// handlers copy records out before rendering, so the returned handler is safe
// for concurrent use.
type Server struct {
	logger     *zap.Logger
	now        func() time.Time
	tokenTTL   time.Duration
	lockWindow time.Duration
	secret     []byte
	idem       func(http.Handler) http.Handler

	mu           sync.Mutex
	users        map[string]*userRecord
	emailIndex   map[string]string
	refreshIndex map[string]string
	listings     map[string]*listingRecord
	listingOrder []string
	requests     map[string]*buyRequestRecord
	requestOrder []string
	offers       map[string]*offerRecord
	offerOrder   map[string][]string
	carts        map[string][]cartLine
	cartUpdated  map[string]time.Time
	orders       map[string]*orderRecord
	orderOrder   []string
	scripts      []*failureScript
}

// NewServer builds an empty backend. Call SeedDemo for a populated one.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	tokenTTL := deps.TokenTTL
	if tokenTTL == 0 {
		tokenTTL = defaultTokenTTL
	}
	lockWindow := deps.LockWindow
	if lockWindow <= 0 {
		lockWindow = defaultLockWindow
	}
	secret := deps.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("fake: generate signing secret: %v", err))
		}
	}

	s := &Server{
		logger:       logger,
		now:          now,
		tokenTTL:     tokenTTL,
		lockWindow:   lockWindow,
		secret:       secret,
		users:        make(map[string]*userRecord),
		emailIndex:   make(map[string]string),
		refreshIndex: make(map[string]string),
		listings:     make(map[string]*listingRecord),
		requests:     make(map[string]*buyRequestRecord),
		offers:       make(map[string]*offerRecord),
		offerOrder:   make(map[string][]string),
		carts:        make(map[string][]cartLine),
		cartUpdated:  make(map[string]time.Time),
		orders:       make(map[string]*orderRecord),
	}

	// Money-moving routes opt in via s.idem; keys are scoped to the
	// authenticated user so two buyers cannot collide on the same key.
	s.idem = idempotency.Middleware(
		idempotency.NewMemoryStore(),
		idempotency.WithRequester(requesterID),
		idempotency.WithLogger(zap.NewStdLog(logger.Named("idempotency"))),
		idempotency.WithClock(now),
	)
	return s
}

// Handler returns the routed HTTP surface. Mount it on httptest.Server or a
// local listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(s.scripted)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Route("/auth", s.authRoutes)
	r.Route("/listings", s.listingRoutes)
	r.Route("/search", s.searchRoutes)
	r.Route("/buy-requests", s.buyRequestRoutes)
	r.Route("/cart", s.cartRoutes)
	r.Route("/checkout", s.checkoutRoutes)
	r.Route("/payments", s.paymentRoutes)
	r.Route("/orders", s.orderRoutes)
	r.Route("/upload", s.uploadRoutes)
	return r
}

type identityKey struct{}

func withIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey{}, userID)
}

func identityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// requesterID scopes idempotency keys to the authenticated user.
func requesterID(ctx context.Context) string {
	return identityFromContext(ctx)
}

// requireAuth rejects requests without a valid bearer token. Expired tokens
// get a distinct code so clients know a refresh is worth trying.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "authorization required", http.StatusUnauthorized))
			return
		}
		userID, err := s.verifyAccessToken(token)
		if err != nil {
			code := "unauthorized"
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = "token_expired"
			}
			httpx.WriteError(r.Context(), w, httpx.NewError(code, "invalid or expired access token", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID)))
	})
}

// optionalAuth resolves an identity when a token is present. A bad token is
// still a 401: surfacing stale credentials lets clients run their refresh
// path instead of silently browsing anonymously.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := s.verifyAccessToken(token)
		if err != nil {
			code := "unauthorized"
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = "token_expired"
			}
			httpx.WriteError(r.Context(), w, httpx.NewError(code, "invalid or expired access token", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// newID mints a readable unique identifier like "ord_01j3qv...".
func newID(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}

// failureScript makes upcoming matching requests misbehave so tests can
// exercise retry and timeout handling.
type failureScript struct {
	method string
	prefix string
	count  int
	status int
	delay  time.Duration
}

// FailNext makes the next count requests matching method and path prefix fail
// with the given status before reaching any handler.
func (s *Server) FailNext(method, prefix string, count, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, &failureScript{
		method: strings.ToUpper(strings.TrimSpace(method)),
		prefix: prefix,
		count:  count,
		status: status,
	})
}

// StallNext delays the next count matching requests by d before serving them
// normally, to provoke client-side timeouts.
func (s *Server) StallNext(method, prefix string, count int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, &failureScript{
		method: strings.ToUpper(strings.TrimSpace(method)),
		prefix: prefix,
		count:  count,
		delay:  d,
	})
}

func (s *Server) claimScript(method, path string) *failureScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, script := range s.scripts {
		if script.method != method || !strings.HasPrefix(path, script.prefix) {
			continue
		}
		script.count--
		if script.count <= 0 {
			s.scripts = append(s.scripts[:i], s.scripts[i+1:]...)
		}
		return &failureScript{status: script.status, delay: script.delay}
	}
	return nil
}

// logRequests scopes the server logger to the request and emits one line per
// call, which keeps demo sessions traceable.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		logger.Debug("request served",
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) scripted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		script := s.claimScript(r.Method, r.URL.Path)
		if script == nil {
			next.ServeHTTP(w, r)
			return
		}
		if script.delay > 0 {
			timer := time.NewTimer(script.delay)
			defer timer.Stop()
			select {
			case <-r.Context().Done():
				return
			case <-timer.C:
			}
		}
		if script.status == 0 {
			next.ServeHTTP(w, r)
			return
		}
		code := strings.ReplaceAll(strings.ToLower(http.StatusText(script.status)), " ", "_")
		requestctx.Logger(r.Context()).Debug("scripted failure", zap.Int("status", script.status))
		httpx.WriteError(r.Context(), w, httpx.NewError(code, "scripted failure", script.status))
	})
}
