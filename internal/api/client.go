package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kraal-market/client/internal/platform/httpx"
	"github.com/kraal-market/client/internal/platform/observability"
	"github.com/kraal-market/client/internal/platform/requestctx"
)

const (
	defaultRequestTimeout = 8 * time.Second

	headerIdempotencyKey = "Idempotency-Key"
	headerRequestID      = "X-Request-Id"
)

var (
	errClientBaseURLRequired = errors.New("api client: base url is required")
	errClientTokensRequired  = errors.New("api client: token store is required")
	errNoRefreshToken        = errors.New("api client: no refresh token")
	errRefreshMissingToken   = errors.New("api client: refresh response missing token")
)

// ClientDeps wires the transport dependencies. BaseURL and Tokens are
// required, everything else has sensible defaults.
type ClientDeps struct {
	BaseURL    string
	Tokens     *TokenStore
	HTTPClient *http.Client
	Logger     *zap.Logger
	Retry      RetryPolicy
	Cache      *Cache
	UserAgent  string
	Clock      func() time.Time
}

// Client is the typed gateway to the marketplace REST API. It attaches
// bearer credentials, recovers once from an expired token via the refresh
// endpoint, retries idempotent reads under the shared policy, and funnels
// reads through the tag cache.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    *TokenStore
	logger    *zap.Logger
	retry     RetryPolicy
	cache     *Cache
	userAgent string
	now       func() time.Time

	refreshGroup singleflight.Group
}

// NewClient validates dependencies and constructs a Client.
func NewClient(deps ClientDeps) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(deps.BaseURL), "/")
	if baseURL == "" {
		return nil, errClientBaseURLRequired
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api client: invalid base url: %w", err)
	}
	if deps.Tokens == nil {
		return nil, errClientTokensRequired
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := deps.Cache
	if cache == nil {
		cache = NewCache(CacheDeps{Logger: logger})
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:   baseURL,
		http:      httpClient,
		tokens:    deps.Tokens,
		logger:    logger,
		retry:     deps.Retry.withDefaults(),
		cache:     cache,
		userAgent: strings.TrimSpace(deps.UserAgent),
		now:       now,
	}, nil
}

// Tokens exposes the token store so the session layer can share it.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// Cache exposes the tag cache for direct invalidation and inspection.
func (c *Client) Cache() *Cache { return c.cache }

// CloseIdleConnections drops pooled transport connections so short-lived
// commands exit promptly.
func (c *Client) CloseIdleConnections() { c.http.CloseIdleConnections() }

// apiRequest describes one logical call before transport concerns are applied.
type apiRequest struct {
	method string
	path   string
	query  url.Values
	body   any
	form   *multipartForm
	// skipAuth suppresses the bearer header and the 401 recovery path; the
	// auth endpoints themselves use it.
	skipAuth bool
	// idempotent stamps an Idempotency-Key so the backend can replay
	// money-moving calls instead of double-executing them.
	idempotent bool
}

type multipartForm struct {
	fileField   string
	fileName    string
	contentType string
	file        io.Reader
}

// do executes one logical API call: encode, send (with retries for GETs),
// recover once from a 401 via token refresh, then decode into out.
func (c *Client) do(ctx context.Context, req apiRequest, out any) (err error) {
	requestID := uuid.NewString()
	ctx = requestctx.WithRequestID(ctx, requestID)

	body, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}
	endpoint, err := c.buildURL(req)
	if err != nil {
		return err
	}

	idemKey := ""
	if req.idempotent {
		// One key per logical call. Retries and the post-refresh replay
		// reuse it so the backend can dedupe.
		idemKey = ulid.Make().String()
	}

	ctx, span := observability.StartClientSpan(ctx, req.method, endpoint)
	started := time.Now()

	var status int
	defer func() {
		observability.EndClientSpan(span, status, err)
		c.logCall(ctx, req, status, started, err)
	}()

	status, err = c.send(ctx, req, endpoint, body, contentType, requestID, idemKey, out)

	if status == http.StatusUnauthorized && !req.skipAuth {
		if _, hadToken := c.tokens.AccessToken(); hadToken {
			original := err
			if refreshErr := c.refreshTokens(ctx); refreshErr != nil {
				// The session is unrecoverable. Drop the stale credentials
				// and surface the failure that started this, not the
				// refresh's own error.
				c.tokens.Clear()
				err = original
				return err
			}
			status, _, err = c.attempt(ctx, req, endpoint, body, contentType, requestID, idemKey, out)
		}
	}
	return err
}

// send runs the retry loop for idempotent reads and a single attempt for
// everything else.
func (c *Client) send(ctx context.Context, req apiRequest, endpoint *url.URL, body []byte, contentType, requestID, idemKey string, out any) (int, error) {
	if req.method != http.MethodGet {
		status, _, err := c.attempt(ctx, req, endpoint, body, contentType, requestID, idemKey, out)
		return status, err
	}

	bo := c.retry.newBackOff()
	for attempt := 1; ; attempt++ {
		status, retryAfter, err := c.attempt(ctx, req, endpoint, body, contentType, requestID, idemKey, out)
		if err == nil || attempt >= c.retry.MaxAttempts || !shouldRetry(ctx, err) {
			return status, err
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return status, err
		}
		if retryAfter > 0 {
			delay = retryAfter
		}
		c.logger.Debug("retrying request",
			zap.String("method", req.method),
			zap.String("path", observability.SanitizeRoute(req.path)),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return status, err
		case <-timer.C:
		}
	}
}

// attempt performs exactly one HTTP round trip.
func (c *Client) attempt(ctx context.Context, req apiRequest, endpoint *url.URL, body []byte, contentType, requestID, idemKey string, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), reader)
	if err != nil {
		return 0, 0, fmt.Errorf("api client: build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	httpReq.Header.Set(headerRequestID, requestID)
	if idemKey != "" {
		httpReq.Header.Set(headerIdempotencyKey, idemKey)
	}
	if !req.skipAuth {
		if token, ok := c.tokens.AccessToken(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, 0, fmt.Errorf("api client: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		return resp.StatusCode, retryAfter, httpx.FromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, 0, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, 0, fmt.Errorf("api client: decode %s %s: %w", req.method, req.path, err)
	}
	return resp.StatusCode, 0, nil
}

// refreshTokens exchanges the refresh token for a new pair. Concurrent 401s
// collapse into one refresh call.
func (c *Client) refreshTokens(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		refresh, ok := c.tokens.RefreshToken()
		if !ok {
			return nil, errNoRefreshToken
		}

		var payload tokenPairPayload
		req := apiRequest{
			method:   http.MethodPost,
			path:     "/auth/refresh",
			body:     map[string]string{"refresh_token": refresh},
			skipAuth: true,
		}
		if err := c.do(ctx, req, &payload); err != nil {
			return nil, err
		}

		access := payload.accessToken()
		if access == "" {
			return nil, errRefreshMissingToken
		}
		return nil, c.tokens.Save(access, payload.RefreshToken)
	})
	return err
}

func (c *Client) buildURL(req apiRequest) (*url.URL, error) {
	u, err := url.Parse(c.baseURL + req.path)
	if err != nil {
		return nil, fmt.Errorf("api client: invalid path %q: %w", req.path, err)
	}
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}
	return u, nil
}

func (c *Client) logCall(ctx context.Context, req apiRequest, status int, started time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", observability.SanitizeMethod(req.method)),
		zap.String("path", observability.SanitizeRoute(req.path)),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(started)),
		zap.String("request_id", requestctx.RequestID(ctx)),
	}
	if err != nil {
		c.logger.Debug("api call failed", append(fields, zap.Error(err))...)
		return
	}
	c.logger.Debug("api call", fields...)
}

func encodeBody(req apiRequest) ([]byte, string, error) {
	switch {
	case req.form != nil:
		return req.form.encode()
	case req.body != nil:
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", fmt.Errorf("api client: encode body: %w", err)
		}
		return raw, "application/json", nil
	default:
		return nil, "", nil
	}
}

// encode renders the multipart body up front so retries can replay it.
func (f *multipartForm) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.fileField, f.fileName))
	if f.contentType != "" {
		header.Set("Content-Type", f.contentType)
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("api client: create form part: %w", err)
	}
	if _, err := io.Copy(part, f.file); err != nil {
		return nil, "", fmt.Errorf("api client: copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("api client: finish form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
