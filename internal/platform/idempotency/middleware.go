package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kraal-market/client/internal/platform/httpx"
)

const (
	keyHeader    = "Idempotency-Key"
	replayHeader = "X-Idempotent-Replay"
)

// RequesterFunc names the caller a key is scoped to. Empty means anonymous.
type RequesterFunc func(ctx context.Context) string

type settings struct {
	ttl       time.Duration
	clock     func() time.Time
	logger    *log.Logger
	requester RequesterFunc
}

// Option adjusts the middleware.
type Option func(*settings)

// WithTTL sets how long completed responses stay replayable.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger routes store failures somewhere visible.
func WithLogger(logger *log.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithRequester scopes keys per caller, so two accounts may present the same
// key value without colliding.
func WithRequester(fn RequesterFunc) Option {
	return func(s *settings) {
		if fn != nil {
			s.requester = fn
		}
	}
}

// Middleware guards a mutating route with Idempotency-Key semantics: the
// first request under a key runs, an identical duplicate replays the stored
// response with X-Idempotent-Replay set, and a concurrent duplicate or a key
// reused for a different request both conflict. Apply it per route.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	cfg := settings{
		ttl:       DefaultTTL,
		clock:     time.Now,
		requester: func(context.Context) string { return "" },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(keyHeader))
			if key == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_key_required", keyHeader+" header is required", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "could not read request body", http.StatusBadRequest))
				return
			}

			scoped := scopeKey(key, cfg.requester(r.Context()))
			print := fingerprint(r, body)
			now := cfg.clock().UTC()

			claim, err := store.Begin(r.Context(), scoped, print, now, cfg.ttl)
			switch {
			case errors.Is(err, ErrKeyReused):
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_key_conflict", "this Idempotency-Key was already used for a different request", http.StatusConflict))
				return
			case err != nil:
				cfg.printf("idempotency: begin %s: %v", key, err)
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_store_error", "could not check the idempotency key", http.StatusInternalServerError))
				return
			}

			switch claim.Outcome {
			case Replay:
				writeReplay(w, claim.Response)
				return
			case InFlight:
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_in_progress", "another request with this Idempotency-Key is still running", http.StatusConflict))
				return
			}

			buffered := newBufferedWriter()
			next.ServeHTTP(buffered, r)

			stored := Response{
				Status: buffered.statusCode(),
				Header: storableHeader(buffered.header),
				Body:   buffered.bodyBytes(),
			}
			if err := store.Complete(r.Context(), scoped, print, stored, cfg.clock().UTC(), cfg.ttl); err != nil {
				cfg.printf("idempotency: complete %s: %v", key, err)
				if err := store.Abandon(r.Context(), scoped); err != nil {
					cfg.printf("idempotency: abandon %s: %v", key, err)
				}
				httpx.WriteError(r.Context(), w, httpx.NewError("idempotency_store_error", "could not record the response", http.StatusInternalServerError))
				return
			}
			buffered.flush(w)
		})
	}
}

func (s settings) printf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// bufferBody reads the request body and puts a rewindable copy back so the
// handler can read it again.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// fingerprint ties a key to the request that claimed it: the same key with a
// different method, path, or body is a reuse, not a retry.
func fingerprint(r *http.Request, body []byte) string {
	return hashHex([]byte(r.Method + "|" + r.URL.Path + "|" + hashHex(body)))
}

func scopeKey(key, requester string) string {
	requester = strings.TrimSpace(requester)
	if requester == "" {
		requester = "anonymous"
	}
	return key + "|" + requester
}

func writeReplay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.Header().Set(replayHeader, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

// bufferedWriter holds the handler's response until the store accepts it, so
// a duplicate can never observe a response that was not recorded.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 && status > 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedWriter) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) bodyBytes() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for name, values := range b.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(b.statusCode())
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
