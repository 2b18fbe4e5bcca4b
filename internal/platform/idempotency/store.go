// Package idempotency makes money-movement routes safe to retry: the first
// request under an Idempotency-Key runs, concurrent duplicates are rejected,
// and later duplicates replay the stored response byte for byte.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL bounds how long a completed response stays replayable.
const DefaultTTL = 24 * time.Hour

// ErrKeyReused reports an Idempotency-Key presented with a different request
// than the one that first claimed it.
var ErrKeyReused = errors.New("idempotency: key reused with a different request")

// Response is the reply stored for a completed request, replayed verbatim on
// duplicates.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Outcome tells the middleware how to treat an incoming request.
type Outcome int

const (
	// Proceed means the key is unclaimed: run the handler.
	Proceed Outcome = iota
	// Replay means a completed response exists: write it back unchanged.
	Replay
	// InFlight means another request holds the key right now.
	InFlight
)

// Claim is the store's verdict for one request under a scoped key.
type Claim struct {
	Outcome  Outcome
	Response Response
}

// Store tracks claimed keys and their completed responses.
type Store interface {
	// Begin claims key for the request identified by fingerprint. Claiming a
	// key held under a different fingerprint fails with ErrKeyReused.
	Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error)
	// Complete records the response future duplicates replay.
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	// Abandon drops the claim so the next attempt starts fresh.
	Abandon(ctx context.Context, key string) error
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeader copies a response header, dropping fields the transport owns.
func storableHeader(header http.Header) http.Header {
	stored := make(http.Header, len(header))
	for name, values := range header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Date", "Connection", "Transfer-Encoding":
			continue
		}
		stored[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return stored
}

func cloneResponse(resp Response) Response {
	cloned := Response{Status: resp.Status, Header: make(http.Header, len(resp.Header))}
	for name, values := range resp.Header {
		cloned.Header[name] = append([]string(nil), values...)
	}
	if len(resp.Body) > 0 {
		cloned.Body = append([]byte(nil), resp.Body...)
	}
	return cloned
}
