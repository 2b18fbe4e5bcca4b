// Package storage provides the persistent key-value bridge that keeps client
// state (session token, cached profile, cart) across process restarts. Values
// are opaque byte slices; JSON helpers layer typed access on top and treat any
// corrupted payload as absent rather than failing.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// Well-known bridge keys shared by the session, cart, and API layers.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeyCart         = "cart"
	KeyGuestCart    = "guest_cart"
)

// ErrInvalidKey is returned when a key contains characters that cannot be
// persisted safely.
var ErrInvalidKey = errors.New("storage: invalid key")

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Bridge is the minimal persistence contract the state stores depend on.
// Reads never fail: a missing, unreadable, or invalid entry reports ok=false.
type Bridge interface {
	Read(key string) (value []byte, ok bool)
	Write(key string, value []byte) error
	Delete(key string)
}

// ReadJSON decodes the value stored under key into out. It returns false when
// the key is absent or the stored payload does not decode, leaving out
// untouched in the absent case.
func ReadJSON(b Bridge, key string, out any) bool {
	raw, ok := b.Read(key)
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	return true
}

// WriteJSON encodes v as JSON and stores it under key.
func WriteJSON(b Bridge, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return b.Write(key, raw)
}

func validKey(key string) bool {
	return keyPattern.MatchString(key)
}
