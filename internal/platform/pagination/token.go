package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the state hidden inside a page token. Offset counts items from
// the start of the ordered collection.
type Cursor struct {
	Offset int `json:"offset"`
}

// EncodeToken renders the cursor as an opaque URL-safe string. The zero
// cursor encodes as "" so first pages never carry a token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.Offset <= 0 {
		return "", nil
	}
	payload, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeToken reverses EncodeToken. Anything that does not round-trip
// through it, including a negative offset, fails with ErrInvalidPageToken.
func DecodeToken(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: not base64", ErrInvalidPageToken)
	}
	var cursor Cursor
	if err := json.Unmarshal(payload, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed payload", ErrInvalidPageToken)
	}
	if cursor.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor, nil
}
