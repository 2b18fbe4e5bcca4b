// Package textutil holds small string-shaping helpers shared across the
// client, mostly for cleaning externally supplied key/value input.
package textutil

import "strings"

// NormalizeStringMap trims every key and value and drops entries whose key is
// empty after trimming. A map with nothing left, or an empty input, comes back
// as nil so callers can treat "no overrides" and "only blank overrides" the
// same way.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		normalized[key] = strings.TrimSpace(value)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
