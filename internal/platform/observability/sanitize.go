package observability

import "unicode"

const sanitizeLimit = 256

// clean strips control characters and truncates, keeping externally supplied
// strings safe to embed in log lines and span names.
func clean(value string, limit int) string {
	if limit <= 0 {
		limit = sanitizeLimit
	}
	runes := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		runes = append(runes, r)
		if len(runes) == limit {
			break
		}
	}
	return string(runes)
}

// SanitizeRoute prepares a request path for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, 180)
}

// SanitizeMethod prepares an HTTP method for logging.
func SanitizeMethod(method string) string {
	return clean(method, 10)
}

// SanitizeUserID bounds account identifiers before they reach log output.
func SanitizeUserID(id string) string {
	return clean(id, 64)
}
