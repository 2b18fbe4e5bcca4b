package api

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/kraal-market/client/internal/domain"
)

// tokenPairPayload mirrors the credential fields returned by the auth
// endpoints. Some deployments send "token", others "access_token".
type tokenPairPayload struct {
	Token        string `json:"token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (p tokenPairPayload) accessToken() string {
	if t := strings.TrimSpace(p.Token); t != "" {
		return t
	}
	return strings.TrimSpace(p.AccessToken)
}

// profilePayload is the wire shape of a user account. The roles field arrives
// as an array on newer deployments and as a bare string on older ones.
type profilePayload struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Roles     json.RawMessage `json:"roles"`
	AvatarURL string          `json:"avatar_url"`
	Verified  bool            `json:"verified"`
	CreatedAt string          `json:"created_at"`
}

func (p profilePayload) toDomain() domain.UserProfile {
	return domain.UserProfile{
		ID:        strings.TrimSpace(p.ID),
		Email:     strings.TrimSpace(p.Email),
		Phone:     strings.TrimSpace(p.Phone),
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Roles:     parseRoles(p.Roles),
		AvatarURL: strings.TrimSpace(p.AvatarURL),
		Verified:  p.Verified,
		CreatedAt: parseTime(p.CreatedAt),
	}
}

// parseRoles accepts both wire forms: ["buyer","seller"] and "buyer".
func parseRoles(raw json.RawMessage) []domain.Role {
	if len(raw) == 0 {
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]domain.Role, 0, len(many))
		for _, value := range many {
			if role := normalizeRole(value); role != "" {
				out = append(out, role)
			}
		}
		return out
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if role := normalizeRole(one); role != "" {
			return []domain.Role{role}
		}
	}
	return nil
}

func normalizeRole(value string) domain.Role {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	return domain.Role(value)
}

// moneyFromMinor converts a wire amount in minor units plus ISO code into a
// Money value, defaulting to NGN when the code is absent or malformed.
func moneyFromMinor(minor int64, code string) domain.Money {
	unit := domain.NGN
	if trimmed := strings.TrimSpace(code); trimmed != "" {
		if parsed, err := currency.ParseISO(trimmed); err == nil {
			unit = parsed
		}
	}
	return domain.MoneyFromMinor(minor, unit)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05Z07:00"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func parseTimePtr(value string) *time.Time {
	ts := parseTime(value)
	if ts.IsZero() {
		return nil
	}
	return &ts
}
