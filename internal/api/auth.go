package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kraal-market/client/internal/domain"
)

// ErrInvalidCredentials flags login input the client can reject without a
// network call.
var ErrInvalidCredentials = errors.New("api client: email and password are required")

// Credentials carry a login attempt.
type Credentials struct {
	Email    string
	Password string
}

// RegisterInput carries a new account registration.
type RegisterInput struct {
	Email     string
	Phone     string
	Password  string
	FirstName string
	LastName  string
	Roles     []domain.Role
}

// Login exchanges credentials for a token pair, persists the pair, and
// returns the authenticated profile. Any cached data from a previous identity
// is dropped.
func (c *Client) Login(ctx context.Context, creds Credentials) (domain.UserProfile, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		return domain.UserProfile{}, ErrInvalidCredentials
	}

	var payload authPayload
	req := apiRequest{
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     map[string]string{"email": email, "password": creds.Password},
		skipAuth: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.UserProfile{}, fmt.Errorf("auth: login: %w", err)
	}

	if err := c.adoptSession(payload); err != nil {
		return domain.UserProfile{}, err
	}
	return payload.User.toDomain(), nil
}

// Register creates an account and signs it in, persisting the returned pair.
func (c *Client) Register(ctx context.Context, input RegisterInput) (domain.UserProfile, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return domain.UserProfile{}, ErrInvalidCredentials
	}

	roles := make([]string, 0, len(input.Roles))
	for _, role := range input.Roles {
		roles = append(roles, string(role))
	}
	body := map[string]any{
		"email":      email,
		"phone":      strings.TrimSpace(input.Phone),
		"password":   input.Password,
		"first_name": strings.TrimSpace(input.FirstName),
		"last_name":  strings.TrimSpace(input.LastName),
		"roles":      roles,
	}

	var payload authPayload
	req := apiRequest{
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     body,
		skipAuth: true,
	}
	if err := c.do(ctx, req, &payload); err != nil {
		return domain.UserProfile{}, fmt.Errorf("auth: register: %w", err)
	}

	if err := c.adoptSession(payload); err != nil {
		return domain.UserProfile{}, err
	}
	return payload.User.toDomain(), nil
}

// Me fetches the authenticated profile. Results are cached under the profile
// tag until a mutation or an explicit invalidation drops them.
func (c *Client) Me(ctx context.Context) (domain.UserProfile, error) {
	return Cached(ctx, c.cache, "auth/me", []Tag{TagProfile}, func(ctx context.Context) (domain.UserProfile, error) {
		var payload profilePayload
		req := apiRequest{method: http.MethodGet, path: "/auth/me"}
		if err := c.do(ctx, req, &payload); err != nil {
			return domain.UserProfile{}, fmt.Errorf("auth: me: %w", err)
		}
		return payload.toDomain(), nil
	})
}

// Logout tells the backend to revoke the session, then unconditionally drops
// local credentials and cached data. A failing revoke call does not keep the
// client signed in.
func (c *Client) Logout(ctx context.Context) error {
	req := apiRequest{method: http.MethodPost, path: "/auth/logout"}
	err := c.do(ctx, req, nil)

	c.tokens.Clear()
	c.cache.Reset()

	if err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// adoptSession persists a fresh token pair and resets identity-scoped cache state.
func (c *Client) adoptSession(payload authPayload) error {
	access := payload.accessToken()
	if access == "" {
		return errRefreshMissingToken
	}
	if err := c.tokens.Save(access, payload.RefreshToken); err != nil {
		return fmt.Errorf("auth: persist tokens: %w", err)
	}
	c.cache.Reset()
	return nil
}

type authPayload struct {
	tokenPairPayload
	User profilePayload `json:"user"`
}
