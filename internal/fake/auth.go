package fake

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"

	"github.com/kraal-market/client/internal/platform/httpx"
)

const tokenIssuer = "kraal-fake"

// userRecord is one account row. ScalarRole marks legacy accounts whose
// profile serialises roles as a bare string instead of an array.
type userRecord struct {
	ID         string
	Email      string
	Phone      string
	Password   string
	FirstName  string
	LastName   string
	Roles      []string
	ScalarRole bool
	Verified   bool
	AvatarURL  string
	CreatedAt  time.Time
}

func (u *userRecord) hasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *userRecord) displayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func (s *Server) authRoutes(r chi.Router) {
	r.Post("/login", s.login)
	r.Post("/register", s.register)
	r.Post("/refresh", s.refresh)
	r.Group(func(g chi.Router) {
		g.Use(s.requireAuth)
		g.Get("/me", s.me)
		g.Post("/logout", s.logout)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	s.mu.Lock()
	user := s.users[s.emailIndex[email]]
	if user == nil || user.Password != body.Password {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
		return
	}
	refresh := s.issueRefreshLocked(user.ID)
	view := profileViewOf(user)
	userID := user.ID
	s.mu.Unlock()

	access, err := s.mintAccessToken(userID)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("token_mint_failed", "could not mint access token", http.StatusInternalServerError))
		return
	}

	// Login reports the access token as "token"; refresh uses "access_token".
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"token":         access,
		"refresh_token": refresh,
		"user":          view,
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email     string   `json:"email"`
		Phone     string   `json:"phone"`
		Password  string   `json:"password"`
		FirstName string   `json:"first_name"`
		LastName  string   `json:"last_name"`
		Roles     []string `json:"roles"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	switch {
	case !strings.Contains(email, "@"):
		writeValidationError(r.Context(), w, "a valid email is required")
		return
	case len(body.Password) < 6:
		writeValidationError(r.Context(), w, "password must be at least 6 characters")
		return
	}

	roles := make([]string, 0, len(body.Roles))
	for _, role := range body.Roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []string{"buyer"}
	}

	s.mu.Lock()
	if _, taken := s.emailIndex[email]; taken {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("email_taken", fmt.Sprintf("%s already has an account", email), http.StatusConflict))
		return
	}
	user := &userRecord{
		ID:        newID("usr"),
		Email:     email,
		Phone:     strings.TrimSpace(body.Phone),
		Password:  body.Password,
		FirstName: strings.TrimSpace(body.FirstName),
		LastName:  strings.TrimSpace(body.LastName),
		Roles:     roles,
		CreatedAt: s.now(),
	}
	s.users[user.ID] = user
	s.emailIndex[email] = user.ID
	refresh := s.issueRefreshLocked(user.ID)
	view := profileViewOf(user)
	s.mu.Unlock()

	access, err := s.mintAccessToken(user.ID)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("token_mint_failed", "could not mint access token", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"token":         access,
		"refresh_token": refresh,
		"user":          view,
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	token := strings.TrimSpace(body.RefreshToken)

	s.mu.Lock()
	userID, ok := s.refreshIndex[token]
	if !ok {
		s.mu.Unlock()
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_refresh", "refresh token is not recognised", http.StatusUnauthorized))
		return
	}
	// Refresh tokens are single use: each exchange retires the old one.
	delete(s.refreshIndex, token)
	next := s.issueRefreshLocked(userID)
	s.mu.Unlock()

	access, err := s.mintAccessToken(userID)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("token_mint_failed", "could not mint access token", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": next,
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	user, ok := s.users[userID]
	var view profileView
	if ok {
		view = profileViewOf(user)
	}
	s.mu.Unlock()

	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthorized", "account no longer exists", http.StatusUnauthorized))
		return
	}
	writeJSONResponse(w, http.StatusOK, view)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	userID := identityFromContext(r.Context())

	s.mu.Lock()
	for token, owner := range s.refreshIndex {
		if owner == userID {
			delete(s.refreshIndex, token)
		}
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mintAccessToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

var accessTokenParser = jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

func (s *Server) verifyAccessToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := accessTokenParser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return "", err
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("access token has no subject")
	}
	return subject, nil
}

// issueRefreshLocked mints and indexes a single-use refresh token. Callers
// hold s.mu.
func (s *Server) issueRefreshLocked(userID string) string {
	token := newID("rt")
	s.refreshIndex[token] = userID
	return token
}

type profileView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Roles     any    `json:"roles"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at,omitempty"`
}

func profileViewOf(user *userRecord) profileView {
	view := profileView{
		ID:        user.ID,
		Email:     user.Email,
		Phone:     user.Phone,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Verified:  user.Verified,
		CreatedAt: renderTime(user.CreatedAt),
	}
	if user.ScalarRole && len(user.Roles) > 0 {
		// Accounts registered before multi-role support.
		view.Roles = user.Roles[0]
	} else {
		view.Roles = user.Roles
	}
	return view
}
