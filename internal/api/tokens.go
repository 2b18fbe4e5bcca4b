package api

import (
	"strings"
	"sync"

	"github.com/kraal-market/client/internal/storage"
)

// TokenStore persists the access/refresh token pair on the bridge and caches
// it in memory so every request does not hit the filesystem.
type TokenStore struct {
	mu      sync.Mutex
	bridge  storage.Bridge
	loaded  bool
	access  string
	refresh string
}

// NewTokenStore wraps the given bridge. Tokens are read lazily on first use.
func NewTokenStore(bridge storage.Bridge) *TokenStore {
	return &TokenStore{bridge: bridge}
}

// AccessToken returns the current access token, if any.
func (s *TokenStore) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.access, s.access != ""
}

// RefreshToken returns the current refresh token, if any.
func (s *TokenStore) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.refresh, s.refresh != ""
}

// Save persists a new token pair. An empty refresh token keeps the previous
// one, since some backends rotate only the access token.
func (s *TokenStore) Save(access, refresh string) error {
	access = strings.TrimSpace(access)
	refresh = strings.TrimSpace(refresh)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if err := s.bridge.Write(storage.KeyToken, []byte(access)); err != nil {
		return err
	}
	s.access = access

	if refresh != "" {
		if err := s.bridge.Write(storage.KeyRefreshToken, []byte(refresh)); err != nil {
			return err
		}
		s.refresh = refresh
	}
	return nil
}

// Clear drops both tokens from memory and from the bridge.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.loaded = true
	s.bridge.Delete(storage.KeyToken)
	s.bridge.Delete(storage.KeyRefreshToken)
}

func (s *TokenStore) load() {
	if s.loaded {
		return
	}
	if raw, ok := s.bridge.Read(storage.KeyToken); ok {
		s.access = strings.TrimSpace(string(raw))
	}
	if raw, ok := s.bridge.Read(storage.KeyRefreshToken); ok {
		s.refresh = strings.TrimSpace(string(raw))
	}
	s.loaded = true
}
