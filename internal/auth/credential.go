package auth

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CredentialStore holds the current access credential in memory. The token is
// never written to durable storage; a process restart always starts empty and
// relies on the bootstrap refresh.
type CredentialStore struct {
	mu     sync.RWMutex
	token  string
	logger *zap.Logger

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewCredentialStore builds an empty store.
func NewCredentialStore(logger *zap.Logger) *CredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialStore{logger: logger, now: time.Now}
}

// Set stores the raw token string, replacing any prior value.
func (s *CredentialStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Get returns the stored token, or the empty string when none is held.
func (s *CredentialStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear discards the token.
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// IsValid reports whether a token is stored and its expiry claim lies in the
// future. A malformed token or a missing expiry claim counts as invalid.
func (s *CredentialStore) IsValid() bool {
	token := s.Get()
	if token == "" {
		return false
	}

	expiry, err := decodeExpiry(token)
	if err != nil {
		s.logger.Warn("failed to decode access token expiry", zap.Error(err))
		return false
	}
	return s.now().Before(expiry)
}

// decodeExpiry extracts the exp claim without verifying the signature; the
// client holds no key material, the server re-validates every call anyway.
func decodeExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, jwt.ErrTokenRequiredClaimMissing
	}
	return exp.Time, nil
}
