// Package stubserver is a self-contained development backend: login with
// refresh cookies, the protected user and merchant endpoints, and a push
// stream emitting discount deltas. It exists so the client side can run
// end to end without the real marketplace services.
package stubserver

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/market-session/internal/domain"
)

// ErrInvalidCredentials is returned for unknown accounts and bad passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

type userAccount struct {
	profile      domain.UserProfile
	passwordHash string
}

// Store holds the stub backend's fixture data: user accounts, live refresh
// sessions, and the merchant catalogue the push stream mutates.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*userAccount
	sessions  map[string]string
	merchants []domain.Merchant
}

// NewStore seeds fixture accounts and merchants. The bcrypt cost applies to
// the seeded password hashes only.
func NewStore(bcryptCost int) (*Store, error) {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	s := &Store{
		users:    make(map[string]*userAccount),
		sessions: make(map[string]string),
	}

	fixtures := []struct {
		profile  domain.UserProfile
		password string
	}{
		{
			profile: domain.UserProfile{
				Email:               "customer@example.com",
				Name:                "Casey Customer",
				PhoneNumber:         "555-0101",
				Role:                domain.RoleCustomer,
				RegularRegistration: false,
			},
			password: "customer-pass",
		},
		{
			profile: domain.UserProfile{
				Email:               "merchant@example.com",
				Name:                "Morgan Merchant",
				PhoneNumber:         "555-0102",
				Role:                domain.RoleMerchant,
				RegularRegistration: false,
			},
			password: "merchant-pass",
		},
	}
	for _, f := range fixtures {
		hashed, err := bcrypt.GenerateFromPassword([]byte(f.password), bcryptCost)
		if err != nil {
			return nil, err
		}
		s.users[f.profile.Email] = &userAccount{profile: f.profile, passwordHash: string(hashed)}
	}

	s.merchants = seedMerchants()
	return s, nil
}

func seedMerchants() []domain.Merchant {
	return []domain.Merchant{
		{
			ID:          1,
			Name:        "Corner Bakery",
			AddressText: "12 Main St",
			FoodList: []domain.FoodItem{
				{ID: 101, MerchantID: 1, Name: "Sourdough Loaf", OriginalPrice: 6.5, DiscountedPrice: 3.0, QuantityAvailable: 4, Category: "bakery", Active: true},
				{ID: 102, MerchantID: 1, Name: "Cinnamon Rolls", OriginalPrice: 8.0, DiscountedPrice: 4.0, QuantityAvailable: 2, Category: "bakery", Active: true},
			},
		},
		{
			ID:          2,
			Name:        "Green Bowl",
			AddressText: "48 Market Ave",
			FoodList: []domain.FoodItem{
				{ID: 201, MerchantID: 2, Name: "Garden Salad", OriginalPrice: 9.0, DiscountedPrice: 4.5, QuantityAvailable: 3, Category: "salads", Active: true},
			},
		},
	}
}

// Authenticate verifies credentials. Federated accounts skip the password
// check; the upstream identity provider already vouched for them.
func (s *Store) Authenticate(email, passwordHash string, regularRegistration bool) (*domain.UserProfile, error) {
	s.mu.RLock()
	account, ok := s.users[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !regularRegistration {
		if err := bcrypt.CompareHashAndPassword([]byte(account.passwordHash), []byte(passwordHash)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}
	profile := account.profile
	return &profile, nil
}

// CreateSession mints a refresh session token for the account.
func (s *Store) CreateSession(email string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = email
	s.mu.Unlock()
	return token
}

// SessionEmail resolves a refresh token to its account.
func (s *Store) SessionEmail(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.sessions[token]
	return email, ok
}

// DeleteSession invalidates a refresh token.
func (s *Store) DeleteSession(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// UserByEmail returns the stored profile.
func (s *Store) UserByEmail(email string) (*domain.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.users[email]
	if !ok {
		return nil, false
	}
	profile := account.profile
	return &profile, true
}

// UpdateUser applies a partial profile update.
func (s *Store) UpdateUser(upd domain.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.users[upd.Email]
	if !ok {
		return ErrInvalidCredentials
	}
	if upd.Name != "" {
		account.profile.Name = upd.Name
	}
	if upd.PhoneNumber != "" {
		account.profile.PhoneNumber = upd.PhoneNumber
	}
	if upd.ProfilePictureURL != "" {
		account.profile.ProfilePictureURL = upd.ProfilePictureURL
	}
	return nil
}

// Merchants returns a copy of the catalogue.
func (s *Store) Merchants() []domain.Merchant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Merchant, len(s.merchants))
	copy(out, s.merchants)
	return out
}
