package session

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/api"
	"github.com/spec-kit/market-session/internal/auth"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/prefs"
)

// Service drives the session lifecycle: login, bootstrap restore, profile
// updates and logout. It is the only writer of the broadcaster's cells.
type Service struct {
	api         *api.Client
	creds       *auth.CredentialStore
	broadcaster *Broadcaster
	dispatcher  events.Dispatcher
	prefs       prefs.Store
	logger      *zap.Logger
}

// NewService wires the service and subscribes it to session-expired events so
// a failed refresh anywhere in the process forces a local logout.
func NewService(client *api.Client, creds *auth.CredentialStore, broadcaster *Broadcaster, dispatcher events.Dispatcher, store prefs.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		api:         client,
		creds:       creds,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
		prefs:       store,
		logger:      logger,
	}
	if dispatcher != nil {
		dispatcher.Subscribe(events.EventSessionExpired, func(ctx context.Context, _ events.Event) error {
			s.forceLogout(ctx)
			return nil
		})
	}
	return s
}

// Login authenticates with email and password hash, stores the issued
// credential and loads the profile.
func (s *Service) Login(ctx context.Context, email, passwordHash string) error {
	return s.login(ctx, email, passwordHash, false)
}

// GoogleLogin authenticates a federated account; no password hash is sent.
func (s *Service) GoogleLogin(ctx context.Context, email string) error {
	return s.login(ctx, email, "", true)
}

func (s *Service) login(ctx context.Context, email, passwordHash string, regularRegistration bool) error {
	token, err := s.api.Login(ctx, email, passwordHash, regularRegistration)
	if err != nil {
		return err
	}
	s.creds.Set(token)

	profile, err := s.fetchCurrentUser(ctx)
	if err != nil {
		s.creds.Clear()
		return err
	}

	s.logger.Info("logged in", zap.String("email", profile.Email), zap.String("role", string(profile.Role)))
	s.publish(ctx, events.New(events.EventLoggedIn, events.LoggedInPayload{Profile: *profile}))
	return nil
}

// Bootstrap restores the session at process start using only the refresh
// cookie. Failure is silent: the app simply starts logged out, no
// session-expired event is raised. BootstrapLoading is lowered when the
// attempt resolves either way.
func (s *Service) Bootstrap(ctx context.Context) {
	s.broadcaster.BootstrapLoading.Set(true)
	defer s.broadcaster.BootstrapLoading.Set(false)

	s.restoreLocation(ctx)

	token, err := s.api.Refresh(ctx)
	if err != nil {
		s.logger.Debug("bootstrap refresh failed, starting logged out", zap.Error(err))
		return
	}
	s.creds.Set(token)

	if _, err := s.fetchCurrentUser(ctx); err != nil {
		s.logger.Warn("bootstrap profile fetch failed", zap.Error(err))
		s.creds.Clear()
		return
	}
	s.logger.Info("session restored from refresh cookie")
}

// fetchCurrentUser loads the profile, installs the re-minted token the
// endpoint returns, and flips the session cells to logged in.
func (s *Service) fetchCurrentUser(ctx context.Context) (*domain.UserProfile, error) {
	profile, token, err := s.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		s.creds.Set(token)
	}
	s.broadcaster.Profile.Set(profile)
	s.broadcaster.LoggedIn.Set(true)
	return profile, nil
}

// Logout ends the session. The backend call that clears the refresh cookie is
// best-effort; local state is cleared regardless of its outcome.
func (s *Service) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn("logout request failed", zap.Error(err))
	}
	s.clearState(ctx, events.ReasonUserLogout)
	s.logger.Info("logged out")
}

// forceLogout reacts to a failed credential refresh. Cached marketplace data
// is left in place; only session state is dropped.
func (s *Service) forceLogout(ctx context.Context) {
	s.logger.Info("session expired, clearing local session state")
	s.clearState(ctx, events.ReasonSessionExpired)
}

func (s *Service) clearState(ctx context.Context, reason string) {
	s.creds.Clear()
	s.broadcaster.Profile.Set(nil)
	s.broadcaster.LoggedIn.Set(false)
	s.broadcaster.Location.Set(nil)
	s.publish(ctx, events.New(events.EventLoggedOut, events.LoggedOutPayload{Reason: reason}))
}

// UpdateProfile submits the update and, on success, merges the changed fields
// into the profile cell.
func (s *Service) UpdateProfile(ctx context.Context, upd domain.UserUpdate) error {
	if err := s.api.UpdateUser(ctx, upd); err != nil {
		return err
	}

	current := s.broadcaster.Profile.Get()
	if current == nil {
		return nil
	}
	merged := *current
	if upd.Name != "" {
		merged.Name = upd.Name
	}
	if upd.PhoneNumber != "" {
		merged.PhoneNumber = upd.PhoneNumber
	}
	if upd.ProfilePictureURL != "" {
		merged.ProfilePictureURL = upd.ProfilePictureURL
	}
	s.broadcaster.Profile.Set(&merged)
	s.publish(ctx, events.New(events.EventProfileUpdated, merged))
	return nil
}

// SetLocation updates the location cell and persists the value so it survives
// restarts.
func (s *Service) SetLocation(ctx context.Context, loc domain.Location) {
	s.broadcaster.Location.Set(&loc)

	if s.prefs == nil {
		return
	}
	encoded, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := s.prefs.Set(ctx, prefs.KeyLocation, string(encoded)); err != nil {
		s.logger.Warn("failed to persist location", zap.Error(err))
	}
}

func (s *Service) restoreLocation(ctx context.Context) {
	if s.prefs == nil {
		return
	}
	raw, err := s.prefs.Get(ctx, prefs.KeyLocation)
	if err != nil {
		if !errors.Is(err, prefs.ErrNotFound) {
			s.logger.Warn("failed to read stored location", zap.Error(err))
		}
		return
	}
	var loc domain.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		s.logger.Warn("stored location unreadable", zap.Error(err))
		return
	}
	s.broadcaster.Location.Set(&loc)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
