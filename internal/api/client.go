// Package api implements the client for the protected marketplace REST
// surface: credential attachment, failure classification, and the single
// refresh-and-replay cycle on authorization failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/auth"
	"github.com/spec-kit/market-session/internal/config"
	"github.com/spec-kit/market-session/internal/domain"
	"github.com/spec-kit/market-session/internal/events"
	"github.com/spec-kit/market-session/internal/observability"
	apierrors "github.com/spec-kit/market-session/pkg/util"
)

// Client talks to the marketplace backend. The cookie jar carries the
// httpOnly refresh cookie set by the login endpoint; the cookie stays opaque
// to this layer.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	creds       *auth.CredentialStore
	coordinator *RefreshCoordinator
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewClient builds the client and its refresh coordinator.
func NewClient(cfg config.APIConfig, creds *auth.CredentialStore, dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
			Jar:     jar,
		},
		creds:   creds,
		logger:  logger,
		metrics: metrics,
	}
	c.coordinator = NewRefreshCoordinator(c.refreshCall, creds, dispatcher, logger, metrics)
	return c
}

// Coordinator exposes the refresh coordinator for session bootstrap wiring.
func (c *Client) Coordinator() *RefreshCoordinator {
	return c.coordinator
}

type loginRequest struct {
	Email               string `json:"email"`
	PasswordHash        string `json:"passwordHash,omitempty"`
	RegularRegistration bool   `json:"regularRegistration"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type meResponse struct {
	User        domain.UserProfile `json:"user"`
	AccessToken string             `json:"accessToken"`
}

type merchantsRequest struct {
	Distance float64 `json:"distance"`
	UserLat  float64 `json:"userLat"`
	UserLon  float64 `json:"userLon"`
}

type merchantsResponse struct {
	Code      int               `json:"code"`
	Message   string            `json:"message"`
	Merchants []domain.Merchant `json:"vo"`
}

type basicResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Login exchanges credentials for an access token. The server also sets the
// httpOnly refresh cookie on this call. Login is never routed through the
// refresh-and-replay cycle.
func (c *Client) Login(ctx context.Context, email, passwordHash string, regularRegistration bool) (string, error) {
	body := loginRequest{Email: email, PasswordHash: passwordHash, RegularRegistration: regularRegistration}
	var out tokenResponse
	if err := c.dispatch(ctx, http.MethodPost, "/users/login", body, &out, c.creds.Get()); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apierrors.NewServerError(http.StatusOK, "login response missing access token")
	}
	return out.AccessToken, nil
}

// Refresh performs the raw refresh call, relying solely on the refresh
// cookie. Used by the coordinator and by the silent bootstrap attempt; it
// never carries a bearer header and is never retried.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := c.dispatch(ctx, http.MethodPost, "/users/refresh", struct{}{}, &out, ""); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", apierrors.NewServerError(http.StatusOK, "refresh response missing access token")
	}
	return out.AccessToken, nil
}

// refreshCall adapts Refresh for the coordinator.
func (c *Client) refreshCall(ctx context.Context) (string, error) {
	return c.Refresh(ctx)
}

// Me fetches the current user. The response carries a re-minted access token
// alongside the profile.
func (c *Client) Me(ctx context.Context) (*domain.UserProfile, string, error) {
	var out meResponse
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, "", err
	}
	return &out.User, out.AccessToken, nil
}

// Logout asks the backend to clear the refresh cookie. Best-effort: callers
// clear local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/users/logout", struct{}{}, nil)
}

// UpdateUser submits a partial profile update.
func (c *Client) UpdateUser(ctx context.Context, upd domain.UserUpdate) error {
	var out basicResponse
	if err := c.call(ctx, http.MethodPost, "/users/update", upd, &out); err != nil {
		return err
	}
	if out.Code != 0 && out.Code != http.StatusOK {
		return apierrors.NewServerError(out.Code, out.Message)
	}
	return nil
}

// MerchantsWithinRange fetches the merchants (with food lists) within the
// given distance of the user, for wholesale snapshot refresh.
func (c *Client) MerchantsWithinRange(ctx context.Context, km, lat, lon float64) ([]domain.Merchant, error) {
	body := merchantsRequest{Distance: km, UserLat: lat, UserLon: lon}
	var out merchantsResponse
	if err := c.call(ctx, http.MethodPost, "/merchants/getMerchantAndFoodItemsWithinRange", body, &out); err != nil {
		return nil, err
	}
	return out.Merchants, nil
}

// call dispatches a protected request: attach the credential, and on an
// authorization failure run exactly one refresh-and-replay cycle through the
// coordinator. A second authorization failure on the replay surfaces as-is.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	err := c.dispatch(ctx, method, path, body, out, c.creds.Get())
	if err == nil || !apierrors.IsUnauthorized(err) {
		return err
	}

	token, refreshErr := c.coordinator.Await(ctx)
	if refreshErr != nil {
		return refreshErr
	}

	c.metrics.RecordReplay()
	c.logger.Debug("replaying request after refresh", zap.String("path", path))
	return c.dispatch(ctx, method, path, body, out, token)
}

// dispatch performs one HTTP exchange and classifies the outcome into the
// failure taxonomy: transport problems are NetworkError, 401 is Unauthorized,
// any other non-2xx is ServerError passed through unchanged.
func (c *Client) dispatch(ctx context.Context, method, path string, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return apierrors.NewUnauthorized("unauthorized")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var msg errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&msg)
		return apierrors.NewServerError(resp.StatusCode, msg.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierrors.NewNetworkError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
