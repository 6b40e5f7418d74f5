package stubserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
)

func newTestApp(t *testing.T) (*fiber.App, *Store) {
	t.Helper()
	store, err := NewStore(4) // minimal bcrypt cost keeps the test fast
	require.NoError(t, err)
	tokens := NewTokenManager("test-secret", 15)
	handler := NewHandler(store, tokens, zap.NewNop())
	hub := NewHub(store, zap.NewNop())

	app := fiber.New()
	RegisterRoutes(app, handler, hub, tokens)
	return app, store
}

func postJSON(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func loginCustomer(t *testing.T, app *fiber.App) (accessToken, refreshCookie string) {
	t.Helper()
	req := postJSON(t, "/users/login", map[string]any{
		"email":        "customer@example.com",
		"passwordHash": "customer-pass",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.AccessToken)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == refreshCookieName {
			assert.True(t, cookie.HttpOnly)
			return body.AccessToken, cookie.Value
		}
	}
	t.Fatal("refresh cookie not set")
	return "", ""
}

func TestLoginIssuesTokenAndCookie(t *testing.T) {
	app, _ := newTestApp(t)
	token, cookie := loginCustomer(t, app)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, cookie)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app, _ := newTestApp(t)

	req := postJSON(t, "/users/login", map[string]any{
		"email":        "customer@example.com",
		"passwordHash": "wrong",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshRequiresCookie(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(postJSON(t, "/users/refresh", map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshWithCookieReturnsNewToken(t *testing.T) {
	app, _ := newTestApp(t)
	_, cookie := loginCustomer(t, app)

	req := postJSON(t, "/users/refresh", map[string]any{})
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: cookie})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.AccessToken)
}

func TestMeRequiresBearer(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/users/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeReturnsProfileAndFreshToken(t *testing.T) {
	app, _ := newTestApp(t)
	token, _ := loginCustomer(t, app)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		User        domain.UserProfile `json:"user"`
		AccessToken string             `json:"accessToken"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "customer@example.com", body.User.Email)
	assert.Equal(t, domain.RoleCustomer, body.User.Role)
	assert.NotEmpty(t, body.AccessToken)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	app, _ := newTestApp(t)
	_, cookie := loginCustomer(t, app)

	req := postJSON(t, "/users/logout", map[string]any{})
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: cookie})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the session is gone, the old cookie no longer refreshes
	refreshReq := postJSON(t, "/users/refresh", map[string]any{})
	refreshReq.AddCookie(&http.Cookie{Name: refreshCookieName, Value: cookie})
	refreshResp, err := app.Test(refreshReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, refreshResp.StatusCode)
}

func TestMerchantsWithinRangeReturnsFixtures(t *testing.T) {
	app, _ := newTestApp(t)
	token, _ := loginCustomer(t, app)

	req := postJSON(t, "/merchants/getMerchantAndFoodItemsWithinRange", map[string]any{
		"distance": 10, "userLat": 52.52, "userLon": 13.40,
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Code      int               `json:"code"`
		Merchants []domain.Merchant `json:"vo"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, http.StatusOK, body.Code)
	require.NotEmpty(t, body.Merchants)
	assert.NotEmpty(t, body.Merchants[0].FoodList)
}

func TestUpdateUserTargetsAuthenticatedAccount(t *testing.T) {
	app, store := newTestApp(t)
	token, _ := loginCustomer(t, app)

	req := postJSON(t, "/users/update", map[string]any{
		"email": "someone-else@example.com",
		"name":  "Casey Renamed",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	profile, ok := store.UserByEmail("customer@example.com")
	require.True(t, ok)
	assert.Equal(t, "Casey Renamed", profile.Name)
}

func TestHubRandomBatchTargetsKnownMerchant(t *testing.T) {
	_, store := newTestApp(t)
	hub := NewHub(store, zap.NewNop())

	batch := hub.randomBatch()
	require.Len(t, batch, 1)

	found := false
	for _, m := range store.Merchants() {
		if m.ID == batch[0].MerchantID {
			found = true
		}
	}
	assert.True(t, found)
	assert.Greater(t, batch[0].FinalPrice, 0.0)
	assert.Less(t, batch[0].FinalPrice, batch[0].OriginalPrice)
}
