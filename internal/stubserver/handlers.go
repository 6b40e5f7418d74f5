package stubserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/market-session/internal/domain"
)

const (
	refreshCookieName = "refreshToken"
	claimsKey         = "auth_claims"
)

// Handler exposes the stub backend's HTTP endpoints.
type Handler struct {
	store  *Store
	tokens *TokenManager
	logger *zap.Logger
}

// NewHandler constructs the handler.
func NewHandler(store *Store, tokens *TokenManager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email               string `json:"email"`
	PasswordHash        string `json:"passwordHash"`
	RegularRegistration bool   `json:"regularRegistration"`
}

type merchantsRequest struct {
	Distance float64 `json:"distance"`
	UserLat  float64 `json:"userLat"`
	UserLon  float64 `json:"userLon"`
}

// Login handles POST /users/login: verify credentials, set the httpOnly
// refresh cookie and return a fresh access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "email required")
	}

	profile, err := h.store.Authenticate(req.Email, req.PasswordHash, req.RegularRegistration)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
	}

	token, err := h.tokens.GenerateToken(profile.Email, profile.Role)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token generation failed")
	}

	h.setRefreshCookie(c, h.store.CreateSession(profile.Email))
	h.logger.Info("login", zap.String("email", profile.Email))
	return c.JSON(fiber.Map{"accessToken": token})
}

// Refresh handles POST /users/refresh: exchange the refresh cookie for a new
// access token. No bearer header is involved.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	cookie := c.Cookies(refreshCookieName)
	if cookie == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing refresh cookie")
	}
	email, ok := h.store.SessionEmail(cookie)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unknown session")
	}
	profile, ok := h.store.UserByEmail(email)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unknown account")
	}

	token, err := h.tokens.GenerateToken(profile.Email, profile.Role)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token generation failed")
	}
	return c.JSON(fiber.Map{"accessToken": token})
}

// Me handles GET /users/me: return the profile along with a re-minted access
// token.
func (h *Handler) Me(c *fiber.Ctx) error {
	claims, ok := claimsFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	profile, ok := h.store.UserByEmail(claims.Email)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unknown account")
	}

	token, err := h.tokens.GenerateToken(profile.Email, profile.Role)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token generation failed")
	}
	return c.JSON(fiber.Map{"user": profile, "accessToken": token})
}

// Logout handles POST /users/logout: invalidate the session and expire the
// refresh cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if cookie := c.Cookies(refreshCookieName); cookie != "" {
		h.store.DeleteSession(cookie)
	}
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"code": http.StatusOK, "message": "logged out"})
}

// UpdateUser handles POST /users/update.
func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	claims, ok := claimsFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}

	var upd domain.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	// accounts may only update themselves
	upd.Email = claims.Email

	if err := h.store.UpdateUser(upd); err != nil {
		return fiber.NewError(http.StatusBadRequest, "update failed")
	}
	return c.JSON(fiber.Map{"code": http.StatusOK, "message": "updated"})
}

// MerchantsWithinRange handles POST /merchants/getMerchantAndFoodItemsWithinRange.
// The fixture catalogue is small, so every merchant counts as in range.
func (h *Handler) MerchantsWithinRange(c *fiber.Ctx) error {
	if _, ok := claimsFromContext(c); !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}

	var req merchantsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	return c.JSON(fiber.Map{
		"code":    http.StatusOK,
		"message": "ok",
		"vo":      h.store.Merchants(),
	})
}

func (h *Handler) setRefreshCookie(c *fiber.Ctx, session string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookieName,
		Value:    session,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// AuthMiddleware validates bearer tokens on protected routes.
func AuthMiddleware(tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(http.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := tokens.ParseToken(parts[1])
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func claimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}
