package authmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/labstack/echo/v4"
)

const (
	KeyPrincipal = "principal"
	KeyUserID    = "user_id"
	KeyRole      = "role"
)

// Verifier turns valid token claims into the caller's current identity.
type Verifier interface {
	Verify(ctx context.Context, claims *tokens.AccessClaims) (*tokens.Principal, error)
}

type Auth struct {
	JWTSecret []byte
	Verifier  Verifier
}

func New(secret []byte, v Verifier) *Auth {
	return &Auth{JWTSecret: secret, Verifier: v}
}

// Token returns the bearer token, falling back to the access cookie.
func Token(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if ck, err := c.Cookie(tokens.CookieName); err == nil {
		return ck.Value
	}
	return ""
}

func (m *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		l := logging.FromContext(c.Request().Context()).With("middleware", "auth")

		raw := Token(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, m.JWTSecret)
		if err != nil || claims == nil {
			l.Warn("auth_error", "status", http.StatusUnauthorized, "reason", "invalid token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		p, err := m.Verifier.Verify(c.Request().Context(), claims)
		if err != nil {
			// the error keeps its own kind so the error handler picks the status
			l.Warn("auth_error", "reason", "verify", "error", err)
			return err
		}

		c.Set(KeyPrincipal, p)
		c.Set(KeyUserID, p.UserID)
		c.Set(KeyRole, p.Role)
		return next(c)
	}
}

func requireRole(role string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if r, _ := c.Get(KeyRole).(string); r != role {
			logging.FromContext(c.Request().Context()).Warn("auth_error",
				"status", http.StatusForbidden, "reason", "role", "have", r, "want", role)
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden resource")
		}
		return next(c)
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return requireRole("ADMIN", next)
}

// RequireCustomer must run after RequireAuth.
func RequireCustomer(next echo.HandlerFunc) echo.HandlerFunc {
	return requireRole("CUSTOMER", next)
}

func PrincipalFrom(c echo.Context) (*tokens.Principal, bool) {
	p, ok := c.Get(KeyPrincipal).(*tokens.Principal)
	return p, ok && p != nil
}
