package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return id, nil
}

func authPayload(res *service.AuthResult) echo.Map {
	return echo.Map{"user": res.User, "token": res.Token}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return failed(l, "register_error", err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.CookieName, res.Token, "/", res.ExpiresAt))
	l.Info("register_success", "user_id", res.User.ID)
	return respond(c, http.StatusCreated, authPayload(res), "User registered successfully")
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return failed(l, "login_error", err)
	}

	c.SetCookie(tokens.CreateCookie(tokens.CookieName, res.Token, "/", res.ExpiresAt))
	l.Info("login_success", "user_id", res.User.ID)
	return respond(c, http.StatusOK, authPayload(res), "Login successful")
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	p, _ := authmw.PrincipalFrom(c)
	if err := h.Svc.Logout(ctx, p); err != nil {
		return failed(l, "logout_error", err)
	}

	c.SetCookie(tokens.DeleteCookie(tokens.CookieName, "/"))
	l.Info("logout_success")
	return respond(c, http.StatusOK, nil, "Logged out successfully")
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.Me(ctx, userID)
	if err != nil {
		return failed(l, "me_error", err)
	}
	return respond(c, http.StatusOK, user, "")
}
