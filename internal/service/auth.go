package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
	"github.com/google/uuid"
)

const minPasswordLen = 6

type AuthService struct {
	Store     store.Store
	JWTSecret []byte
	TokenTTL  time.Duration
	Events    events.Publisher
}

type RegisterInput struct {
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
}

type AuthResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fail(ErrValidation, "Please provide a valid email")
	}
	if len(in.Password) < minPasswordLen {
		return nil, fail(ErrValidation, "Password must be at least %d characters long", minPasswordLen)
	}

	role := models.RoleCustomer
	if strings.TrimSpace(in.Role) != "" {
		r, err := models.ParseRole(in.Role)
		if err != nil {
			return nil, fail(ErrValidation, "Role must be either ADMIN or CUSTOMER")
		}
		role = r
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if role == models.RoleAdmin {
		admins, err := tx.Accounts().CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return nil, fromStore(err, "count admins")
		}
		if admins > 0 {
			return nil, fail(ErrForbidden, "Admin registration is not allowed")
		}
	}

	if _, err := tx.Accounts().FindByEmail(ctx, email); err == nil {
		return nil, fail(ErrConflict, "User with this email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fromStore(err, "find account")
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
	}
	err = tx.Accounts().Create(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fail(ErrConflict, "User with this email already exists")
	}
	if err != nil {
		return nil, fromStore(err, "create account")
	}
	if err := tx.Commit(); err != nil {
		return nil, fromStore(err, "commit account")
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AccountEvent{
		Type:   events.UserRegistered,
		UserID: user.ID.String(),
		Email:  user.Email,
		At:     time.Now().UTC(),
	})
	return res, nil
}

// Login checks the password before the block flag so a blocked status is
// only disclosed to the account owner.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.Store.Accounts().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return nil, fromStore(err, "find account")
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, fail(ErrUnauthorized, "Invalid credentials")
	}
	if user.IsBlocked {
		return nil, fail(ErrUnauthorized, blockedMessage)
	}
	return s.issue(user)
}

// Logout revokes the token's jti until the token would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, p *tokens.Principal) error {
	if p == nil || p.Claims == nil || p.Claims.ID == "" {
		return fail(ErrUnauthorized, "Invalid token")
	}
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return fail(ErrUnauthorized, "Invalid token")
	}
	exp := time.Now().Add(s.ttl())
	if p.Claims.ExpiresAt != nil {
		exp = p.Claims.ExpiresAt.Time
	}
	err = s.Store.Tokens().Revoke(ctx, &models.RevokedToken{JTI: p.Claims.ID, UserID: userID, ExpiresAt: exp.UTC()})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fromStore(err, "revoke token")
	}

	if n, err := s.Store.Tokens().PurgeExpired(ctx, time.Now().UTC()); err != nil {
		logging.FromContext(ctx).Warn("purge_revoked_error", "error", err)
	} else if n > 0 {
		logging.FromContext(ctx).Debug("purge_revoked", "count", n)
	}
	return nil
}

// Verify resolves verified claims into a principal, reading role and block
// state from the current account rather than from the token.
func (s *AuthService) Verify(ctx context.Context, claims *tokens.AccessClaims) (*tokens.Principal, error) {
	if claims.ID != "" {
		revoked, err := s.Store.Tokens().IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fromStore(err, "check revoked")
		}
		if revoked {
			return nil, fail(ErrUnauthorized, "Token has been revoked")
		}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fail(ErrUnauthorized, "Invalid token")
	}
	user, err := s.Store.Accounts().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "User not found")
	}
	if err != nil {
		return nil, fromStore(err, "get account")
	}

	return &tokens.Principal{
		UserID:  user.ID.String(),
		Email:   user.Email,
		Role:    string(user.Role),
		Blocked: user.IsBlocked,
		Claims:  claims,
	}, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.Store.Accounts().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fromStore(err, "get account")
	}
	return user, nil
}

func (s *AuthService) ttl() time.Duration {
	if s.TokenTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TokenTTL
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	exp := time.Now().Add(s.ttl())
	token, _, err := tokens.NewAccessToken(s.JWTSecret, user.ID.String(), user.Email, string(user.Role), exp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) publish(ctx context.Context, ev events.AccountEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, events.TopicUsers, ev.UserID, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", events.TopicUsers, "error", err)
	}
}
