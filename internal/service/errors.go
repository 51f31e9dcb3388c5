package service

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/store"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrForbidden    = errors.New("forbidden")    // 403
	ErrNotFound     = errors.New("not found")    // 404
	ErrConflict     = errors.New("conflict")     // 409
)

// Error carries a caller-facing message and unwraps to one of the kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// fromStore maps generic persistence failures; anything unrecognised is
// returned wrapped so it surfaces as an internal error.
func fromStore(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fail(ErrNotFound, "Record not found")
	case errors.Is(err, store.ErrDuplicate):
		return fail(ErrConflict, "A record with this value already exists")
	case errors.Is(err, store.ErrReferenced):
		return fail(ErrValidation, "Invalid reference to related record")
	case errors.Is(err, store.ErrContention):
		return fail(ErrConflict, "Concurrent update, please retry")
	case errors.Is(err, store.ErrInsufficientStock):
		return fail(ErrConflict, "Insufficient stock")
	}
	return fmt.Errorf("%s: %w", op, err)
}
