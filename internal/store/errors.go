package store

import "errors"

// Sentinel errors returned by the repositories in this package. Callers
// should compare with errors.Is, since every repository method wraps the
// underlying driver error with additional context via fmt.Errorf's %w.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrAccountEmailNotSet  = errors.New("account has no email configured")
	ErrInvalidInput        = errors.New("invalid input")
	ErrPrivateCodeExhausted = errors.New("failed to generate a unique private code")
)
