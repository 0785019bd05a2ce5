// Package credentials hashes and verifies user passwords with bcrypt.
package credentials

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	dErrors "talentgate/pkg/domain-errors"
)

// DefaultCost keeps a single verification above ~100ms on current hardware.
const DefaultCost = 12

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	cost      int
	logger    *slog.Logger
	dummyHash []byte
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithCost overrides the bcrypt cost. Values outside bcrypt's range are clamped.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		h.cost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
	}
}

// WithLogger sets the logger used to report malformed stored hashes.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hasher) {
		h.logger = logger
	}
}

// New builds a Hasher. It precomputes a hash used to equalize timing when the
// account being verified does not exist.
func New(opts ...Option) *Hasher {
	h := &Hasher{cost: DefaultCost, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("talentgate-dummy-password"), h.cost) //nolint:errcheck // fixed short input cannot fail
	return h
}

// Hash returns a salted bcrypt hash. Two calls with the same password differ.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeValidation, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. A malformed stored hash yields
// false and a warning log instead of an error.
func (h *Hasher) Verify(ctx context.Context, password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		h.logger.WarnContext(ctx, "malformed password hash", "error", err)
	}
	return false
}

// VerifyNothing burns one comparison against a throwaway hash so that a login
// for an unknown account costs the same as one with a wrong password.
func (h *Hasher) VerifyNothing(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password)) //nolint:errcheck // result intentionally ignored
}
