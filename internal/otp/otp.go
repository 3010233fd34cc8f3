// Package otp issues and checks short-lived numeric codes used to prove
// ownership of an email address.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/yukikurage/hive/internal/constants"
)

const verifiedCode = "verified"

var (
	ErrNotFound = errors.New("no OTP found for this email")
	ErrExpired  = errors.New("OTP has expired")
	ErrInvalid  = errors.New("invalid OTP")
)

// Entry is what a Store keeps per key.
type Entry struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Outcome is the result of Store.Consume.
type Outcome int

const (
	OutcomeMissing Outcome = iota
	OutcomeMatched
	OutcomeMismatched
)

// Store is a keyed TTL store. Implementations may drop entries after
// ExpiresAt, but the Verifier never relies on it.
type Store interface {
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	// Consume atomically compares code with the entry at key. A match removes
	// the entry. A mismatch counts a failed attempt and removes the entry once
	// maxAttempts failures are reached. The returned entry is the state before
	// the call.
	Consume(ctx context.Context, key, code string, maxAttempts int) (Entry, Outcome, error)
}

type Verifier struct {
	store       Store
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	rand        io.Reader
}

type Option func(*Verifier)

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(v *Verifier) { v.ttl = ttl }
}

// WithMaxAttempts sets how many wrong codes burn an issued code.
func WithMaxAttempts(n int) Option {
	return func(v *Verifier) { v.maxAttempts = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithRand overrides the randomness source used for codes.
func WithRand(r io.Reader) Option {
	return func(v *Verifier) { v.rand = r }
}

func NewVerifier(store Store, opts ...Option) *Verifier {
	v := &Verifier{
		store:       store,
		ttl:         constants.OTPTTL,
		maxAttempts: constants.OTPMaxAttempts,
		now:         time.Now,
		rand:        rand.Reader,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue generates a new code for email, replacing any previous one.
func (v *Verifier) Issue(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(v.rand, big.NewInt(constants.OTPMax-constants.OTPMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	code := strconv.FormatInt(n.Int64()+constants.OTPMin, 10)

	entry := Entry{Code: code, ExpiresAt: v.now().Add(v.ttl)}
	if err := v.store.Put(ctx, codeKey(email), entry); err != nil {
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}

	return code, nil
}

// Verify checks code against the stored one. A match consumes the code;
// too many wrong codes burn it.
func (v *Verifier) Verify(ctx context.Context, email, code string) error {
	outcome, err := v.consume(ctx, codeKey(email), strings.TrimSpace(code), v.maxAttempts)
	if err != nil {
		return err
	}
	if outcome == OutcomeMismatched {
		return ErrInvalid
	}
	return nil
}

// MarkVerified records that email passed verification, for the same
// lifetime as a code.
func (v *Verifier) MarkVerified(ctx context.Context, email string) error {
	entry := Entry{Code: verifiedCode, ExpiresAt: v.now().Add(v.ttl)}
	if err := v.store.Put(ctx, verifiedKey(email), entry); err != nil {
		return fmt.Errorf("failed to store verification: %w", err)
	}
	return nil
}

// ConsumeVerified reports whether email carries a live verified marker and
// removes it.
func (v *Verifier) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	_, err := v.consume(ctx, verifiedKey(email), verifiedCode, 1)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Check accepts a valid code, or a verified marker when no code is given or
// the code was already consumed by an earlier verification.
func (v *Verifier) Check(ctx context.Context, email, code string) error {
	if strings.TrimSpace(code) != "" {
		err := v.Verify(ctx, email, code)
		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	ok, err := v.ConsumeVerified(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// consume takes the entry at key in one store step. An expired entry is
// reported as such whatever the submitted code.
func (v *Verifier) consume(ctx context.Context, key, code string, maxAttempts int) (Outcome, error) {
	entry, outcome, err := v.store.Consume(ctx, key, code, maxAttempts)
	if err != nil {
		return OutcomeMissing, fmt.Errorf("failed to consume OTP: %w", err)
	}
	if outcome == OutcomeMissing {
		return outcome, ErrNotFound
	}

	if !v.now().Before(entry.ExpiresAt) {
		if err := v.store.Delete(ctx, key); err != nil {
			return outcome, fmt.Errorf("failed to remove expired OTP: %w", err)
		}
		return outcome, ErrExpired
	}

	return outcome, nil
}

func codesEqual(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// NormalizeEmail lower-cases and trims an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func codeKey(email string) string {
	return "code:" + NormalizeEmail(email)
}

func verifiedKey(email string) string {
	return "verified:" + NormalizeEmail(email)
}
