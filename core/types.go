package core

import (
	"errors"
	"fmt"
	"time"
)

// Method identifies the out-of-band channel a secret was issued over.
type Method string

const (
	MethodMagicLink Method = "magic_link"
	MethodSMSOTP    Method = "sms_otp"
)

// Trust levels carried in credentials. Level 1 (anonymous) is never
// materialized as a credential.
const (
	LevelVerified  = 2 // birth date confirmed against a delivered secret
	LevelElevated  = 3 // address factor confirmed
	LevelConfirmed = 4 // OTP re-confirmed for a single sensitive action
)

// AuthToken is one issued, not-yet-redeemed secret. Only the SHA-256 hash
// of the secret is ever stored; the raw value exists only in transit to the
// delivery channel.
type AuthToken struct {
	TokenHash string    `json:"token_hash"`
	PatientID string    `json:"patient_id"`
	Method    Method    `json:"method"`
	Action    string    `json:"action,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Used      bool      `json:"used"`
	Attempts  int       `json:"attempts"`
}

// Address is the postal address on file for a patient.
type Address struct {
	PostalCode string   `json:"postal_code"`
	City       string   `json:"city"`
	Lines      []string `json:"lines"`
}

// Patient is the slice of registry data this module depends on.
type Patient struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD
	Address   Address `json:"address"`
}

var (
	ErrNotFound          = errors.New("token not found")
	ErrUsed              = errors.New("token already used")
	ErrInvalidToken      = errors.New("invalid token")
	ErrInvalidMethod     = errors.New("unsupported method")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidAction     = errors.New("invalid action")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInsufficientLevel = errors.New("credential level too low")
	ErrNoFactor          = errors.New("no verification factor supplied")
	ErrMaxAttempts       = errors.New("too many failed attempts")
)

// RateLimitError reports a denied initiation and when retry becomes possible.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter)
}

// BirthDateError reports a failed birth-date check against a live token.
type BirthDateError struct {
	AttemptsRemaining int
}

func (e *BirthDateError) Error() string {
	return fmt.Sprintf("birth date mismatch, %d attempts remaining", e.AttemptsRemaining)
}

// FactorError names the address factor that failed during elevation.
type FactorError struct {
	Factor string
}

func (e *FactorError) Error() string {
	return fmt.Sprintf("factor %q did not match", e.Factor)
}

// LevelError reports an elevation request that cannot raise the level.
type LevelError struct {
	Current int
}

func (e *LevelError) Error() string {
	return fmt.Sprintf("already at level %d", e.Current)
}
