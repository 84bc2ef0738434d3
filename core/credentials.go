package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the credential payload: who the caller is, how far up the
// trust ladder they have climbed, and which factor got them there. Action
// is set only on level-4 credentials and scopes them to a single sensitive
// action.
type Claims struct {
	Level  int    `json:"level"`
	Method string `json:"method"`
	Action string `json:"act,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and validates signed credentials. Verification is pure and
// safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an Issuer signing with HMAC-SHA256. ttl is the absolute
// credential lifetime fixed at level-2 issuance; elevation never extends it.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signing secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// IssueLevel2 mints the first credential a patient can hold, after a
// delivered secret and birth date check.
func (i *Issuer) IssueLevel2(patientID string, method Method) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		Level:  LevelVerified,
		Method: string(method),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   patientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	raw, err := i.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return raw, claims, nil
}

// Elevate mints a new credential one or more rungs above the current one.
// The subject and absolute expiry carry over unchanged; only level, method
// and issued-at are new.
func (i *Issuer) Elevate(cur *Claims, newLevel int, method, action string) (string, *Claims, error) {
	if newLevel <= cur.Level {
		return "", nil, &LevelError{Current: cur.Level}
	}
	claims := &Claims{
		Level:  newLevel,
		Method: method,
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cur.Subject,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: cur.ExpiresAt,
		},
	}
	raw, err := i.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return raw, claims, nil
}

// Verify checks signature and expiry. Level and action checks belong to
// the caller.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.Subject == "" || claims.Level < LevelVerified {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}

// ExtractBearer pulls the raw credential out of an Authorization header.
// Malformed input yields "" rather than an error.
func ExtractBearer(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (i *Issuer) sign(claims *Claims) (string, error) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return raw, nil
}
