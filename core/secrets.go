package core

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const magicLinkTokenBytes = 32

// NewMagicLinkToken returns 256 bits of cryptographically secure randomness
// as a 64-character hex string.
func NewMagicLinkToken() (string, error) {
	buf := make([]byte, magicLinkTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewSMSOTP returns a 6-digit code drawn uniformly from 100000-999999
// using the crypto random source.
func NewSMSOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashSecret returns the hex SHA-256 digest of a raw secret. This is the
// only representation the token store ever sees.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
