package core

import (
	"net/mail"
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// NormalizeIdentifier lowercases and strips all whitespace so the same
// mailbox or number always maps to the same rate-limit key and lookup.
func NormalizeIdentifier(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, "")
}

// ValidateEmail reports whether s is a plausible single email address.
func ValidateEmail(s string) error {
	if s == "" {
		return ErrInvalidIdentifier
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ErrInvalidIdentifier
	}
	return nil
}

// ValidatePhone reports whether s is an E.164 phone number.
func ValidatePhone(s string) error {
	if !phonePattern.MatchString(s) {
		return ErrInvalidIdentifier
	}
	return nil
}

// MaskIdentifier renders an identifier safe for logs and responses:
// "m***@example.com" for email, "+49 ****543" for phone. Unrecognized
// input collapses to "***" rather than leaking anything.
func MaskIdentifier(s string) string {
	if at := strings.Index(s, "@"); at > 0 {
		return s[:1] + "***" + s[at:]
	}
	if strings.HasPrefix(s, "+") && len(s) >= 8 {
		return s[:3] + " ****" + s[len(s)-3:]
	}
	return "***"
}
