// Package otp generates and checks one-time passcodes. Codes are six
// decimal digits drawn from crypto/rand; only bcrypt hashes are persisted.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// Digits is the length of every generated code.
const Digits = 6

var upperBound = big.NewInt(1_000_000)

// Generate returns a zero-padded six-digit code.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, upperBound)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// Hash returns the bcrypt hash stored in place of code.
func Hash(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(h), nil
}

// Matches reports whether submitted hashes to hash. Any comparison error,
// including malformed or oversized input, is a mismatch.
func Matches(hash, submitted string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(submitted)) == nil
}
