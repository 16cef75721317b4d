package models

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// Challenge is a pending one-time code for a phone number. Only the sha256
// of the code is stored; the cleartext exists just long enough to deliver.
type Challenge struct {
	PhoneNumber string
	CodeHash    string
	ExpiresAt   time.Time
}

// GenerateCode produces a zero-padded 6-digit code from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode returns the hex sha256 of a code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Matches reports whether the submitted code hashes to the stored value,
// in constant time.
func (c Challenge) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(c.CodeHash), []byte(HashCode(code))) == 1
}

// Expired reports whether the challenge TTL has passed.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
