package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently ignores nothing: GenerateFromPassword errors on inputs over
// 72 bytes. Truncating on both the hash and verify paths keeps the two
// consistent, so a password P and P truncated to 72 bytes verify identically.
const maxPasswordBytes = 72

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		return b[:maxPasswordBytes]
	}
	return b
}

func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), 12)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	return hash, nil
}

// VerifyPassword never returns the underlying bcrypt error, mismatch and
// malformed hash both report false.
func VerifyPassword(password string, hash []byte) bool {
	if password == "" || len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, truncatePassword(password)) == nil
}
