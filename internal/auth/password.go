package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// AdminCost is the bcrypt work factor for the single admin credential.
const AdminCost = 12

// MinPasswordLen applies only when hashing; existing hashes are not rechecked.
const MinPasswordLen = 10

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLen)

func HashPassword(p string) (string, error) {
	if len(p) < MinPasswordLen {
		return "", ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(p), AdminCost)
	return string(b), err
}

func VerifyPassword(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// CheckHash reports whether hash looks like a usable bcrypt hash, so a
// pasted plaintext in ADMIN_PASSWORD_HASH is caught at startup.
func CheckHash(hash string) error {
	if hash == "" {
		return errors.New("empty hash")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("not a bcrypt hash: %w", err)
	}
	return nil
}
