package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches spec's default of "12 bcrypt rounds"; overridable
// via config (BCRYPT_SALT_ROUNDS).
const DefaultBcryptCost = 12

// HashPassword returns an adaptive one-way hash of the given password using
// the given cost. A per-password salt is generated internally by bcrypt.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. Comparison is
// constant-time (bcrypt.CompareHashAndPassword never short-circuits on the
// first mismatching byte).
func VerifyPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
