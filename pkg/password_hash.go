package pkg

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// the admin logs in rarely, a slow hash is fine
const passwordHashCost = 14

// HashPassword gives the bcrypt hash to put in BLOG_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return BytesToString(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
