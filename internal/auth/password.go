package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// ErrInvalidPassword is returned when the instructor password does not match.
// Surfaced as a field-level error on the password prompt; no lockout.
var ErrInvalidPassword = errors.New("incorrect password")

// HashPassword hashes a password using bcrypt. Used by operators to produce
// the professor password hash stored in the config file.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
