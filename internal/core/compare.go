package core

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// CompareWord reports whether word matches the bcrypt hash. A mismatch is
// not an error; a hash bcrypt cannot parse is.
func CompareWord(word, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(word))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
