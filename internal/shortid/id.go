package shortid

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// URL-safe, same set the short links have always used.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_-"

const (
	MinLength     = 7
	MaxLength     = 14
	DefaultLength = 9
)

// ClampLength keeps n inside [MinLength, MaxLength].
func ClampLength(n int) int {
	if n < MinLength {
		return MinLength
	}
	if n > MaxLength {
		return MaxLength
	}
	return n
}

// Generate returns a random id of ClampLength(length) characters.
func Generate(length int) (string, error) {
	length = ClampLength(length)
	base := big.NewInt(int64(len(alphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Valid reports whether id could have come from Generate.
func Valid(id string) bool {
	if len(id) < MinLength || len(id) > MaxLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(alphabet, id[i]) < 0 {
			return false
		}
	}
	return true
}
