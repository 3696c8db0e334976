package secret

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Alphanumeric returns a random string of exactly length characters drawn
// uniformly from [A-Za-z0-9].
func Alphanumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid secret length: %d", length)
	}

	b := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random index: %w", err)
		}
		b[i] = alphanumeric[n.Int64()]
	}

	return string(b), nil
}

// TempToken returns a UUID-formatted opaque handle for correlating a 2FA
// challenge with its verification call.
func TempToken() string {
	return uuid.NewString()
}
