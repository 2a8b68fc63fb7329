package fulfillment

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLength  = 12
	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()_+"
)

// randomPassword is the initial password for users created on purchase.
// Users reset it through the licensing portal.
func randomPassword() (string, error) {
	size := big.NewInt(int64(len(passwordCharset)))
	out := make([]byte, passwordLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = passwordCharset[n.Int64()]
	}
	return string(out), nil
}
