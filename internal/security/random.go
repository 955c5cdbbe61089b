package security

import (
	"crypto/rand"
	"errors"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GenerateToken returns a random alphanumeric string of length n drawn from crypto/rand.
// Bytes outside the largest multiple of the alphabet size are rejected so every symbol is equally likely.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("security: token length must be positive")
	}
	const limit = 256 - 256%len(tokenAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
