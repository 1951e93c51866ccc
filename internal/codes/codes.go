// Package codes generates the public codes printed on prepaid accounts.
package codes

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of characters in a generated code.
const Length = 12

// alphabet leaves out 0/O and 1/I/L, which are easily misread on a card.
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// maxAttempts bounds the collision retries of Unique.
const maxAttempts = 10

// Generate returns a random code of Length characters.
func Generate() (string, error) {
	buf := make([]byte, Length)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Unique generates codes until taken reports one as free.
func Unique(taken func(code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := Generate()
		if err != nil {
			return "", err
		}
		exists, err := taken(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free code after %d attempts", maxAttempts)
}
