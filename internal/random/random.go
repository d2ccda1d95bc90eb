// Package random provides cryptographically secure random helpers.
package random

import (
	"crypto/rand"
	"github.com/myrjola/dossier/internal/errors"
	"math/big"
)

var allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Letters returns n random ASCII letters.
func Letters(n uint) (string, error) {
	letters := make([]rune, n)
	for i := range letters {
		letterIndex, err := Intn(len(allowedLetters))
		if err != nil {
			return "", err
		}
		letters[i] = allowedLetters[letterIndex]
	}
	return string(letters), nil
}

// Intn returns a uniform random integer in [0, n). It panics if n <= 0.
func Intn(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, errors.Wrap(err, "read random integer")
	}
	return int(v.Int64()), nil
}

// Between returns a uniform random integer in [lo, hi].
func Between(lo, hi int) (int, error) {
	if hi < lo {
		lo, hi = hi, lo
	}
	v, err := Intn(hi - lo + 1)
	if err != nil {
		return 0, err
	}
	return lo + v, nil
}
