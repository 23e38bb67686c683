package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
)

// RecoveryTokenAlphabet is the character set for recovery tokens. At 18
// characters a token carries about 107 bits of entropy.
const RecoveryTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewRecoveryToken returns a random token of the given length drawn from
// RecoveryTokenAlphabet using crypto/rand.
func NewRecoveryToken(length int) (string, error) {
	if length < 12 || length > 64 {
		return "", errors.New("invalid recovery token length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(RecoveryTokenAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(RecoveryTokenAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// HashToken derives the storage key for an opaque token. Only the hash is
// ever persisted.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// NewNumericCode returns a random code of exactly digits decimal digits,
// leading zeros included.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
