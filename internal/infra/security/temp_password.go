package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	lowercaseSet = "abcdefghijklmnopqrstuvwxyz"
	uppercaseSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitSet     = "0123456789"

	// DefaultTempPasswordLength is the length of system-generated
	// temporary passwords.
	DefaultTempPasswordLength = 12
)

// GenerateTempPassword builds a random password guaranteeing at least one
// character from each of the lowercase, uppercase, digit, and special
// classes. The remainder is drawn uniformly from the combined alphabet, and
// a final random permutation removes any positional bias from the
// guaranteed characters. Both selection and shuffling use crypto/rand.
func GenerateTempPassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("temp password length must be at least 4")
	}

	classes := []string{lowercaseSet, uppercaseSet, digitSet, specialCharacters}
	combined := lowercaseSet + uppercaseSet + digitSet + specialCharacters

	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := randomByte(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for len(out) < length {
		c, err := randomByte(combined)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	if err := secureShuffle(out); err != nil {
		return "", err
	}

	return string(out), nil
}

func randomByte(alphabet string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("generate random index: %w", err)
	}
	return alphabet[idx.Int64()], nil
}

// secureShuffle applies a Fisher-Yates permutation driven by crypto/rand.
func secureShuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("generate shuffle index: %w", err)
		}
		b[i], b[j.Int64()] = b[j.Int64()], b[i]
	}
	return nil
}
