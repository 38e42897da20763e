package gen

import (
	"crypto/rand"
	"math/big"
)

// Alphabet for human-facing codes. Excludes 0/O and 1/I so a code read over the
// phone or typed from a printed carnet cannot be mistranscribed.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func RandomCode(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[num.Int64()]
	}
	return string(b), nil
}

// SecurityCode is the internal code printed inside the ficha record.
func SecurityCode() (string, error) {
	return RandomCode(12)
}

// VerificationCode is the public code a citizen hands to third parties, grouped
// for readability ("XXXX-XXXX").
func VerificationCode() (string, error) {
	code, err := RandomCode(8)
	if err != nil {
		return "", err
	}
	return code[:4] + "-" + code[4:], nil
}
