/*
otp.go - One-time password generation

Pure, stateless utility collaborator. No expiry tracking, no delivery -
callers own the OTP lifecycle; this only produces the digits.
*/
package accounts

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateOTP returns a string of length random decimal digits, drawn from
// crypto/rand. Leading zeros are preserved ("0042" is a valid OTP).
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("otp generation failed: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
