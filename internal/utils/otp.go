package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPLength is the number of digits in an email verification code.
const OTPLength = 6

var otpSpace = big.NewInt(1_000_000)

// NewOTP returns a uniformly random code in 000000..999999.  Leading zeros
// are kept because the code is handled as text end to end.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// IsOTPFormat reports whether s is exactly six ASCII digits.
func IsOTPFormat(s string) bool {
	if len(s) != OTPLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
