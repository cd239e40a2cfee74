package model

import "time"

// VerificationCode is one issued email OTP from `verification_codes`.
// Rows never change after insert except for Consumed; a resend marks the
// previous rows consumed rather than deleting them.
type VerificationCode struct {
	ID        uint64    // verification_codes.id
	UserID    uint64    // verification_codes.user_id
	Code      string    // verification_codes.code, six digits with leading zeros
	CreatedAt time.Time // verification_codes.created_at (microsecond precision)
	Consumed  bool      // verification_codes.consumed
}
