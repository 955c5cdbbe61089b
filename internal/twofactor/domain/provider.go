package domain

import "time"

// ProviderTOTP is the time-based one-time password second factor.
const ProviderTOTP = "totp"

// Enrollment is one second-factor provider registered for a user.
type Enrollment struct {
	UserID    string
	Provider  string
	Secret    string
	Enabled   bool
	CreatedAt time.Time
}
