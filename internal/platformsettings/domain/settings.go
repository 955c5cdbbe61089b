package domain

// Setting names read from the platform_settings table.
const (
	// TokenAuthEnforced forbids API and sync clients from authenticating with the account password.
	TokenAuthEnforced = "token_auth_enforced"
	// TwoFactorEnforced requires a second factor for every account.
	TwoFactorEnforced = "two_factor_enforced"
)
