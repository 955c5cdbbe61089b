package engine

import "context"

// TwoFactorInput is the document a two-factor enforcement policy is evaluated against.
type TwoFactorInput struct {
	UserID           string
	LoginName        string
	Providers        []string
	PlatformEnforced bool
}

// Evaluator decides whether an account must authenticate with a second factor.
type Evaluator interface {
	TwoFactorEnforced(ctx context.Context, in TwoFactorInput) (bool, error)
}
