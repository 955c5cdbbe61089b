package repository

import "context"

// Repository defines read access to platform-wide settings.
type Repository interface {
	// GetBool returns the boolean value of the named setting, or def when the key is missing
	// or its value does not parse as a boolean.
	GetBool(ctx context.Context, name string, def bool) (bool, error)
	// Set stores value under name.
	Set(ctx context.Context, name, value string) error
}
