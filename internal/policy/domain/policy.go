package domain

import "time"

// Policy is a platform-wide Rego module deciding second-factor enforcement.
// Enabled policies replace the built-in default.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
