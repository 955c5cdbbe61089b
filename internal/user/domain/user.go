package domain

import (
	"errors"
	"time"
)

// User is the core user entity. LoginName is the credential identifier; ID is the stable uid.
type User struct {
	ID          string
	LoginName   string
	Email       string
	DisplayName string
	Status      UserStatus
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Enabled reports whether the account may hold a live session.
func (u *User) Enabled() bool {
	return u != nil && u.Status == UserStatusActive
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.LoginName == "" {
		return errors.New("login name is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
