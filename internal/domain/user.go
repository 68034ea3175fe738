package domain

import (
	"strings"
	"time"
)

// User is an authenticated caller. TeamName is empty for users outside any
// team.
type User struct {
	ID        string
	Email     string
	TeamName  string
	CreatedAt time.Time
}

// Validate checks required fields before creation.
func (u *User) Validate() error {
	email := strings.TrimSpace(u.Email)
	if email == "" || !strings.Contains(email, "@") {
		return NewDomainError(ErrCodeValidation, "user requires a valid email")
	}
	return nil
}
