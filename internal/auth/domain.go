// Package auth handles credential verification and login sessions. It is the
// source of the request identity everything downstream authorizes against.
package auth

import "time"

// Account is a user record as the login flow sees it.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CompanyID    int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
