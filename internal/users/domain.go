package users

import "time"

// User represents a staff account. Every user belongs to exactly one
// company.
type User struct {
	ID        int64
	Email     string
	Name      string
	CompanyID int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
