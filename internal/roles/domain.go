package roles

import (
	"time"

	"github.com/meridian-fsm/meridian/internal/permission"
)

// System role names provisioned at install time. System roles cannot be
// deleted or renamed.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleTechnician = "technician"
)

// Role groups catalog permissions under a name. CompanyID nil means the role
// is global and visible to every tenant; otherwise it belongs to exactly one
// company. Role names are globally unique, even across tenants, so audit
// trails stay unambiguous.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	IsSystem    bool
	CompanyID   *int64
	Permissions []permission.Action
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment links a user to a role. IsDefault marks the role attached at
// account creation.
type Assignment struct {
	UserID    int64
	RoleID    int64
	IsDefault bool
	CreatedAt time.Time
}

// PermissionSet returns the role's permissions as a set.
func (r Role) PermissionSet() permission.Set {
	return permission.NewSet(r.Permissions...)
}

// VisibleTo reports whether the role applies within the given company.
func (r Role) VisibleTo(companyID int64) bool {
	return r.CompanyID == nil || *r.CompanyID == companyID
}
