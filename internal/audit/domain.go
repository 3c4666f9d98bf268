// Package audit records security-relevant events. Entries are write-once,
// append-only; retention is an operational concern handled outside the
// application.
package audit

import "time"

// Entry is one immutable audit record. Actor name and role are denormalized
// at write time because roles change; the trail must describe the actor as
// they were.
type Entry struct {
	ID         string         `json:"id"`
	CompanyID  int64          `json:"companyId"`
	UserID     *int64         `json:"userId,omitempty"`
	UserName   string         `json:"userName,omitempty"`
	UserRole   string         `json:"userRole,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Filter narrows an audit query. CompanyID is mandatory: the read path is
// tenant-scoped like everything else.
type Filter struct {
	CompanyID  int64
	UserID     *int64
	Action     string
	Resource   string
	ResourceID string
	From       time.Time
	To         time.Time
}
