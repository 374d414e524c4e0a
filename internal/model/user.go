package model

import (
	"strings"
	"time"
)

// Status is the account state of a user.  Only active users may
// authenticate.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}

// Role governs access-gate decisions.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleFaculty Role = "faculty"
	RoleOther   Role = "other"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleFaculty, RoleOther:
		return true
	}
	return false
}

// ParseStatus lower-cases and trims raw before validating it.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// ParseRole lower-cases and trims raw before validating it.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// User represents a row of the `users` table in its wire form.  Optional
// columns are pointers so that absent values encode as JSON null.
//
// Fields:
//
//	ID                     – storage-assigned surrogate key, never reused.
//	Email                  – unique, case-sensitive as stored.
//	Phone, HomeArea        – optional free text.
//	PreferredDepartureTime – optional time of day, always HH:mm:ss.
//	GoogleID               – federated subject, attached on first Google login.
//	CreatedAt, UpdatedAt   – server timestamps; UpdatedAt moves on every write.
type User struct {
	ID                     int64     `json:"id"`
	Email                  string    `json:"email"`
	FirstName              string    `json:"firstName"`
	LastName               string    `json:"lastName"`
	Phone                  *string   `json:"phone"`
	Status                 Status    `json:"status"`
	Role                   Role      `json:"role"`
	HomeArea               *string   `json:"homeArea"`
	PreferredDepartureTime *string   `json:"preferredDepartureTime"`
	GoogleID               *string   `json:"googleId"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// HasRole reports whether the user's role is one of roles.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// NewUser carries the fields accepted when creating a user.  Zero Status and
// Role are replaced by the defaults (active, student).
type NewUser struct {
	Email                  string
	FirstName              string
	LastName               string
	Phone                  *string
	Status                 Status
	Role                   Role
	HomeArea               *string
	PreferredDepartureTime *string
	GoogleID               *string
}

// UserPatch lists the fields of a partial update.  A nil pointer leaves the
// column untouched.  For the nullable columns a non-nil Optional with
// Null=true clears the value.
type UserPatch struct {
	Email                  *string
	FirstName              *string
	LastName               *string
	Phone                  *Optional
	Status                 *Status
	Role                   *Role
	HomeArea               *Optional
	PreferredDepartureTime *Optional
}

// Empty reports whether the patch changes nothing besides updated_at.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Phone == nil &&
		p.Status == nil && p.Role == nil && p.HomeArea == nil && p.PreferredDepartureTime == nil
}

// Optional is a nullable string column value inside a patch.
type Optional struct {
	Null  bool
	Value string
}

// Ptr returns nil for a null value, or a pointer to Value.
func (o Optional) Ptr() *string {
	if o.Null {
		return nil
	}
	v := o.Value
	return &v
}
