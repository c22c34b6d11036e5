/*
Package user holds the account model and its persistence.

Accounts carry a role (customer or staff) and a status (normal or frozen).
Staff are reachable by any user and bypass the friend gate on direct
messages; frozen accounts are refused at login regardless of credentials.
*/
package user

import "time"

// Participant roles.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// Account statuses.
const (
	StatusNormal = "normal"
	StatusFrozen = "frozen"
)

// User represents a chat participant.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Nickname    string     `json:"nickname"`
	Avatar      string     `json:"avatar,omitempty"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	// PasswordHash never leaves the server.
	PasswordHash string `json:"-"`
}

// IsStaff reports whether the user holds the staff role.
func (u User) IsStaff() bool {
	return u.Role == RoleStaff
}

// IsFrozen reports whether the account status is frozen.
func (u User) IsFrozen() bool {
	return u.Status == StatusFrozen
}
