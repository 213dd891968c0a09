// Package access supplies requester identity and privilege level to the
// engine. Authentication itself is an external collaborator; this package
// only interprets the identity it is handed.
package access

import "roomspace/internal/models"

// Role is the privilege level of an acting identity.
type Role string

const (
	RolePatron Role = "patron"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Actor is the identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// Privileged reports whether the actor may approve/decline reservations,
// override check-in windows, and mark no-shows.
func (a Actor) Privileged() bool {
	return a.Role == RoleStaff || a.Role == RoleAdmin
}

// Owns reports whether the actor created the reservation or is its requester.
func (a Actor) Owns(r *models.Reservation) bool {
	if a.ID == "" {
		return false
	}
	return r.CreatedBy == a.ID
}

// CanCancel reports whether the actor may cancel the reservation: owners and
// privileged actors only.
func (a Actor) CanCancel(r *models.Reservation) bool {
	return a.Privileged() || a.Owns(r)
}

// ParseRole maps a role string to a Role, defaulting to patron.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleStaff:
		return RoleStaff
	case RoleAdmin:
		return RoleAdmin
	default:
		return RolePatron
	}
}
