// Package auth carries the authenticated caller identity from the HTTP layer
// into domain authorization checks.
package auth

import "github.com/go-faster/errors"

// Role is the marketplace role encoded in the access token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// ErrAccessDenied is returned when the actor is not allowed to see or mutate
// the requested resource.
var ErrAccessDenied = errors.New("access denied")

// Actor identifies the authenticated user making a request.
type Actor struct {
	UserID string
	Role   Role
}

// Is reports whether the actor holds the given role.
func (a Actor) Is(role Role) bool {
	return a.Role == role
}
