package auth

import "github.com/google/uuid"

// Principal is the authenticated identity attached to a request. It is a
// closed variant: either an end user (JWT) or a gateway host (API key).
// Authorization rules dispatch over the concrete type.
type Principal interface {
	principal()
}

type UserPrincipal struct {
	ID uuid.UUID
}

type HostPrincipal struct {
	ID uuid.UUID
}

func (UserPrincipal) principal() {}
func (HostPrincipal) principal() {}
