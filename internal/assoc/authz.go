package assoc

import (
	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/storage"
)

// Per-operation principal rules. Principal-kind gating (user-only,
// host-only, either) is enforced by the route middleware; the checks here
// are the relational ones that need the target row.
//
//	beginAssoc        user         any authenticated user becomes owner
//	device confirm    host         device must be PENDING
//	host confirm      host         self-confirmation only
//	device reset      user|host    host: must be the bound host
//	                               user: must be the owner
//	host reset        user         authentication only (cascades)
//	houseAssoc        user         authentication only
//	register/enable   user         admin (middleware)

// canResetDevice dispatches the device-reset ownership rule over the
// principal variant. A host may reset only devices bound to it; a user
// may reset only devices they own.
func canResetDevice(p auth.Principal, device *storage.Device) error {
	switch principal := p.(type) {
	case auth.HostPrincipal:
		if device.HostID == nil || *device.HostID != principal.ID {
			return ErrUnauthorized
		}
		return nil
	case auth.UserPrincipal:
		if device.OwnerID == nil || *device.OwnerID != principal.ID {
			return ErrUnauthorized
		}
		return nil
	default:
		return ErrUnauthorized
	}
}
