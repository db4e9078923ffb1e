package assoc

import "errors"

// Operation outcomes, kept distinct so the transport layer can preserve
// the unauthorized / forbidden / not-found / unprocessable split.
var (
	// ErrNotFound: the target does not resolve, is disabled, or a
	// conditional update matched zero rows (target "not available").
	ErrNotFound = errors.New("target not found")

	// ErrWrongState: the target exists but its association state does not
	// permit the requested transition. Retryable once the state changes.
	ErrWrongState = errors.New("wrong association state")

	// ErrUnauthorized: the principal is authenticated but is not the
	// owner/bound host the operation requires.
	ErrUnauthorized = errors.New("principal not authorized for target")

	// ErrCascadeFailed: a host reset completed only partially; some
	// devices may remain bound to an already-reset host.
	ErrCascadeFailed = errors.New("association reset cascade failed")
)
