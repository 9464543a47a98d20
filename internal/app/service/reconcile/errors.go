package reconcile

import "errors"

var (
	// ErrInvariantViolation means the authoritative gateway outcome would
	// force an illegal payment status transition. The delivery is not acked
	// so it surfaces for operator attention.
	ErrInvariantViolation = errors.New("payment status invariant violation")

	// ErrActionNotAllowed means the payable's current state does not permit
	// the requested action (e.g. initiating an already-submitted payment).
	ErrActionNotAllowed = errors.New("action not allowed in current state")
)
