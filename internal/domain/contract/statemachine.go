package contract

import "github.com/rpggio/handshake/internal/domain/party"

var signableStatuses = map[Status]bool{
	StatusDraft:             true,
	StatusSent:              true,
	StatusPending:           true,
	StatusPendingFreelancer: true,
	StatusPendingClient:     true,
}

var declinableStatuses = map[Status]bool{
	StatusSent:              true,
	StatusPending:           true,
	StatusPendingFreelancer: true,
}

// NextStatus computes contract status from the two signature flags. The result does not
// depend on which party signed first.
func NextStatus(current Status, clientSigned, freelancerSigned bool) Status {
	switch {
	case clientSigned && freelancerSigned:
		return StatusActive
	case clientSigned:
		return StatusPendingFreelancer
	case freelancerSigned:
		return StatusPendingClient
	default:
		return current
	}
}

// CheckSignable reports whether a party holding sig may sign a contract in status.
func CheckSignable(status Status, sig Signature) error {
	if sig.Signed {
		return ErrAlreadySigned
	}
	if !signableStatuses[status] {
		return ErrInvalidTransition
	}
	return nil
}

// CheckCancellable reports whether the contract is still pre-active.
func CheckCancellable(status Status) error {
	if !signableStatuses[status] {
		return ErrInvalidTransition
	}
	return nil
}

// CheckDeclinable reports whether the freelancer may still decline.
func CheckDeclinable(status Status, role party.Role, sig Signature) error {
	if role != party.RoleFreelancer {
		return ErrAccessDenied
	}
	if sig.Signed || !declinableStatuses[status] {
		return ErrInvalidTransition
	}
	return nil
}
