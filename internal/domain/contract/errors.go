package contract

import (
	"errors"
	"fmt"
)

var (
	// ErrContractNotFound indicates the contract doesn't exist.
	ErrContractNotFound = errors.New("contract not found")
	// ErrInvalidTransition indicates the action is not allowed in the contract's status.
	ErrInvalidTransition = errors.New("invalid contract transition")
	// ErrAlreadySigned indicates the acting party has already signed.
	ErrAlreadySigned = fmt.Errorf("%w: party already signed", ErrInvalidTransition)
	// ErrAccessDenied indicates the actor is not a party to the contract.
	ErrAccessDenied = errors.New("contract access denied")
	// ErrConflict indicates repeated concurrent modification.
	ErrConflict = errors.New("contract modified concurrently")
	// ErrInvalidInput indicates invalid contract terms or request fields.
	ErrInvalidInput = errors.New("invalid contract input")
)
