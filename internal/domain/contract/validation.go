package contract

import (
	"strings"
)

// ValidateCreateInput validates the terms of a new contract.
func ValidateCreateInput(clientID string, req CreateRequest) error {
	if strings.TrimSpace(clientID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.FreelancerID) == "" || req.FreelancerID == clientID {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.ProposalID) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.Title) == "" {
		return ErrInvalidInput
	}
	if req.TotalAmount <= 0 {
		return ErrInvalidInput
	}
	if len(strings.TrimSpace(req.Currency)) != 3 {
		return ErrInvalidInput
	}
	return ValidatePhases(req.Phases)
}

// ValidatePhases checks ordinals and amounts. Amounts are not checked against the total.
func ValidatePhases(phases []Phase) error {
	seen := make(map[int]bool, len(phases))
	for _, p := range phases {
		if p.Number < 1 || seen[p.Number] {
			return ErrInvalidInput
		}
		seen[p.Number] = true
		if p.Amount < 0 {
			return ErrInvalidInput
		}
		if strings.TrimSpace(p.Title) == "" {
			return ErrInvalidInput
		}
	}
	return nil
}

// PhaseTotal sums phase amounts.
func PhaseTotal(phases []Phase) int64 {
	var total int64
	for _, p := range phases {
		total += p.Amount
	}
	return total
}
