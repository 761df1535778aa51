// Package party resolves which side of a deal an actor is on.
package party

// Role identifies a side of a contract.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

// Resolve derives the actor's role by matching against the stored party references.
// A role is never taken from the caller.
func Resolve(actorID, clientID, freelancerID string) (Role, bool) {
	if actorID == "" {
		return "", false
	}
	switch actorID {
	case clientID:
		return RoleClient, true
	case freelancerID:
		return RoleFreelancer, true
	default:
		return "", false
	}
}

// Counterpart returns the other party's ID.
func Counterpart(role Role, clientID, freelancerID string) string {
	if role == RoleClient {
		return freelancerID
	}
	return clientID
}
