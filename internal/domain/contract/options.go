package contract

// ListOptions provides filtering options for listing contracts.
type ListOptions struct {
	PartyID  string
	Statuses []Status
	Limit    int
	Offset   int
}
