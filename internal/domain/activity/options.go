package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	ContractID   string
	WorkspaceID  *string
	MilestoneID  *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
