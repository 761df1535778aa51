package contract

import (
	"sort"

	"github.com/rpggio/handshake/internal/domain/milestone"
)

// ProjectPhaseStatus maps a canonical milestone onto the contract's phase vocabulary.
func ProjectPhaseStatus(m milestone.Milestone) PhaseStatus {
	switch m.Status {
	case milestone.StatusInProgress, milestone.StatusRevisionRequested:
		return PhaseInProgress
	case milestone.StatusAwaitingApproval:
		return PhaseCompleted
	case milestone.StatusCompleted:
		if m.PaymentProcessed {
			return PhasePaid
		}
		return PhaseApproved
	default:
		return PhasePending
	}
}

// ProjectPhases joins contract phases with their milestones. A contract without phases
// is represented by its single synthetic milestone.
func ProjectPhases(c *Contract, milestones []milestone.Milestone) []PhaseView {
	byPhase := make(map[int]milestone.Milestone, len(milestones))
	for _, m := range milestones {
		byPhase[m.PhaseNumber] = m
	}

	if len(c.Phases) == 0 {
		views := make([]PhaseView, 0, len(milestones))
		for _, m := range milestones {
			views = append(views, PhaseView{
				Phase: Phase{
					Number:      m.PhaseNumber,
					Title:       m.Title,
					Description: m.Description,
					Amount:      m.Amount,
					DueDate:     m.DueDate,
				},
				Status:      ProjectPhaseStatus(m),
				MilestoneID: m.ID,
			})
		}
		return views
	}

	views := make([]PhaseView, 0, len(c.Phases))
	for _, p := range c.Phases {
		view := PhaseView{Phase: p, Status: PhasePending}
		if m, ok := byPhase[p.Number]; ok {
			view.Status = ProjectPhaseStatus(m)
			view.MilestoneID = m.ID
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Number < views[j].Number })
	return views
}
