package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// ActiveGoalCap is the maximum number of concurrently active goals per user.
// The cap check and the insert are one logical decision: when the cap is
// reached no goal is created and the user is told, never silently queued.
const ActiveGoalCap = 3

// MicroStep is one small actionable step inside a goal.
type MicroStep struct {
	ID          string
	Description string
	Completed   bool
	CompletedAt *time.Time
}

// NewMicroStep creates a pending micro step.
func NewMicroStep(description string) MicroStep {
	return MicroStep{
		ID:          uuid.New().String(),
		Description: description,
	}
}

// Goal is one persisted goal.
type Goal struct {
	ID            types.GoalID
	UserID        types.UserID
	Title         string
	Description   string
	Status        types.GoalStatus
	CurrentStep   string
	MicroSteps    []MicroStep
	SourceEntryID types.EntryID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Progress summarizes micro-step completion.
func (g *Goal) Progress() GoalProgress {
	total := len(g.MicroSteps)
	completed := 0
	for _, step := range g.MicroSteps {
		if step.Completed {
			completed++
		}
	}
	ratio := 0.0
	if total > 0 {
		ratio = float64(completed) / float64(total)
	}
	return GoalProgress{Completed: completed, Total: total, Ratio: ratio}
}

// Context converts the goal to its brief representation.
func (g *Goal) Context(priorityScore float64) GoalContext {
	steps := make([]MicroStep, len(g.MicroSteps))
	copy(steps, g.MicroSteps)
	return GoalContext{
		ID:            g.ID,
		Title:         g.Title,
		Status:        g.Status.Normalize(),
		PriorityScore: priorityScore,
		CurrentStep:   g.CurrentStep,
		MicroSteps:    steps,
		Progress:      g.Progress(),
		SourceEntryID: g.SourceEntryID,
	}
}
