package model

import (
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// Caps for the situational brief. The brief is rebuilt per turn and is
// read-only for every downstream stage.
const (
	BriefMaxGoals    = 3
	BriefMaxEntries  = 3
	BriefMaxSchedule = 5
)

// GoalSummary is the brief's view of one active goal.
type GoalSummary struct {
	ID            types.GoalID
	Title         string
	Status        types.GoalStatus
	PriorityScore float64
	CurrentStep   string
}

// EntrySummary is the brief's view of one recent entry.
type EntrySummary struct {
	ID        types.EntryID
	Summary   string
	Urgency   float64
	CreatedAt time.Time
}

// ScheduleSummary is the brief's view of one upcoming schedule block.
type ScheduleSummary struct {
	ID      types.ScheduleID
	Intent  string
	StartAt time.Time
	EndAt   time.Time
}

// ScheduleSuggestion is a proposed (not yet booked) block.
type ScheduleSuggestion struct {
	StartAt  time.Time
	EndAt    time.Time
	Intent   string
	GoalID   types.GoalID
	Receipts map[string]string
}

// CadenceProfile summarizes the user's journaling rhythm.
type CadenceProfile struct {
	Cadence        string
	SessionMinutes int
	LastMessageAt  *time.Time
	MissedDays     int
	Streak         int
	Timezone       string
}

// DefaultCadenceProfile is the fallback when no aggregation is available.
func DefaultCadenceProfile() CadenceProfile {
	return CadenceProfile{
		Cadence:        "none",
		SessionMinutes: 25,
		Timezone:       "UTC",
	}
}

// RagHit is one retrieval result, deduplicated by ID and capped per kind.
// Blended combines vector similarity and lexical overlap.
type RagHit struct {
	ID       string
	Kind     string
	Score    float64
	Lexical  float64
	Blended  float64
	Snippet  string
	Metadata map[string]string
}

// GoalProgress is the completion state of a goal's micro steps.
type GoalProgress struct {
	Completed int
	Total     int
	Ratio     float64
}

// GoalContext is one active goal with progress and conflict annotations.
type GoalContext struct {
	ID            types.GoalID
	Title         string
	Status        types.GoalStatus
	PriorityScore float64
	CurrentStep   string
	MicroSteps    []MicroStep
	Progress      GoalProgress
	Conflicts     []string
	SourceEntryID types.EntryID
}

// NextMicroStep returns the first pending micro step, or nil.
func (x *GoalContext) NextMicroStep() *MicroStep {
	for i := range x.MicroSteps {
		if !x.MicroSteps[i].Completed {
			return &x.MicroSteps[i]
		}
	}
	return nil
}

// OperatingPicture is the aggregated snapshot of the user's state. It is
// expensive to build, so callers may pass a cached copy; ResolvedAt drives
// the staleness check.
type OperatingPicture struct {
	TopGoals   []GoalSummary
	HotEntries []EntrySummary
	Next72h    []ScheduleSummary
	Cadence    CadenceProfile
	RiskFlags  []string
	ResolvedAt time.Time
}

// DefaultOperatingPicture is the context-free fallback.
func DefaultOperatingPicture() *OperatingPicture {
	return &OperatingPicture{
		Cadence:    DefaultCadenceProfile(),
		ResolvedAt: time.Now().UTC(),
	}
}

// SituationalBrief is the assembled snapshot for one turn. Hits are ordered
// by the composite context score; Retrieval carries the per-hit factor
// breakdown for the turn trace.
type SituationalBrief struct {
	TopGoals    []GoalSummary
	HotEntries  []EntrySummary
	Next72h     []ScheduleSummary
	Cadence     CadenceProfile
	RiskFlags   []string
	Hits        []RagHit
	Retrieval   []TraceRetrieval
	GoalContext []GoalContext
	Suggestions []ScheduleSuggestion
}

// Empty reports whether the brief carries no context at all, which degrades
// the planner and synthesizer to context-free mode.
func (b *SituationalBrief) Empty() bool {
	return len(b.TopGoals) == 0 && len(b.HotEntries) == 0 && len(b.Next72h) == 0 &&
		len(b.Hits) == 0 && len(b.GoalContext) == 0 && len(b.Suggestions) == 0
}
