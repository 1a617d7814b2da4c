package types

import "fmt"

// IntentLabel is the canonical label produced by the intent classifier.
type IntentLabel string

const (
	IntentConversational IntentLabel = "conversational"
	IntentEntryCreate    IntentLabel = "entry_create"
	IntentEntryDiscuss   IntentLabel = "entry_discuss"
	IntentEntryAppend    IntentLabel = "entry_append"
	IntentGoalCreate     IntentLabel = "goal_create"
	IntentScheduleCreate IntentLabel = "schedule_create"
	IntentSearchQuery    IntentLabel = "search_query"
	IntentCommand        IntentLabel = "command"
)

// AllIntentLabels returns all valid intent labels
func AllIntentLabels() []IntentLabel {
	return []IntentLabel{
		IntentConversational,
		IntentEntryCreate,
		IntentEntryDiscuss,
		IntentEntryAppend,
		IntentGoalCreate,
		IntentScheduleCreate,
		IntentSearchQuery,
		IntentCommand,
	}
}

// IsValid checks if the intent label is valid
func (l IntentLabel) IsValid() bool {
	switch l {
	case IntentConversational,
		IntentEntryCreate,
		IntentEntryDiscuss,
		IntentEntryAppend,
		IntentGoalCreate,
		IntentScheduleCreate,
		IntentSearchQuery,
		IntentCommand:
		return true
	default:
		return false
	}
}

// String returns the string representation of the intent label
func (l IntentLabel) String() string {
	return string(l)
}

// ParseIntentLabel parses a string into an IntentLabel
func ParseIntentLabel(s string) (IntentLabel, error) {
	label := IntentLabel(s)
	if !label.IsValid() {
		return "", fmt.Errorf("invalid intent label: %s", s)
	}
	return label, nil
}

// Subsystem tags the downstream routing target of an intent.
type Subsystem string

const (
	SubsystemChat     Subsystem = "chat"
	SubsystemEntries  Subsystem = "entries"
	SubsystemGoals    Subsystem = "goals"
	SubsystemSchedule Subsystem = "schedule"
	SubsystemSearch   Subsystem = "search"
	SubsystemSettings Subsystem = "settings"
)

// Subsystem returns the routing subsystem for the intent label.
func (l IntentLabel) Subsystem() Subsystem {
	switch l {
	case IntentEntryCreate, IntentEntryDiscuss, IntentEntryAppend:
		return SubsystemEntries
	case IntentGoalCreate:
		return SubsystemGoals
	case IntentScheduleCreate:
		return SubsystemSchedule
	case IntentSearchQuery:
		return SubsystemSearch
	case IntentCommand:
		return SubsystemSettings
	default:
		return SubsystemChat
	}
}
