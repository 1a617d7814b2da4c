package model

import (
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// StepState is the status of one processing-timeline step plus a
// human-readable detail for error states.
type StepState struct {
	Status types.StepStatus
	Detail string
}

// ProcessingTimeline tracks the user-visible pipeline stages of a turn.
type ProcessingTimeline struct {
	Classification StepState
	Synthesis      StepState
}

// NewProcessingTimeline returns a timeline with all steps pending.
func NewProcessingTimeline() ProcessingTimeline {
	return ProcessingTimeline{
		Classification: StepState{Status: types.StepPending},
		Synthesis:      StepState{Status: types.StepPending},
	}
}

// ConversationMessage is one visible message. The union is discriminated by
// Type: entry and query messages are user-authored; bot messages reference
// the user message they answer via AfterID.
type ConversationMessage struct {
	ID            types.MessageID
	Type          types.MessageType
	Content       string
	Status        types.MessageStatus
	AfterID       types.MessageID
	Intent        *CanonicalIntent
	Steps         ProcessingTimeline
	SubmittedAt   time.Time
	FailureDetail string
}

// NewUserMessage creates the optimistic user message for a submission. The
// entry/query split follows the classified subsystem later; until then every
// submission starts as an entry message with a temporary local ID.
func NewUserMessage(text string, at time.Time) *ConversationMessage {
	return &ConversationMessage{
		ID:          types.NewLocalMessageID(),
		Type:        types.MessageTypeEntry,
		Content:     text,
		Status:      types.MessageStatusSending,
		Steps:       NewProcessingTimeline(),
		SubmittedAt: at,
	}
}

// NewBotMessage creates a streaming placeholder reply anchored to afterID.
func NewBotMessage(afterID types.MessageID) *ConversationMessage {
	return &ConversationMessage{
		ID:      types.NewLocalMessageID(),
		Type:    types.MessageTypeBot,
		Status:  types.MessageStatusSending,
		AfterID: afterID,
	}
}

// Clone returns a deep copy so snapshots cannot observe later mutation.
func (m *ConversationMessage) Clone() *ConversationMessage {
	copied := *m
	if m.Intent != nil {
		intent := *m.Intent
		copied.Intent = &intent
	}
	return &copied
}
