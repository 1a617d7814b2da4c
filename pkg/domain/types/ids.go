package types

import (
	"strings"

	"github.com/google/uuid"
)

// UserID identifies the owner of all journal data. It is issued by the
// authentication layer, which is an external collaborator.
type UserID string

// ConversationID identifies one conversation thread.
type ConversationID string

// NewConversationID generates a new UUID v4 ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

// TurnID identifies a single submit/reply cycle. UUID v7 keeps turn IDs
// time-ordered, which makes trace listings chronological for free.
type TurnID string

// NewTurnID generates a new UUID v7 TurnID
func NewTurnID() TurnID {
	return TurnID(uuid.Must(uuid.NewV7()).String())
}

// EntryID is the persisted identifier of a journal entry.
type EntryID string

// NewEntryID generates a new UUID v4 EntryID
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// GoalID is the persisted identifier of a goal.
type GoalID string

// NewGoalID generates a new UUID v4 GoalID
func NewGoalID() GoalID {
	return GoalID(uuid.New().String())
}

// ScheduleID is the persisted identifier of a schedule block.
type ScheduleID string

// NewScheduleID generates a new UUID v4 ScheduleID
func NewScheduleID() ScheduleID {
	return ScheduleID(uuid.New().String())
}

// TraceID identifies one audit trace. UUID v7 for chronological ordering.
type TraceID string

// NewTraceID generates a new UUID v7 TraceID
func NewTraceID() TraceID {
	return TraceID(uuid.Must(uuid.NewV7()).String())
}

// AuditID identifies one audit event record.
type AuditID string

// NewAuditID generates a new UUID v7 AuditID
func NewAuditID() AuditID {
	return AuditID(uuid.Must(uuid.NewV7()).String())
}

const localMessagePrefix = "local-"

// MessageID identifies a conversation message. A message is born with a
// temporary local ID and is re-keyed to the persisted entry ID once the
// entry is durable.
type MessageID string

// NewLocalMessageID generates a temporary message ID. Local IDs are
// replaced by the persisted ID at re-key time.
func NewLocalMessageID() MessageID {
	return MessageID(localMessagePrefix + uuid.New().String())
}

// IsLocal reports whether the message still carries its temporary ID.
func (id MessageID) IsLocal() bool {
	return strings.HasPrefix(string(id), localMessagePrefix)
}
