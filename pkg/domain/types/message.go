package types

// MessageType discriminates the conversation message union.
type MessageType string

const (
	// MessageTypeEntry is a user utterance that may become a journal entry.
	MessageTypeEntry MessageType = "entry"
	// MessageTypeQuery is a user utterance answered without a durable write.
	MessageTypeQuery MessageType = "query"
	// MessageTypeBot is an assistant reply.
	MessageTypeBot MessageType = "bot"
)

// MessageStatus is the delivery status of a conversation message.
// Transitions are monotonic: sending -> sent or sending -> failed.
type MessageStatus string

const (
	MessageStatusSending MessageStatus = "sending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// StepStatus is the state of one processing-timeline step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

// TurnPhase is the orchestrator's position within a single turn.
type TurnPhase string

const (
	PhaseIdle            TurnPhase = "idle"
	PhaseComposing       TurnPhase = "composing"
	PhaseClassifying     TurnPhase = "classifying"
	PhaseContextBuilding TurnPhase = "contextBuilding"
	PhasePlanning        TurnPhase = "planning"
	PhaseSynthesizing    TurnPhase = "synthesizing"
	PhasePersisting      TurnPhase = "persisting"
	PhaseSettled         TurnPhase = "settled"
	PhaseFailed          TurnPhase = "failed"
)
