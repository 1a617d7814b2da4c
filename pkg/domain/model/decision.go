package model

import "github.com/inkwell-lab/inkwell/pkg/domain/types"

// PlannerDecision is the single next action for a turn. At most one durable
// action; may be ActionNone with only a conversational reply.
type PlannerDecision struct {
	Action             types.ActionType
	Payload            map[string]any
	ClarifyingQuestion string
}

// NoDecision is the fallback used when planning fails or confidence is too
// low to commit to any action.
func NoDecision() *PlannerDecision {
	return &PlannerDecision{Action: types.ActionNone, Payload: map[string]any{}}
}

// PayloadString returns a string payload field, or "" when absent.
func (d *PlannerDecision) PayloadString(key string) string {
	if d.Payload == nil {
		return ""
	}
	if v, ok := d.Payload[key].(string); ok {
		return v
	}
	return ""
}
