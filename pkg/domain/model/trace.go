package model

import (
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// MaxTraces caps the retained audit trail, newest first.
const MaxTraces = 100

// TraceRetrieval records how one retrieval hit scored during a turn.
type TraceRetrieval struct {
	ID      string
	Kind    string
	Blended float64
	Scoring map[string]float64
}

// TraceAction records the durable outcome of a turn.
type TraceAction struct {
	Type     string
	Status   string
	IDs      map[string]string
	Metadata map[string]any
}

// TraceEvent is the audit record for one turn. It is patched multiple times
// across the turn; every patch is a partial merge, never a full overwrite.
type TraceEvent struct {
	ID               types.TraceID
	UserID           types.UserID
	MaskedText       string
	IntentLabel      types.IntentLabel
	IntentConfidence float64
	Decision         map[string]any
	Planner          map[string]any
	Action           *TraceAction
	Confidence       *ConfidenceVector
	Receipts         []string
	Retrieval        []TraceRetrieval
	RedactionSummary map[string]int
	LatencyMillis    int64
	CreatedAt        time.Time
}

// TracePatch is a partial update. Nil fields are left untouched, making
// repeated application idempotent.
type TracePatch struct {
	Planner       map[string]any
	Action        *TraceAction
	Confidence    *ConfidenceVector
	Receipts      []string
	Retrieval     []TraceRetrieval
	LatencyMillis *int64
}

// Apply merges the patch into the event.
func (p *TracePatch) Apply(ev *TraceEvent) {
	if p.Planner != nil {
		if ev.Planner == nil {
			ev.Planner = map[string]any{}
		}
		for k, v := range p.Planner {
			ev.Planner[k] = v
		}
	}
	if p.Action != nil {
		ev.Action = p.Action
	}
	if p.Confidence != nil {
		ev.Confidence = p.Confidence
	}
	if p.Receipts != nil {
		ev.Receipts = p.Receipts
	}
	if p.Retrieval != nil {
		ev.Retrieval = p.Retrieval
	}
	if p.LatencyMillis != nil {
		ev.LatencyMillis = *p.LatencyMillis
	}
}
