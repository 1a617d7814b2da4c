package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

type traceRepository struct {
	mu sync.RWMutex
	// events per user, newest first
	events map[types.UserID][]*model.TraceEvent
}

func newTraceRepository() *traceRepository {
	return &traceRepository{
		events: make(map[types.UserID][]*model.TraceEvent),
	}
}

func copyTrace(ev *model.TraceEvent) *model.TraceEvent {
	copied := *ev

	if ev.Decision != nil {
		copied.Decision = make(map[string]any, len(ev.Decision))
		for k, v := range ev.Decision {
			copied.Decision[k] = v
		}
	}
	if ev.Planner != nil {
		copied.Planner = make(map[string]any, len(ev.Planner))
		for k, v := range ev.Planner {
			copied.Planner[k] = v
		}
	}
	if ev.Action != nil {
		action := *ev.Action
		copied.Action = &action
	}
	if ev.Confidence != nil {
		conf := *ev.Confidence
		copied.Confidence = &conf
	}
	if ev.Receipts != nil {
		copied.Receipts = make([]string, len(ev.Receipts))
		copy(copied.Receipts, ev.Receipts)
	}
	if ev.Retrieval != nil {
		copied.Retrieval = make([]model.TraceRetrieval, len(ev.Retrieval))
		copy(copied.Retrieval, ev.Retrieval)
	}
	if ev.RedactionSummary != nil {
		copied.RedactionSummary = make(map[string]int, len(ev.RedactionSummary))
		for k, v := range ev.RedactionSummary {
			copied.RedactionSummary[k] = v
		}
	}

	return &copied
}

func (r *traceRepository) Record(ctx context.Context, userID types.UserID, ev *model.TraceEvent) (*model.TraceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyTrace(ev)
	if created.ID == "" {
		created.ID = types.NewTraceID()
	}
	created.UserID = userID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	events := append([]*model.TraceEvent{created}, r.events[userID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > model.MaxTraces {
		events = events[:model.MaxTraces]
	}
	r.events[userID] = events

	return copyTrace(created), nil
}

func (r *traceRepository) Patch(ctx context.Context, userID types.UserID, traceID types.TraceID, patch *model.TracePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events[userID] {
		if ev.ID == traceID {
			patch.Apply(ev)
			return nil
		}
	}

	return goerr.Wrap(interfaces.ErrNotFound, "trace not found", goerr.V("traceID", traceID))
}

func (r *traceRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.TraceEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[userID]
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}

	out := make([]*model.TraceEvent, 0, limit)
	for _, ev := range events[:limit] {
		out = append(out, copyTrace(ev))
	}
	return out, nil
}
