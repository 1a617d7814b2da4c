package usecase

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/async"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

// TraceRecorder writes turn telemetry best-effort. Recording and patching
// never fail the turn; failures are logged and dropped.
type TraceRecorder struct {
	repo  interfaces.TraceRepository
	tasks *async.Registry
}

func NewTraceRecorder(repo interfaces.TraceRepository, tasks *async.Registry) *TraceRecorder {
	return &TraceRecorder{
		repo:  repo,
		tasks: tasks,
	}
}

// Record inserts the initial trace event for a turn. Returns an empty ID if
// the insert failed.
func (r *TraceRecorder) Record(ctx context.Context, userID types.UserID, ev *model.TraceEvent) types.TraceID {
	created, err := r.repo.Record(ctx, userID, ev)
	if err != nil {
		logging.From(ctx).Warn("trace record failed", "error", err.Error())
		return ""
	}
	return created.ID
}

// Patch merges a partial update asynchronously. A zero trace ID is a no-op,
// which keeps callers free of record-failure branches.
func (r *TraceRecorder) Patch(ctx context.Context, userID types.UserID, traceID types.TraceID, patch *model.TracePatch) {
	if traceID == "" {
		return
	}
	r.tasks.Dispatch(ctx, "trace-patch", func(ctx context.Context) error {
		if err := r.repo.Patch(ctx, userID, traceID, patch); err != nil {
			logging.From(ctx).Warn("trace patch failed", "traceID", traceID, "error", err.Error())
		}
		return nil
	})
}

// List returns recent trace events, newest first.
func (r *TraceRecorder) List(ctx context.Context, userID types.UserID, limit int) ([]*model.TraceEvent, error) {
	return r.repo.List(ctx, userID, limit)
}
