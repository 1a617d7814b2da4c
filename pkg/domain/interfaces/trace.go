package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// TraceRepository defines the interface for per-turn trace persistence
type TraceRepository interface {
	// Record inserts a new trace event. Backends retain at most
	// model.MaxTraces events per user, evicting the oldest.
	Record(ctx context.Context, userID types.UserID, ev *model.TraceEvent) (*model.TraceEvent, error)

	// Patch merges a partial update into an existing event. Missing events
	// are reported with ErrNotFound.
	Patch(ctx context.Context, userID types.UserID, traceID types.TraceID, patch *model.TracePatch) error

	// List retrieves up to limit events, newest first.
	List(ctx context.Context, userID types.UserID, limit int) ([]*model.TraceEvent, error)
}
