package interfaces

import (
	"context"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// ScheduleRepository defines the interface for ScheduleBlock persistence
type ScheduleRepository interface {
	// Create persists a new schedule block and returns it with its ID.
	Create(ctx context.Context, userID types.UserID, block *model.ScheduleBlock) (*model.ScheduleBlock, error)

	// Get retrieves a schedule block by ID
	Get(ctx context.Context, userID types.UserID, blockID types.ScheduleID) (*model.ScheduleBlock, error)

	// ListUpcoming retrieves up to limit blocks starting before the until
	// bound, time-ordered.
	ListUpcoming(ctx context.Context, userID types.UserID, until time.Time, limit int) ([]*model.ScheduleBlock, error)
}
