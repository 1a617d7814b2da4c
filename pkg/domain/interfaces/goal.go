package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// GoalRepository defines the interface for Goal data persistence
type GoalRepository interface {
	// Create persists a new goal. When the user already has
	// model.ActiveGoalCap active goals the insert is rejected with
	// ErrGoalLimit and no goal is created.
	Create(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error)

	// Get retrieves a goal by ID
	Get(ctx context.Context, userID types.UserID, goalID types.GoalID) (*model.Goal, error)

	// ListActive retrieves up to limit active goals, most recently updated
	// first.
	ListActive(ctx context.Context, userID types.UserID, limit int) ([]*model.Goal, error)

	// CountActive returns the number of currently active goals.
	CountActive(ctx context.Context, userID types.UserID) (int, error)

	// Update replaces mutable goal fields (status, steps, current step).
	Update(ctx context.Context, userID types.UserID, goal *model.Goal) (*model.Goal, error)
}
