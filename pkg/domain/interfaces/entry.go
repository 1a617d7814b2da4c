package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// EntryRepository defines the interface for Entry data persistence
type EntryRepository interface {
	// Create persists a new entry and returns it with the assigned ID.
	Create(ctx context.Context, userID types.UserID, entry *model.Entry) (*model.Entry, error)

	// Append joins content onto an existing entry with a blank-line
	// separator and returns the updated entry.
	Append(ctx context.Context, userID types.UserID, entryID types.EntryID, content string) (*model.Entry, error)

	// Get retrieves an entry by ID
	Get(ctx context.Context, userID types.UserID, entryID types.EntryID) (*model.Entry, error)

	// ListRecent retrieves up to limit entries, newest first.
	ListRecent(ctx context.Context, userID types.UserID, limit int) ([]*model.Entry, error)

	// SetGoalID tags the entry with the goal it spawned.
	SetGoalID(ctx context.Context, userID types.UserID, entryID types.EntryID, goalID types.GoalID) error
}
