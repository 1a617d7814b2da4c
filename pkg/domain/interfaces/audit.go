package interfaces

import (
	"context"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// AuditRepository defines the interface for durable audit events emitted by
// side-effect execution.
type AuditRepository interface {
	// Insert appends an audit event.
	Insert(ctx context.Context, userID types.UserID, ev *model.AuditEvent) error

	// List retrieves up to limit events, newest first.
	List(ctx context.Context, userID types.UserID, limit int) ([]*model.AuditEvent, error)
}
