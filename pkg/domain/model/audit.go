package model

import (
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// AuditEvent is one append-only record of a durable side effect, e.g.
// goal creation or schedule booking.
type AuditEvent struct {
	ID          types.AuditID
	UserID      types.UserID
	Type        string
	SubjectType string
	SubjectID   string
	Payload     map[string]any
	CreatedAt   time.Time
}
