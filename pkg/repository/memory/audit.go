package memory

import (
	"context"
	"sync"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

type auditRepository struct {
	mu sync.RWMutex
	// events per user, newest first
	events map[types.UserID][]*model.AuditEvent
}

func newAuditRepository() *auditRepository {
	return &auditRepository{
		events: make(map[types.UserID][]*model.AuditEvent),
	}
}

func copyAudit(ev *model.AuditEvent) *model.AuditEvent {
	copied := *ev
	if ev.Payload != nil {
		copied.Payload = make(map[string]any, len(ev.Payload))
		for k, v := range ev.Payload {
			copied.Payload[k] = v
		}
	}
	return &copied
}

func (r *auditRepository) Insert(ctx context.Context, userID types.UserID, ev *model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyAudit(ev)
	if created.ID == "" {
		created.ID = types.NewAuditID()
	}
	created.UserID = userID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.events[userID] = append([]*model.AuditEvent{created}, r.events[userID]...)
	return nil
}

func (r *auditRepository) List(ctx context.Context, userID types.UserID, limit int) ([]*model.AuditEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[userID]
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}

	out := make([]*model.AuditEvent, 0, limit)
	for _, ev := range events[:limit] {
		out = append(out, copyAudit(ev))
	}
	return out, nil
}
