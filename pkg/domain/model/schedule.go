package model

import (
	"fmt"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// ScheduleIntentFocusBlock is the default intent for suggested blocks.
const ScheduleIntentFocusBlock = "focus.block"

// ScheduleBlock is one persisted calendar block. Created only from a
// schedule.create decision.
type ScheduleBlock struct {
	ID        types.ScheduleID
	UserID    types.UserID
	Intent    string
	StartAt   time.Time
	EndAt     time.Time
	GoalID    types.GoalID
	Summary   string
	Receipts  map[string]string
	CreatedAt time.Time
}

// Validate rejects blocks without a positive duration.
func (b *ScheduleBlock) Validate() error {
	if b.StartAt.IsZero() || b.EndAt.IsZero() {
		return fmt.Errorf("schedule block missing start/end")
	}
	if !b.StartAt.Before(b.EndAt) {
		return fmt.Errorf("schedule start time must be before end time")
	}
	return nil
}

// Confirmation renders the human-readable booking confirmation shown in the
// bot reply, e.g. "Booked focus.block on Mon, Jan 2 – 06:00–06:45."
func (b *ScheduleBlock) Confirmation() string {
	return fmt.Sprintf("Booked %s on %s – %s–%s.",
		b.Intent,
		b.StartAt.Format("Mon, Jan 2"),
		b.StartAt.Format("15:04"),
		b.EndAt.Format("15:04"),
	)
}
