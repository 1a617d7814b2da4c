package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

// Action outcome statuses.
const (
	ActionStatusNone      = "none"
	ActionStatusCompleted = "completed"
	ActionStatusLimited   = "limited"
	ActionStatusFailed    = "failed"
)

// ActionResult is the outcome of executing one planner decision. Message
// carries the user-visible outcome line, e.g. a booking confirmation or the
// goal-cap notice.
type ActionResult struct {
	Action  types.ActionType
	Status  string
	Message string
	IDs     map[string]string
}

func noActionResult() *ActionResult {
	return &ActionResult{Action: types.ActionNone, Status: ActionStatusNone, IDs: map[string]string{}}
}

// Trace converts the result to its trace representation.
func (r *ActionResult) Trace() *model.TraceAction {
	return &model.TraceAction{
		Type:   r.Action.String(),
		Status: r.Status,
		IDs:    r.IDs,
	}
}

// Execute performs the decision's durable action. Domain limits (the goal
// cap) come back as a limited result, not an error; only failed writes
// return an error, and even then the result describes what the user should
// be told.
func (uc *UseCases) Execute(ctx context.Context, userID types.UserID, intent *model.CanonicalIntent, decision *model.PlannerDecision, utterance string) (*ActionResult, error) {
	if decision == nil || decision.Action == types.ActionNone {
		return noActionResult(), nil
	}

	switch decision.Action {
	case types.ActionEntryCreate:
		return uc.executeEntryCreate(ctx, userID, intent, utterance)
	case types.ActionEntryAppend:
		return uc.executeEntryAppend(ctx, userID, decision, utterance)
	case types.ActionGoalCreate:
		return uc.executeGoalCreate(ctx, userID, intent, decision, utterance)
	case types.ActionScheduleCreate:
		return uc.executeScheduleCreate(ctx, userID, decision)
	default:
		return noActionResult(), nil
	}
}

func (uc *UseCases) executeEntryCreate(ctx context.Context, userID types.UserID, intent *model.CanonicalIntent, utterance string) (*ActionResult, error) {
	entry, err := uc.createEntry(ctx, userID, intent, utterance)
	if err != nil {
		return &ActionResult{
			Action:  types.ActionEntryCreate,
			Status:  ActionStatusFailed,
			Message: MsgEntryNotSaved,
			IDs:     map[string]string{},
		}, goerr.Wrap(types.ErrPersistenceFailed, "entry create failed", goerr.V("cause", err.Error()))
	}

	uc.indexEntryAsync(ctx, entry)
	uc.auditAsync(ctx, userID, "entry.created", "entry", string(entry.ID), nil)

	return &ActionResult{
		Action: types.ActionEntryCreate,
		Status: ActionStatusCompleted,
		IDs:    map[string]string{"entry": string(entry.ID)},
	}, nil
}

func (uc *UseCases) executeEntryAppend(ctx context.Context, userID types.UserID, decision *model.PlannerDecision, utterance string) (*ActionResult, error) {
	targetID := types.EntryID(decision.PayloadString("target_entry_id"))
	if targetID == "" {
		return uc.executeEntryCreate(ctx, userID, nil, utterance)
	}

	entry, err := uc.repo.Entry().Append(ctx, userID, targetID, utterance)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// Target vanished between classification and execution. A fresh
			// entry loses the thread but never loses the text.
			return uc.executeEntryCreate(ctx, userID, nil, utterance)
		}
		return &ActionResult{
			Action:  types.ActionEntryAppend,
			Status:  ActionStatusFailed,
			Message: MsgEntryNotSaved,
			IDs:     map[string]string{"entry": string(targetID)},
		}, goerr.Wrap(types.ErrPersistenceFailed, "entry append failed", goerr.V("entryID", targetID), goerr.V("cause", err.Error()))
	}

	uc.indexEntryAsync(ctx, entry)
	uc.auditAsync(ctx, userID, "entry.appended", "entry", string(entry.ID), nil)

	return &ActionResult{
		Action: types.ActionEntryAppend,
		Status: ActionStatusCompleted,
		IDs:    map[string]string{"entry": string(entry.ID)},
	}, nil
}

func (uc *UseCases) executeGoalCreate(ctx context.Context, userID types.UserID, intent *model.CanonicalIntent, decision *model.PlannerDecision, utterance string) (*ActionResult, error) {
	title := decision.PayloadString("title")
	if title == "" {
		title = model.Summarize(utterance)
	}

	goal, err := uc.repo.Goal().Create(ctx, userID, &model.Goal{
		Title:       title,
		Description: utterance,
		Status:      types.GoalStatusActive,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrGoalLimit) {
			return &ActionResult{
				Action:  types.ActionGoalCreate,
				Status:  ActionStatusLimited,
				Message: MsgGoalCapReached,
				IDs:     map[string]string{},
			}, nil
		}
		return &ActionResult{
			Action: types.ActionGoalCreate,
			Status: ActionStatusFailed,
			IDs:    map[string]string{},
		}, goerr.Wrap(types.ErrPersistenceFailed, "goal create failed", goerr.V("cause", err.Error()))
	}

	ids := map[string]string{"goal": string(goal.ID)}

	// The utterance that spawned the goal is kept as an entry and linked both
	// ways. Losing the link is tolerable; losing the goal is not, so these
	// writes are best-effort.
	if entry, err := uc.createEntry(ctx, userID, intent, utterance); err != nil {
		logging.From(ctx).Warn("source entry save failed", "goalID", goal.ID, "error", err.Error())
	} else {
		ids["entry"] = string(entry.ID)
		goal.SourceEntryID = entry.ID
		if _, err := uc.repo.Goal().Update(ctx, userID, goal); err != nil {
			logging.From(ctx).Warn("goal source link failed", "goalID", goal.ID, "error", err.Error())
		}
		if err := uc.repo.Entry().SetGoalID(ctx, userID, entry.ID, goal.ID); err != nil {
			logging.From(ctx).Warn("entry goal link failed", "entryID", entry.ID, "error", err.Error())
		}
		uc.indexEntryAsync(ctx, entry)
	}

	uc.indexGoalAsync(ctx, goal)
	uc.auditAsync(ctx, userID, "goal.created", "goal", string(goal.ID), map[string]any{"title": goal.Title})

	return &ActionResult{
		Action: types.ActionGoalCreate,
		Status: ActionStatusCompleted,
		IDs:    ids,
	}, nil
}

func (uc *UseCases) executeScheduleCreate(ctx context.Context, userID types.UserID, decision *model.PlannerDecision) (*ActionResult, error) {
	start, err := time.Parse(time.RFC3339, decision.PayloadString("start"))
	if err != nil {
		return &ActionResult{
			Action: types.ActionScheduleCreate,
			Status: ActionStatusFailed,
			IDs:    map[string]string{},
		}, goerr.Wrap(types.ErrPersistenceFailed, "schedule start unparsable", goerr.V("start", decision.PayloadString("start")))
	}
	end, err := time.Parse(time.RFC3339, decision.PayloadString("end"))
	if err != nil {
		end = start.Add(time.Hour)
	}

	blockIntent := decision.PayloadString("title")
	if blockIntent == "" {
		blockIntent = model.ScheduleIntentFocusBlock
	}

	block := &model.ScheduleBlock{
		Intent:  blockIntent,
		StartAt: start,
		EndAt:   end,
		GoalID:  types.GoalID(decision.PayloadString("goal_id")),
	}
	if err := block.Validate(); err != nil {
		return &ActionResult{
			Action: types.ActionScheduleCreate,
			Status: ActionStatusFailed,
			IDs:    map[string]string{},
		}, goerr.Wrap(types.ErrPersistenceFailed, "schedule block invalid", goerr.V("cause", err.Error()))
	}

	created, err := uc.repo.Schedule().Create(ctx, userID, block)
	if err != nil {
		return &ActionResult{
			Action: types.ActionScheduleCreate,
			Status: ActionStatusFailed,
			IDs:    map[string]string{},
		}, goerr.Wrap(types.ErrPersistenceFailed, "schedule create failed", goerr.V("cause", err.Error()))
	}

	uc.auditAsync(ctx, userID, "schedule.created", "schedule", string(created.ID), map[string]any{
		"intent": created.Intent,
		"start":  created.StartAt.Format(time.RFC3339),
		"end":    created.EndAt.Format(time.RFC3339),
	})

	return &ActionResult{
		Action:  types.ActionScheduleCreate,
		Status:  ActionStatusCompleted,
		Message: created.Confirmation(),
		IDs:     map[string]string{"schedule": string(created.ID)},
	}, nil
}

func (uc *UseCases) createEntry(ctx context.Context, userID types.UserID, intent *model.CanonicalIntent, utterance string) (*model.Entry, error) {
	entry := &model.Entry{
		Content: utterance,
		Summary: model.Summarize(utterance),
	}
	if intent != nil {
		entry.Intent = &model.IntentMeta{
			ClassificationID: intent.ID,
			Label:            intent.RawLabel,
			Confidence:       intent.Confidence,
			Subsystem:        intent.Subsystem,
		}
	}
	return uc.repo.Entry().Create(ctx, userID, entry)
}

// indexEntryAsync re-indexes the entry for retrieval off the turn's critical
// path. Index failures never touch the reply.
func (uc *UseCases) indexEntryAsync(ctx context.Context, entry *model.Entry) {
	if uc.index == nil {
		return
	}
	record := interfaces.IndexRecord{
		ID:   string(entry.ID),
		Kind: "entry",
		Text: entry.Content,
		Metadata: map[string]string{
			"created_at": entry.CreatedAt.Format(time.RFC3339),
		},
	}
	uc.tasks.Dispatch(ctx, "index-entry", func(ctx context.Context) error {
		if err := uc.index.Upsert(ctx, []interfaces.IndexRecord{record}); err != nil {
			logging.From(ctx).Warn("entry indexing failed", "entryID", record.ID, "error", err.Error())
		}
		return nil
	})
}

func (uc *UseCases) indexGoalAsync(ctx context.Context, goal *model.Goal) {
	if uc.index == nil {
		return
	}
	record := interfaces.IndexRecord{
		ID:   string(goal.ID),
		Kind: "goal",
		Text: goal.Title + "\n" + goal.Description,
		Metadata: map[string]string{
			"status": goal.Status.String(),
		},
	}
	uc.tasks.Dispatch(ctx, "index-goal", func(ctx context.Context) error {
		if err := uc.index.Upsert(ctx, []interfaces.IndexRecord{record}); err != nil {
			logging.From(ctx).Warn("goal indexing failed", "goalID", record.ID, "error", err.Error())
		}
		return nil
	})
}

func (uc *UseCases) auditAsync(ctx context.Context, userID types.UserID, eventType, subjectType, subjectID string, payload map[string]any) {
	ev := &model.AuditEvent{
		Type:        eventType,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Payload:     payload,
	}
	uc.tasks.Dispatch(ctx, "audit-"+eventType, func(ctx context.Context) error {
		if err := uc.repo.Audit().Insert(ctx, userID, ev); err != nil {
			logging.From(ctx).Warn("audit insert failed", "type", eventType, "error", err.Error())
		}
		return nil
	})
}
