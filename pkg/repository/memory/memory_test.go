package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
)

const testUser = types.UserID("user-1")

func TestEntryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	created, err := repo.Entry().Create(ctx, testUser, &model.Entry{
		Content: "Morning run felt strong",
		Summary: "Morning run felt strong",
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, created.ID != "").True()
	gt.Value(t, created.UserID).Equal(testUser)
	gt.Bool(t, created.CreatedAt.IsZero()).False()

	appended, err := repo.Entry().Append(ctx, testUser, created.ID, "negative split on the last mile")
	gt.NoError(t, err).Required()
	gt.Value(t, appended.Content).Equal("Morning run felt strong" + model.AppendSeparator + "negative split on the last mile")

	got, err := repo.Entry().Get(ctx, testUser, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Content).Equal(appended.Content)

	_, err = repo.Entry().Append(ctx, testUser, types.EntryID("missing"), "nothing")
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
}

func TestEntryListRecentOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	for i := 0; i < 3; i++ {
		_, err := repo.Entry().Create(ctx, testUser, &model.Entry{Content: fmt.Sprintf("entry %d", i)})
		gt.NoError(t, err).Required()
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := repo.Entry().ListRecent(ctx, testUser, 2)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(2)
	gt.Value(t, entries[0].Content).Equal("entry 2")
	gt.Value(t, entries[1].Content).Equal("entry 1")
}

func TestEntrySetGoalID(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	created, err := repo.Entry().Create(ctx, testUser, &model.Entry{Content: "start learning piano"})
	gt.NoError(t, err).Required()

	goalID := types.NewGoalID()
	gt.NoError(t, repo.Entry().SetGoalID(ctx, testUser, created.ID, goalID)).Required()

	got, err := repo.Entry().Get(ctx, testUser, created.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.GoalID).Equal(goalID)
}

func TestGoalActiveCap(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	for i := 0; i < model.ActiveGoalCap; i++ {
		_, err := repo.Goal().Create(ctx, testUser, &model.Goal{Title: fmt.Sprintf("goal %d", i)})
		gt.NoError(t, err).Required()
	}

	_, err := repo.Goal().Create(ctx, testUser, &model.Goal{Title: "one too many"})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, interfaces.ErrGoalLimit)).True()

	count, err := repo.Goal().CountActive(ctx, testUser)
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(model.ActiveGoalCap)

	// Another user is unaffected by this user's cap.
	_, err = repo.Goal().Create(ctx, types.UserID("user-2"), &model.Goal{Title: "fresh start"})
	gt.NoError(t, err)
}

func TestGoalCapFreesOnPause(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	var first *model.Goal
	for i := 0; i < model.ActiveGoalCap; i++ {
		goal, err := repo.Goal().Create(ctx, testUser, &model.Goal{Title: fmt.Sprintf("goal %d", i)})
		gt.NoError(t, err).Required()
		if first == nil {
			first = goal
		}
	}

	first.Status = types.GoalStatusPaused
	_, err := repo.Goal().Update(ctx, testUser, first)
	gt.NoError(t, err).Required()

	created, err := repo.Goal().Create(ctx, testUser, &model.Goal{Title: "room again"})
	gt.NoError(t, err).Required()
	gt.Value(t, created.Status).Equal(types.GoalStatusActive)

	active, err := repo.Goal().ListActive(ctx, testUser, 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(active)).Equal(model.ActiveGoalCap)
}

func TestScheduleListUpcoming(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	base := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{48 * time.Hour, 0, 24 * time.Hour} {
		_, err := repo.Schedule().Create(ctx, testUser, &model.ScheduleBlock{
			Intent:  model.ScheduleIntentFocusBlock,
			StartAt: base.Add(offset),
			EndAt:   base.Add(offset + time.Hour),
		})
		gt.NoError(t, err).Required()
	}

	blocks, err := repo.Schedule().ListUpcoming(ctx, testUser, base.Add(30*time.Hour), 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(blocks)).Equal(2)
	gt.Value(t, blocks[0].StartAt).Equal(base)
	gt.Value(t, blocks[1].StartAt).Equal(base.Add(24 * time.Hour))
}

func TestScheduleRejectsInvalidBlock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	start := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	_, err := repo.Schedule().Create(ctx, testUser, &model.ScheduleBlock{
		Intent:  model.ScheduleIntentFocusBlock,
		StartAt: start,
		EndAt:   start,
	})
	gt.Error(t, err)
}

func TestTraceRecordAndPatch(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	recorded, err := repo.Trace().Record(ctx, testUser, &model.TraceEvent{
		MaskedText:  "plan a gym session",
		IntentLabel: types.IntentScheduleCreate,
	})
	gt.NoError(t, err).Required()
	gt.Bool(t, recorded.ID != "").True()

	latency := int64(120)
	err = repo.Trace().Patch(ctx, testUser, recorded.ID, &model.TracePatch{
		Planner:       map[string]any{"action": "schedule_create"},
		Receipts:      []string{"schedule:block-1"},
		LatencyMillis: &latency,
	})
	gt.NoError(t, err).Required()

	events, err := repo.Trace().List(ctx, testUser, 1)
	gt.NoError(t, err).Required()
	gt.Value(t, len(events)).Equal(1)
	gt.Value(t, events[0].Planner["action"]).Equal(any("schedule_create"))
	gt.Value(t, events[0].Receipts).Equal([]string{"schedule:block-1"})
	gt.Value(t, events[0].LatencyMillis).Equal(latency)
	gt.Value(t, events[0].MaskedText).Equal("plan a gym session")

	err = repo.Trace().Patch(ctx, testUser, types.TraceID("missing"), &model.TracePatch{})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
}

func TestTraceRetentionCap(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < model.MaxTraces+10; i++ {
		_, err := repo.Trace().Record(ctx, testUser, &model.TraceEvent{
			MaskedText: fmt.Sprintf("turn %d", i),
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		gt.NoError(t, err).Required()
	}

	events, err := repo.Trace().List(ctx, testUser, 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(events)).Equal(model.MaxTraces)
	gt.Value(t, events[0].MaskedText).Equal(fmt.Sprintf("turn %d", model.MaxTraces+9))
}

func TestAuditInsertAndList(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	for i := 0; i < 3; i++ {
		err := repo.Audit().Insert(ctx, testUser, &model.AuditEvent{
			Type:    "entry.created",
			Payload: map[string]any{"seq": i},
		})
		gt.NoError(t, err).Required()
	}

	events, err := repo.Audit().List(ctx, testUser, 2)
	gt.NoError(t, err).Required()
	gt.Value(t, len(events)).Equal(2)
	gt.Value(t, events[0].Payload["seq"]).Equal(any(2))
	gt.Bool(t, events[0].ID != "").True()
}
