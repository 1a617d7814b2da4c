package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

func intentFor(label types.IntentLabel, confidence float64) *model.CanonicalIntent {
	return &model.CanonicalIntent{
		ID:           "cls-1",
		RawLabel:     label,
		DisplayLabel: model.DisplayLabelFor(label),
		Confidence:   confidence,
		Subsystem:    label.Subsystem(),
		Slots:        map[string]string{},
	}
}

func TestPlanConfidenceLadder(t *testing.T) {
	t.Run("below clarify floor does nothing", func(t *testing.T) {
		decision := usecase.Plan(intentFor(types.IntentEntryCreate, 0.3), nil)
		gt.Value(t, decision.Action).Equal(types.ActionNone)
		gt.Value(t, decision.ClarifyingQuestion).Equal("")
	})

	t.Run("mid band asks a clarifying question", func(t *testing.T) {
		decision := usecase.Plan(intentFor(types.IntentEntryCreate, 0.6), nil)
		gt.Value(t, decision.Action).Equal(types.ActionNone)
		gt.Value(t, decision.ClarifyingQuestion).Equal("Did you want to entry create?")
	})

	t.Run("above route threshold commits", func(t *testing.T) {
		intent := intentFor(types.IntentEntryCreate, 0.9)
		intent.Slots["ts"] = "2025-03-10T12:00:00Z"
		decision := usecase.Plan(intent, nil)
		gt.Value(t, decision.Action).Equal(types.ActionEntryCreate)
		gt.Value(t, decision.ClarifyingQuestion).Equal("")
		gt.Value(t, decision.PayloadString("ts")).Equal("2025-03-10T12:00:00Z")
	})

	t.Run("nil intent does nothing", func(t *testing.T) {
		gt.Value(t, usecase.Plan(nil, nil).Action).Equal(types.ActionNone)
	})
}

func TestPlanAppendTargetResolution(t *testing.T) {
	t.Run("resolved target routes to append", func(t *testing.T) {
		intent := intentFor(types.IntentEntryAppend, 0.91)
		intent.Routing = &model.RoutingHint{
			TargetEntryID:   "entry-1",
			TargetEntryType: "journal",
		}
		decision := usecase.Plan(intent, nil)
		gt.Value(t, decision.Action).Equal(types.ActionEntryAppend)
		gt.Value(t, decision.PayloadString("target_entry_id")).Equal("entry-1")
		gt.Value(t, decision.PayloadString("target_entry_type")).Equal("journal")
	})

	t.Run("missing target falls back to create", func(t *testing.T) {
		decision := usecase.Plan(intentFor(types.IntentEntryAppend, 0.91), nil)
		gt.Value(t, decision.Action).Equal(types.ActionEntryCreate)
	})
}

func TestPlanGoalPressure(t *testing.T) {
	brief := &model.SituationalBrief{
		GoalContext: []model.GoalContext{
			{ID: "g-1", Title: "marathon"},
			{ID: "g-2", Title: "piano"},
		},
	}
	decision := usecase.Plan(intentFor(types.IntentGoalCreate, 0.88), brief)
	gt.Value(t, decision.Action).Equal(types.ActionGoalCreate)
	gt.Value(t, decision.Payload["active_goals"]).Equal(any(2))
}

func TestPlanSecondaryIntent(t *testing.T) {
	intent := intentFor(types.IntentScheduleCreate, 0.92)
	intent.Probabilities = map[types.IntentLabel]float64{
		types.IntentScheduleCreate: 0.92,
		types.IntentGoalCreate:     0.65,
	}
	decision := usecase.Plan(intent, nil)
	gt.Value(t, decision.Action).Equal(types.ActionScheduleCreate)
	gt.Value(t, decision.Payload["secondary"]).Equal(any("goal_create"))
}

func TestPlanConversationalNeverActs(t *testing.T) {
	for _, label := range []types.IntentLabel{
		types.IntentConversational,
		types.IntentEntryDiscuss,
		types.IntentSearchQuery,
		types.IntentCommand,
	} {
		decision := usecase.Plan(intentFor(label, 0.95), nil)
		gt.Value(t, decision.Action).Equal(types.ActionNone)
	}
}

func TestPlanConfidenceScore(t *testing.T) {
	ctx := context.Background()
	uc := usecase.New(memory.New())

	t.Run("committed plan scores high", func(t *testing.T) {
		decision, confidence := uc.Plan(ctx, intentFor(types.IntentEntryCreate, 0.9), nil, "masked")
		gt.Value(t, decision.Action).Equal(types.ActionEntryCreate)
		gt.Value(t, confidence).Equal(0.7)
	})

	t.Run("clarification still scores high", func(t *testing.T) {
		decision, confidence := uc.Plan(ctx, intentFor(types.IntentGoalCreate, 0.6), nil, "masked")
		gt.Value(t, decision.Action).Equal(types.ActionNone)
		gt.Bool(t, decision.ClarifyingQuestion != "").True()
		gt.Value(t, confidence).Equal(0.7)
	})

	t.Run("no action and no question scores low", func(t *testing.T) {
		decision, confidence := uc.Plan(ctx, intentFor(types.IntentConversational, 0.95), nil, "masked")
		gt.Value(t, decision.Action).Equal(types.ActionNone)
		gt.Value(t, confidence).Equal(0.45)
	})
}
