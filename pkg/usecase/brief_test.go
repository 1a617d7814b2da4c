package usecase_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func TestAssembleBriefAggregates(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	for _, title := range []string{"marathon", "piano", "reading"} {
		_, err := repo.Goal().Create(ctx, "user-1", &model.Goal{
			Title:       title,
			CurrentStep: "first step",
		})
		gt.NoError(t, err).Required()
	}
	_, err := repo.Entry().Create(ctx, "user-1", &model.Entry{Content: "felt strong on the morning run"})
	gt.NoError(t, err).Required()

	brief, picture, err := uc.AssembleBrief(ctx, "user-1", nil, "morning run", nil)
	gt.NoError(t, err).Required()
	gt.Bool(t, picture != nil).True()

	gt.Value(t, len(brief.TopGoals)).Equal(3)
	gt.Value(t, len(brief.GoalContext)).Equal(3)
	gt.Value(t, len(brief.HotEntries)).Equal(1)
	gt.Bool(t, brief.HotEntries[0].Urgency > 0.9).True()
	gt.Bool(t, containsFlag(brief.RiskFlags, "goal_cap_reached")).True()

	// Priority decays with recency rank.
	gt.Bool(t, brief.GoalContext[0].PriorityScore > brief.GoalContext[2].PriorityScore).True()
}

func TestAssembleBriefReusesFreshPicture(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	uc := usecase.New(memory.New(), usecase.WithClock(func() time.Time { return now }))

	cached := &model.OperatingPicture{
		TopGoals:   []model.GoalSummary{{ID: "g-cached", Title: "cached goal"}},
		Cadence:    model.DefaultCadenceProfile(),
		ResolvedAt: now.Add(-5 * time.Minute),
	}

	brief, picture, err := uc.AssembleBrief(ctx, "user-1", nil, "", cached)
	gt.NoError(t, err).Required()
	gt.Value(t, picture).Equal(cached)
	gt.Value(t, brief.TopGoals[0].ID).Equal(types.GoalID("g-cached"))
}

func TestAssembleBriefRebuildsStalePicture(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	uc := usecase.New(memory.New(), usecase.WithClock(func() time.Time { return now }))

	cached := &model.OperatingPicture{
		TopGoals:   []model.GoalSummary{{ID: "g-stale", Title: "stale goal"}},
		Cadence:    model.DefaultCadenceProfile(),
		ResolvedAt: now.Add(-time.Hour),
	}

	brief, picture, err := uc.AssembleBrief(ctx, "user-1", nil, "", cached)
	gt.NoError(t, err).Required()
	gt.Bool(t, picture != cached).True()
	gt.Value(t, picture.ResolvedAt).Equal(now)
	gt.Value(t, len(brief.TopGoals)).Equal(0)
}

func TestAssembleBriefRanksHits(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	index := &stubIndex{hits: []model.RagHit{
		{ID: "entry-old", Kind: "entry", Score: 0.9, Blended: 0.9,
			Metadata: map[string]string{"ts": strconv.FormatInt(now.Add(-48*time.Hour).UnixMilli(), 10)}},
		{ID: "goal-fresh", Kind: "goal", Score: 0.4, Blended: 0.4,
			Metadata: map[string]string{"ts": strconv.FormatInt(now.Add(-time.Hour).UnixMilli(), 10)}},
	}}
	uc := usecase.New(memory.New(),
		usecase.WithIndex(index),
		usecase.WithClock(func() time.Time { return now }),
	)

	brief, _, err := uc.AssembleBrief(ctx, "user-1", nil, "morning run", nil)
	gt.NoError(t, err).Required()

	// Kind priority and recency outweigh the raw similarity edge.
	gt.Value(t, len(brief.Hits)).Equal(2)
	gt.Value(t, brief.Hits[0].ID).Equal("goal-fresh")

	gt.Value(t, len(brief.Retrieval)).Equal(2)
	gt.Value(t, brief.Retrieval[0].ID).Equal("goal-fresh")
	gt.Value(t, brief.Retrieval[0].Blended).Equal(0.4)
	gt.Value(t, len(brief.Retrieval[0].Scoring)).Equal(7)
}

func TestAssembleBriefSuggestsBlocks(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	// Morning clock, so same-day afternoon anchors stay eligible.
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	uc := usecase.New(repo, usecase.WithClock(func() time.Time { return now }))

	_, err := repo.Goal().Create(ctx, "user-1", &model.Goal{
		Title:      "marathon",
		MicroSteps: []model.MicroStep{model.NewMicroStep("lace up and run 3k")},
	})
	gt.NoError(t, err).Required()

	brief, _, err := uc.AssembleBrief(ctx, "user-1", nil, "", nil)
	gt.NoError(t, err).Required()

	gt.Value(t, len(brief.Suggestions)).Equal(3)
	for _, suggestion := range brief.Suggestions {
		gt.Value(t, suggestion.Intent).Equal(model.ScheduleIntentFocusBlock)
		gt.Bool(t, suggestion.StartAt.After(now)).True()
		gt.Value(t, suggestion.EndAt.Sub(suggestion.StartAt)).Equal(45 * time.Minute)
		gt.Value(t, suggestion.Receipts["step"]).Equal("lace up and run 3k")
	}
}
