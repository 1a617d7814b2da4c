package usecase

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/service/retrieval"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

const (
	// pictureMaxAge bounds how old a cached operating picture may be before
	// it is rebuilt from the repositories.
	pictureMaxAge = 15 * time.Minute

	scheduleHorizon = 72 * time.Hour

	retrievalLimit   = 9
	retrievalPerKind = 3

	suggestionMinutes = 45
)

// suggestionHours are the local-time anchors for proposed focus blocks.
var suggestionHours = []int{9, 13, 16}

// AssembleBrief builds the situational brief for one turn. Sub-fetches run in
// parallel and degrade independently: a failed fetch is logged and yields an
// empty section, never a failed turn.
func (uc *UseCases) AssembleBrief(ctx context.Context, userID types.UserID, intent *model.CanonicalIntent, queryText string, cached *model.OperatingPicture) (*model.SituationalBrief, *model.OperatingPicture, error) {
	logger := logging.From(ctx)

	var (
		picture     *model.OperatingPicture
		hits        []model.RagHit
		goalContext []model.GoalContext
	)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if cached != nil && uc.now().Sub(cached.ResolvedAt) < pictureMaxAge {
			picture = cached
			return nil
		}
		built, err := uc.buildOperatingPicture(ctx, userID)
		if err != nil {
			logger.Warn("operating picture build failed", "userID", userID, "error", err.Error())
			picture = model.DefaultOperatingPicture()
			return nil
		}
		picture = built
		return nil
	})

	eg.Go(func() error {
		if uc.index == nil || queryText == "" {
			return nil
		}
		found, err := uc.index.Search(ctx, interfaces.SearchQuery{
			Text:    queryText,
			Limit:   retrievalLimit,
			PerKind: retrievalPerKind,
			Kinds:   retrievalKinds(intent),
		})
		if err != nil {
			logger.Warn("retrieval failed", "userID", userID, "error", err.Error())
			return nil
		}
		hits = found
		return nil
	})

	eg.Go(func() error {
		goals, err := uc.repo.Goal().ListActive(ctx, userID, model.ActiveGoalCap)
		if err != nil {
			logger.Warn("goal context fetch failed", "userID", userID, "error", err.Error())
			return nil
		}
		goalContext = make([]model.GoalContext, 0, len(goals))
		for i, goal := range goals {
			// Most recently updated goal carries the highest priority.
			priority := 1.0 - float64(i)*0.15
			goalContext = append(goalContext, goal.Context(priority))
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	if picture == nil {
		picture = model.DefaultOperatingPicture()
	}

	hits, retrievalTrace := uc.rerankHits(intent, hits)

	brief := &model.SituationalBrief{
		TopGoals:    picture.TopGoals,
		HotEntries:  picture.HotEntries,
		Next72h:     picture.Next72h,
		Cadence:     picture.Cadence,
		RiskFlags:   picture.RiskFlags,
		Hits:        hits,
		Retrieval:   retrievalTrace,
		GoalContext: goalContext,
		Suggestions: uc.suggestBlocks(picture, goalContext),
	}

	return brief, picture, nil
}

// rerankHits re-orders the retrieval hits by the composite context score and
// keeps the per-hit factor breakdown for the turn trace.
func (uc *UseCases) rerankHits(intent *model.CanonicalIntent, hits []model.RagHit) ([]model.RagHit, []model.TraceRetrieval) {
	if len(hits) == 0 {
		return hits, nil
	}

	records := make([]retrieval.ContextRecord, 0, len(hits))
	byID := make(map[string]model.RagHit, len(hits))
	for _, hit := range hits {
		byID[hit.ID] = hit
		record := retrieval.ContextRecord{
			ID:    hit.ID,
			Kind:  hit.Kind,
			Text:  hit.Snippet,
			Score: hit.Score,
		}
		if millis, err := strconv.ParseInt(hit.Metadata["ts"], 10, 64); err == nil {
			record.TS = time.UnixMilli(millis).UTC()
		}
		records = append(records, record)
	}

	scored := retrieval.ScoreContextRecords(records, &retrieval.ScoreOptions{
		UserTimezone:       uc.timezone,
		CoachingSuggestion: coachingSuggestion(intent),
		Now:                uc.now().UTC(),
	})

	ranked := make([]model.RagHit, 0, len(scored))
	trace := make([]model.TraceRetrieval, 0, len(scored))
	for _, record := range scored {
		hit := byID[record.ID]
		ranked = append(ranked, hit)
		trace = append(trace, model.TraceRetrieval{
			ID:      record.ID,
			Kind:    record.Kind,
			Blended: hit.Blended,
			Scoring: record.Scoring,
		})
	}
	return ranked, trace
}

// coachingSuggestion maps the intent's subsystem onto the scorer's coaching
// hint.
func coachingSuggestion(intent *model.CanonicalIntent) string {
	if intent == nil {
		return ""
	}
	switch intent.Subsystem {
	case types.SubsystemGoals:
		return "goal_check"
	case types.SubsystemEntries:
		return "reflection"
	default:
		return ""
	}
}

// buildOperatingPicture aggregates goals, entries, schedule and cadence into
// a fresh snapshot.
func (uc *UseCases) buildOperatingPicture(ctx context.Context, userID types.UserID) (*model.OperatingPicture, error) {
	now := uc.now().UTC()

	goals, err := uc.repo.Goal().ListActive(ctx, userID, model.BriefMaxGoals)
	if err != nil {
		return nil, err
	}
	topGoals := make([]model.GoalSummary, 0, len(goals))
	for i, goal := range goals {
		topGoals = append(topGoals, model.GoalSummary{
			ID:            goal.ID,
			Title:         goal.Title,
			Status:        goal.Status.Normalize(),
			PriorityScore: 1.0 - float64(i)*0.15,
			CurrentStep:   goal.CurrentStep,
		})
	}

	entries, err := uc.repo.Entry().ListRecent(ctx, userID, model.BriefMaxEntries)
	if err != nil {
		return nil, err
	}
	hotEntries := make([]model.EntrySummary, 0, len(entries))
	for _, entry := range entries {
		summary := entry.Summary
		if summary == "" {
			summary = model.Summarize(entry.Content)
		}
		hotEntries = append(hotEntries, model.EntrySummary{
			ID:        entry.ID,
			Summary:   summary,
			Urgency:   entryUrgency(entry.CreatedAt, now),
			CreatedAt: entry.CreatedAt,
		})
	}

	blocks, err := uc.repo.Schedule().ListUpcoming(ctx, userID, now.Add(scheduleHorizon), model.BriefMaxSchedule)
	if err != nil {
		return nil, err
	}
	next72h := make([]model.ScheduleSummary, 0, len(blocks))
	for _, block := range blocks {
		next72h = append(next72h, model.ScheduleSummary{
			ID:      block.ID,
			Intent:  block.Intent,
			StartAt: block.StartAt,
			EndAt:   block.EndAt,
		})
	}

	cadence := model.DefaultCadenceProfile()
	cadence.Timezone = uc.timezone
	if len(entries) > 0 {
		last := entries[0].CreatedAt
		cadence.LastMessageAt = &last
		cadence.MissedDays = int(now.Sub(last).Hours() / 24)
		cadence.Cadence = cadenceFor(entries)
	}

	return &model.OperatingPicture{
		TopGoals:   topGoals,
		HotEntries: hotEntries,
		Next72h:    next72h,
		Cadence:    cadence,
		RiskFlags:  riskFlags(topGoals, cadence),
		ResolvedAt: now,
	}, nil
}

// suggestBlocks proposes up to three focus blocks at fixed local-time
// anchors, skipping anchors that collide with existing blocks.
func (uc *UseCases) suggestBlocks(picture *model.OperatingPicture, goalContext []model.GoalContext) []model.ScheduleSuggestion {
	loc, err := time.LoadLocation(uc.timezone)
	if err != nil {
		loc = time.UTC
	}
	now := uc.now().In(loc)

	var goalID types.GoalID
	step := ""
	if len(goalContext) > 0 {
		goalID = goalContext[0].ID
		if next := goalContext[0].NextMicroStep(); next != nil {
			step = next.Description
		}
	}

	suggestions := make([]model.ScheduleSuggestion, 0, len(suggestionHours))
	for _, hour := range suggestionHours {
		start := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
		if !start.After(now) {
			start = start.AddDate(0, 0, 1)
		}
		end := start.Add(suggestionMinutes * time.Minute)
		if overlapsExisting(picture.Next72h, start, end) {
			continue
		}
		receipts := map[string]string{"anchor": start.Format("15:04")}
		if step != "" {
			receipts["step"] = step
		}
		suggestions = append(suggestions, model.ScheduleSuggestion{
			StartAt:  start,
			EndAt:    end,
			Intent:   model.ScheduleIntentFocusBlock,
			GoalID:   goalID,
			Receipts: receipts,
		})
	}
	return suggestions
}

func overlapsExisting(blocks []model.ScheduleSummary, start, end time.Time) bool {
	for _, block := range blocks {
		if start.Before(block.EndAt) && block.StartAt.Before(end) {
			return true
		}
	}
	return false
}

// retrievalKinds scopes the search to the kinds the intent's subsystem cares
// about. Chat and search stay unscoped.
func retrievalKinds(intent *model.CanonicalIntent) []string {
	if intent == nil {
		return nil
	}
	switch intent.Subsystem {
	case types.SubsystemEntries:
		return []string{"entry", "goal"}
	case types.SubsystemGoals:
		return []string{"goal", "entry"}
	case types.SubsystemSchedule:
		return []string{"schedule", "goal"}
	default:
		return nil
	}
}

// entryUrgency decays from 1.0 at creation to 0 over three days.
func entryUrgency(createdAt, now time.Time) float64 {
	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}
	urgency := 1.0 - age.Hours()/72.0
	if urgency < 0 {
		return 0
	}
	return urgency
}

// cadenceFor infers a rough journaling rhythm from recent entry spacing.
func cadenceFor(entries []*model.Entry) string {
	if len(entries) < 2 {
		return "none"
	}
	span := entries[0].CreatedAt.Sub(entries[len(entries)-1].CreatedAt)
	perEntry := span / time.Duration(len(entries)-1)
	switch {
	case perEntry <= 36*time.Hour:
		return "daily"
	case perEntry <= 8*24*time.Hour:
		return "weekly"
	default:
		return "sporadic"
	}
}

func riskFlags(goals []model.GoalSummary, cadence model.CadenceProfile) []string {
	var flags []string
	if len(goals) >= model.ActiveGoalCap {
		flags = append(flags, "goal_cap_reached")
	}
	if cadence.MissedDays >= 3 {
		flags = append(flags, "cadence_lapsed")
	}
	return flags
}
