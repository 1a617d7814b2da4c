package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/gollem"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

//go:embed prompt/planner_system.md
var plannerSystemPrompt string

// Routing thresholds. Commit to an action only above the route threshold;
// below it ask a clarifying question down to the clarify floor, then give up
// on any action.
const (
	routeAtThreshold         = 0.75
	clarifyLowerThreshold    = 0.45
	secondaryIntentThreshold = 0.6
)

// Plan maps a canonical intent plus brief to at most one action. Pure and
// deterministic: same inputs, same decision. Goal and schedule actions are
// proposals only; the executor enforces caps and conflict checks.
func Plan(intent *model.CanonicalIntent, brief *model.SituationalBrief) *model.PlannerDecision {
	if intent == nil {
		return model.NoDecision()
	}

	if intent.Confidence < clarifyLowerThreshold {
		return model.NoDecision()
	}

	if intent.Confidence < routeAtThreshold {
		question := "Did you want to " + strings.ToLower(intent.DisplayLabel) + "?"
		decision := model.NoDecision()
		decision.ClarifyingQuestion = question
		return decision
	}

	payload := map[string]any{}
	for k, v := range intent.Slots {
		payload[k] = v
	}
	if secondLabel, secondConf := intent.SecondBest(); secondConf >= secondaryIntentThreshold {
		payload["secondary"] = secondLabel.String()
	}

	action := actionForIntent(intent)
	if action == types.ActionNone {
		return model.NoDecision()
	}

	if action == types.ActionEntryAppend {
		// Appending and discussing need a resolved target entry. Without the
		// routing hint, fall back to creating a fresh entry.
		if intent.Routing == nil || intent.Routing.TargetEntryID == "" {
			action = types.ActionEntryCreate
		} else {
			payload["target_entry_id"] = string(intent.Routing.TargetEntryID)
			payload["target_entry_type"] = intent.Routing.TargetEntryType
		}
	}

	if action == types.ActionGoalCreate && brief != nil {
		// Surface the planner's view of goal pressure; the executor re-checks
		// the cap at execution time.
		payload["active_goals"] = len(brief.GoalContext)
	}

	return &model.PlannerDecision{
		Action:  action,
		Payload: payload,
	}
}

// Plan produces the turn's decision plus a plan confidence. When an LLM
// client is configured the model plans first and the deterministic rules act
// as validator and fallback; without one the rules decide alone.
func (uc *UseCases) Plan(ctx context.Context, intent *model.CanonicalIntent, brief *model.SituationalBrief, maskedText string) (*model.PlannerDecision, float64) {
	decision := uc.planWithLLM(ctx, intent, brief, maskedText)
	if decision == nil {
		decision = Plan(intent, brief)
	}

	confidence := 0.45
	if decision.Action != types.ActionNone || decision.ClarifyingQuestion != "" {
		confidence = 0.7
	}
	return decision, confidence
}

type plannerResponse struct {
	Action             string            `json:"action"`
	Payload            map[string]string `json:"payload"`
	ClarifyingQuestion string            `json:"clarifying_question"`
}

// planWithLLM asks the model for a decision. Any failure or invalid output
// returns nil so the caller falls back to the deterministic planner.
func (uc *UseCases) planWithLLM(ctx context.Context, intent *model.CanonicalIntent, brief *model.SituationalBrief, maskedText string) *model.PlannerDecision {
	if uc.llmClient == nil || intent == nil {
		return nil
	}
	if intent.Confidence < routeAtThreshold {
		// Below the commit threshold the rule-based clarify/fallback split is
		// authoritative; the model only fills in committed plans.
		return nil
	}

	logger := logging.From(ctx)

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(plannerResponseSchema()),
		gollem.WithSessionSystemPrompt(plannerSystemPrompt),
	)
	if err != nil {
		logger.Warn("planner session failed", "error", err.Error())
		return nil
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildPlannerPrompt(intent, brief, maskedText, uc.timezone)))
	if err != nil {
		logger.Warn("planner generation failed", "error", err.Error())
		return nil
	}
	if len(resp.Texts) == 0 {
		return nil
	}

	var parsed plannerResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		logger.Warn("planner response unparsable", "error", err.Error())
		return nil
	}

	return validatePlannerResponse(&parsed, intent)
}

// validatePlannerResponse enforces the rules the model must not break: one
// valid action, append targets resolved, no stray clarifications.
func validatePlannerResponse(parsed *plannerResponse, intent *model.CanonicalIntent) *model.PlannerDecision {
	action := types.ActionType(parsed.Action)
	switch action {
	case types.ActionNone, types.ActionEntryCreate, types.ActionEntryAppend,
		types.ActionGoalCreate, types.ActionScheduleCreate:
	default:
		return nil
	}

	payload := map[string]any{}
	for k, v := range intent.Slots {
		payload[k] = v
	}
	for k, v := range parsed.Payload {
		if v != "" {
			payload[k] = v
		}
	}

	if action == types.ActionEntryAppend {
		if _, ok := payload["target_entry_id"].(string); !ok {
			if intent.Routing == nil || intent.Routing.TargetEntryID == "" {
				action = types.ActionEntryCreate
			} else {
				payload["target_entry_id"] = string(intent.Routing.TargetEntryID)
				payload["target_entry_type"] = intent.Routing.TargetEntryType
			}
		}
	}

	decision := &model.PlannerDecision{Action: action, Payload: payload}
	if action == types.ActionNone {
		decision.ClarifyingQuestion = strings.TrimSpace(parsed.ClarifyingQuestion)
	}
	return decision
}

func plannerResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title: "PlannerDecision",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"action": {
				Type:        gollem.TypeString,
				Description: "One of: none, entry.create, entry.append, goal.create, schedule.create",
				Required:    true,
			},
			"payload": {
				Type:        gollem.TypeObject,
				Description: "String-valued fields for the executor",
				Properties:  map[string]*gollem.Parameter{},
				Required:    true,
			},
			"clarifying_question": {
				Type:        gollem.TypeString,
				Description: "Question to ask the user, empty unless action is none",
				Required:    true,
			},
		},
	}
}

// buildPlannerPrompt assembles the planner input in fixed section order so
// traces stay comparable across turns.
func buildPlannerPrompt(intent *model.CanonicalIntent, brief *model.SituationalBrief, maskedText, timezone string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[INTENT]\nlabel: %s\nconfidence: %.2f\n\n", intent.RawLabel, intent.Confidence)

	sb.WriteString("[SLOTS]\n")
	for k, v := range intent.Slots {
		fmt.Fprintf(&sb, "%s: %s\n", k, v)
	}
	sb.WriteString("\n[CONTEXT]\n")
	if brief != nil {
		for _, hit := range brief.Hits {
			fmt.Fprintf(&sb, "- (%s %s) %s\n", hit.Kind, hit.ID, hit.Snippet)
		}
		for _, block := range brief.Next72h {
			fmt.Fprintf(&sb, "- (schedule %s) %s %s\n", block.ID, block.Intent, block.StartAt.Format(time.RFC3339))
		}
	}

	fmt.Fprintf(&sb, "\n[USER]\n%s\n", maskedText)
	fmt.Fprintf(&sb, "\n[USER_CONFIG]\ntimezone: %s\n", timezone)

	sb.WriteString("\n[GOALS]\n")
	if brief != nil {
		for _, goal := range brief.GoalContext {
			fmt.Fprintf(&sb, "- (%s) %s [%s]\n", goal.ID, goal.Title, goal.Status)
		}
	}

	return sb.String()
}

func actionForIntent(intent *model.CanonicalIntent) types.ActionType {
	switch intent.RawLabel {
	case types.IntentEntryCreate:
		return types.ActionEntryCreate
	case types.IntentEntryAppend:
		return types.ActionEntryAppend
	case types.IntentGoalCreate:
		return types.ActionGoalCreate
	case types.IntentScheduleCreate:
		return types.ActionScheduleCreate
	case types.IntentEntryDiscuss, types.IntentConversational,
		types.IntentSearchQuery, types.IntentCommand:
		return types.ActionNone
	default:
		return types.ActionNone
	}
}
