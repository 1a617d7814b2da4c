package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"

	"github.com/m-mizutani/gollem"
)

//go:embed prompt/synthesis_system.md
var synthesisSystemPrompt string

//go:embed prompt/synthesis_extract.md
var synthesisExtractPrompt string

const maxLevers = 3

// SynthesisInput is everything the synthesizer may draw on for one turn.
// MaskedText is the redacted utterance; raw text never reaches a prompt.
type SynthesisInput struct {
	MaskedText     string
	Intent         *model.CanonicalIntent
	Brief          *model.SituationalBrief
	Decision       *model.PlannerDecision
	PlanConfidence float64
}

// Synthesize produces the turn's reply and structured synthesis. Tokens are
// sent to the caller-owned channel as they arrive; the channel is never
// closed here. Streaming failures fall back to a single non-streamed
// generation whose reply is emitted once, so the caller cannot tell the two
// paths apart except by token granularity.
func (uc *UseCases) Synthesize(ctx context.Context, input *SynthesisInput, tokens chan<- string) (*model.Synthesis, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.synthesisTimeout)
	defer cancel()

	synthesis := uc.skeletonSynthesis(input)

	if uc.llmClient == nil {
		synthesis.Reply = uc.finalizeReply(deterministicReply(input, synthesis), synthesis)
		emit(ctx, tokens, synthesis.Reply)
		return synthesis, nil
	}

	reply, streamed, err := uc.streamReply(ctx, input, tokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(types.ErrCallTimeout, "synthesis timed out")
		}
		logging.From(ctx).Warn("streaming synthesis failed, retrying non-streamed", "error", err.Error())
		reply, err = uc.generateReplyOnce(ctx, input)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, goerr.Wrap(types.ErrCallTimeout, "synthesis timed out")
			}
			return nil, goerr.Wrap(types.ErrSynthesisFailed, "both synthesis paths failed", goerr.V("cause", err.Error()))
		}
	}

	synthesis.Reply = uc.finalizeReply(reply, synthesis)
	if !streamed {
		emit(ctx, tokens, synthesis.Reply)
	}

	// The extract pass decorates the skeleton; the reply is already final and
	// an extract failure only costs structure, never the reply.
	if extracted := uc.extractStructure(ctx, input, synthesis.Reply); extracted != nil {
		extracted.Reply = synthesis.Reply
		extracted.Confidence = synthesis.Confidence
		synthesis = extracted
	}

	return synthesis, nil
}

// streamReply streams the reply token by token. Returns the accumulated
// text and whether any token reached the channel.
func (uc *UseCases) streamReply(ctx context.Context, input *SynthesisInput, tokens chan<- string) (string, bool, error) {
	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(uc.synthesisSystem()),
	)
	if err != nil {
		return "", false, err
	}

	stream, err := session.GenerateStream(ctx, gollem.Text(buildSynthesisPrompt(input)))
	if err != nil {
		return "", false, err
	}

	var sb strings.Builder
	streamed := false
	for resp := range stream {
		if resp.Error != nil {
			if streamed {
				// Tokens already reached the user; a fresh non-streamed reply
				// would contradict them. Keep what was shown.
				logging.From(ctx).Warn("stream broke mid-reply, keeping partial text", "error", resp.Error.Error())
				return sb.String(), true, nil
			}
			return "", false, resp.Error
		}
		for _, text := range resp.Texts {
			if text == "" {
				continue
			}
			sb.WriteString(text)
			streamed = true
			emit(ctx, tokens, text)
		}
	}

	if sb.Len() == 0 {
		return "", false, goerr.New("stream produced no text")
	}
	return sb.String(), streamed, nil
}

// generateReplyOnce is the non-streamed fallback path.
func (uc *UseCases) generateReplyOnce(ctx context.Context, input *SynthesisInput) (string, error) {
	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(uc.synthesisSystem()),
	)
	if err != nil {
		return "", err
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildSynthesisPrompt(input)))
	if err != nil {
		return "", err
	}
	if len(resp.Texts) == 0 || strings.TrimSpace(resp.Texts[0]) == "" {
		return "", goerr.New("empty synthesis response")
	}
	return resp.Texts[0], nil
}

type extractResponse struct {
	Diagnosis string `json:"diagnosis"`
	Levers    []struct {
		Label    string `json:"label"`
		Evidence string `json:"evidence"`
		Receipt  string `json:"receipt"`
	} `json:"levers"`
	ActionTitle  string `json:"action_title"`
	ActionDetail string `json:"action_detail"`
	Reply        string `json:"reply"`
	Learned      string `json:"learned"`
	Ethical      string `json:"ethical"`
}

// extractStructure runs the structured second pass. Returns nil when the
// pass fails or violates the schema, leaving the heuristic skeleton in
// place.
func (uc *UseCases) extractStructure(ctx context.Context, input *SynthesisInput, reply string) *model.Synthesis {
	logger := logging.From(ctx)

	session, err := uc.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(extractResponseSchema()),
		gollem.WithSessionSystemPrompt(synthesisExtractPrompt),
	)
	if err != nil {
		logger.Warn("extract session failed", "error", err.Error())
		return nil
	}

	prompt := buildSynthesisPrompt(input) + "\n[REPLY]\n" + reply + "\n"
	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		logger.Warn("extract generation failed", "error", err.Error())
		return nil
	}
	if len(resp.Texts) == 0 {
		return nil
	}

	var parsed extractResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		logger.Warn("extract response unparsable", "error", err.Error())
		return nil
	}
	for field, value := range map[string]string{
		"diagnosis": parsed.Diagnosis,
		"reply":     parsed.Reply,
		"learned":   parsed.Learned,
		"ethical":   parsed.Ethical,
	} {
		if strings.TrimSpace(value) == "" {
			logger.Warn("extract response missing required field", "field", field)
			return nil
		}
	}

	out := &model.Synthesis{
		Diagnosis: parsed.Diagnosis,
		Learned:   parsed.Learned,
		Ethical:   parsed.Ethical,
		Action: model.SynthesisAction{
			Title:  parsed.ActionTitle,
			Detail: parsed.ActionDetail,
		},
	}
	for _, lever := range parsed.Levers {
		if len(out.Levers) == maxLevers {
			break
		}
		if strings.TrimSpace(lever.Label) == "" {
			continue
		}
		out.Levers = append(out.Levers, model.Lever{
			Label:    lever.Label,
			Evidence: lever.Evidence,
			Receipt:  lever.Receipt,
		})
	}
	return out
}

func extractResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title: "TurnSynthesis",
		Type:  gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"diagnosis": {
				Type:        gollem.TypeString,
				Description: "One sentence naming the key pattern in the user's state",
				Required:    true,
			},
			"levers": {
				Type:        gollem.TypeArray,
				Description: "Up to three factors behind the diagnosis",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"label":    {Type: gollem.TypeString, Required: true},
						"evidence": {Type: gollem.TypeString, Required: true},
						"receipt":  {Type: gollem.TypeString, Required: true},
					},
				},
			},
			"action_title":  {Type: gollem.TypeString, Required: true},
			"action_detail": {Type: gollem.TypeString, Required: true},
			"reply": {
				Type:        gollem.TypeString,
				Description: "The drafted reply, copied exactly",
				Required:    true,
			},
			"learned": {Type: gollem.TypeString, Required: true},
			"ethical": {Type: gollem.TypeString, Required: true},
		},
	}
}

// skeletonSynthesis builds the deterministic baseline: diagnosis from the
// most pressing signal, levers with receipts, action from the decision, and
// the confidence vector.
func (uc *UseCases) skeletonSynthesis(input *SynthesisInput) *model.Synthesis {
	brief := input.Brief
	if brief == nil {
		brief = &model.SituationalBrief{}
	}

	synthesis := &model.Synthesis{
		Diagnosis:  diagnose(brief),
		Levers:     buildLevers(brief),
		Confidence: confidenceVector(brief, input.PlanConfidence),
	}

	if input.Decision != nil && input.Decision.Action != types.ActionNone {
		synthesis.Action = model.SynthesisAction{
			Title: input.Decision.Action.String(),
		}
	}

	return synthesis
}

// diagnose picks the single most pressing signal: risk flag, then top goal,
// then hot entry, then steady state.
func diagnose(brief *model.SituationalBrief) string {
	if len(brief.RiskFlags) > 0 {
		switch brief.RiskFlags[0] {
		case "goal_cap_reached":
			return "You're carrying a full plate of active goals right now."
		case "cadence_lapsed":
			return "It's been a few days since you last checked in."
		default:
			return "Something in your recent pattern needs attention."
		}
	}
	if len(brief.TopGoals) > 0 {
		return fmt.Sprintf("Your main focus right now is %q.", brief.TopGoals[0].Title)
	}
	if len(brief.HotEntries) > 0 {
		return "Your recent reflections are the clearest signal of where you are."
	}
	return "You're in a steady state with room to set a direction."
}

func buildLevers(brief *model.SituationalBrief) []model.Lever {
	var levers []model.Lever
	for _, goal := range brief.TopGoals {
		if len(levers) == maxLevers {
			return levers
		}
		levers = append(levers, model.Lever{
			Label:    goal.Title,
			Evidence: fmt.Sprintf("Active goal, current step: %s", goal.CurrentStep),
			Receipt:  "goal:" + string(goal.ID),
		})
	}
	for _, entry := range brief.HotEntries {
		if len(levers) == maxLevers {
			return levers
		}
		levers = append(levers, model.Lever{
			Label:    entry.Summary,
			Evidence: "Recent entry from " + entry.CreatedAt.Format("Jan 2"),
			Receipt:  "entry:" + string(entry.ID),
		})
	}
	return levers
}

// confidenceVector scores retrieval by hit count, carries the plan
// confidence through, and averages the two.
func confidenceVector(brief *model.SituationalBrief, planConfidence float64) model.ConfidenceVector {
	retrieval := 0.5 + 0.1*float64(len(brief.Hits))
	if retrieval > 1 {
		retrieval = 1
	}
	return model.ConfidenceVector{
		Retrieval: retrieval,
		Plan:      planConfidence,
		Overall:   (retrieval + planConfidence) / 2,
	}
}

// actionReceipts turns the executor's durable IDs into receipt citations.
// Called at settle time, once the outcome exists.
func actionReceipts(outcome *ActionResult) map[string]string {
	if outcome == nil {
		return nil
	}
	receipts := map[string]string{}
	for k, v := range outcome.IDs {
		receipts[k] = v
	}
	if len(receipts) == 0 {
		return nil
	}
	return receipts
}

// deterministicReply renders a reply without any model call, used when no
// LLM client is configured. Action confirmations arrive later through the
// outcome message, so the reply carries only the diagnosis or a question.
func deterministicReply(input *SynthesisInput, synthesis *model.Synthesis) string {
	if input.Decision != nil && input.Decision.ClarifyingQuestion != "" {
		return input.Decision.ClarifyingQuestion
	}
	return synthesis.Diagnosis
}

// finalizeReply stitches the outcome line and receipts footer onto the
// reply. The outcome line wins over whatever the model said about the
// action, so confirmations and limit notices are always verbatim.
func (uc *UseCases) finalizeReply(reply string, synthesis *model.Synthesis) string {
	reply = strings.TrimSpace(reply)
	if footer := synthesis.ReceiptsFooter(); len(footer) > 0 {
		reply += "\n\n" + strings.Join(footer, "\n")
	}
	return reply
}

func (uc *UseCases) synthesisSystem() string {
	if uc.persona == "" {
		return synthesisSystemPrompt
	}
	return synthesisSystemPrompt + "\n# Persona\n\n" + uc.persona + "\n"
}

// buildSynthesisPrompt renders the turn context in fixed section order.
func buildSynthesisPrompt(input *SynthesisInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[USER]\n%s\n\n", input.MaskedText)

	if input.Intent != nil {
		fmt.Fprintf(&sb, "[INTENT]\n%s (%.2f)\n\n", input.Intent.RawLabel, input.Intent.Confidence)
	}

	sb.WriteString("[CONTEXT]\n")
	if input.Brief != nil {
		for _, goal := range input.Brief.TopGoals {
			fmt.Fprintf(&sb, "- goal %s: %s (step: %s)\n", goal.ID, goal.Title, goal.CurrentStep)
		}
		for _, entry := range input.Brief.HotEntries {
			fmt.Fprintf(&sb, "- entry %s: %s\n", entry.ID, entry.Summary)
		}
		for _, hit := range input.Brief.Hits {
			fmt.Fprintf(&sb, "- %s %s: %s\n", hit.Kind, hit.ID, hit.Snippet)
		}
		for _, block := range input.Brief.Next72h {
			fmt.Fprintf(&sb, "- schedule %s: %s at %s\n", block.ID, block.Intent, block.StartAt.Format(time.RFC3339))
		}
		for _, flag := range input.Brief.RiskFlags {
			fmt.Fprintf(&sb, "- risk: %s\n", flag)
		}
	}

	if input.Decision != nil && input.Decision.Action != types.ActionNone {
		fmt.Fprintf(&sb, "\n[PLAN]\n%s\n", input.Decision.Action)
	}

	if input.Decision != nil && input.Decision.ClarifyingQuestion != "" {
		fmt.Fprintf(&sb, "\n[CLARIFY]\nAsk the user: %s\n", input.Decision.ClarifyingQuestion)
	}

	return sb.String()
}

// emit sends one token unless the context is already done.
func emit(ctx context.Context, tokens chan<- string, text string) {
	select {
	case tokens <- text:
	case <-ctx.Done():
	}
}
