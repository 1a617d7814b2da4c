package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

// Duplicate-match tuning. A context record scoring at or above the threshold
// is treated as the same underlying memory as the utterance.
const (
	duplicateThreshold       = 0.85
	duplicateMinPrefixLength = 20
)

// Heuristic is a deterministic rule-ladder classifier. It consults phrase
// tables, the active entry window, and high-similarity memory matches. Safe
// for concurrent use; all state is per-call.
type Heuristic struct {
	now func() time.Time
}

var _ interfaces.Classifier = &Heuristic{}

type Option func(*Heuristic)

// WithClock overrides the time source, used by slot extraction.
func WithClock(now func() time.Time) Option {
	return func(h *Heuristic) {
		h.now = now
	}
}

func New(opts ...Option) *Heuristic {
	h := &Heuristic{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func containsPhrase(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func hasTemporalMarker(text string) bool {
	return containsPhrase(text, temporalMarkers) || clockPattern.MatchString(text)
}

// pickDuplicate returns the first context record scoring at or above the
// duplicate threshold. Records are expected highest-score first.
func pickDuplicate(records []interfaces.ContextRecord) *model.DuplicateMatch {
	for _, record := range records {
		if record.Score >= duplicateThreshold {
			return &model.DuplicateMatch{
				ID:    record.ID,
				Kind:  record.Kind,
				Score: record.Score,
				Text:  record.Text,
			}
		}
	}
	return nil
}

// mapKindToEntryType maps a memory record kind to the target entry type hint.
func mapKindToEntryType(kind string) string {
	normalized := strings.ToLower(kind)
	switch {
	case strings.Contains(normalized, "goal"):
		return "goal"
	case strings.Contains(normalized, "event"), strings.Contains(normalized, "schedule"):
		return "schedule"
	case strings.Contains(normalized, "entry"), strings.Contains(normalized, "journal"):
		return "journal"
	}
	return ""
}

func candidates(pairs ...model.IntentCandidate) []model.IntentCandidate {
	return pairs
}

func cand(label types.IntentLabel, confidence float64) model.IntentCandidate {
	return model.IntentCandidate{Label: label, Confidence: confidence}
}

// ClassifyText classifies without external record scores, for callers that
// only have the raw text.
func (h *Heuristic) ClassifyText(ctx context.Context, text string) (*model.Classification, error) {
	return h.Classify(ctx, &interfaces.ClassifyInput{
		Utterance: model.Utterance{Text: text, SubmittedAt: h.now()},
	})
}

func (h *Heuristic) Classify(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
	trimmed := strings.TrimSpace(input.Utterance.Text)
	lower := strings.ToLower(trimmed)
	var reasons []string

	if trimmed == "" {
		return &model.Classification{
			Label:      types.IntentConversational,
			Confidence: 0.6,
			Reasons:    []string{"Empty message defaults to conversational"},
			Candidates: candidates(cand(types.IntentConversational, 0.6)),
		}, nil
	}

	if commandPattern.MatchString(trimmed) {
		return &model.Classification{
			Label:      types.IntentCommand,
			Confidence: 0.99,
			Reasons:    []string{"Slash-prefixed command detected"},
			Candidates: candidates(cand(types.IntentCommand, 0.99)),
		}, nil
	}

	if containsPhrase(lower, searchPhrases) {
		confidence := 0.9
		if len(lower) > 24 {
			confidence = 0.94
		}
		return &model.Classification{
			Label:      types.IntentSearchQuery,
			Confidence: confidence,
			Reasons:    []string{"Search verb detected"},
			Candidates: candidates(
				cand(types.IntentSearchQuery, confidence),
				cand(types.IntentConversational, 0.7),
			),
		}, nil
	}

	duplicate := pickDuplicate(input.Records)

	hasAdditive := containsPhrase(lower, additivePhrases)
	inWindow := input.ActiveEntryID != ""
	hasPronounAnchor := pronounAnchors.MatchString(trimmed)
	isQuestion := questionPattern.MatchString(trimmed)

	if duplicate != nil && hasAdditive {
		reasons = append(reasons, "High-similarity memory match with additive language")
		return &model.Classification{
			Label:           types.IntentEntryAppend,
			Confidence:      0.91,
			Reasons:         reasons,
			TargetEntryID:   types.EntryID(duplicate.ID),
			TargetEntryType: mapKindToEntryType(duplicate.Kind),
			DuplicateMatch:  duplicate,
			Candidates: candidates(
				cand(types.IntentEntryAppend, 0.91),
				cand(types.IntentEntryDiscuss, 0.8),
				cand(types.IntentEntryCreate, 0.6),
			),
		}, nil
	}

	if inWindow && hasPronounAnchor {
		reasons = append(reasons, "Within entry context window with pronoun reference")
		appendConf := 0.7
		if hasAdditive {
			appendConf = 0.82
		}
		return &model.Classification{
			Label:           types.IntentEntryDiscuss,
			Confidence:      0.96,
			Reasons:         reasons,
			TargetEntryID:   types.EntryID(input.ActiveEntryID),
			TargetEntryType: "journal",
			DuplicateMatch:  duplicate,
			Candidates: candidates(
				cand(types.IntentEntryDiscuss, 0.96),
				cand(types.IntentEntryAppend, appendConf),
				cand(types.IntentEntryCreate, 0.6),
			),
		}, nil
	}

	if duplicate != nil {
		reasons = append(reasons, "High-similarity memory match without clear additive cue")
	}

	if !isQuestion && containsPhrase(lower, schedulePhrases) && hasTemporalMarker(lower) {
		reasons = append(reasons, "Scheduling language with a concrete time reference")
		slots := deriveSlots(trimmed, types.IntentScheduleCreate, h.now().UTC())
		return &model.Classification{
			Label:      types.IntentScheduleCreate,
			Confidence: 0.92,
			Reasons:    reasons,
			Slots:      slots,
			Candidates: candidates(
				cand(types.IntentScheduleCreate, 0.92),
				cand(types.IntentEntryCreate, 0.62),
				cand(types.IntentConversational, 0.5),
			),
		}, nil
	}

	if !isQuestion && containsPhrase(lower, goalPhrases) {
		reasons = append(reasons, "Aspirational phrasing suggesting a new goal")
		slots := deriveSlots(trimmed, types.IntentGoalCreate, h.now().UTC())
		return &model.Classification{
			Label:      types.IntentGoalCreate,
			Confidence: 0.88,
			Reasons:    reasons,
			Slots:      slots,
			Candidates: candidates(
				cand(types.IntentGoalCreate, 0.88),
				cand(types.IntentEntryCreate, 0.64),
				cand(types.IntentConversational, 0.55),
			),
		}, nil
	}

	hasSave := containsPhrase(lower, savePhrases)
	hasTemporal := hasTemporalMarker(lower)
	hasAction := containsPhrase(lower, actionVerbs)
	wordCount := len(strings.Fields(trimmed))

	if !isQuestion && (hasSave || (hasTemporal && hasAction) || wordCount > 25) {
		confidence := 0.86
		if hasSave {
			confidence += 0.08
		}
		if hasTemporal {
			confidence += 0.03
		}
		if wordCount > 60 {
			confidence += 0.03
		}
		if confidence > 0.97 {
			confidence = 0.97
		}

		reasons = append(reasons, "Declarative content suitable for structured capture")
		if hasSave {
			reasons = append(reasons, "Explicit save/log intent detected")
		}
		if hasTemporal {
			reasons = append(reasons, "Temporal marker detected")
		}
		if hasAction {
			reasons = append(reasons, "Concrete action verb detected")
		}

		appendConf := 0.62
		if duplicate != nil {
			appendConf = 0.78
		}
		slots := deriveSlots(trimmed, types.IntentEntryCreate, h.now().UTC())
		return &model.Classification{
			Label:          types.IntentEntryCreate,
			Confidence:     confidence,
			Reasons:        reasons,
			Slots:          slots,
			DuplicateMatch: duplicate,
			Candidates: candidates(
				cand(types.IntentEntryCreate, confidence),
				cand(types.IntentEntryAppend, appendConf),
				cand(types.IntentConversational, 0.6),
			),
		}, nil
	}

	if inWindow && !isQuestion {
		reasons = append(reasons, "Context window active; defaulting follow-up to discuss")
		return &model.Classification{
			Label:           types.IntentEntryDiscuss,
			Confidence:      0.78,
			Reasons:         reasons,
			TargetEntryID:   types.EntryID(input.ActiveEntryID),
			TargetEntryType: "journal",
			DuplicateMatch:  duplicate,
			Candidates: candidates(
				cand(types.IntentEntryDiscuss, 0.78),
				cand(types.IntentEntryCreate, 0.6),
				cand(types.IntentConversational, 0.58),
			),
		}, nil
	}

	if duplicate != nil && len(duplicate.Text) >= duplicateMinPrefixLength {
		prefix := strings.ToLower(duplicate.Text[:duplicateMinPrefixLength])
		for _, recent := range input.RecentUserTexts {
			if strings.Contains(strings.ToLower(recent), prefix) {
				reasons = append(reasons, "Recent message references similar content; favour append")
				return &model.Classification{
					Label:           types.IntentEntryAppend,
					Confidence:      0.8,
					Reasons:         reasons,
					TargetEntryID:   types.EntryID(duplicate.ID),
					TargetEntryType: mapKindToEntryType(duplicate.Kind),
					DuplicateMatch:  duplicate,
					Candidates: candidates(
						cand(types.IntentEntryAppend, 0.8),
						cand(types.IntentEntryDiscuss, 0.7),
						cand(types.IntentConversational, 0.65),
					),
				}, nil
			}
		}
	}

	confidence := 0.82
	searchConf := 0.4
	if isQuestion {
		confidence = 0.9
		searchConf = 0.58
		reasons = append(reasons, "Question format leaning conversational")
	} else {
		reasons = append(reasons, "Defaulting to reflective conversational mode")
	}

	result := &model.Classification{
		Label:          types.IntentConversational,
		Confidence:     confidence,
		Reasons:        reasons,
		DuplicateMatch: duplicate,
		Candidates: candidates(
			cand(types.IntentConversational, confidence),
			cand(types.IntentSearchQuery, searchConf),
			cand(types.IntentEntryCreate, 0.35),
		),
	}
	if inWindow {
		result.TargetEntryID = types.EntryID(input.ActiveEntryID)
		result.TargetEntryType = "journal"
	}
	return result, nil
}
