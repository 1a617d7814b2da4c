package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Classify normalizes the external classifier's raw result into a canonical
// intent. It fails fast: a classifier error or timeout fails the turn, no
// intent is fabricated.
func (uc *UseCases) Classify(ctx context.Context, input *interfaces.ClassifyInput) (*model.CanonicalIntent, error) {
	if strings.TrimSpace(input.Utterance.Text) == "" {
		return nil, goerr.Wrap(types.ErrEmptyUtterance, "cannot classify")
	}

	ctx, cancel := context.WithTimeout(ctx, uc.classifyTimeout)
	defer cancel()

	raw, err := uc.classifier.Classify(ctx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(types.ErrCallTimeout, "classifier timed out")
		}
		return nil, goerr.Wrap(types.ErrClassificationFailed, "classifier error", goerr.V("cause", err.Error()))
	}

	return normalizeClassification(raw), nil
}

// normalizeClassification converts a raw classification into the immutable
// canonical form used by every downstream stage.
func normalizeClassification(raw *model.Classification) *model.CanonicalIntent {
	label := raw.Label
	if !label.IsValid() {
		label = types.IntentConversational
	}

	probabilities := make(map[types.IntentLabel]float64, len(raw.Candidates))
	for _, candidate := range raw.Candidates {
		if !candidate.Label.IsValid() {
			continue
		}
		if existing, ok := probabilities[candidate.Label]; ok && existing >= candidate.Confidence {
			continue
		}
		probabilities[candidate.Label] = clamp01(candidate.Confidence)
	}
	if _, ok := probabilities[label]; !ok {
		probabilities[label] = clamp01(raw.Confidence)
	}

	slots := make(map[string]string, len(raw.Slots))
	for k, v := range raw.Slots {
		slots[k] = v
	}

	intent := &model.CanonicalIntent{
		ID:            uuid.New().String(),
		RawLabel:      label,
		DisplayLabel:  model.DisplayLabelFor(label),
		Confidence:    clamp01(raw.Confidence),
		Subsystem:     label.Subsystem(),
		Probabilities: probabilities,
		Slots:         slots,
		Reasons:       append([]string(nil), raw.Reasons...),
	}

	if raw.TargetEntryID != "" {
		intent.Routing = &model.RoutingHint{
			TargetEntryID:    raw.TargetEntryID,
			TargetEntryType:  raw.TargetEntryType,
			ClassificationID: intent.ID,
		}
	}

	return intent
}
