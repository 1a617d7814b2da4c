package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

func classifyWith(raw *model.Classification) (*model.CanonicalIntent, error) {
	uc := usecase.New(memory.New(), usecase.WithClassifier(&stubClassifier{
		fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
			return raw, nil
		},
	}))
	return uc.Classify(context.Background(), &interfaces.ClassifyInput{
		Utterance: model.Utterance{Text: "some text"},
	})
}

func TestClassifyNormalization(t *testing.T) {
	t.Run("invalid label falls back to conversational", func(t *testing.T) {
		intent, err := classifyWith(&model.Classification{
			Label:      "totally_unknown",
			Confidence: 0.9,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, intent.RawLabel).Equal(types.IntentConversational)
		gt.Value(t, intent.Subsystem).Equal(types.SubsystemChat)
	})

	t.Run("confidence is clamped", func(t *testing.T) {
		intent, err := classifyWith(&model.Classification{
			Label:      types.IntentEntryCreate,
			Confidence: 1.4,
		})
		gt.NoError(t, err).Required()
		gt.Value(t, intent.Confidence).Equal(1.0)
	})

	t.Run("routing hint carries the target", func(t *testing.T) {
		intent, err := classifyWith(&model.Classification{
			Label:           types.IntentEntryAppend,
			Confidence:      0.91,
			TargetEntryID:   "entry-7",
			TargetEntryType: "journal",
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, intent.Routing != nil).True()
		gt.Value(t, intent.Routing.TargetEntryID).Equal(types.EntryID("entry-7"))
		gt.Value(t, intent.Routing.ClassificationID).Equal(intent.ID)
	})

	t.Run("candidates become probabilities", func(t *testing.T) {
		intent, err := classifyWith(&model.Classification{
			Label:      types.IntentScheduleCreate,
			Confidence: 0.92,
			Candidates: []model.IntentCandidate{
				{Label: types.IntentScheduleCreate, Confidence: 0.92},
				{Label: types.IntentGoalCreate, Confidence: 0.65},
				{Label: "bogus", Confidence: 0.99},
			},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, len(intent.Probabilities)).Equal(2)

		label, confidence := intent.SecondBest()
		gt.Value(t, label).Equal(types.IntentGoalCreate)
		gt.Value(t, confidence).Equal(0.65)
	})
}

func TestClassifyRejectsEmptyText(t *testing.T) {
	uc := usecase.New(memory.New(), usecase.WithClassifier(&stubClassifier{
		fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
			return &model.Classification{Label: types.IntentConversational, Confidence: 0.6}, nil
		},
	}))

	_, err := uc.Classify(context.Background(), &interfaces.ClassifyInput{
		Utterance: model.Utterance{Text: "  "},
	})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrEmptyUtterance)).True()
}

func TestClassifyWrapsClassifierError(t *testing.T) {
	uc := usecase.New(memory.New(), usecase.WithClassifier(&stubClassifier{
		fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
			return nil, errors.New("backend unreachable")
		},
	}))

	_, err := uc.Classify(context.Background(), &interfaces.ClassifyInput{
		Utterance: model.Utterance{Text: "anything"},
	})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrClassificationFailed)).True()
}
