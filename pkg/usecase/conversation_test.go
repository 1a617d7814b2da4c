package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/service/classifier"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

type stubClassifier struct {
	fn func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error)
}

func (s *stubClassifier) Classify(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
	return s.fn(ctx, input)
}

func newTestUseCases(opts ...usecase.Option) *usecase.UseCases {
	base := []usecase.Option{usecase.WithClassifier(classifier.New())}
	return usecase.New(memory.New(), append(base, opts...)...)
}

func TestTurnBooksSchedule(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "Plan a gym session tomorrow at 6am", tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Intent.RawLabel).Equal(types.IntentScheduleCreate)
	gt.Value(t, result.Outcome.Action).Equal(types.ActionScheduleCreate)
	gt.Value(t, result.Outcome.Status).Equal(usecase.ActionStatusCompleted)
	gt.Bool(t, strings.Contains(result.BotMessage.Content, "Booked")).True()
	gt.Value(t, result.UserMessage.Status).Equal(types.MessageStatusSent)
	gt.Value(t, conv.Phase()).Equal(types.PhaseSettled)

	blocks, err := uc.Repository().Schedule().ListUpcoming(ctx, "user-1", time.Time{}, 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(blocks)).Equal(1)
	gt.Value(t, blocks[0].StartAt.Hour()).Equal(6)
	gt.Value(t, blocks[0].EndAt.Sub(blocks[0].StartAt)).Equal(time.Hour)

	// The confirmation line also reaches the stream.
	uc.Tasks().Wait()
	traces, err := uc.Traces().List(ctx, "user-1", 1)
	gt.NoError(t, err).Required()
	gt.Value(t, len(traces)).Equal(1)
	gt.Value(t, traces[0].Action.Type).Equal("schedule.create")
	gt.Value(t, traces[0].Action.Status).Equal(usecase.ActionStatusCompleted)
}

func TestTurnGoalCapReached(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	for _, title := range []string{"marathon", "piano", "reading"} {
		_, err := uc.Repository().Goal().Create(ctx, "user-1", &model.Goal{Title: title})
		gt.NoError(t, err).Required()
	}

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "I want to start learning piano", tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Intent.RawLabel).Equal(types.IntentGoalCreate)
	gt.Value(t, result.Outcome.Status).Equal(usecase.ActionStatusLimited)
	gt.Bool(t, strings.Contains(result.BotMessage.Content,
		"You already have 3 active goals. Complete or pause one before starting another.")).True()
	gt.Value(t, result.UserMessage.Status).Equal(types.MessageStatusSent)
	gt.Value(t, conv.Phase()).Equal(types.PhaseSettled)

	count, err := uc.Repository().Goal().CountActive(ctx, "user-1")
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(3)
}

func TestTurnRekeysEntryMessage(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "note that the retro went better after we changed the format", tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, result.Outcome.Action).Equal(types.ActionEntryCreate)
	entryID, ok := result.Outcome.IDs["entry"]
	gt.Bool(t, ok).True()

	gt.Bool(t, result.UserMessage.ID.IsLocal()).False()
	gt.Value(t, result.UserMessage.ID).Equal(types.MessageID(entryID))
	gt.Value(t, result.BotMessage.AfterID).Equal(result.UserMessage.ID)

	messages := conv.Messages()
	gt.Value(t, len(messages)).Equal(2)
	gt.Value(t, messages[0].ID).Equal(result.UserMessage.ID)
	gt.Value(t, messages[1].Type).Equal(types.MessageTypeBot)
}

func TestFollowUpDiscussesActiveEntry(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")

	first, err := conv.Submit(ctx, "note that the retro went better after we changed the format", make(chan string, 32))
	gt.NoError(t, err).Required()
	entryID, ok := first.Outcome.IDs["entry"]
	gt.Bool(t, ok).True()

	// A pronoun follow-up inside the entry window resolves to the entry the
	// previous turn just wrote.
	second, err := conv.Submit(ctx, "can we dig into that a bit more", make(chan string, 32))
	gt.NoError(t, err).Required()
	gt.Value(t, second.Intent.RawLabel).Equal(types.IntentEntryDiscuss)
	gt.Bool(t, second.Intent.Routing != nil).True()
	gt.Value(t, second.Intent.Routing.TargetEntryID).Equal(types.EntryID(entryID))
}

func TestRetrySettledTurnIsNoop(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "note that the retro went better after we changed the format", tokens)
	gt.NoError(t, err).Required()

	entries, err := uc.Repository().Entry().ListRecent(ctx, "user-1", 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(1)

	retried, err := conv.Retry(ctx, result.UserMessage.ID, tokens)
	gt.NoError(t, err).Required()
	gt.Value(t, retried.UserMessage.Status).Equal(types.MessageStatusSent)
	gt.Bool(t, retried.BotMessage != nil).True()

	// The double tap created nothing.
	entries, err = uc.Repository().Entry().ListRecent(ctx, "user-1", 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(1)
}

func TestRetryUnknownMessage(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	_, err := conv.Retry(ctx, types.NewLocalMessageID(), make(chan string, 1))
	gt.Error(t, err)
}

func TestSubmitEmptyUtterance(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	_, err := conv.Submit(ctx, "   ", make(chan string, 1))
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrEmptyUtterance)).True()
}

func TestClassifierFailureFailsTurn(t *testing.T) {
	ctx := context.Background()
	uc := usecase.New(memory.New(), usecase.WithClassifier(&stubClassifier{
		fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
			return nil, errors.New("classifier offline")
		},
	}))
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "anything at all", tokens)
	gt.Error(t, err)
	gt.Value(t, result.UserMessage.Status).Equal(types.MessageStatusFailed)
	gt.Value(t, result.UserMessage.FailureDetail).Equal(usecase.MsgUnableToProcess)
	gt.Value(t, result.UserMessage.Steps.Classification.Status).Equal(types.StepError)
	gt.Value(t, conv.Phase()).Equal(types.PhaseFailed)

	// No bot placeholder survives a failed classification.
	gt.Value(t, len(conv.Messages())).Equal(1)

	traces, listErr := uc.Traces().List(ctx, "user-1", 1)
	gt.NoError(t, listErr).Required()
	gt.Value(t, len(traces)).Equal(1)
	gt.Value(t, traces[0].Decision["failed"]).Equal(any("classification"))
}

func TestClassifierTimeout(t *testing.T) {
	ctx := context.Background()
	uc := usecase.New(memory.New(),
		usecase.WithClassifier(&stubClassifier{
			fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}),
		usecase.WithClassifyTimeout(20*time.Millisecond),
	)
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	result, err := conv.Submit(ctx, "slow day", make(chan string, 32))
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrCallTimeout)).True()
	gt.Value(t, result.UserMessage.FailureDetail).Equal(usecase.MsgTimedOut)
}

func TestRetryAfterFailureReprocesses(t *testing.T) {
	ctx := context.Background()

	calls := 0
	uc := usecase.New(memory.New(), usecase.WithClassifier(&stubClassifier{
		fn: func(ctx context.Context, input *interfaces.ClassifyInput) (*model.Classification, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("transient failure")
			}
			return &model.Classification{
				Label:      types.IntentConversational,
				Confidence: 0.8,
			}, nil
		},
	}))
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "felt scattered today", tokens)
	gt.Error(t, err)
	gt.Value(t, result.UserMessage.Status).Equal(types.MessageStatusFailed)

	retried, err := conv.Retry(ctx, result.UserMessage.ID, tokens)
	gt.NoError(t, err).Required()
	gt.Value(t, retried.UserMessage.Status).Equal(types.MessageStatusSent)
	gt.Value(t, retried.UserMessage.FailureDetail).Equal("")
	gt.Bool(t, retried.BotMessage != nil).True()
	gt.Bool(t, retried.BotMessage.Content != "").True()
	gt.Value(t, conv.Phase()).Equal(types.PhaseSettled)
}

// stubIndex lets tests control retrieval results and break the indexing
// side effect.
type stubIndex struct {
	hits      []model.RagHit
	searchErr error
	upsertErr error
}

func (s *stubIndex) Upsert(ctx context.Context, records []interfaces.IndexRecord) error {
	return s.upsertErr
}

func (s *stubIndex) Search(ctx context.Context, query interfaces.SearchQuery) ([]model.RagHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func TestFailingSideEffectsKeepTurnSettled(t *testing.T) {
	ctx := context.Background()
	index := &stubIndex{
		searchErr: errors.New("vector store unreachable"),
		upsertErr: errors.New("vector store unreachable"),
	}
	uc := newTestUseCases(usecase.WithIndex(index))
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "note that the retro went better after we changed the format", tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, result.UserMessage.Status).Equal(types.MessageStatusSent)
	gt.Bool(t, result.BotMessage.Content != "").True()
	gt.Value(t, conv.Phase()).Equal(types.PhaseSettled)

	// The entry persisted even though retrieval and indexing kept failing.
	uc.Tasks().Wait()
	entries, err := uc.Repository().Entry().ListRecent(ctx, "user-1", 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(1)
}

func TestTurnRecordsActionReceipts(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")
	tokens := make(chan string, 32)

	result, err := conv.Submit(ctx, "note that the retro went better after we changed the format", tokens)
	gt.NoError(t, err).Required()

	entryID := result.Outcome.IDs["entry"]
	gt.Value(t, result.Synthesis.Action.Receipts["entry"]).Equal(entryID)

	uc.Tasks().Wait()
	traces, err := uc.Traces().List(ctx, "user-1", 1)
	gt.NoError(t, err).Required()
	gt.Value(t, len(traces)).Equal(1)

	found := false
	for _, line := range traces[0].Receipts {
		if line == "entry:"+entryID {
			found = true
		}
	}
	gt.Bool(t, found).True()
}

func TestSubmissionsSettleInOrder(t *testing.T) {
	ctx := context.Background()
	uc := newTestUseCases()
	defer uc.CloseConversations()

	conv := uc.Conversation(types.NewConversationID(), "user-1")

	// The second text avoids pronoun anchors so the active entry window does
	// not reroute a fresh capture to discussion.
	texts := []string{
		"note that the morning pages felt easy",
		"log a heavy afternoon slump and low energy",
	}
	for _, text := range texts {
		_, err := conv.Submit(ctx, text, make(chan string, 32))
		gt.NoError(t, err).Required()
	}

	entries, err := uc.Repository().Entry().ListRecent(ctx, "user-1", 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(2)

	// Newest first: the second submission settled after the first.
	gt.Value(t, entries[0].Content).Equal(texts[1])
	gt.Value(t, entries[1].Content).Equal(texts[0])
}
