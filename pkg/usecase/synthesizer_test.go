package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

// mockLLMSession is a configurable gollem Session for testing.
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
	generateStreamFn  func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"mock response"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	if s.generateStreamFn != nil {
		return s.generateStreamFn(ctx, input...)
	}
	return nil, errors.New("streaming not configured")
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient hands out sessions in call order.
type mockLLMClient struct {
	sessions []*mockLLMSession
	calls    int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.calls >= len(c.sessions) {
		return &mockLLMSession{}, nil
	}
	session := c.sessions[c.calls]
	c.calls++
	return session, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func streamOf(texts ...string) func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
		ch := make(chan *gollem.Response, len(texts))
		for _, text := range texts {
			ch <- &gollem.Response{Texts: []string{text}}
		}
		close(ch)
		return ch, nil
	}
}

func drainTokens(tokens chan string) []string {
	close(tokens)
	var out []string
	for token := range tokens {
		out = append(out, token)
	}
	return out
}

func TestSynthesizeDeterministic(t *testing.T) {
	ctx := context.Background()
	uc := usecase.New(memory.New())

	tokens := make(chan string, 32)
	synthesis, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText: "how am I doing",
		Brief: &model.SituationalBrief{
			TopGoals: []model.GoalSummary{
				{ID: "g-1", Title: "Run a marathon", CurrentStep: "long run"},
			},
		},
		PlanConfidence: 0.45,
	}, tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, synthesis.Diagnosis).Equal(`Your main focus right now is "Run a marathon".`)
	gt.Bool(t, strings.Contains(synthesis.Reply, synthesis.Diagnosis)).True()
	gt.Bool(t, strings.Contains(synthesis.Reply, "goal:g-1")).True()

	streamed := drainTokens(tokens)
	gt.Value(t, len(streamed)).Equal(1)
	gt.Value(t, streamed[0]).Equal(synthesis.Reply)
}

func TestSynthesizeStreaming(t *testing.T) {
	ctx := context.Background()

	client := &mockLLMClient{sessions: []*mockLLMSession{
		{generateStreamFn: streamOf("Take ", "a breath.")},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{"not json"}}, nil
		}},
	}}
	uc := usecase.New(memory.New(), usecase.WithLLMClient(client))

	tokens := make(chan string, 32)
	synthesis, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText: "rough day",
		Brief:      &model.SituationalBrief{},
	}, tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, synthesis.Reply).Equal("Take a breath.")
	gt.Value(t, drainTokens(tokens)).Equal([]string{"Take ", "a breath."})
}

func TestSynthesizeStreamFallback(t *testing.T) {
	ctx := context.Background()

	client := &mockLLMClient{sessions: []*mockLLMSession{
		{generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
			return nil, errors.New("stream unavailable")
		}},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{"Here is the short version."}}, nil
		}},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return nil, errors.New("extract down")
		}},
	}}
	uc := usecase.New(memory.New(), usecase.WithLLMClient(client))

	tokens := make(chan string, 32)
	synthesis, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText: "rough day",
		Brief:      &model.SituationalBrief{},
	}, tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, synthesis.Reply).Equal("Here is the short version.")

	// The fallback reply reaches the stream exactly once.
	gt.Value(t, drainTokens(tokens)).Equal([]string{"Here is the short version."})
}

func TestSynthesizeBothPathsFail(t *testing.T) {
	ctx := context.Background()

	client := &mockLLMClient{sessions: []*mockLLMSession{
		{generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
			return nil, errors.New("stream unavailable")
		}},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return nil, errors.New("generation down")
		}},
	}}
	uc := usecase.New(memory.New(), usecase.WithLLMClient(client))

	tokens := make(chan string, 32)
	_, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText: "rough day",
		Brief:      &model.SituationalBrief{},
	}, tokens)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrSynthesisFailed)).True()
	gt.Value(t, len(drainTokens(tokens))).Equal(0)
}

func TestSynthesizeExtractDecorates(t *testing.T) {
	ctx := context.Background()

	extractJSON := `{
		"diagnosis": "Momentum is building on the marathon goal.",
		"levers": [{"label": "training streak", "evidence": "three runs this week", "receipt": "goal:g-1"}],
		"action_title": "schedule the long run",
		"action_detail": "block Saturday morning",
		"reply": "Take a breath.",
		"learned": "user prefers morning runs",
		"ethical": "no concerns this turn"
	}`
	client := &mockLLMClient{sessions: []*mockLLMSession{
		{generateStreamFn: streamOf("Take a breath.")},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{extractJSON}}, nil
		}},
	}}
	uc := usecase.New(memory.New(), usecase.WithLLMClient(client))

	tokens := make(chan string, 32)
	synthesis, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText:     "ran again today",
		Brief:          &model.SituationalBrief{},
		PlanConfidence: 0.7,
	}, tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, synthesis.Diagnosis).Equal("Momentum is building on the marathon goal.")
	gt.Value(t, len(synthesis.Levers)).Equal(1)
	gt.Value(t, synthesis.Levers[0].Receipt).Equal("goal:g-1")
	gt.Value(t, synthesis.Action.Title).Equal("schedule the long run")
	gt.Value(t, synthesis.Learned).Equal("user prefers morning runs")

	// The streamed reply and the skeleton confidence survive decoration.
	gt.Value(t, synthesis.Reply).Equal("Take a breath.")
	gt.Value(t, synthesis.Confidence.Plan).Equal(0.7)
}

func TestSynthesizeExtractRejectsIncomplete(t *testing.T) {
	ctx := context.Background()

	// "learned" is blank, so the whole extract is discarded rather than
	// repaired and the heuristic skeleton stands.
	extractJSON := `{
		"diagnosis": "Momentum is building on the marathon goal.",
		"levers": [],
		"action_title": "schedule the long run",
		"action_detail": "block Saturday morning",
		"reply": "Take a breath.",
		"learned": "",
		"ethical": "no concerns this turn"
	}`
	client := &mockLLMClient{sessions: []*mockLLMSession{
		{generateStreamFn: streamOf("Take a breath.")},
		{generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{extractJSON}}, nil
		}},
	}}
	uc := usecase.New(memory.New(), usecase.WithLLMClient(client))

	tokens := make(chan string, 32)
	synthesis, err := uc.Synthesize(ctx, &usecase.SynthesisInput{
		MaskedText: "ran again today",
		Brief: &model.SituationalBrief{
			TopGoals: []model.GoalSummary{
				{ID: "g-1", Title: "Run a marathon", CurrentStep: "long run"},
			},
		},
	}, tokens)
	gt.NoError(t, err).Required()

	gt.Value(t, synthesis.Diagnosis).Equal(`Your main focus right now is "Run a marathon".`)
	gt.Value(t, synthesis.Learned).Equal("")
	gt.Value(t, synthesis.Reply).Equal("Take a breath.")
}
