package usecase

import (
	"sync"
	"time"

	"github.com/m-mizutani/gollem"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/async"
)

// Stage timeouts. Each external call carries its own deadline so a stalled
// collaborator fails the stage, not the process.
const (
	DefaultClassifyTimeout  = 10 * time.Second
	DefaultSynthesisTimeout = 30 * time.Second
)

type UseCases struct {
	repo       interfaces.Repository
	llmClient  gollem.LLMClient
	classifier interfaces.Classifier
	index      interfaces.Index
	tasks      *async.Registry
	traces     *TraceRecorder
	persona    string
	timezone   string

	classifyTimeout  time.Duration
	synthesisTimeout time.Duration

	now func() time.Time

	convMu sync.Mutex
	convs  map[types.ConversationID]*Conversation
}

type Option func(*UseCases)

func WithLLMClient(client gollem.LLMClient) Option {
	return func(uc *UseCases) {
		uc.llmClient = client
	}
}

func WithClassifier(c interfaces.Classifier) Option {
	return func(uc *UseCases) {
		uc.classifier = c
	}
}

func WithIndex(index interfaces.Index) Option {
	return func(uc *UseCases) {
		uc.index = index
	}
}

// WithTaskRegistry overrides the background-task registry, letting tests
// wait for side effects to drain.
func WithTaskRegistry(tasks *async.Registry) Option {
	return func(uc *UseCases) {
		uc.tasks = tasks
	}
}

func WithPersona(persona string) Option {
	return func(uc *UseCases) {
		uc.persona = persona
	}
}

func WithTimezone(tz string) Option {
	return func(uc *UseCases) {
		uc.timezone = tz
	}
}

func WithClassifyTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.classifyTimeout = d
	}
}

func WithSynthesisTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.synthesisTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:             repo,
		tasks:            &async.Registry{},
		classifyTimeout:  DefaultClassifyTimeout,
		synthesisTimeout: DefaultSynthesisTimeout,
		timezone:         "UTC",
		now:              time.Now,
		convs:            map[types.ConversationID]*Conversation{},
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.traces = NewTraceRecorder(repo.Trace(), uc.tasks)

	return uc
}

// Tasks exposes the background-task registry for shutdown draining.
func (uc *UseCases) Tasks() *async.Registry {
	return uc.tasks
}

// Traces exposes the trace recorder.
func (uc *UseCases) Traces() *TraceRecorder {
	return uc.traces
}

// Repository exposes the persistence aggregate.
func (uc *UseCases) Repository() interfaces.Repository {
	return uc.repo
}
