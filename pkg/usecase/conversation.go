package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

const (
	// appendWindow bounds how long a just-written entry stays the implicit
	// target for follow-up utterances.
	appendWindow = 10 * time.Minute

	recentUserTexts   = 5
	classifierRecords = 6
)

// TurnResult is the settled outcome of one turn.
type TurnResult struct {
	TurnID      types.TurnID
	UserMessage *model.ConversationMessage
	BotMessage  *model.ConversationMessage
	Intent      *model.CanonicalIntent
	Decision    *model.PlannerDecision
	Outcome     *ActionResult
	Synthesis   *model.Synthesis
	TraceID     types.TraceID
	Err         error
}

type turnRequest struct {
	ctx     context.Context
	userMsg *model.ConversationMessage
	tokens  chan<- string
	done    chan *TurnResult
}

// Conversation is the per-thread orchestrator. Turns are strictly
// single-flight: one worker drains a FIFO queue, so overlapping submissions
// settle in submission order.
type Conversation struct {
	uc     *UseCases
	id     types.ConversationID
	userID types.UserID

	mu       sync.Mutex
	messages []*model.ConversationMessage
	phase    types.TurnPhase
	picture  *model.OperatingPicture

	lastEntryID types.EntryID
	lastEntryAt time.Time

	pending chan *turnRequest
	once    sync.Once
	closed  chan struct{}
}

// Conversation returns the thread orchestrator for the given ID, creating
// it on first use.
func (uc *UseCases) Conversation(id types.ConversationID, userID types.UserID) *Conversation {
	uc.convMu.Lock()
	defer uc.convMu.Unlock()

	if conv, ok := uc.convs[id]; ok {
		return conv
	}
	conv := &Conversation{
		uc:      uc,
		id:      id,
		userID:  userID,
		phase:   types.PhaseIdle,
		pending: make(chan *turnRequest, 16),
		closed:  make(chan struct{}),
	}
	go conv.run()
	uc.convs[id] = conv
	return conv
}

// CloseConversations stops every conversation worker. Called on shutdown
// after in-flight turns have settled.
func (uc *UseCases) CloseConversations() {
	uc.convMu.Lock()
	defer uc.convMu.Unlock()
	for id, conv := range uc.convs {
		conv.close()
		delete(uc.convs, id)
	}
}

func (c *Conversation) close() {
	c.once.Do(func() {
		close(c.closed)
	})
}

func (c *Conversation) run() {
	for {
		select {
		case <-c.closed:
			return
		case req := <-c.pending:
			req.done <- c.processTurn(req.ctx, req.userMsg, req.tokens)
		}
	}
}

// ID returns the conversation ID.
func (c *Conversation) ID() types.ConversationID {
	return c.id
}

// Phase returns the orchestrator's current phase.
func (c *Conversation) Phase() types.TurnPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Messages returns a deep-copied snapshot of the visible timeline.
func (c *Conversation) Messages() []*model.ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.ConversationMessage, 0, len(c.messages))
	for _, m := range c.messages {
		out = append(out, m.Clone())
	}
	return out
}

// Submit runs one turn. The user message appears in the timeline before the
// call returns the queue slot, so the UI shows it immediately even while an
// earlier turn is still settling. Tokens stream to the caller-owned channel;
// Submit never closes it.
func (c *Conversation) Submit(ctx context.Context, text string, tokens chan<- string) (*TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(types.ErrEmptyUtterance, "rejecting submission")
	}

	userMsg := model.NewUserMessage(text, c.uc.now().UTC())
	c.mu.Lock()
	c.messages = append(c.messages, userMsg)
	if c.phase == types.PhaseIdle || c.phase == types.PhaseSettled || c.phase == types.PhaseFailed {
		c.phase = types.PhaseComposing
	}
	c.mu.Unlock()

	req := &turnRequest{ctx: ctx, userMsg: userMsg, tokens: tokens, done: make(chan *TurnResult, 1)}
	select {
	case c.pending <- req:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "submission cancelled before processing")
	}

	select {
	case result := <-req.done:
		return result, result.Err
	case <-c.closed:
		return nil, goerr.New("conversation closed")
	}
}

// Retry re-runs a failed turn for the given user message. Retrying a
// message that already settled is a no-op returning the settled state, so
// double taps cannot duplicate side effects.
func (c *Conversation) Retry(ctx context.Context, messageID types.MessageID, tokens chan<- string) (*TurnResult, error) {
	c.mu.Lock()
	var userMsg *model.ConversationMessage
	for _, m := range c.messages {
		if m.ID == messageID && m.Type != types.MessageTypeBot {
			userMsg = m
			break
		}
	}
	if userMsg == nil {
		c.mu.Unlock()
		return nil, goerr.New("message not found", goerr.V("messageID", messageID))
	}
	if userMsg.Status == types.MessageStatusSent {
		bot := c.botMessageForLocked(userMsg.ID)
		c.mu.Unlock()
		return &TurnResult{UserMessage: userMsg.Clone(), BotMessage: bot}, nil
	}
	if userMsg.Status == types.MessageStatusSending {
		c.mu.Unlock()
		return nil, goerr.New("message is still processing", goerr.V("messageID", messageID))
	}

	// Reset for reprocessing: the failed bot placeholder (if any) goes away,
	// the user message keeps its ID so the timeline does not jump.
	c.removeBotMessageForLocked(userMsg.ID)
	userMsg.Status = types.MessageStatusSending
	userMsg.FailureDetail = ""
	userMsg.Steps = model.NewProcessingTimeline()
	c.mu.Unlock()

	req := &turnRequest{ctx: ctx, userMsg: userMsg, tokens: tokens, done: make(chan *TurnResult, 1)}
	select {
	case c.pending <- req:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "retry cancelled before processing")
	}

	select {
	case result := <-req.done:
		return result, result.Err
	case <-c.closed:
		return nil, goerr.New("conversation closed")
	}
}

func (c *Conversation) botMessageForLocked(afterID types.MessageID) *model.ConversationMessage {
	for _, m := range c.messages {
		if m.Type == types.MessageTypeBot && m.AfterID == afterID {
			return m.Clone()
		}
	}
	return nil
}

func (c *Conversation) removeBotMessageForLocked(afterID types.MessageID) {
	for i, m := range c.messages {
		if m.Type == types.MessageTypeBot && m.AfterID == afterID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

func (c *Conversation) setPhase(phase types.TurnPhase) {
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
}

// processTurn drives one turn through the full pipeline. Runs only on the
// conversation worker goroutine.
func (c *Conversation) processTurn(ctx context.Context, userMsg *model.ConversationMessage, tokens chan<- string) *TurnResult {
	uc := c.uc
	logger := logging.From(ctx)
	started := uc.now()

	result := &TurnResult{TurnID: types.NewTurnID()}

	redaction := model.Redact(userMsg.Content)

	// Classify.
	c.setPhase(types.PhaseClassifying)
	c.setStep(userMsg, stepClassification, types.StepRunning, "")

	intent, err := uc.Classify(ctx, c.classifyInput(ctx, userMsg))
	if err != nil {
		c.setStep(userMsg, stepClassification, types.StepError, userFacingMessage(err))
		c.failTurn(userMsg, userFacingMessage(err))
		result.Err = err
		result.UserMessage = userMsg.Clone()
		uc.traces.Record(ctx, c.userID, &model.TraceEvent{
			MaskedText:       redaction.Masked,
			RedactionSummary: redaction.Summary,
			Decision:         map[string]any{"failed": "classification"},
		})
		return result
	}
	result.Intent = intent
	c.setStep(userMsg, stepClassification, types.StepDone, "")
	c.mu.Lock()
	userMsg.Intent = intent
	if intent.Subsystem == types.SubsystemSearch || intent.Subsystem == types.SubsystemChat {
		userMsg.Type = types.MessageTypeQuery
	}
	c.mu.Unlock()

	result.TraceID = uc.traces.Record(ctx, c.userID, &model.TraceEvent{
		MaskedText:       redaction.Masked,
		IntentLabel:      intent.RawLabel,
		IntentConfidence: intent.Confidence,
		RedactionSummary: redaction.Summary,
	})

	// Assemble the brief.
	c.setPhase(types.PhaseContextBuilding)
	c.mu.Lock()
	cached := c.picture
	c.mu.Unlock()

	brief, picture, err := uc.AssembleBrief(ctx, c.userID, intent, redaction.Masked, cached)
	if err != nil {
		logger.Warn("brief assembly failed, continuing context-free", "error", err.Error())
		brief = &model.SituationalBrief{}
	}
	if picture != nil {
		c.mu.Lock()
		c.picture = picture
		c.mu.Unlock()
	}
	uc.traces.Patch(ctx, c.userID, result.TraceID, &model.TracePatch{
		Planner:   map[string]any{"retrieval_hits": len(brief.Hits)},
		Retrieval: brief.Retrieval,
	})

	// Plan.
	c.setPhase(types.PhasePlanning)
	decision, planConfidence := uc.Plan(ctx, intent, brief, redaction.Masked)
	result.Decision = decision
	uc.traces.Patch(ctx, c.userID, result.TraceID, &model.TracePatch{
		Planner: map[string]any{
			"action":          decision.Action.String(),
			"plan_confidence": planConfidence,
		},
	})

	// Synthesize with a streaming placeholder in the timeline.
	c.setPhase(types.PhaseSynthesizing)
	c.setStep(userMsg, stepSynthesis, types.StepRunning, "")
	botMsg := model.NewBotMessage(userMsg.ID)
	c.mu.Lock()
	c.messages = append(c.messages, botMsg)
	c.mu.Unlock()

	synthesis, err := uc.Synthesize(ctx, &SynthesisInput{
		MaskedText:     redaction.Masked,
		Intent:         intent,
		Brief:          brief,
		Decision:       decision,
		PlanConfidence: planConfidence,
	}, tokens)
	if err != nil {
		c.setStep(userMsg, stepSynthesis, types.StepError, userFacingMessage(err))
		c.mu.Lock()
		c.removeBotMessageForLocked(userMsg.ID)
		c.mu.Unlock()
		c.failTurn(userMsg, userFacingMessage(err))
		result.Err = err
		result.UserMessage = userMsg.Clone()
		return result
	}
	result.Synthesis = synthesis
	c.setStep(userMsg, stepSynthesis, types.StepDone, "")

	// Persist the durable action. A failure here marks the user message
	// failed for retry, but the reply already shown is kept as is.
	c.setPhase(types.PhasePersisting)
	outcome, execErr := uc.Execute(ctx, c.userID, intent, decision, userMsg.Content)
	result.Outcome = outcome

	reply := synthesis.Reply
	if outcome.Message != "" {
		suffix := outcome.Message
		if reply != "" {
			suffix = "\n\n" + suffix
		}
		reply += suffix
		emit(ctx, tokens, suffix)
		synthesis.Reply = reply
	}

	c.mu.Lock()
	botMsg.Content = reply
	botMsg.Status = types.MessageStatusSent
	c.mu.Unlock()

	// The durable IDs become the action's receipts now that they exist; they
	// reach the trace, not the already-streamed reply.
	if receipts := actionReceipts(outcome); receipts != nil {
		synthesis.Action.Receipts = receipts
	}

	latency := uc.now().Sub(started).Milliseconds()
	uc.traces.Patch(ctx, c.userID, result.TraceID, &model.TracePatch{
		Action:        outcome.Trace(),
		Confidence:    &synthesis.Confidence,
		Receipts:      synthesis.ReceiptsFooter(),
		LatencyMillis: &latency,
	})

	if execErr != nil {
		detail := outcome.Message
		if detail == "" {
			detail = MsgUnableToProcess
		}
		c.failTurn(userMsg, detail)
		c.setPhase(types.PhaseFailed)
		result.Err = execErr
		result.UserMessage = userMsg.Clone()
		result.BotMessage = botMsg.Clone()
		return result
	}

	c.settleTurn(userMsg, botMsg, outcome)
	c.setPhase(types.PhaseSettled)

	result.UserMessage = userMsg.Clone()
	result.BotMessage = botMsg.Clone()
	return result
}

// settleTurn marks the turn sent and re-keys the user message from its
// temporary local ID to the persisted entry ID. ID swap and bot anchor
// update happen under one lock so no snapshot can see them disagree.
func (c *Conversation) settleTurn(userMsg, botMsg *model.ConversationMessage, outcome *ActionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userMsg.Status = types.MessageStatusSent
	userMsg.FailureDetail = ""

	if entryID, ok := outcome.IDs["entry"]; ok && userMsg.ID.IsLocal() {
		userMsg.ID = types.MessageID(entryID)
		botMsg.AfterID = userMsg.ID
	}

	if outcome.Action == types.ActionEntryCreate || outcome.Action == types.ActionEntryAppend {
		if entryID, ok := outcome.IDs["entry"]; ok {
			c.lastEntryID = types.EntryID(entryID)
			c.lastEntryAt = c.uc.now()
		}
	}
}

func (c *Conversation) failTurn(userMsg *model.ConversationMessage, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	userMsg.Status = types.MessageStatusFailed
	userMsg.FailureDetail = detail
	c.phase = types.PhaseFailed
}

// classifyInput gathers the classifier's inputs: similar memory records from
// the index, the active entry window, and recent user texts.
func (c *Conversation) classifyInput(ctx context.Context, userMsg *model.ConversationMessage) *interfaces.ClassifyInput {
	input := &interfaces.ClassifyInput{
		Utterance: model.Utterance{Text: userMsg.Content, SubmittedAt: userMsg.SubmittedAt},
	}

	c.mu.Lock()
	if c.lastEntryID != "" && c.uc.now().Sub(c.lastEntryAt) <= appendWindow {
		input.ActiveEntryID = string(c.lastEntryID)
	}
	for i := len(c.messages) - 1; i >= 0 && len(input.RecentUserTexts) < recentUserTexts; i-- {
		m := c.messages[i]
		if m.Type == types.MessageTypeBot || m.ID == userMsg.ID {
			continue
		}
		input.RecentUserTexts = append(input.RecentUserTexts, m.Content)
	}
	c.mu.Unlock()

	if c.uc.index != nil {
		hits, err := c.uc.index.Search(ctx, interfaces.SearchQuery{
			Text:  userMsg.Content,
			Limit: classifierRecords,
		})
		if err != nil {
			logging.From(ctx).Warn("classifier retrieval failed", "error", err.Error())
		}
		for _, hit := range hits {
			input.Records = append(input.Records, interfaces.ContextRecord{
				ID:    hit.ID,
				Kind:  hit.Kind,
				Text:  hit.Snippet,
				Score: hit.Score,
			})
		}
	}

	return input
}

// Timeline step names.
type timelineStep int

const (
	stepClassification timelineStep = iota
	stepSynthesis
)

func (c *Conversation) setStep(userMsg *model.ConversationMessage, step timelineStep, status types.StepStatus, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := model.StepState{Status: status, Detail: detail}
	switch step {
	case stepClassification:
		userMsg.Steps.Classification = state
	case stepSynthesis:
		userMsg.Steps.Synthesis = state
	}
}

// userFacingMessage maps a turn error onto the message shown to the user.
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrCallTimeout):
		return MsgTimedOut
	case errors.Is(err, types.ErrPersistenceFailed):
		return MsgEntryNotSaved
	default:
		return MsgUnableToProcess
	}
}
