package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/inkwell-lab/inkwell/pkg/domain/model"
	"github.com/inkwell-lab/inkwell/pkg/domain/types"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
	"github.com/inkwell-lab/inkwell/pkg/utils/errutil"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
)

type postMessageRequest struct {
	Text string `json:"text"`
}

type messageResponse struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Content       string         `json:"content"`
	Status        string         `json:"status"`
	AfterID       string         `json:"afterId,omitempty"`
	Intent        *intentSummary `json:"intent,omitempty"`
	Steps         stepsResponse  `json:"steps"`
	SubmittedAt   time.Time      `json:"submittedAt"`
	FailureDetail string         `json:"failureDetail,omitempty"`
}

type intentSummary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type stepsResponse struct {
	Classification stepState `json:"classification"`
	Synthesis      stepState `json:"synthesis"`
}

type stepState struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type turnDoneEvent struct {
	Phase       string           `json:"phase"`
	UserMessage *messageResponse `json:"userMessage,omitempty"`
	BotMessage  *messageResponse `json:"botMessage,omitempty"`
	TraceID     string           `json:"traceId,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func toMessageResponse(m *model.ConversationMessage) *messageResponse {
	if m == nil {
		return nil
	}
	resp := &messageResponse{
		ID:            string(m.ID),
		Type:          string(m.Type),
		Content:       m.Content,
		Status:        string(m.Status),
		AfterID:       string(m.AfterID),
		SubmittedAt:   m.SubmittedAt,
		FailureDetail: m.FailureDetail,
		Steps: stepsResponse{
			Classification: stepState{Status: string(m.Steps.Classification.Status), Detail: m.Steps.Classification.Detail},
			Synthesis:      stepState{Status: string(m.Steps.Synthesis.Status), Detail: m.Steps.Synthesis.Detail},
		},
	}
	if m.Intent != nil {
		resp.Intent = &intentSummary{
			Label:      m.Intent.RawLabel.String(),
			Confidence: m.Intent.Confidence,
		}
	}
	return resp
}

// postMessageHandler runs one turn and streams the reply over SSE: zero or
// more "token" events followed by one "done" event with the settled state.
func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := types.ConversationID(chi.URLParam(r, "conversationID"))
	userID := userFromContext(r.Context())

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	conv := s.uc.Conversation(conversationID, userID)
	s.streamTurn(w, r, func(tokens chan<- string) (*usecase.TurnResult, error) {
		return conv.Submit(r.Context(), req.Text, tokens)
	})
}

// retryMessageHandler re-runs a failed turn, streaming like a fresh submit.
func (s *Server) retryMessageHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := types.ConversationID(chi.URLParam(r, "conversationID"))
	messageID := types.MessageID(chi.URLParam(r, "messageID"))
	userID := userFromContext(r.Context())

	conv := s.uc.Conversation(conversationID, userID)
	s.streamTurn(w, r, func(tokens chan<- string) (*usecase.TurnResult, error) {
		return conv.Retry(r.Context(), messageID, tokens)
	})
}

// streamTurn owns the SSE session: it forwards tokens as they arrive and
// closes with the turn's settled state. The tokens channel is created here
// and closed only after the turn function returned, matching the
// channel-ownership contract of the orchestrator.
func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, turn func(tokens chan<- string) (*usecase.TurnResult, error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		errutil.HandleHTTP(r.Context(), w, goerr.New("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	tokens := make(chan string, 32)
	type turnOutcome struct {
		result *usecase.TurnResult
		err    error
	}
	done := make(chan turnOutcome, 1)

	go func() {
		result, err := turn(tokens)
		close(tokens)
		done <- turnOutcome{result: result, err: err}
	}()

	for token := range tokens {
		writeSSE(w, "token", map[string]string{"text": token})
		flusher.Flush()
	}

	outcome := <-done
	event := turnDoneEvent{Phase: string(types.PhaseSettled)}
	if outcome.result != nil {
		event.UserMessage = toMessageResponse(outcome.result.UserMessage)
		event.BotMessage = toMessageResponse(outcome.result.BotMessage)
		event.TraceID = string(outcome.result.TraceID)
	}
	if outcome.err != nil {
		event.Phase = string(types.PhaseFailed)
		event.Error = userVisibleError(outcome.err)
		logging.From(r.Context()).Warn("turn failed", "error", outcome.err.Error())
	}
	writeSSE(w, "done", event)
	flusher.Flush()
}

// userVisibleError keeps internal error detail out of the response body.
func userVisibleError(err error) string {
	switch {
	case errors.Is(err, types.ErrEmptyUtterance):
		return "message text is empty"
	case errors.Is(err, types.ErrCallTimeout):
		return "processing timed out"
	default:
		return "processing failed"
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write([]byte("event: " + event + "\n")) //nolint:errcheck // stream already committed
	w.Write([]byte("data: "))                 //nolint:errcheck
	w.Write(data)                             //nolint:errcheck
	w.Write([]byte("\n\n"))                   //nolint:errcheck
}

// listMessagesHandler returns the conversation timeline snapshot.
func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := types.ConversationID(chi.URLParam(r, "conversationID"))
	userID := userFromContext(r.Context())

	conv := s.uc.Conversation(conversationID, userID)
	messages := conv.Messages()

	resp := struct {
		Phase    string             `json:"phase"`
		Messages []*messageResponse `json:"messages"`
	}{
		Phase:    string(conv.Phase()),
		Messages: make([]*messageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}

	writeJSON(r, w, resp)
}

type traceResponse struct {
	ID               string             `json:"id"`
	MaskedText       string             `json:"maskedText"`
	IntentLabel      string             `json:"intentLabel,omitempty"`
	IntentConfidence float64            `json:"intentConfidence,omitempty"`
	Planner          map[string]any     `json:"planner,omitempty"`
	Action           *model.TraceAction `json:"action,omitempty"`
	Receipts         []string           `json:"receipts,omitempty"`
	LatencyMillis    int64              `json:"latencyMillis"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// listTracesHandler returns recent turn traces, newest first.
func (s *Server) listTracesHandler(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())

	limit := model.MaxTraces
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			errutil.HandleHTTP(r.Context(), w, goerr.New("invalid limit", goerr.V("limit", v)), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	traces, err := s.uc.Traces().List(r.Context(), userID, limit)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to list traces"), http.StatusInternalServerError)
		return
	}

	resp := struct {
		Traces []*traceResponse `json:"traces"`
	}{Traces: make([]*traceResponse, 0, len(traces))}
	for _, tr := range traces {
		resp.Traces = append(resp.Traces, &traceResponse{
			ID:               string(tr.ID),
			MaskedText:       tr.MaskedText,
			IntentLabel:      tr.IntentLabel.String(),
			IntentConfidence: tr.IntentConfidence,
			Planner:          tr.Planner,
			Action:           tr.Action,
			Receipts:         tr.Receipts,
			LatencyMillis:    tr.LatencyMillis,
			CreatedAt:        tr.CreatedAt,
		})
	}

	writeJSON(r, w, resp)
}

func writeJSON(r *http.Request, w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data) //nolint:errcheck // header already committed
}
