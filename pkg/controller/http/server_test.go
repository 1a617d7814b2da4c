package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	httpctrl "github.com/inkwell-lab/inkwell/pkg/controller/http"
	"github.com/inkwell-lab/inkwell/pkg/repository/memory"
	"github.com/inkwell-lab/inkwell/pkg/service/classifier"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
)

func newTestServer() (*httpctrl.Server, *usecase.UseCases) {
	uc := usecase.New(memory.New(), usecase.WithClassifier(classifier.New()))
	return httpctrl.New(uc), uc
}

func TestHealthEndpoint(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, rec.Body.String()).Equal(`{"status":"ok"}`)
}

func TestPostMessageStreamsTurn(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	body := strings.NewReader(`{"text": "note that the retro went better after we changed the format"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", body)
	req.Header.Set("X-Inkwell-User", "user-1")

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, rec.Header().Get("Content-Type")).Equal("text/event-stream")

	out := rec.Body.String()
	gt.Bool(t, strings.Contains(out, "event: token")).True()
	gt.Bool(t, strings.Contains(out, "event: done")).True()
	gt.Bool(t, strings.Contains(out, `"phase":"settled"`)).True()

	// The entry landed for the header-identified user, not anonymous.
	entries, err := uc.Repository().Entry().ListRecent(req.Context(), "user-1", 0)
	gt.NoError(t, err).Required()
	gt.Value(t, len(entries)).Equal(1)
}

func TestPostMessageRejectsBadBody(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestPostEmptyMessageFailsInStream(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", strings.NewReader(`{"text": "  "}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	// SSE is already committed, so the failure arrives as the done event.
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	out := rec.Body.String()
	gt.Bool(t, strings.Contains(out, `"phase":"failed"`)).True()
	gt.Bool(t, strings.Contains(out, "message text is empty")).True()
}

func TestListMessagesAfterTurn(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	body := strings.NewReader(`{"text": "note that the retro went better after we changed the format"}`)
	post := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", body)
	post.Header.Set("X-Inkwell-User", "user-1")
	server.ServeHTTP(httptest.NewRecorder(), post)

	get := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/messages", nil)
	get.Header.Set("X-Inkwell-User", "user-1")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, get)

	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Phase    string `json:"phase"`
		Messages []struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Status  string `json:"status"`
			AfterID string `json:"afterId"`
			Intent  *struct {
				Label string `json:"label"`
			} `json:"intent"`
		} `json:"messages"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()

	gt.Value(t, resp.Phase).Equal("settled")
	gt.Value(t, len(resp.Messages)).Equal(2)
	gt.Value(t, resp.Messages[0].Type).Equal("entry")
	gt.Value(t, resp.Messages[0].Status).Equal("sent")
	gt.Value(t, resp.Messages[0].Intent.Label).Equal("entry_create")
	gt.Value(t, resp.Messages[1].Type).Equal("bot")
	gt.Value(t, resp.Messages[1].AfterID).Equal(resp.Messages[0].ID)
}

func TestListTraces(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	body := strings.NewReader(`{"text": "note that the retro went better after we changed the format"}`)
	post := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages", body)
	post.Header.Set("X-Inkwell-User", "user-1")
	server.ServeHTTP(httptest.NewRecorder(), post)
	uc.Tasks().Wait()

	get := httptest.NewRequest(http.MethodGet, "/api/traces?limit=5", nil)
	get.Header.Set("X-Inkwell-User", "user-1")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, get)

	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Traces []struct {
			ID          string `json:"id"`
			MaskedText  string `json:"maskedText"`
			IntentLabel string `json:"intentLabel"`
		} `json:"traces"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, len(resp.Traces)).Equal(1)
	gt.Value(t, resp.Traces[0].IntentLabel).Equal("entry_create")
}

func TestListTracesRejectsBadLimit(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/traces?limit=zero", nil))
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestRetryUnknownMessageFailsInStream(t *testing.T) {
	server, uc := newTestServer()
	defer uc.CloseConversations()

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/conv-1/messages/no-such-id/retry", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Bool(t, strings.Contains(rec.Body.String(), `"phase":"failed"`)).True()
}
