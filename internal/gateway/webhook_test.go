package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentrt/runtime/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	onSubmit func(task *models.Task) (Ack, error)
}

func (f *fakeSubmitter) Submit(task *models.Task) (Ack, error) {
	return f.onSubmit(task)
}

func TestWebhookHandler_HappyPath(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	submitter := &fakeSubmitter{onSubmit: func(task *models.Task) (Ack, error) {
		go func() {
			src <- Event{Kind: "COMPLETE", ID: task.ID, Response: "pong"}
		}()
		return Ack{ID: task.ID}, nil
	}}

	handler := WebhookHandler(submitter, d)

	body, _ := json.Marshal(webhookRequest{Channel: "web", UserID: "u1", Message: "ping"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp webhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "pong", resp.Response)
}

func TestWebhookHandler_DocumentedWireShape(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	var got *models.Task
	submitter := &fakeSubmitter{onSubmit: func(task *models.Task) (Ack, error) {
		got = task
		go func() {
			src <- Event{Kind: "COMPLETE", ID: task.ID, Response: "pong"}
		}()
		return Ack{ID: task.ID}, nil
	}}

	handler := WebhookHandler(submitter, d)

	body := []byte(`{"message":"ping","userId":"u1","channel":"web","metadata":{"locale":"en-US"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "web", got.Channel)
	require.Equal(t, "en-US", got.Metadata["locale"])
}

func TestWebhookHandler_EmptyMessageRejected(t *testing.T) {
	d := NewDispatcher(make(chan Event))
	submitter := &fakeSubmitter{onSubmit: func(task *models.Task) (Ack, error) {
		t.Fatal("should not submit an empty message")
		return Ack{}, nil
	}}
	handler := WebhookHandler(submitter, d)

	body, _ := json.Marshal(webhookRequest{Message: ""})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_SubmitErrorIsServiceUnavailable(t *testing.T) {
	d := NewDispatcher(make(chan Event))
	submitter := &fakeSubmitter{onSubmit: func(task *models.Task) (Ack, error) {
		return Ack{}, errQueueFull
	}}
	handler := WebhookHandler(submitter, d)

	body, _ := json.Marshal(webhookRequest{Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhookHandler_ErrorEventPropagates(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	submitter := &fakeSubmitter{onSubmit: func(task *models.Task) (Ack, error) {
		go func() {
			src <- Event{Kind: "ERROR", ID: task.ID, ErrorMsg: "provider unavailable"}
		}()
		return Ack{ID: task.ID}, nil
	}}
	handler := WebhookHandler(submitter, d)

	body, _ := json.Marshal(webhookRequest{Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler(w, req)

	require.Equal(t, http.StatusGatewayTimeout, w.Code)
}

type sentinelError struct{ s string }

func (e *sentinelError) Error() string { return e.s }

var errQueueFull = &sentinelError{s: "queue full"}
