package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentrt/runtime/internal/models"
	"github.com/google/uuid"
)

// TaskSubmitter is the subset of taskrouter.Router the gateway depends on.
// Kept narrow so the gateway package never imports taskrouter's internal
// scheduling types.
type TaskSubmitter interface {
	Submit(task *models.Task) (Ack, error)
}

// Ack mirrors taskrouter.Ack — duplicated here (not imported) so the
// gateway's public surface doesn't leak the router's internal Event/Ack
// wire shape into whichever taskrouter type changes later.
type Ack struct {
	ID             string
	QueuedPosition int
}

// Event mirrors the subset of taskrouter.Event fields the gateway needs
// to recognize a task's completion.
type Event struct {
	Kind     string
	ID       string
	Response string
	Reason   string
	ErrorMsg string
}

type webhookRequest struct {
	Channel  string         `json:"channel"`
	UserID   string         `json:"userId"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

// stringifyMetadata converts the wire-level JSON object into the Task's
// flat string map, matching whatever JSON scalar each value decoded to.
func stringifyMetadata(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

type webhookResponse struct {
	Response string `json:"response"`
}

// webhookTimeout bounds how long a synchronous webhook request waits for
// the submitted task to complete before answering with a timeout error.
const webhookTimeout = 60 * time.Second

// WebhookHandler builds the POST /webhook handler: it submits one task per
// request, waits for it to complete (non-streaming), and answers with the
// final response. dispatcher must be wired to the same router's Events().
func WebhookHandler(router TaskSubmitter, dispatcher *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
			return
		}
		if req.Channel == "" {
			req.Channel = "webhook"
		}

		task := &models.Task{
			ID:        uuid.New().String(),
			Channel:   req.Channel,
			UserID:    req.UserID,
			Message:   req.Message,
			Metadata:  stringifyMetadata(req.Metadata),
			ArrivedAt: time.Now().UTC(),
		}

		events, unsubscribe := dispatcher.Subscribe(task.ID)
		defer unsubscribe()

		if _, err := router.Submit(task); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), webhookTimeout)
		defer cancel()

		resp, err := awaitCompletion(ctx, events)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusGatewayTimeout)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookResponse{Response: resp})
	}
}

// awaitCompletion drains events until it sees a terminal one (complete,
// error, cancelled, dropped).
func awaitCompletion(ctx context.Context, events <-chan Event) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev := <-events:
			switch ev.Kind {
			case "COMPLETE":
				return ev.Response, nil
			case "ERROR":
				return "", &taskFailedError{reason: ev.ErrorMsg}
			case "CANCELLED", "DROPPED":
				return "", &taskFailedError{reason: ev.Reason}
			}
		}
	}
}

type taskFailedError struct{ reason string }

func (e *taskFailedError) Error() string {
	if e.reason == "" {
		return "task did not complete"
	}
	return e.reason
}
