package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/agentrt/runtime/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how long the bot loop waits before polling again
// after a successful poll that returned no updates.
const DefaultPollInterval = 2 * time.Second

// UpdateKind distinguishes the three inbound message shapes the bot
// transport can deliver.
type UpdateKind string

const (
	UpdateText     UpdateKind = "text"
	UpdateVoice    UpdateKind = "voice"
	UpdateCallback UpdateKind = "callback_query"
)

// Update is one inbound message the bot transport delivered. Kind selects
// which of Message, VoiceFileID, CallbackData is populated; the zero value
// (UpdateText) covers the common plain-text case.
type Update struct {
	Offset       int64
	Channel      string
	UserID       string
	Kind         UpdateKind
	Message      string // text body, for UpdateText
	VoiceFileID  string // transport-side file handle, for UpdateVoice
	CallbackData string // raw button payload, for UpdateCallback
}

// BotTransport is a long-polled messaging backend (Telegram-style bot API,
// Slack RTM fallback, etc.): Poll blocks until new updates exist (or the
// context is cancelled) and Send delivers a response back to the user.
// DownloadVoice fetches the audio bytes behind a voice update's file handle.
type BotTransport interface {
	Poll(ctx context.Context, sinceOffset int64) ([]Update, error)
	Send(ctx context.Context, channel, userID, message string) error
	DownloadVoice(ctx context.Context, fileID string) ([]byte, error)
}

// slashCommands are handled by the gateway directly and never reach the
// Task Router — they control the bot session, not the agent.
var slashCommands = map[string]bool{
	"/start": true, "/help": true, "/clear": true, "/model": true, "/status": true,
}

// BotLoop continuously polls transport for updates and routes each
// non-command message through router as a task, sending the task's final
// response back to the originating channel in one message once it
// completes. Runs until ctx is cancelled.
func BotLoop(ctx context.Context, transport BotTransport, router TaskSubmitter, dispatcher *Dispatcher) {
	var offset int64
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; the caller's ctx bounds the loop

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := transport.Poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			log.Warn().Err(err).Dur("retry_in", wait).Msg("bot poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		for _, u := range updates {
			if u.Offset >= offset {
				offset = u.Offset + 1
			}
			handleUpdate(ctx, transport, router, dispatcher, u)
		}

		if len(updates) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(DefaultPollInterval):
			}
		}
	}
}

func handleUpdate(ctx context.Context, transport BotTransport, router TaskSubmitter, dispatcher *Dispatcher, u Update) {
	switch u.Kind {
	case UpdateVoice:
		handleVoiceUpdate(ctx, transport, router, dispatcher, u)
		return
	case UpdateCallback:
		u.Message = fmt.Sprintf("[CALLBACK:%s]", u.CallbackData)
	}

	cmd := strings.Fields(u.Message)
	if len(cmd) > 0 && strings.HasPrefix(cmd[0], "/") {
		lower := strings.ToLower(cmd[0])
		if !slashCommands[lower] {
			_ = transport.Send(ctx, u.Channel, u.UserID, "Unknown command")
			return
		}
		handleSlashCommand(ctx, transport, u, lower)
		return
	}

	submitAndReply(ctx, transport, router, dispatcher, u, u.Message, nil)
}

// handleVoiceUpdate downloads the voice note's audio bytes and forwards
// them to inference as a base64-encoded payload; voice updates bypass
// slash-command dispatch entirely.
func handleVoiceUpdate(ctx context.Context, transport BotTransport, router TaskSubmitter, dispatcher *Dispatcher, u Update) {
	audio, err := transport.DownloadVoice(ctx, u.VoiceFileID)
	if err != nil {
		_ = transport.Send(ctx, u.Channel, u.UserID, "could not download voice message: "+err.Error())
		return
	}
	metadata := map[string]string{
		"kind":         "voice",
		"audio_base64": base64.StdEncoding.EncodeToString(audio),
	}
	submitAndReply(ctx, transport, router, dispatcher, u, "[voice message]", metadata)
}

// submitAndReply submits one task to router and streams its final response
// back to the originating channel, translating submission and completion
// failures into a user-facing reply instead of propagating the error.
func submitAndReply(ctx context.Context, transport BotTransport, router TaskSubmitter, dispatcher *Dispatcher, u Update, message string, metadata map[string]string) {
	task := &models.Task{
		ID:        uuid.New().String(),
		Channel:   u.Channel,
		UserID:    u.UserID,
		Message:   message,
		Metadata:  metadata,
		ArrivedAt: time.Now().UTC(),
	}

	events, unsubscribe := dispatcher.Subscribe(task.ID)
	defer unsubscribe()

	if _, err := router.Submit(task); err != nil {
		_ = transport.Send(ctx, u.Channel, u.UserID, "request could not be queued: "+err.Error())
		return
	}

	resp, err := awaitCompletion(ctx, events)
	if err != nil {
		_ = transport.Send(ctx, u.Channel, u.UserID, "request failed: "+err.Error())
		return
	}
	_ = transport.Send(ctx, u.Channel, u.UserID, resp)
}

func handleSlashCommand(ctx context.Context, transport BotTransport, u Update, cmd string) {
	var reply string
	switch cmd {
	case "/start":
		reply = "ready."
	case "/help":
		reply = "send a message to get a response. /clear resets context, /status shows routing state."
	case "/clear":
		reply = "conversation context cleared."
	case "/model":
		reply = "model routing is automatic for this channel."
	case "/status":
		reply = "online."
	}
	_ = transport.Send(ctx, u.Channel, u.UserID, reply)
}
