// Package models holds the data types shared across the runtime: tasks,
// memory chunks, conversation turns, credential bundles, and routing
// configuration. See internal/taskrouter, internal/memoryengine,
// internal/providers, and internal/gateway for the operations over them.
package models

import "time"

// ── Priority & routing ──────────────────────────────────────

// Priority is a totally ordered task priority: Urgent > Normal > Background.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityNormal
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityNormal:
		return "NORMAL"
	default:
		return "BACKGROUND"
	}
}

// Route is the chosen executor for a task.
type Route string

const (
	RouteLocal Route = "LOCAL"
	RouteCloud Route = "CLOUD"
)

// TaskState is a point in the per-task state machine.
type TaskState string

const (
	TaskAdmitted  TaskState = "admitted"
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskCancelled TaskState = "cancelled"
	TaskFailed    TaskState = "failed"
	TaskDropped   TaskState = "dropped"
)

// Task is a single unit of work: one user message awaiting a response.
// Immutable after admission except for the derived fields filled in by
// scoring (Complexity, Priority, Route, Realtime, Privacy) and the fields
// mutated by the scheduler (State, Context, Response).
type Task struct {
	ID        string
	Channel   string
	UserID    string
	Message   string
	Metadata  map[string]string
	ArrivedAt time.Time

	Complexity int
	Priority   Priority
	Route      Route
	Realtime   bool
	Privacy    bool

	Context  string
	Response string
	State    TaskState
}

// RouterConfig controls routing-decision policy. Swapped atomically as a
// whole record so a single scoring decision always observes one consistent
// configuration.
type RouterConfig struct {
	Mode         string // "auto" | "local" | "cloud"
	Threshold    int    // complexity threshold for auto mode, default 6
	PrivacyMode  bool
}

// DefaultRouterConfig returns the spec's documented defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{Mode: "auto", Threshold: 6, PrivacyMode: false}
}

// ExecutorStatus tracks availability of the two executor backends.
type ExecutorStatus struct {
	LocalModelLoaded bool
	LocalModelID     string // empty when no local model is loaded
	CloudAvailable   bool
}

// ── Memory ───────────────────────────────────────────────────

// MemoryChunk is a bounded, content-addressed slice of a document.
// Never mutated after creation; destroyed only by ClearDocument or a
// process-level wipe.
type MemoryChunk struct {
	Key         string // "<docID>_chunk_<i>"
	DocID       string
	Index       int
	Text        string
	Fingerprint [16]byte // first 16 bytes of SHA-256(text), big-endian uint128
	Metadata    map[string]string
	CreatedAt   time.Time
}

// ConversationTurn is one message (user or assistant) in a channel/user
// conversation. Invariant I-C1: within a (channel, user) pair, timestamps
// are monotonically non-decreasing across successive turns.
type ConversationTurn struct {
	Key       string
	Channel   string
	UserID    string
	Role      string // "user" | "assistant"
	Content   string
	Timestamp time.Time
}

// ── Credentials ──────────────────────────────────────────────

// CredentialBundle maps provider ID to secret string, held in memory only
// in plaintext form; the on-disk/at-rest representation is EncryptedEnvelope.
type CredentialBundle map[string]string

// EncryptedEnvelope is the at-rest, authenticated-encryption representation
// of a CredentialBundle.
type EncryptedEnvelope struct {
	Ciphertext []byte
	Salt       [16]byte
	IV         [12]byte
	Encrypted  bool
}

// ── Provider Abstraction ─────────────────────────────────────

// Message is the normalized chat message shape accepted by every provider
// driver. Role is one of "system", "user", "assistant".
type Message struct {
	Role    string
	Content string
}

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	ID       string
	Provider string
}

// ChatRequest is the normalized request passed to a provider driver.
type ChatRequest struct {
	Model    string
	Messages []Message
}

// ChatResponse is the normalized non-streaming chat result.
type ChatResponse struct {
	Provider string
	Model    string
	Content  string
}

// StreamChunk is one token (or the terminal marker) of a streamed response.
type StreamChunk struct {
	Token string
	Done  bool
}

// ── Workspace (the teacher's "Kitchen" tenant concept, renamed) ──

// Workspace is a tenant scope: every stored object belongs to exactly one.
type Workspace struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ── Audit ────────────────────────────────────────────────────

// AuditEvent records a routing decision or credential access for later review.
type AuditEvent struct {
	ID        string
	Workspace string
	Action    string
	Detail    string
	Timestamp time.Time
}
