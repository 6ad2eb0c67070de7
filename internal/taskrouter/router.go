// Package taskrouter implements the priority-queue scheduler at the heart
// of the runtime: complexity scoring, LOCAL/CLOUD routing, backpressure
// admission, preemption, and streaming dispatch.
package taskrouter

import (
	"context"
	"strings"
	"sync"

	"github.com/agentrt/runtime/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultMaxDepth is the default bounded queue capacity.
const DefaultMaxDepth = 50

// Ack is returned by Submit. QueuedPosition is -1 when the task was
// dispatched immediately rather than queued.
type Ack struct {
	ID             string
	QueuedPosition int
}

// CancelResult is the outcome of a Cancel call.
type CancelResult string

const (
	CancelResultCancelled     CancelResult = "cancelled"
	CancelResultNotFound      CancelResult = "not_found"
	CancelResultAlreadyRunning CancelResult = "already_running"
)

// Snapshot is a point-in-time copy of the router's queue state, safe for
// callers to read without touching the queue directly.
type Snapshot struct {
	QueueLen         int
	CurrentID        string
	UrgentCount      int
	NormalCount      int
	BackgroundCount  int
}

type runningTask struct {
	task      *models.Task
	cancel    context.CancelFunc
	preempted bool
}

// Router owns the queue and the currently-executing task slot exclusively;
// every other observer gets a Snapshot copy. It holds a one-directional
// reference to MemoryEngine — Memory never calls back into the Router.
type Router struct {
	mu      sync.Mutex
	queue   tierQueue
	current *runningTask
	cfg     models.RouterConfig
	status  models.ExecutorStatus
	maxDepth int

	events chan Event

	memory MemoryEngine
	local  LocalExecutor
	cloud  CloudExecutor
}

// NewRouter builds a Router with the given collaborators and initial
// config. Any of memory/local/cloud may be nil (no-op collaborators with
// NoExecutorAvailable-on-dispatch semantics for missing executors).
func NewRouter(memory MemoryEngine, local LocalExecutor, cloud CloudExecutor, cfg models.RouterConfig) *Router {
	return &Router{
		cfg:      cfg,
		maxDepth: DefaultMaxDepth,
		events:   make(chan Event, 4096),
		memory:   memory,
		local:    local,
		cloud:    cloud,
	}
}

// WithMaxDepth overrides the default bounded queue capacity.
func (r *Router) WithMaxDepth(n int) *Router {
	r.mu.Lock()
	r.maxDepth = n
	r.mu.Unlock()
	return r
}

// Events returns the channel of observable lifecycle events.
func (r *Router) Events() <-chan Event {
	return r.events
}

func (r *Router) emit(e Event) {
	r.events <- e
}

// UpdateConfig atomically swaps the RouterConfig used by subsequent scoring
// and routing decisions.
func (r *Router) UpdateConfig(cfg models.RouterConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// SetExecutorStatus updates executor availability flags. localModelID is
// the loaded local model's id, ignored when localLoaded is false.
func (r *Router) SetExecutorStatus(localLoaded bool, localModelID string, cloudAvailable bool) {
	r.mu.Lock()
	r.status = models.ExecutorStatus{LocalModelLoaded: localLoaded, LocalModelID: localModelID, CloudAvailable: cloudAvailable}
	r.mu.Unlock()
}

// RoutingStatus reports the current routing mode and loaded local model id
// (empty if none), for the Channel Gateway's GET /api/status endpoint.
func (r *Router) RoutingStatus() (mode string, localModelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.LocalModelLoaded {
		return r.cfg.Mode, r.status.LocalModelID
	}
	return r.cfg.Mode, ""
}

// Submit admits a task: scores it, then either dispatches it immediately
// (nothing currently running), preempts a lower-priority running task, or
// enqueues it under the backpressure policy.
func (r *Router) Submit(task *models.Task) (Ack, error) {
	r.mu.Lock()

	task.Complexity = Score(task.Message, r.cfg)
	task.Realtime = Realtime(task.Message)
	task.Privacy = PrivacyFlag(task.Message, r.cfg)
	task.Priority = DerivePriority(task.Complexity, task.Realtime)
	task.State = models.TaskAdmitted

	if r.current == nil {
		ctx, rt := r.beginRunningLocked(task)
		r.mu.Unlock()
		go r.dispatch(ctx, rt)
		return Ack{ID: task.ID, QueuedPosition: -1}, nil
	}

	if task.Priority == models.PriorityUrgent && r.current.task.Priority < models.PriorityUrgent {
		preempted := r.current
		preempted.preempted = true
		preemptedID := preempted.task.ID
		preempted.task.State = models.TaskQueued
		r.queue.pushFront(preempted.task)

		ctx, rt := r.beginRunningLocked(task)
		r.mu.Unlock()

		preempted.cancel()
		r.emit(Event{Kind: EventPreempted, ID: preemptedID})

		go r.dispatch(ctx, rt)
		return Ack{ID: task.ID, QueuedPosition: -1}, nil
	}

	if r.queue.len() >= r.maxDepth {
		victim := r.queue.evictOldestBackground()
		if victim == nil {
			r.mu.Unlock()
			return Ack{}, ErrQueueFull
		}
		victim.State = models.TaskDropped
		r.mu.Unlock()
		r.emit(Event{Kind: EventDropped, ID: victim.ID, Reason: "QueueOverflow"})
		r.mu.Lock()
	}

	task.State = models.TaskQueued
	r.queue.pushBack(task)
	pos := r.queue.position(task)
	r.mu.Unlock()
	r.emit(Event{Kind: EventQueued, ID: task.ID, Position: pos})
	return Ack{ID: task.ID, QueuedPosition: pos}, nil
}

// beginRunningLocked moves a task into the current slot. Caller must hold mu.
func (r *Router) beginRunningLocked(task *models.Task) (context.Context, *runningTask) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &runningTask{task: task, cancel: cancel}
	r.current = rt
	task.State = models.TaskRunning
	return ctx, rt
}

// Cancel attempts to cancel a task by ID, whether queued or currently running.
func (r *Router) Cancel(id string) (CancelResult, error) {
	r.mu.Lock()
	if r.current != nil && r.current.task.ID == id {
		rt := r.current
		r.mu.Unlock()
		rt.cancel()
		return CancelResultCancelled, nil
	}

	for _, tier := range []*[]*models.Task{&r.queue.urgent, &r.queue.normal, &r.queue.background} {
		for i, t := range *tier {
			if t.ID == id {
				*tier = append((*tier)[:i], (*tier)[i+1:]...)
				t.State = models.TaskCancelled
				r.mu.Unlock()
				r.emit(Event{Kind: EventCancelled, ID: id})
				return CancelResultCancelled, nil
			}
		}
	}
	r.mu.Unlock()
	return CancelResultNotFound, ErrNotFound
}

// ClearQueue drops all queued tasks but leaves the currently-running task alone.
func (r *Router) ClearQueue() {
	r.mu.Lock()
	r.queue = tierQueue{}
	r.mu.Unlock()
}

// Status returns a snapshot copy of the router's queue state.
func (r *Router) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, n, b := r.queue.counts()
	s := Snapshot{QueueLen: r.queue.len(), UrgentCount: u, NormalCount: n, BackgroundCount: b}
	if r.current != nil {
		s.CurrentID = r.current.task.ID
	}
	return s
}

// dispatch runs the full dispatch-and-stream lifecycle for one task: context
// assembly, route decision, executor invocation, token forwarding, and
// completion/turn recording. It runs in its own goroutine; only brief,
// mutex-protected sections touch shared router state.
func (r *Router) dispatch(ctx context.Context, rt *runningTask) {
	task := rt.task

	assembled, err := r.assembleContext(ctx, task)
	if err != nil {
		log.Warn().Err(err).Str("task", task.ID).Msg("context assembly failed, using raw message")
		assembled = task.Message
	}
	task.Context = assembled

	r.mu.Lock()
	cfg := r.cfg
	status := r.status
	r.mu.Unlock()

	route := DecideRoute(task.Privacy, task.Realtime, task.Complexity, cfg, status)
	task.Route = route

	r.emit(Event{
		Kind:       EventRouted,
		ID:         task.ID,
		Route:      string(route),
		Complexity: task.Complexity,
		Priority:   task.Priority.String(),
		Realtime:   task.Realtime,
		Privacy:    task.Privacy,
	})

	var sb strings.Builder
	onToken := func(tok string) {
		sb.WriteString(tok)
		r.emit(Event{Kind: EventStream, ID: task.ID, Token: tok})
	}

	var execErr error
	switch route {
	case models.RouteLocal:
		if r.local == nil {
			execErr = ErrNoExecutorAvailable
		} else {
			execErr = r.local.Infer(ctx, assembled, onToken)
		}
	case models.RouteCloud:
		if r.cloud == nil {
			execErr = ErrNoExecutorAvailable
		} else {
			execErr = r.cloud.ChatStream(ctx, assembled, onToken)
		}
	}

	if rt.preempted {
		// Superseded by a higher-priority task; the slot was already
		// handed over synchronously in Submit. Nothing further to do.
		return
	}

	select {
	case <-ctx.Done():
		task.State = models.TaskCancelled
		r.emit(Event{Kind: EventCancelled, ID: task.ID})
		r.advance()
		return
	default:
	}

	if execErr != nil {
		task.State = models.TaskFailed
		r.emit(Event{Kind: EventError, ID: task.ID, ErrorMsg: execErr.Error()})
		r.advance()
		return
	}

	task.Response = sb.String()
	task.State = models.TaskCompleted
	r.emit(Event{Kind: EventComplete, ID: task.ID, Response: task.Response})

	if r.memory != nil {
		go func() {
			if err := r.memory.RecordTurn(context.Background(), task.Channel, task.UserID, "assistant", task.Response); err != nil {
				log.Warn().Err(err).Str("task", task.ID).Msg("record_turn failed (non-fatal)")
			}
		}()
	}

	r.advance()
}

func (r *Router) assembleContext(ctx context.Context, task *models.Task) (string, error) {
	if r.memory == nil {
		return task.Message, nil
	}
	return r.memory.AssembleContext(ctx, task.Channel, task.Message)
}

// advance releases the current slot and dispatches the next queued task, if any.
func (r *Router) advance() {
	r.mu.Lock()
	r.current = nil
	next := r.queue.pop()
	if next == nil {
		r.mu.Unlock()
		return
	}
	ctx, rt := r.beginRunningLocked(next)
	r.mu.Unlock()
	go r.dispatch(ctx, rt)
}
