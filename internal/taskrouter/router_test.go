package taskrouter

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentrt/runtime/internal/models"
	"github.com/stretchr/testify/require"
)

type funcExecutor struct {
	fn func(ctx context.Context, prompt string, onToken TokenSink) error
}

func (f funcExecutor) Infer(ctx context.Context, prompt string, onToken TokenSink) error {
	return f.fn(ctx, prompt, onToken)
}
func (f funcExecutor) ChatStream(ctx context.Context, prompt string, onToken TokenSink) error {
	return f.fn(ctx, prompt, onToken)
}

// eventCollector drains a Router's event channel into an ordered slice.
type eventCollector struct {
	mu   sync.Mutex
	evts []Event
}

func collect(r *Router) *eventCollector {
	c := &eventCollector{}
	go func() {
		for e := range r.Events() {
			c.mu.Lock()
			c.evts = append(c.evts, e)
			c.mu.Unlock()
		}
	}()
	return c
}

func (c *eventCollector) kinds() []EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventKind, len(c.evts))
	for i, e := range c.evts {
		out[i] = e.Kind
	}
	return out
}

func (c *eventCollector) waitFor(t *testing.T, kind EventKind, id string, timeout time.Duration) Event {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, e := range c.evts {
			if e.Kind == kind && (id == "" || e.ID == id) {
				c.mu.Unlock()
				return e
			}
		}
		c.mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s id=%s", kind, id)
	return Event{}
}

func newTask(id, channel, msg string) *models.Task {
	return &models.Task{ID: id, Channel: channel, UserID: "u1", Message: msg, ArrivedAt: time.Now()}
}

func TestSimpleShortLocalRoute(t *testing.T) {
	echo := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		onToken("hi")
		return nil
	}}
	r := NewRouter(nil, echo, nil, models.RouterConfig{Mode: "auto", Threshold: 6})
	r.SetExecutorStatus(true, "", false)
	c := collect(r)

	ack, err := r.Submit(newTask("t1", "web", "Hi"))
	require.NoError(t, err)
	require.Equal(t, -1, ack.QueuedPosition)

	e := c.waitFor(t, EventComplete, "t1", time.Second)
	require.Equal(t, "hi", e.Response)

	routed := c.waitFor(t, EventRouted, "t1", time.Second)
	require.Equal(t, "LOCAL", routed.Route)
	require.Equal(t, 0, routed.Complexity)
}

func TestPrivacyOverride(t *testing.T) {
	echo := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		onToken("ok")
		return nil
	}}
	r := NewRouter(nil, echo, echo, models.RouterConfig{Mode: "cloud", Threshold: 6, PrivacyMode: true})
	r.SetExecutorStatus(true, "test-model", true)
	c := collect(r)

	_, err := r.Submit(newTask("t2", "web", "summarise this document"))
	require.NoError(t, err)

	routed := c.waitFor(t, EventRouted, "t2", time.Second)
	require.Equal(t, "LOCAL", routed.Route)
}

func TestLongMultiStepForcesCloud(t *testing.T) {
	echo := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		onToken("ok")
		return nil
	}}
	r := NewRouter(nil, echo, echo, models.RouterConfig{Mode: "auto", Threshold: 6})
	r.SetExecutorStatus(true, "test-model", true)
	c := collect(r)

	text := strings.Repeat("x", 4100*4) + " first do this then do that finally stop"
	_, err := r.Submit(newTask("t3", "web", text))
	require.NoError(t, err)

	routed := c.waitFor(t, EventRouted, "t3", time.Second)
	require.Equal(t, "CLOUD", routed.Route)
	require.Equal(t, "NORMAL", routed.Priority)
	require.Equal(t, 7, routed.Complexity)
}

func TestPreemption(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	started := make(chan struct{}, 1)

	cloud := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		mu.Lock()
		calls[prompt]++
		n := calls[prompt]
		mu.Unlock()

		if strings.Contains(prompt, "urgent") {
			onToken("urgent-done")
			return nil
		}
		if n == 1 {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return ctx.Err()
		}
		onToken("resumed")
		return nil
	}}

	r := NewRouter(nil, nil, cloud, models.RouterConfig{Mode: "cloud", Threshold: 6})
	r.SetExecutorStatus(false, "", true)
	c := collect(r)

	_, err := r.Submit(newTask("normal-1", "web", "please summarize slowly"))
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first task never started")
	}

	_, err = r.Submit(newTask("urgent-1", "web", "this is urgent now"))
	require.NoError(t, err)

	c.waitFor(t, EventPreempted, "normal-1", time.Second)
	c.waitFor(t, EventComplete, "urgent-1", time.Second)
	c.waitFor(t, EventComplete, "normal-1", 2*time.Second)
}

func TestQueueOverflowEvictsOldestBackground(t *testing.T) {
	block := make(chan struct{})
	cloud := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		<-block
		onToken("done")
		return nil
	}}
	r := NewRouter(nil, nil, cloud, models.RouterConfig{Mode: "cloud", Threshold: 100}).WithMaxDepth(3)
	r.SetExecutorStatus(false, "", true)
	c := collect(r)

	_, err := r.Submit(newTask("running", "web", "short"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := r.Submit(newTask(background(i), "web", "short background task"))
		require.NoError(t, err)
	}

	ack, err := r.Submit(newTask("normal-51", "web", "this is moderately complex code, first then next"))
	require.NoError(t, err)
	require.Equal(t, 3, ack.QueuedPosition)

	dropped := c.waitFor(t, EventDropped, "", time.Second)
	require.Equal(t, "bg-0", dropped.ID)
	require.Equal(t, "QueueOverflow", dropped.Reason)

	close(block)
}

func background(i int) string {
	return "bg-" + string(rune('0'+i))
}

func TestAtMostOneRunning(t *testing.T) {
	var mu sync.Mutex
	running, maxRunning := 0, 0
	cloud := funcExecutor{fn: func(ctx context.Context, prompt string, onToken TokenSink) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		onToken("x")
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}}
	r := NewRouter(nil, nil, cloud, models.RouterConfig{Mode: "cloud"})
	r.SetExecutorStatus(false, "", true)
	c := collect(r)

	for i := 0; i < 5; i++ {
		_, err := r.Submit(newTask(background(i), "web", "hello world"))
		require.NoError(t, err)
		snap := r.Status()
		require.LessOrEqual(t, len(snap.CurrentID), 40) // a single current slot, never more
	}
	for i := 0; i < 5; i++ {
		c.waitFor(t, EventComplete, background(i), 2*time.Second)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, maxRunning)
}
