package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesEventsByTaskID(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	chA, unsubA := d.Subscribe("task-a")
	defer unsubA()
	chB, unsubB := d.Subscribe("task-b")
	defer unsubB()

	src <- Event{Kind: "COMPLETE", ID: "task-a", Response: "A done"}
	src <- Event{Kind: "COMPLETE", ID: "task-b", Response: "B done"}

	var gotA, gotB Event
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); gotA = <-chA }()
	go func() { defer wg.Done(); gotB = <-chB }()

	waitTimeout(t, &wg, time.Second)

	require.Equal(t, "A done", gotA.Response)
	require.Equal(t, "B done", gotB.Response)
}

func TestDispatcher_ConcurrentSubscribersDontCrossDeliver(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	const n = 20
	chans := make([]<-chan Event, n)
	unsubs := make([]func(), n)
	for i := 0; i < n; i++ {
		id := taskID(i)
		ch, unsub := d.Subscribe(id)
		chans[i] = ch
		unsubs[i] = unsub
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	go func() {
		for i := 0; i < n; i++ {
			src <- Event{Kind: "COMPLETE", ID: taskID(i), Response: taskID(i)}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]Event, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = <-chans[i]
		}()
	}
	waitTimeout(t, &wg, 2*time.Second)

	for i := 0; i < n; i++ {
		require.Equal(t, taskID(i), results[i].ID)
		require.Equal(t, taskID(i), results[i].Response)
	}
}

func TestDispatcher_UnsubscribeStopsDelivery(t *testing.T) {
	src := make(chan Event)
	d := NewDispatcher(src)

	ch, unsub := d.Subscribe("task-x")
	unsub()

	src <- Event{Kind: "COMPLETE", ID: "task-x"}

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should not receive after unsubscribe")
	case <-time.After(50 * time.Millisecond):
		// no delivery, as expected
	}
}

func taskID(i int) string {
	return "task-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for goroutines")
	}
}
