package gateway

import "sync"

// Dispatcher fans out the Task Router's single event stream to whichever
// goroutines are waiting on a specific task ID. The router exposes one
// shared channel; without this, two concurrent webhook requests reading
// from it directly would race over each other's events.
type Dispatcher struct {
	mu      sync.Mutex
	waiters map[string][]chan Event
}

// NewDispatcher starts draining src in a background goroutine and returns
// a Dispatcher that callers can Subscribe to by task ID.
func NewDispatcher(src <-chan Event) *Dispatcher {
	d := &Dispatcher{waiters: make(map[string][]chan Event)}
	go d.run(src)
	return d
}

func (d *Dispatcher) run(src <-chan Event) {
	for ev := range src {
		d.mu.Lock()
		chans := d.waiters[ev.ID]
		d.mu.Unlock()
		for _, ch := range chans {
			ch <- ev
		}
	}
}

// Subscribe registers interest in events for taskID. The returned channel
// and unsubscribe func must be used together: call unsubscribe once the
// caller stops reading, or the waiter list leaks.
func (d *Dispatcher) Subscribe(taskID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	d.mu.Lock()
	d.waiters[taskID] = append(d.waiters[taskID], ch)
	d.mu.Unlock()

	unsubscribe := func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.waiters[taskID]
		for i, c := range list {
			if c == ch {
				d.waiters[taskID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(d.waiters[taskID]) == 0 {
			delete(d.waiters, taskID)
		}
	}
	return ch, unsubscribe
}
