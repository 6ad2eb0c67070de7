package taskrouter

// EventKind names one of the task lifecycle events observable via the
// router's internal pub/sub.
type EventKind string

const (
	EventReady     EventKind = "READY"
	EventQueued    EventKind = "QUEUED"
	EventRouted    EventKind = "ROUTED"
	EventStream    EventKind = "STREAM"
	EventComplete  EventKind = "COMPLETE"
	EventPreempted EventKind = "PREEMPTED"
	EventCancelled EventKind = "CANCELLED"
	EventDropped   EventKind = "DROPPED"
	EventError     EventKind = "ERROR"
	EventStatus    EventKind = "STATUS"
)

// Event is one observable lifecycle transition, carrying whichever fields
// apply to its Kind.
type Event struct {
	Kind       EventKind
	ID         string
	Position   int
	Route      string
	Complexity int
	Priority   string
	Realtime   bool
	Privacy    bool
	Token      string
	Response   string
	Reason     string
	ErrorMsg   string
}
