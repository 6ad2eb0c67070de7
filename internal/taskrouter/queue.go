package taskrouter

import "github.com/agentrt/runtime/internal/models"

// tierQueue is a three-tier priority queue: each tier is FIFO by arrival,
// and Urgent always drains before Normal, Normal before Background.
type tierQueue struct {
	urgent     []*models.Task
	normal     []*models.Task
	background []*models.Task
}

func (q *tierQueue) tier(p models.Priority) *[]*models.Task {
	switch p {
	case models.PriorityUrgent:
		return &q.urgent
	case models.PriorityNormal:
		return &q.normal
	default:
		return &q.background
	}
}

// pushBack enqueues at the back of the task's priority tier.
func (q *tierQueue) pushBack(t *models.Task) {
	tier := q.tier(t.Priority)
	*tier = append(*tier, t)
}

// pushFront re-inserts at the front of the task's priority tier, used when
// re-queueing a preempted task so it does not lose its place in line.
func (q *tierQueue) pushFront(t *models.Task) {
	tier := q.tier(t.Priority)
	*tier = append([]*models.Task{t}, *tier...)
}

// pop removes and returns the next task: highest priority tier first, FIFO
// within a tier. Returns nil if the queue is empty.
func (q *tierQueue) pop() *models.Task {
	for _, tier := range []*[]*models.Task{&q.urgent, &q.normal, &q.background} {
		if len(*tier) > 0 {
			t := (*tier)[0]
			*tier = (*tier)[1:]
			return t
		}
	}
	return nil
}

// len returns the total number of queued tasks across all tiers.
func (q *tierQueue) len() int {
	return len(q.urgent) + len(q.normal) + len(q.background)
}

// position reports a just-enqueued task's queued_position: the total number
// of tasks now waiting in the queue across all tiers, the task's own slot
// included. This is a depth count, not a dispatch-order rank — a NORMAL task
// queued behind a wall of BACKGROUND tasks still reports the full depth,
// even though it will dispatch ahead of them.
func (q *tierQueue) position(t *models.Task) int {
	return q.len()
}

// oldestBackground returns the oldest-arrived Background task, or nil.
func (q *tierQueue) oldestBackground() *models.Task {
	if len(q.background) == 0 {
		return nil
	}
	return q.background[0]
}

// evictOldestBackground removes and returns the oldest Background task.
func (q *tierQueue) evictOldestBackground() *models.Task {
	if len(q.background) == 0 {
		return nil
	}
	t := q.background[0]
	q.background = q.background[1:]
	return t
}

// counts returns per-tier lengths, used by Status().
func (q *tierQueue) counts() (urgent, normal, background int) {
	return len(q.urgent), len(q.normal), len(q.background)
}
