package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler whose time only moves when Advance is
// called. Callbacks run synchronously on the goroutine calling Advance, in
// due-time order and in scheduling order when due times are equal.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	queue   timerQueue
	pending map[Token]*manualTimer
}

type manualTimer struct {
	token Token
	due   time.Time
	seq   uint64
	fn    func()
	index int
}

// NewManual returns a Manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now:     start,
		pending: make(map[Token]*manualTimer),
	}
}

// Now returns the manual clock's current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After queues fn to run when the clock has been advanced by d.
func (m *Manual) After(d time.Duration, fn func()) Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{
		token: Token(m.seq),
		due:   m.now.Add(d),
		seq:   m.seq,
		fn:    fn,
	}
	heap.Push(&m.queue, t)
	m.pending[t.token] = t
	return t.token
}

// Cancel removes a queued callback.
func (m *Manual) Cancel(t Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer, ok := m.pending[t]
	if !ok {
		return false
	}
	delete(m.pending, t)
	heap.Remove(&m.queue, timer.index)
	return true
}

// Advance moves the clock forward by d and fires every callback that falls
// due, including callbacks armed by other callbacks inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if m.queue.Len() == 0 || m.queue[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		next := heap.Pop(&m.queue).(*manualTimer)
		delete(m.pending, next.token)
		if next.due.After(m.now) {
			m.now = next.due
		}
		m.mu.Unlock()

		next.fn()
	}
}

// Pending reports how many callbacks are queued.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
