package loop

import (
	"container/heap"
	"time"
)

// entry is one pending invocation in the timer queue.
type entry struct {
	deadline time.Time
	seq      uint64
	op       string
	action   func()
	timer    *Timer // owning recurring timer, nil for one-shots
	index    int    // heap position, -1 once popped or removed
}

// timerQueue orders entries by deadline, then by registration sequence.
type timerQueue []*entry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// popDue removes and returns, in firing order, every entry due at now.
func (q *timerQueue) popDue(now time.Time) []*entry {
	var due []*entry
	for q.Len() > 0 && !(*q)[0].deadline.After(now) {
		due = append(due, heap.Pop(q).(*entry))
	}
	return due
}

// remove drops e if it is still queued.
func (q *timerQueue) remove(e *entry) {
	if e == nil || e.index < 0 || e.index >= q.Len() || (*q)[e.index] != e {
		return
	}
	heap.Remove(q, e.index)
}

// next returns the earliest deadline, if any.
func (q timerQueue) next() (time.Time, bool) {
	if len(q) == 0 {
		return time.Time{}, false
	}
	return q[0].deadline, true
}
