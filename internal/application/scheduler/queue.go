package scheduler

import (
	"container/heap"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

type queued struct {
	plan *booking.Plan
	seq  uint64
}

// planQueue is a min-heap on ExecuteAt; ties keep insertion order.
type planQueue []queued

func (q planQueue) Len() int { return len(q) }

func (q planQueue) Less(i, j int) bool {
	a, b := q[i].plan.ExecuteAt, q[j].plan.ExecuteAt
	if a.Equal(b) {
		return q[i].seq < q[j].seq
	}
	return a.Before(b)
}

func (q planQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *planQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *planQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*q = old[:n-1]
	return item
}

func (q *planQueue) peek() *booking.Plan {
	if len(*q) == 0 {
		return nil
	}
	return (*q)[0].plan
}

func (q *planQueue) pop() *booking.Plan {
	return heap.Pop(q).(queued).plan
}
