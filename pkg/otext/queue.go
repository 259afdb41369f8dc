package otext

import (
	"context"
	"sync"
)

// Queue is a thread safe FIFO of precomputed OT blocks. Callers take
// OTs from the front; blocks are split when a caller asks for fewer OTs
// than the head block holds.
type Queue[B Block[B]] struct {
	mu           sync.Mutex
	blocks       []B
	available    int
	lowWaterMark int
	needOT       func()
	// added is closed and replaced on every Add
	added chan struct{}
}

// NewQueue returns an empty queue that asks for more OTs when fewer
// than lowWaterMark unreserved OTs are left.
func NewQueue[B Block[B]](lowWaterMark int) *Queue[B] {
	return &Queue[B]{
		lowWaterMark: lowWaterMark,
		added:        make(chan struct{}),
	}
}

// SetNeedOTCallback installs f, which is called whenever the queue runs
// low. f must not block.
func (q *Queue[B]) SetNeedOTCallback(f func()) {
	q.mu.Lock()
	q.needOT = f
	q.mu.Unlock()
}

// Available returns the number of OTs in the queue.
func (q *Queue[B]) Available() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.available
}

// Add appends b to the queue and wakes up all waiting callers. Empty
// blocks are dropped.
func (q *Queue[B]) Add(b B) {
	n := b.Len()
	if n == 0 {
		return
	}

	q.mu.Lock()
	q.blocks = append(q.blocks, b)
	q.available += n
	close(q.added)
	q.added = make(chan struct{})
	q.mu.Unlock()
}

// Get removes up to numOTs OTs from the front of the queue, leaving at
// least reserved OTs in it. It blocks until more than reserved OTs are
// available or ctx is done. The returned block may hold fewer than
// numOTs OTs; callers loop until they have what they need. A numOTs of
// zero or less returns the zero value of B.
func (q *Queue[B]) Get(ctx context.Context, numOTs, reserved int) (B, error) {
	var zero B
	if numOTs <= 0 {
		return zero, nil
	}

	q.mu.Lock()
	if q.available <= reserved {
		q.signal()
	}
	for q.available <= reserved {
		added := q.added
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-added:
		}
		q.mu.Lock()
	}
	defer q.mu.Unlock()

	if rest := q.available - reserved; numOTs > rest {
		numOTs = rest
	}

	var b B
	if head := q.blocks[0]; head.Len() > numOTs {
		b = head.Remove(numOTs)
	} else {
		b = head
		q.blocks[0] = zero
		q.blocks = q.blocks[1:]
	}
	q.available -= b.Len()

	if q.available-reserved < q.lowWaterMark {
		q.signal()
	}
	return b, nil
}

// signal calls the need OT callback. q.mu must be held.
func (q *Queue[B]) signal() {
	if q.needOT != nil {
		q.needOT()
	}
}
