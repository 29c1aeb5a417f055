// Job queue shared by the encoder and decoder workers.
//
// One worker goroutine per instance owns the codec session. Callers enqueue
// jobs; the worker pops them in FIFO order and blocks on the condition
// variable when idle. The queue is unbounded, so Encode/Decode/Flush/Reset
// never block the caller; backpressure happens on the output channels
// instead.

package webcodecs

import "sync"

type jobKind int

const (
	jobUnit jobKind = iota
	jobFlush
	jobReset
)

type job struct {
	kind jobKind

	frame    *VideoFrame // encoder unit payload
	keyFrame bool
	chunk    *EncodedVideoChunk // decoder unit payload

	token FlushToken // jobFlush
}

type jobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []job
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a job. Returns false when the queue is closed.
func (q *jobQueue) push(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)
	q.cond.Signal()
	return true
}

// pop blocks until a job is available or the queue is closed. Once closed,
// remaining jobs are not delivered; the ok result is false.
func (q *jobQueue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return job{}, false
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, true
}

// reset discards every queued job and enqueues a single reset job so the
// codec flush runs on the worker, which owns the session. Queued flush
// tokens are abandoned.
func (q *jobQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.jobs = append(q.jobs[:0], job{kind: jobReset})
	q.cond.Signal()
}

// close discards queued jobs and wakes the worker so it can exit.
func (q *jobQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.jobs = nil
	q.cond.Broadcast()
}

// sessionState tracks the instance lifecycle. There is no distinct
// "flushing" state; a flush is just a barrier job in the queue.
type sessionState int

const (
	stateUnconfigured sessionState = iota
	stateConfiguring
	stateOpen
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateConfiguring:
		return "configuring"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "unconfigured"
	}
}
