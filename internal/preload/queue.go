package preload

import (
	"container/list"
	"sync"

	"github.com/javi11/altview/internal/bitmap"
)

// Queue is a deduplicating priority deque of load requests. Any number of
// goroutines may push; a single consumer pops.
//
// Order: high priority requests at the front (newest first), normal ones
// after them in arrival order, low ones at the back in arrival order.
type Queue struct {
	mu     sync.Mutex
	items  *list.List
	index  map[bitmap.Key]*list.Element
	notify chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		items:  list.New(),
		index:  make(map[bitmap.Key]*list.Element),
		notify: make(chan struct{}, 1),
	}
}

// Notify receives a value after pushes. Wakeups coalesce.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Push queues req. A request for a key that is already queued only takes
// effect when it raises the priority, in which case the queued entry moves
// to its new place. It reports whether the queue changed.
func (q *Queue) Push(req bitmap.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.index[req.Key]; ok {
		queued := e.Value.(bitmap.Request)
		if req.Priority >= queued.Priority {
			return false
		}
		q.items.Remove(e)
	}

	q.index[req.Key] = q.insert(req)
	q.wake()
	return true
}

func (q *Queue) insert(req bitmap.Request) *list.Element {
	switch {
	case req.Priority <= bitmap.PriorityHigh:
		return q.items.PushFront(req)
	case req.Priority >= bitmap.PriorityLow:
		return q.items.PushBack(req)
	}

	// normal goes after everything of the same or higher priority
	for e := q.items.Back(); e != nil; e = e.Prev() {
		if e.Value.(bitmap.Request).Priority <= req.Priority {
			return q.items.InsertAfter(req, e)
		}
	}
	return q.items.PushFront(req)
}

// Pop removes the first request.
func (q *Queue) Pop() (bitmap.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e := q.items.Front()
	if e == nil {
		return bitmap.Request{}, false
	}

	req := q.items.Remove(e).(bitmap.Request)
	delete(q.index, req.Key)
	return req, true
}

// PrioritizeVisible moves the visible keys to the front as high priority
// requests, in the given order, queuing the ones not yet queued. At most
// nonVisibleCap other requests are kept; the ones nearest the back are
// dropped. It returns the number of dropped requests.
func (q *Queue) PrioritizeVisible(visible []bitmap.Key, nonVisibleCap int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	isVisible := make(map[bitmap.Key]bool, len(visible))
	for _, key := range visible {
		isVisible[key] = true
		if e, ok := q.index[key]; ok {
			q.items.Remove(e)
			delete(q.index, key)
		}
	}

	for i := len(visible) - 1; i >= 0; i-- {
		key := visible[i]
		if _, ok := q.index[key]; ok {
			continue // listed twice
		}
		q.index[key] = q.items.PushFront(bitmap.Request{Key: key, Priority: bitmap.PriorityHigh})
	}

	dropped, kept := 0, 0
	for e := q.items.Front(); e != nil; {
		next := e.Next()
		req := e.Value.(bitmap.Request)
		if !isVisible[req.Key] {
			kept++
			if nonVisibleCap >= 0 && kept > nonVisibleCap {
				q.items.Remove(e)
				delete(q.index, req.Key)
				dropped++
			}
		}
		e = next
	}

	if len(visible) > 0 {
		q.wake()
	}
	return dropped
}

// Remove drops a queued request.
func (q *Queue) Remove(key bitmap.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.index[key]
	if !ok {
		return false
	}
	q.items.Remove(e)
	delete(q.index, key)
	return true
}

// Contains reports whether key is queued.
func (q *Queue) Contains(key bitmap.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[key]
	return ok
}

// Clear empties the queue and returns how many requests were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Len()
	q.items.Init()
	clear(q.index)
	return n
}

// Len returns the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Snapshot returns the queued requests in dequeue order.
func (q *Queue) Snapshot() []bitmap.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]bitmap.Request, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(bitmap.Request))
	}
	return out
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
