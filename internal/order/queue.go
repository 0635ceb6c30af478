package order

import "sync"

// Queue is the FIFO sequence of open order ids awaiting admin processing.
// A membership set keeps every id in the queue at most once; processing
// order is advisory, so several orders may sit in Processing at a time.
type Queue struct {
	mu     sync.Mutex
	ids    []string
	member map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{member: make(map[string]struct{})}
}

// Enqueue appends id to the tail. Returns false if the id is already
// queued, leaving the existing position untouched.
func (q *Queue) Enqueue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.member[id]; ok {
		return false
	}
	q.ids = append(q.ids, id)
	q.member[id] = struct{}{}
	return true
}

func (q *Queue) PeekNext() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return "", false
	}
	return q.ids[0], true
}

func (q *Queue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	delete(q.member, id)
	return id, true
}

// Remove drops id from wherever it sits in the queue, e.g. when an order
// is cancelled or received before reaching the head.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.member[id]; !ok {
		return false
	}
	for i, v := range q.ids {
		if v == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	delete(q.member, id)
	return true
}

// Rebuild replaces the queue contents with ids, head first, dropping
// duplicates. Used to re-sync from the authoritative store, where open
// orders sort by creation time.
func (q *Queue) Rebuild(ids []string) {
	member := make(map[string]struct{}, len(ids))
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := member[id]; ok {
			continue
		}
		member[id] = struct{}{}
		fresh = append(fresh, id)
	}

	q.mu.Lock()
	q.ids = fresh
	q.member = member
	q.mu.Unlock()
}

// Pending returns up to n ids from the head without removing them.
func (q *Queue) Pending(n int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > len(q.ids) {
		n = len(q.ids)
	}
	out := make([]string, n)
	copy(out, q.ids[:n])
	return out
}

func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.member[id]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
