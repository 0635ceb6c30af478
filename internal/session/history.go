package session

import "time"

// HistoryEntry is one recorded visit or search with the time it happened.
type HistoryEntry[T any] struct {
	Value T         `json:"value"`
	At    time.Time `json:"at"`
}

// History is a bounded recency stack: pushes land on top, reads come back
// most recent first, and the oldest entry is evicted once capacity is
// reached. Pushing the same value twice records two entries — this is a
// pure recency log, not a deduplicated "recently seen" set, so "last N"
// can contain repeats.
//
// History does not lock; the owning Session's mutex guards it.
type History[T any] struct {
	capacity int
	entries  []HistoryEntry[T]
}

func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{capacity: capacity}
}

func (h *History[T]) Push(v T) {
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, HistoryEntry[T]{Value: v, At: time.Now().UTC()})
}

// List returns the entries most recent first.
func (h *History[T]) List() []HistoryEntry[T] {
	out := make([]HistoryEntry[T], len(h.entries))
	for i, e := range h.entries {
		out[len(h.entries)-1-i] = e
	}
	return out
}

func (h *History[T]) Clear() {
	h.entries = h.entries[:0]
}

func (h *History[T]) Len() int { return len(h.entries) }

func (h *History[T]) Cap() int { return h.capacity }
