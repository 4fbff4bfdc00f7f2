package engine

import (
	"sync"
)

// Trigger names what asked for a drain.
type Trigger int

const (
	// TriggerStartup is requested once when the application starts.
	TriggerStartup Trigger = iota + 1
	// TriggerOnline follows an offline to online transition.
	TriggerOnline
	// TriggerTimer is the periodic safety net.
	TriggerTimer
	// TriggerQueued follows an enqueue while online.
	TriggerQueued
	// TriggerManual comes from an operator (CLI or HTTP).
	TriggerManual
	// TriggerRetry follows a pass that dead-lettered its blocking record.
	TriggerRetry
)

// String returns a human-readable name for the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerStartup:
		return "startup"
	case TriggerOnline:
		return "online"
	case TriggerTimer:
		return "timer"
	case TriggerQueued:
		return "queued"
	case TriggerManual:
		return "manual"
	case TriggerRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// triggerQueue is a thread-safe FIFO of drain requests.
//
// A trigger already waiting is not queued twice: one pending pass serves
// every identical request made before it starts.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type triggerQueue struct {
	mu       sync.Mutex
	triggers []Trigger
	closed   bool
	signal   chan struct{} // Signals trigger availability (buffered, size 1)
}

// newTriggerQueue creates an empty trigger queue.
func newTriggerQueue() *triggerQueue {
	return &triggerQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a trigger unless an identical one is already waiting.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *triggerQueue) Enqueue(t Trigger) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	for _, pending := range q.triggers {
		if pending == t {
			return true
		}
	}
	q.triggers = append(q.triggers, t)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// DrainAll removes every waiting trigger and returns them in order.
func (q *triggerQueue) DrainAll() []Trigger {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := append([]Trigger(nil), q.triggers...)
	q.triggers = q.triggers[:0]
	return out
}

// Wait returns a channel that signals when triggers may be available.
func (q *triggerQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.triggers)
}

// Close signals that no more triggers will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
