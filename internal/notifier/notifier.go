// Package notifier fans out values to any number of subscribers.
package notifier

import "sync"

// Notifier broadcasts values of type T to all subscribed listeners.
// Each listener holds at most one pending value; a newer broadcast replaces an
// unread one, so slow listeners only ever see the latest value.
type Notifier[T any] struct {
	mu        sync.Mutex
	listeners map[chan T]struct{}
}

// New creates a new Notifier instance.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		listeners: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast values.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier[T]) Subscribe() <-chan T {
	ch := make(chan T, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it. Unknown channels are ignored.
func (n *Notifier[T]) Unsubscribe(sub <-chan T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		if (<-chan T)(ch) == sub {
			delete(n.listeners, ch)
			close(ch)
			return
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Broadcast delivers v to every listener without blocking.
func (n *Notifier[T]) Broadcast(v T) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case ch <- v:
			continue
		default:
		}
		// Full: drop the stale value and retry once. Only Broadcast sends, and it
		// holds the lock, so the retry cannot race another sender.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
