package gamesync

import "sync"

// Observable holds a current value and fans every new value out to its
// subscribers. Values must not be mutated after Publish.
type Observable[T any] struct {
	mu    sync.RWMutex
	value T
	subs  map[chan T]struct{}
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value: initial,
		subs:  make(map[chan T]struct{}),
	}
}

// Value returns the latest published value.
func (o *Observable[T]) Value() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Subscribe returns a channel that immediately holds the current value and
// then receives every published value.
func (o *Observable[T]) Subscribe() chan T {
	ch := make(chan T, 16)
	o.mu.Lock()
	ch <- o.value
	o.subs[ch] = struct{}{}
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (o *Observable[T]) Unsubscribe(ch chan T) {
	o.mu.Lock()
	if _, ok := o.subs[ch]; ok {
		delete(o.subs, ch)
		close(ch)
	}
	o.mu.Unlock()
}

// Publish stores v and sends it to every subscriber. A subscriber whose
// buffer is full loses its oldest pending value, so the latest value always
// arrives.
func (o *Observable[T]) Publish(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.value = v
	for ch := range o.subs {
		select {
		case ch <- v:
			continue
		default:
		}
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
