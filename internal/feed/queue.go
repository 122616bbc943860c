package feed

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO feeding one subscriber channel. Publishers never
// block on a slow subscriber and nothing is dropped.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
	out    chan T
}

func newQueue[T any](ctx context.Context) *queue[T] {
	q := &queue[T]{
		signal: make(chan struct{}, 1),
		out:    make(chan T),
	}
	go q.run(ctx)
	return q
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue[T]) run(ctx context.Context) {
	defer close(q.out)

	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
				continue
			}
		}
		v := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-ctx.Done():
			return
		}
	}
}
