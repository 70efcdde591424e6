package reactive

import "sync"

// Subscriber receives values published to the Observable it subscribed to.
type Subscriber[T any] struct {
	c         chan T
	container *Observable[T]
	once      sync.Once
}

// Cancel removes subscriber from the container and closes its channel.
// Not calling this method may result in memory leak. Calling it again is a no-op.
func (s *Subscriber[T]) Cancel() {
	s.once.Do(func() {
		s.container.delete(s)
		close(s.c)
	})
}

// Channel returns channel that can be used to read published values.
func (s *Subscriber[T]) Channel() <-chan T {
	return s.c
}

// Observable creates a container for subscribers.
// This works in single producer multiple consumer pattern.
// A slow subscriber never stalls the producer, values that do not fit in its buffer are dropped.
type Observable[T any] struct {
	mux         sync.RWMutex
	subscribers map[*Subscriber[T]]struct{}
	size        int
}

// New creates Observable container that holds channels for all subscribers.
// size is the buffer size of each channel.
func New[T any](size int) *Observable[T] {
	if size < 1 {
		size = 1
	}
	return &Observable[T]{
		subscribers: make(map[*Subscriber[T]]struct{}),
		size:        size,
	}
}

// Subscribe subscribes to the container.
func (o *Observable[T]) Subscribe() *Subscriber[T] {
	s := &Subscriber[T]{
		c:         make(chan T, o.size),
		container: o,
	}
	o.mux.Lock()
	defer o.mux.Unlock()
	o.subscribers[s] = struct{}{}
	return s
}

// Publish publishes value to all subscribers and returns how many of them missed it.
func (o *Observable[T]) Publish(v T) (dropped int) {
	o.mux.RLock()
	defer o.mux.RUnlock()
	for s := range o.subscribers {
		select {
		case s.c <- v:
		default:
			dropped++
		}
	}
	return dropped
}

// Len returns the number of subscribers.
func (o *Observable[T]) Len() int {
	o.mux.RLock()
	defer o.mux.RUnlock()
	return len(o.subscribers)
}

func (o *Observable[T]) delete(s *Subscriber[T]) {
	o.mux.Lock()
	defer o.mux.Unlock()
	delete(o.subscribers, s)
}
