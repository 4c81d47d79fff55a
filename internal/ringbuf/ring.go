// SPDX-License-Identifier: MIT
/*
Package ringbuf implements a fixed-capacity, lock-free single-producer/
single-consumer queue.

The queue is split into two handles. The Producer is owned by the capture
callback and the Consumer by whatever drives analysis. Each handle must be
used from exactly one goroutine at a time; the two handles may be used
concurrently with each other.

Overflow policy: when the queue is full, Push drops the incoming value and
counts it. Unread values are never overwritten, so a window that is halfway
through being analysed cannot be corrupted by the producer.

Positions are free-running uint64 counters. The slot for a position is the
position modulo the capacity, and the number of readable values is always
tail - head.
*/
package ringbuf

import (
	"errors"
	"iter"
	"sync/atomic"
)

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("ringbuf: capacity must be positive")

// cacheLinePad keeps the producer and consumer counters on separate cache
// lines.
type cacheLinePad [64]byte

type ring[T any] struct {
	buf  []T
	size uint64

	_    cacheLinePad
	head atomic.Uint64 // Next position to read. Written only by the consumer.
	_    cacheLinePad
	tail atomic.Uint64 // Next position to write. Written only by the producer.
	_    cacheLinePad

	dropped atomic.Uint64
}

// Producer is the write side of the queue.
type Producer[T any] struct {
	r *ring[T]
}

// Consumer is the read side of the queue.
type Consumer[T any] struct {
	r *ring[T]
}

// New allocates a queue holding up to capacity values and returns its two
// handles.
func New[T any](capacity int) (*Producer[T], *Consumer[T], error) {
	if capacity <= 0 {
		return nil, nil, ErrInvalidCapacity
	}
	r := &ring[T]{
		buf:  make([]T, capacity),
		size: uint64(capacity),
	}
	return &Producer[T]{r: r}, &Consumer[T]{r: r}, nil
}

// Push appends v. It never blocks and never allocates. If the queue is full
// v is discarded, the drop counter is incremented and false is returned.
func (p *Producer[T]) Push(v T) bool {
	r := p.r
	t := r.tail.Load()
	if t-r.head.Load() >= r.size {
		r.dropped.Add(1)
		return false
	}
	r.buf[t%r.size] = v
	r.tail.Store(t + 1)
	return true
}

// Write appends as many values from vs as fit and returns how many were
// accepted. The rest are counted as dropped.
func (p *Producer[T]) Write(vs []T) int {
	r := p.r
	t := r.tail.Load()
	free := r.size - (t - r.head.Load())
	n := uint64(len(vs))
	if n > free {
		r.dropped.Add(n - free)
		n = free
	}
	if n == 0 {
		return 0
	}

	start := t % r.size
	first := min(n, r.size-start)
	copy(r.buf[start:start+first], vs[:first])
	copy(r.buf[:n-first], vs[first:n])

	r.tail.Store(t + n)
	return int(n)
}

// Free reports how many values can currently be pushed without dropping.
func (p *Producer[T]) Free() int {
	r := p.r
	return int(r.size - (r.tail.Load() - r.head.Load()))
}

// Capacity returns the fixed capacity of the queue.
func (p *Producer[T]) Capacity() int {
	return int(p.r.size)
}

// Dropped reports the total number of values discarded because the queue
// was full.
func (p *Producer[T]) Dropped() uint64 {
	return p.r.dropped.Load()
}

// Capacity returns the fixed capacity of the queue.
func (c *Consumer[T]) Capacity() int {
	return int(c.r.size)
}

// Len reports the number of unread values.
func (c *Consumer[T]) Len() int {
	r := c.r
	return int(r.tail.Load() - r.head.Load())
}

// Dropped mirrors Producer.Dropped so the consumer side can report overruns.
func (c *Consumer[T]) Dropped() uint64 {
	return c.r.dropped.Load()
}

// Peek returns an iterator over up to n unread values, oldest first, without
// consuming them. The set of visible values is fixed when iteration starts.
func (c *Consumer[T]) Peek(n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		r := c.r
		h := r.head.Load()
		avail := r.tail.Load() - h
		count := uint64(max(n, 0))
		count = min(count, avail)
		for i := range count {
			if !yield(r.buf[(h+i)%r.size]) {
				return
			}
		}
	}
}

// Pop removes and returns the oldest unread value.
func (c *Consumer[T]) Pop() (T, bool) {
	r := c.r
	h := r.head.Load()
	if h == r.tail.Load() {
		var zero T
		return zero, false
	}
	v := r.buf[h%r.size]
	r.head.Store(h + 1)
	return v, true
}

// Drain returns an iterator that pops values until the queue is empty or the
// caller stops. A value handed to yield has already been consumed.
func (c *Consumer[T]) Drain() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := c.Pop()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// Skip discards up to n unread values and returns how many were discarded.
func (c *Consumer[T]) Skip(n int) int {
	if n <= 0 {
		return 0
	}
	r := c.r
	h := r.head.Load()
	k := min(uint64(n), r.tail.Load()-h)
	r.head.Store(h + k)
	return int(k)
}
