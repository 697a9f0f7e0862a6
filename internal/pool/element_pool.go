// Package pool provides shared buffers for decoded stream elements.  One
// pool is kept per element type so concurrent streams of the same type
// amortize allocations against each other.
package pool

import (
	"reflect"
	"sync"
)

// Buffer holds decoded elements for one pull cycle.  Elems is the logical
// contents; capacity beyond len(Elems) is reusable scratch.
type Buffer[T any] struct {
	Elems []T
}

// pools maps reflect.Type to the *sync.Pool of buffers for that element
// type.
var pools sync.Map

func poolFor[T any]() *sync.Pool {
	t := reflect.TypeFor[T]()
	if p, ok := pools.Load(t); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(t, &sync.Pool{
		New: func() any { return &Buffer[T]{} },
	})
	return p.(*sync.Pool)
}

// Acquire returns a buffer with zero length and at least the requested
// capacity, reusing a pooled buffer when one is available.
func Acquire[T any](capacity int) *Buffer[T] {
	b := poolFor[T]().Get().(*Buffer[T])
	if cap(b.Elems) < capacity {
		b.Elems = make([]T, 0, capacity)
	} else {
		b.Elems = b.Elems[:0]
	}
	return b
}

// Grow returns a buffer of double capacity holding b's contents.  The old
// buffer is recycled; the caller must not use b afterwards.
func Grow[T any](b *Buffer[T]) *Buffer[T] {
	newCap := 2 * cap(b.Elems)
	if newCap == 0 {
		newCap = 1
	}
	nb := &Buffer[T]{Elems: make([]T, len(b.Elems), newCap)}
	copy(nb.Elems, b.Elems)
	Release(b)
	return nb
}

// Release returns b to its pool.  Slots are cleared first so pooled buffers
// never pin values whose ownership has transferred to a consumer.
func Release[T any](b *Buffer[T]) {
	clear(b.Elems[:cap(b.Elems)])
	b.Elems = b.Elems[:0]
	poolFor[T]().Put(b)
}
