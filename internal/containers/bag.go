// Package containers holds small concurrent collections.
package containers

import (
	"iter"
	"slices"
	"sync/atomic"
)

type node[T any] struct {
	value T
	next  *node[T]
}

// Bag collects values added from many goroutines without locking. Values are only ever
// added and taken out all at once. A zero value Bag is ready to use.
type Bag[T any] struct {
	head atomic.Pointer[node[T]]
}

// Add adds the provided values to the Bag.
func (b *Bag[T]) Add(v ...T) {
	if len(v) == 0 {
		return
	}

	var newHead, tail *node[T]
	for _, i := range v {
		n := &node[T]{value: i}
		if newHead == nil {
			newHead, tail = n, n
			continue
		}
		n.next = newHead
		newHead = n
	}

	for {
		oldHead := b.head.Load()
		tail.next = oldHead
		if b.head.CompareAndSwap(oldHead, newHead) {
			return
		}
	}
}

// Seq empties the Bag and yields its values, most recently added first.
func (b *Bag[T]) Seq() iter.Seq[T] {
	head := b.head.Swap(nil)
	return func(yield func(T) bool) {
		for head != nil {
			if !yield(head.value) {
				return
			}
			head = head.next
		}
	}
}

// Collect empties the Bag and returns its values in the order they were added.
func (b *Bag[T]) Collect() []T {
	out := slices.Collect(b.Seq())
	slices.Reverse(out)
	return out
}
