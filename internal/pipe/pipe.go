// Package pipe provides the bounded, blocking FIFO used as the only hand-off point between
// goroutines of different containers.
package pipe

import (
	"errors"
	"io"
	"iter"
	"sync"
)

var ErrInvalidSize = errors.New("pipe size must be a power of two")

type Rx[T any] interface {
	Recv(*T) bool
	TryRecv(*T) (ok, open bool)
	Seq() iter.Seq[T]
}

type Tx[T any] interface {
	Send(T) bool
}

type TxCloser[T any] interface {
	Tx[T]
	io.Closer
}

// Pipe is a ring buffer guarded by a mutex. Send blocks while the buffer is full and Recv
// blocks while it is empty; both return false once the pipe is closed. Items sent before
// Close can still be received.
type Pipe[T any] struct {
	data      []T
	head      uint
	tail      uint
	done      bool
	mu        sync.Mutex
	condFull  *sync.Cond
	condEmpty *sync.Cond
}

var (
	_ Rx[int]       = (*Pipe[int])(nil)
	_ TxCloser[int] = (*Pipe[int])(nil)
)

// New is a function that instantiates a new Pipe with a size of n.
// The value of n must be a valid power of two. Any other value will
// result in an error.
func New[T any](n int) (*Pipe[T], error) {
	if !powerOfTwo(n) {
		return nil, ErrInvalidSize
	}
	var p Pipe[T]
	p.data = make([]T, n)
	p.condFull = sync.NewCond(&p.mu)
	p.condEmpty = sync.NewCond(&p.mu)
	return &p, nil
}

// Must is a function that returns a new instance of a Pipe, or panics
// if an error is encountered.
func Must[T any](n int) *Pipe[T] {
	p, err := New[T](n)
	if err != nil {
		panic(err)
	}
	return p
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func (p *Pipe[T]) empty() bool {
	return p.head == p.tail
}

func (p *Pipe[T]) full() bool {
	return (p.head - p.tail) == uint(len(p.data))
}

func (p *Pipe[T]) mask(value uint) uint {
	return value & (uint(len(p.data)) - 1)
}

// Seq yields received items until the pipe is closed and drained. Stopping the iteration
// early closes the pipe.
func (p *Pipe[T]) Seq() iter.Seq[T] {
	return func(yield func(T) bool) {
		defer p.Close()

		for {
			var msg T
			if !p.Recv(&msg) {
				return
			}
			if !yield(msg) {
				return
			}
		}
	}
}

func (p *Pipe[T]) Send(item T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.full() && !p.done {
		p.condFull.Wait()
	}

	if p.done {
		return false
	}

	p.data[p.mask(p.head)] = item
	p.head++

	p.condEmpty.Signal()
	return true
}

func (p *Pipe[T]) Recv(t *T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.empty() && !p.done {
		p.condEmpty.Wait()
	}

	if p.empty() {
		return false
	}
	p.take(t)
	return true
}

// TryRecv receives an item if one is buffered, without blocking. open is false once the
// pipe is closed and empty.
func (p *Pipe[T]) TryRecv(t *T) (ok, open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.empty() {
		return false, !p.done
	}
	p.take(t)
	return true, true
}

func (p *Pipe[T]) take(t *T) {
	var zero T
	i := p.mask(p.tail)
	*t = p.data[i]
	p.data[i] = zero
	p.tail++

	p.condFull.Signal()
}

// Len returns the number of buffered items.
func (p *Pipe[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return int(p.head - p.tail)
}

func (p *Pipe[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = true

	p.condEmpty.Broadcast()
	p.condFull.Broadcast()
	return nil
}
