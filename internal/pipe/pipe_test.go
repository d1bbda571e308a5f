package pipe

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const pipeBufferSize int = 128

const messageCount uint64 = 1000

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func feed(p *Pipe[uint64]) {
	for i := range messageCount {
		p.Send(i)
	}
}

func consume(p *Pipe[uint64], count *atomic.Uint64) {
	for {
		var msg uint64
		if !p.Recv(&msg) {
			return
		}
		count.Add(1)
	}
}

func TestNew(t *testing.T) {
	for _, n := range []int{-1, 0, 3, 100} {
		_, err := New[int](n)
		require.ErrorIs(t, err, ErrInvalidSize)
	}
	p, err := New[int](1)
	require.NoError(t, err)
	require.Zero(t, p.Len())

	require.Panics(t, func() { Must[int](6) })
}

func TestFIFO(t *testing.T) {
	p := Must[int](4)
	for i := range 4 {
		require.True(t, p.Send(i))
	}
	require.Equal(t, 4, p.Len())

	for i := range 4 {
		var got int
		require.True(t, p.Recv(&got))
		require.Equal(t, i, got)
	}
}

func TestTryRecv(t *testing.T) {
	p := Must[string](2)

	var got string
	ok, open := p.TryRecv(&got)
	require.False(t, ok)
	require.True(t, open)

	require.True(t, p.Send("a"))
	ok, open = p.TryRecv(&got)
	require.True(t, ok)
	require.True(t, open)
	require.Equal(t, "a", got)

	require.True(t, p.Send("b"))
	require.NoError(t, p.Close())
	require.False(t, p.Send("c"))

	ok, open = p.TryRecv(&got)
	require.True(t, ok)
	require.True(t, open)
	require.Equal(t, "b", got)

	ok, open = p.TryRecv(&got)
	require.False(t, ok)
	require.False(t, open)
}

func TestCloseUnblocks(t *testing.T) {
	t.Run("receiver", func(t *testing.T) {
		p := Must[int](2)
		done := make(chan bool)
		go func() {
			var v int
			done <- p.Recv(&v)
		}()
		require.NoError(t, p.Close())
		require.False(t, <-done)
	})

	t.Run("sender", func(t *testing.T) {
		p := Must[int](1)
		require.True(t, p.Send(1))
		done := make(chan bool)
		go func() {
			done <- p.Send(2)
		}()
		require.NoError(t, p.Close())
		require.False(t, <-done)

		var v int
		require.True(t, p.Recv(&v))
		require.Equal(t, 1, v)
	})
}

func TestSeq(t *testing.T) {
	p := Must[int](8)
	for i := range 5 {
		p.Send(i)
	}

	var got []int
	for v := range p.Seq() {
		got = append(got, v)
		if v == 2 {
			break
		}
	}
	require.Equal(t, []int{0, 1, 2}, got)
	require.False(t, p.Send(9))
}

func TestMultipleProducers(t *testing.T) {
	p := Must[uint64](pipeBufferSize)

	var count atomic.Uint64
	var swg sync.WaitGroup
	var cwg sync.WaitGroup

	for range 4 {
		swg.Add(1)
		go func() {
			defer swg.Done()
			feed(p)
		}()
	}

	cwg.Add(1)
	go func() {
		defer cwg.Done()
		consume(p, &count)
	}()

	swg.Wait()
	require.NoError(t, p.Close())
	cwg.Wait()

	require.Equal(t, messageCount*4, count.Load())
}

func BenchmarkMessaging(b *testing.B) {
	for b.Loop() {
		p := Must[uint64](pipeBufferSize)

		var count atomic.Uint64
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			feed(p)
			p.Close()
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(p, &count)
		}()

		wg.Wait()
		require.Equal(b, messageCount, count.Load())
	}
}
