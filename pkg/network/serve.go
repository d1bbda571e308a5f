package network

import (
	"context"
	"errors"

	"go.uber.org/zap"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

type EnvelopeKind int

const (
	// UpdateEnvelope carries one base fact for an input or mirror node.
	UpdateEnvelope EnvelopeKind = iota
	// PullEnvelope asks for the contents of a supplier.
	PullEnvelope
)

// Envelope is the unit of cross-goroutine communication with a container.
type Envelope struct {
	Kind      EnvelopeKind
	Node      NodeID
	Direction tuple.Direction
	Tuple     tuple.Tuple
	Flush     bool

	// ID correlates a pull with its result.
	ID string
	// Reply receives the result of a pull. It must be buffered.
	Reply chan<- PullResult
	// Done, if set, is called once the envelope has been handled and the resulting deltas
	// drained.
	Done func()
}

// PullResult answers a PullEnvelope.
type PullResult struct {
	ID     string
	Tuples []tuple.Tuple
	Err    error
}

// Post queues env into the inbox of the container. It blocks while the inbox is full and
// returns false once the container is closed. Post is safe for concurrent use.
func (c *Container) Post(env Envelope) bool {
	return c.inbox.Send(env)
}

// Close stops accepting envelopes. Serve returns after handling the ones already queued.
func (c *Container) Close() error {
	return c.inbox.Close()
}

// Serve handles envelopes until the container is closed or ctx is cancelled. After every
// batch of envelopes taken from the inbox the network is drained to a fixed point.
//
// Errors of individual updates are logged and answered, not fatal. A failing drain, which
// means a wiring defect, stops Serve with that error. Cancellation returns nil.
func (c *Container) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.inbox.Close()
	})
	defer stop()

	c.logger.DebugWithContext(ctx, "container serving")
	defer c.logger.DebugWithContext(ctx, "container stopped")

	var done []func()
	var env Envelope
	for c.inbox.Recv(&env) {
		done = c.handle(ctx, env, done)
		for {
			ok, _ := c.inbox.TryRecv(&env)
			if !ok {
				break
			}
			done = c.handle(ctx, env, done)
		}

		err := c.Drain(ctx)
		for _, fn := range done {
			fn()
		}
		done = done[:0]
		if errors.Is(err, tferrors.ErrCancelled) {
			c.failPending(err)
			return nil
		}
		if err != nil {
			c.logger.ErrorWithContext(ctx, "drain failed", zap.Error(err))
			c.failPending(err)
			return err
		}
	}
	return nil
}

func (c *Container) handle(ctx context.Context, env Envelope, done []func()) []func() {
	switch env.Kind {
	case UpdateEnvelope:
		if err := c.Update(ctx, env.Node, env.Direction, env.Tuple); err != nil {
			c.logger.ErrorWithContext(ctx, "remote update rejected",
				zap.Stringer("node", env.Node), zap.Stringer("direction", env.Direction),
				zap.Stringer("tuple", env.Tuple), zap.Error(err))
		}
	case PullEnvelope:
		tuples, err := c.Pull(ctx, env.Node, env.Flush)
		if env.Reply != nil {
			env.Reply <- PullResult{ID: env.ID, Tuples: tuples, Err: err}
		}
	}
	if env.Done != nil {
		done = append(done, env.Done)
	}
	return done
}

// failPending answers the pulls still queued after Serve gave up.
func (c *Container) failPending(err error) {
	_ = c.inbox.Close()
	var env Envelope
	for c.inbox.Recv(&env) {
		if env.Kind == PullEnvelope && env.Reply != nil {
			env.Reply <- PullResult{ID: env.ID, Err: err}
		}
		if env.Done != nil {
			env.Done()
		}
	}
}
