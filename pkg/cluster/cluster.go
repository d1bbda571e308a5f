// Package cluster runs several containers side by side, one goroutine each, and carries the
// deltas and pulls of forwarding and mirror nodes between them.
//
// A container only ever touches its own nodes. Everything crossing a container boundary
// goes through the inbox of the target container as an envelope.
package cluster

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tupleflow/tupleflow/internal/concurrency"
	"github.com/tupleflow/tupleflow/internal/containers"
	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/logger"
	"github.com/tupleflow/tupleflow/pkg/network"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

const (
	DefaultPullConcurrency = 8
	DefaultIdleTimeout     = time.Minute
)

// Cluster is a set of containers addressed by ID. It is the Transport of every container it
// creates.
type Cluster struct {
	logger          logger.Logger
	inboxSize       int
	maxRounds       int
	pullTimeout     time.Duration
	pullConcurrency int
	idleTimeout     time.Duration

	containers containers.AtomicMap[string, *network.Container]
	// deltas sent and not yet drained by their target container.
	inflight atomic.Int64
	running  atomic.Bool
}

var _ network.Transport = (*Cluster)(nil)

type Option func(*Cluster)

func WithLogger(l logger.Logger) Option {
	return func(c *Cluster) {
		c.logger = l
	}
}

// WithInboxSize sets the inbox capacity of the containers created afterwards.
func WithInboxSize(n int) Option {
	return func(c *Cluster) {
		c.inboxSize = n
	}
}

// WithMaxRounds bounds the fixed-point rounds of the containers created afterwards.
func WithMaxRounds(n int) Option {
	return func(c *Cluster) {
		c.maxRounds = n
	}
}

// WithPullTimeout bounds every pull routed through the cluster. Two containers pulling from
// each other at the same time wait for one another until this timeout expires. Zero
// disables the bound.
func WithPullTimeout(d time.Duration) Option {
	return func(c *Cluster) {
		c.pullTimeout = d
	}
}

// WithPullConcurrency bounds the number of pulls PullAll runs at once.
func WithPullConcurrency(n int) Option {
	return func(c *Cluster) {
		c.pullConcurrency = n
	}
}

// WithIdleTimeout bounds how long WaitIdle polls. Zero means until the context is done.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Cluster) {
		c.idleTimeout = d
	}
}

func New(opts ...Option) *Cluster {
	c := &Cluster{
		logger:          logger.NewNoopLogger(),
		inboxSize:       network.DefaultInboxSize,
		pullConcurrency: DefaultPullConcurrency,
		idleTimeout:     DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewContainer creates a container routed through the cluster. An empty id picks a fresh
// one. Containers cannot be added once the cluster runs.
func (c *Cluster) NewContainer(id string) (*network.Container, error) {
	if c.running.Load() {
		return nil, ErrAlreadyRunning
	}
	opts := []network.ContainerOption{
		network.WithTransport(c),
		network.WithLogger(c.logger),
		network.WithInbox(c.inboxSize),
		network.WithMaxRounds(c.maxRounds),
	}
	if id != "" {
		opts = append(opts, network.WithID(id))
	}
	ct, err := network.NewContainer(opts...)
	if err != nil {
		return nil, err
	}
	if _, loaded := c.containers.LoadOrStore(ct.ID(), ct); loaded {
		return nil, &DuplicateContainerError{Container: ct.ID()}
	}
	return ct, nil
}

// Container returns the container registered under id.
func (c *Cluster) Container(id string) (*network.Container, error) {
	ct, ok := c.containers.Load(id)
	if !ok {
		return nil, &UnknownContainerError{Container: id}
	}
	return ct, nil
}

// Containers returns the sorted IDs of the containers.
func (c *Cluster) Containers() []string {
	ids := make([]string, 0, c.containers.Len())
	for id := range c.containers.Snapshot() {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Run serves every container until ctx is done or one of them fails, and returns the first
// failure. The nodes of a container must not be touched from other goroutines while the
// cluster runs.
func (c *Cluster) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range c.Containers() {
		ct, _ := c.containers.Load(id)
		g.Go(func() error {
			if err := ct.Serve(ctx); err != nil {
				return fmt.Errorf("container %s: %w", id, err)
			}
			return nil
		})
	}
	c.logger.InfoWithContext(ctx, "cluster running", zap.Int("containers", c.containers.Len()))
	err := g.Wait()
	c.logger.InfoWithContext(ctx, "cluster stopped", zap.Error(err))
	return err
}

func (c *Cluster) resolve(a network.Address) (*network.Container, error) {
	if ct := a.Local(); ct != nil {
		return ct, nil
	}
	return c.Container(a.Container)
}

// Send queues one delta for the input or mirror node at to. It returns once the delta is in
// the inbox of the target container, not once it is delivered; see WaitIdle.
func (c *Cluster) Send(ctx context.Context, to network.Address, dir tuple.Direction, t tuple.Tuple) error {
	target, err := c.resolve(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return tferrors.With(fmt.Errorf("send to %s: %w", to, err), tferrors.ErrCancelled)
	}

	c.inflight.Add(1)
	ok := target.Post(network.Envelope{
		Kind:      network.UpdateEnvelope,
		Node:      to.Node,
		Direction: dir,
		Tuple:     t,
		Done:      c.settle,
	})
	if !ok {
		c.inflight.Add(-1)
		return &ContainerClosedError{Container: to.Container}
	}
	deltasSentCounter.Inc()
	return nil
}

// SendPartitioned sends t to one of targets picked by the hash of t. A tuple always maps to
// the same target, so its insertion and its retraction meet in the same input node.
func (c *Cluster) SendPartitioned(ctx context.Context, dir tuple.Direction, t tuple.Tuple, targets ...network.Address) error {
	if len(targets) == 0 {
		return tferrors.With(fmt.Errorf("send %s: no partition targets", t), tferrors.ErrContractViolation)
	}
	return c.Send(ctx, Partition(t, targets), dir, t)
}

// Partition returns the target among targets that t is routed to.
func Partition(t tuple.Tuple, targets []network.Address) network.Address {
	return targets[t.Hash()%uint64(len(targets))]
}

func (c *Cluster) settle() {
	c.inflight.Add(-1)
}

// Inject is Send under the name used by callers feeding base facts from outside the cluster.
func (c *Cluster) Inject(ctx context.Context, to network.Address, dir tuple.Direction, t tuple.Tuple) error {
	return c.Send(ctx, to, dir, t)
}

// Pull asks the container at from for the contents of the node and waits for the answer.
func (c *Cluster) Pull(ctx context.Context, from network.Address, flush bool) ([]tuple.Tuple, error) {
	ctx, span := tracer().Start(ctx, "cluster.Pull")
	defer span.End()
	span.SetAttributes(attribute.String("address", from.String()), attribute.Bool("flush", flush))

	target, err := c.resolve(from)
	if err != nil {
		return nil, err
	}
	if c.pullTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pullTimeout)
		defer cancel()
	}

	start := time.Now()
	id := uuid.NewString()
	reply := make(chan network.PullResult, 1)
	ok := target.Post(network.Envelope{
		Kind:  network.PullEnvelope,
		Node:  from.Node,
		Flush: flush,
		ID:    id,
		Reply: reply,
	})
	if !ok {
		pullsCounter.WithLabelValues("closed").Inc()
		return nil, &ContainerClosedError{Container: from.Container}
	}

	res, err := concurrency.Await(ctx, reply)
	if err != nil {
		pullsCounter.WithLabelValues("cancelled").Inc()
		span.RecordError(err)
		c.logger.DebugWithContext(ctx, "pull abandoned", zap.Stringer("address", from), zap.String("pull", id))
		return nil, tferrors.With(fmt.Errorf("pull from %s: %w", from, err), tferrors.ErrCancelled)
	}
	pullDurationHistogram.Observe(float64(time.Since(start).Milliseconds()))
	if res.ID != id {
		return nil, tferrors.With(
			fmt.Errorf("pull %s was answered for %s", id, res.ID),
			tferrors.ErrInvariantFailure)
	}
	if res.Err != nil {
		pullsCounter.WithLabelValues("failed").Inc()
		return nil, res.Err
	}
	pullsCounter.WithLabelValues("ok").Inc()
	return res.Tuples, nil
}

// Result is the answer of one pull of PullAll.
type Result struct {
	Address network.Address
	Tuples  []tuple.Tuple
}

type indexedResult struct {
	i int
	Result
}

// PullAll pulls every address concurrently and returns the results in the order of from.
// The first failure cancels the remaining pulls.
func (c *Cluster) PullAll(ctx context.Context, flush bool, from ...network.Address) ([]Result, error) {
	var results containers.Bag[indexedResult]
	p := concurrency.NewPool(ctx, c.pullConcurrency)
	for i, a := range from {
		p.Go(func(ctx context.Context) error {
			tuples, err := c.Pull(ctx, a, flush)
			if err != nil {
				return err
			}
			results.Add(indexedResult{i: i, Result: Result{Address: a, Tuples: tuples}})
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]Result, len(from))
	for _, r := range results.Collect() {
		out[r.i] = r.Result
	}
	return out, nil
}

// InFlight returns the number of deltas sent and not yet drained.
func (c *Cluster) InFlight() int64 {
	return c.inflight.Load()
}

// WaitIdle blocks until every delta sent through the cluster has been delivered and
// drained by its container, including the deltas those deliveries sent on.
func (c *Cluster) WaitIdle(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Millisecond
	policy.MaxInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = c.idleTimeout

	attempt := 1
	err := backoff.Retry(func() error {
		if n := c.inflight.Load(); n > 0 {
			if attempt%10 == 0 {
				c.logger.DebugWithContext(ctx, "waiting for the cluster to settle",
					zap.Int("attempt", attempt), zap.Int64("in_flight", n))
			}
			attempt++
			return fmt.Errorf("%d deltas in flight", n)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return tferrors.With(fmt.Errorf("wait for idle cluster: %w", err), tferrors.ErrCancelled)
	}
	return nil
}
