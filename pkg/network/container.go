// Package network implements the dataflow node network: an arena of nodes addressed by
// handle, per-receiver mailboxes, and a scheduler that drives the communication groups
// (strongly connected components of the node graph) to a fixed point in topological order.
//
// A container is single threaded. Every method of Container must be called from one
// goroutine at a time, usually the one running Serve; other goroutines talk to a container
// through its inbox only.
package network

import (
	"context"
	"fmt"
	"slices"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tupleflow/tupleflow/internal/pipe"
	"github.com/tupleflow/tupleflow/pkg/logger"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

const DefaultInboxSize = 1024

type entry struct {
	node     any
	caps     capabilities
	children []NodeID
	parents  []NodeID
	mailbox  *mailbox
	group    int
	// the node is on a cycle: its group has several members or it feeds itself.
	cyclic bool
}

// Container owns a network of nodes, their mailboxes, and the logical clock.
type Container struct {
	id        string
	logger    logger.Logger
	transport Transport
	maxRounds int
	inboxSize int

	nodes []*entry
	clock Timestamp

	groups      [][]NodeID
	groupsDirty bool
	// indices of the groups with at least one non-empty mailbox.
	pending *treeset.Set

	inbox *pipe.Pipe[Envelope]
}

type ContainerOption func(*Container)

// WithID sets the container identifier used in addresses. Defaults to a fresh ULID.
func WithID(id string) ContainerOption {
	return func(c *Container) {
		c.id = id
	}
}

func WithLogger(l logger.Logger) ContainerOption {
	return func(c *Container) {
		c.logger = l
	}
}

// WithInbox sets the capacity of the inbox used by Serve. It must be a power of two.
func WithInbox(size int) ContainerOption {
	return func(c *Container) {
		c.inboxSize = size
	}
}

// WithMaxRounds bounds the number of rounds a single communication group may take to reach
// its fixed point. Zero means unbounded.
func WithMaxRounds(n int) ContainerOption {
	return func(c *Container) {
		c.maxRounds = n
	}
}

// WithTransport sets the transport used by forwarding and mirror nodes of this container.
func WithTransport(t Transport) ContainerOption {
	return func(c *Container) {
		c.transport = t
	}
}

// NewContainer returns an empty container.
func NewContainer(opts ...ContainerOption) (*Container, error) {
	c := &Container{
		logger:    logger.NewNoopLogger(),
		inboxSize: DefaultInboxSize,
		pending:   treeset.NewWithIntComparator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = ulid.Make().String()
	}
	inbox, err := pipe.New[Envelope](c.inboxSize)
	if err != nil {
		return nil, fmt.Errorf("container inbox of size %d: %w", c.inboxSize, err)
	}
	c.inbox = inbox
	c.logger = c.logger.With(zap.String("container", c.id))
	return c, nil
}

// MustNewContainer is like NewContainer but panics on error.
func MustNewContainer(opts ...ContainerOption) *Container {
	c, err := NewContainer(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Container) ID() string {
	return c.id
}

func (c *Container) Logger() logger.Logger {
	return c.logger
}

// Transport returns the transport configured with WithTransport, or nil.
func (c *Container) Transport() Transport {
	return c.transport
}

// Clock returns the timestamp of the last transaction.
func (c *Container) Clock() Timestamp {
	return c.clock
}

// Add registers node and returns its handle. The capabilities of the node are resolved
// here, once. Nodes embedding Binding are bound to the container.
func (c *Container) Add(node any) NodeID {
	id := NodeID(len(c.nodes))
	c.nodes = append(c.nodes, &entry{
		node:    node,
		caps:    resolve(node),
		mailbox: newMailbox(),
	})
	if b, ok := node.(Binder); ok {
		b.Bind(Binding{container: c, id: id})
	}
	c.groupsDirty = true
	return id
}

// Node returns the node registered under id.
func (c *Container) Node(id NodeID) (any, error) {
	e, err := c.entry(id)
	if err != nil {
		return nil, err
	}
	return e.node, nil
}

// Len returns the number of nodes.
func (c *Container) Len() int {
	return len(c.nodes)
}

// Children returns the children of id in the order they were appended.
func (c *Container) Children(id NodeID) []NodeID {
	if e, err := c.entry(id); err == nil {
		return slices.Clone(e.children)
	}
	return nil
}

// Parents returns the parents of id in the order they were appended.
func (c *Container) Parents(id NodeID) []NodeID {
	if e, err := c.entry(id); err == nil {
		return slices.Clone(e.parents)
	}
	return nil
}

// AppendChild routes every future delta propagated by parent into the mailbox of child.
// Appending an existing edge is a no-op. The child must implement Receiver.
func (c *Container) AppendChild(parent, child NodeID) error {
	p, err := c.entry(parent)
	if err != nil {
		return err
	}
	ch, err := c.entry(child)
	if err != nil {
		return err
	}
	if ch.caps.receiver == nil {
		return &MissingCapabilityError{Node: child, Capability: "receiver"}
	}
	if slices.Contains(p.children, child) {
		return nil
	}
	p.children = append(p.children, child)
	ch.parents = append(ch.parents, parent)
	c.groupsDirty = true
	return nil
}

// Attach appends child to parent and replays the current contents of parent into the
// mailbox of child as insertions, so that a consumer attached late observes the full state.
func (c *Container) Attach(ctx context.Context, parent, child NodeID) error {
	if err := c.AppendChild(parent, child); err != nil {
		return err
	}
	var current []tuple.Tuple
	if err := c.pullNode(ctx, parent, &current, false); err != nil {
		return err
	}
	ch := c.nodes[child]
	for _, t := range current {
		c.post(ch, UpdateMessage{Direction: tuple.Insert, Tuple: t, Timestamp: c.clock, Source: parent})
	}
	return nil
}

// RemoveChild detaches child from parent. Deltas already queued in the mailbox of child
// are still delivered.
func (c *Container) RemoveChild(parent, child NodeID) error {
	p, err := c.entry(parent)
	if err != nil {
		return err
	}
	ch, err := c.entry(child)
	if err != nil {
		return err
	}
	i := slices.Index(p.children, child)
	if i < 0 {
		return nil
	}
	p.children = slices.Delete(p.children, i, i+1)
	if j := slices.Index(ch.parents, parent); j >= 0 {
		ch.parents = slices.Delete(ch.parents, j, j+1)
	}
	c.groupsDirty = true
	return nil
}

// Update injects one base fact into the input or mirror node id at a new timestamp. The
// children of the node only see the delta once the container is drained.
func (c *Container) Update(ctx context.Context, id NodeID, dir tuple.Direction, t tuple.Tuple) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	if e.caps.injector == nil {
		return &MissingCapabilityError{Node: id, Capability: "injector"}
	}
	c.clock++
	return e.caps.injector.Inject(ctx, dir, t, c.clock)
}

// Tx batches base facts under one timestamp.
type Tx struct {
	c  *Container
	ts Timestamp
}

func (tx *Tx) Timestamp() Timestamp {
	return tx.ts
}

func (tx *Tx) Update(ctx context.Context, id NodeID, dir tuple.Direction, t tuple.Tuple) error {
	e, err := tx.c.entry(id)
	if err != nil {
		return err
	}
	if e.caps.injector == nil {
		return &MissingCapabilityError{Node: id, Capability: "injector"}
	}
	return e.caps.injector.Inject(ctx, dir, t, tx.ts)
}

func (tx *Tx) Insert(ctx context.Context, id NodeID, t tuple.Tuple) error {
	return tx.Update(ctx, id, tuple.Insert, t)
}

func (tx *Tx) Retract(ctx context.Context, id NodeID, t tuple.Tuple) error {
	return tx.Update(ctx, id, tuple.Retract, t)
}

// Transaction runs fn with a fresh timestamp and drains the container if fn succeeds.
// Facts injected before fn fails are not rolled back.
func (c *Container) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	c.clock++
	if err := fn(&Tx{c: c, ts: c.clock}); err != nil {
		return err
	}
	return c.Drain(ctx)
}

// Pull returns the current contents of the supplier id. With flush, pending deltas are
// drained to a fixed point first.
func (c *Container) Pull(ctx context.Context, id NodeID, flush bool) ([]tuple.Tuple, error) {
	var out []tuple.Tuple
	if err := c.PullInto(ctx, id, &out, flush); err != nil {
		return nil, err
	}
	return out, nil
}

// PullInto appends the current contents of the supplier id to into.
func (c *Container) PullInto(ctx context.Context, id NodeID, into *[]tuple.Tuple, flush bool) error {
	ctx, span := tracer().Start(ctx, "Pull")
	defer span.End()
	span.SetAttributes(attribute.Int("node", int(id)), attribute.Bool("flush", flush))

	if flush {
		if err := c.Drain(ctx); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return c.pullNode(ctx, id, into, flush)
}

// PullAt appends the contents the node id had right after the transaction ts. Only
// history-aware nodes support it; others return an error matching ErrCapabilityUnsupported.
func (c *Container) PullAt(ctx context.Context, id NodeID, into *[]tuple.Tuple, ts Timestamp) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	h, ok := e.node.(TimestampedSupplier)
	if !ok {
		return capabilityUnsupported(id, "timestamped pulls")
	}
	return h.PullAt(ctx, into, ts)
}

func (c *Container) pullNode(ctx context.Context, id NodeID, into *[]tuple.Tuple, flush bool) error {
	e, err := c.entry(id)
	if err != nil {
		return err
	}
	if e.caps.supplier == nil {
		return &MissingCapabilityError{Node: id, Capability: "supplier"}
	}
	return e.caps.supplier.PullInto(ctx, into, flush)
}

func (c *Container) entry(id NodeID) (*entry, error) {
	if id < 0 || int(id) >= len(c.nodes) {
		return nil, &UnknownNodeError{Node: id}
	}
	return c.nodes[id], nil
}

func (c *Container) propagate(from NodeID, dir tuple.Direction, t tuple.Tuple, ts Timestamp) {
	for _, child := range c.nodes[from].children {
		c.post(c.nodes[child], UpdateMessage{Direction: dir, Tuple: t, Timestamp: ts, Source: from})
	}
}

func (c *Container) post(e *entry, msg UpdateMessage) {
	if !e.mailbox.post(msg) {
		messagesCoalescedCounter.Inc()
		return
	}
	messagesPostedCounter.Inc()
	if !c.groupsDirty {
		c.pending.Add(e.group)
	}
}
