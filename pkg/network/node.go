package network

import (
	"context"
	"fmt"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// NodeID is the handle of a node inside its container. Handles are dense, start at zero,
// and are never reused.
type NodeID int

func (id NodeID) String() string {
	return fmt.Sprintf("node#%d", int(id))
}

// Timestamp is the per-container logical clock value of a transaction. It increases by one
// for every transaction and is unrelated to wall-clock time.
type Timestamp uint64

// UpdateMessage is one delta travelling along a network edge.
type UpdateMessage struct {
	Direction tuple.Direction
	Tuple     tuple.Tuple
	Timestamp Timestamp
	// Source is the parent that propagated the delta.
	Source NodeID
}

// Receiver is implemented by nodes accepting deltas from their parents. Update is only ever
// called by the scheduler of the owning container.
type Receiver interface {
	Update(ctx context.Context, msg UpdateMessage) error
}

// Supplier is implemented by nodes that can enumerate their current contents. flush is
// forwarded to remote counterparts; local state is already flushed by the container.
type Supplier interface {
	PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error
}

// TimestampedSupplier is the optional history-aware pull surface.
type TimestampedSupplier interface {
	PullAt(ctx context.Context, into *[]tuple.Tuple, ts Timestamp) error
}

// Injector is implemented by nodes accepting base facts from outside of the network: input
// nodes and mirrors of remote nodes.
type Injector interface {
	Inject(ctx context.Context, dir tuple.Direction, t tuple.Tuple, ts Timestamp) error
}

// Binder is implemented by nodes that propagate deltas. Bind is called once, when the node
// is added to a container. Embedding Binding implements it.
type Binder interface {
	Bind(b Binding)
}

// Binding connects a node to its container.
type Binding struct {
	container *Container
	id        NodeID
}

// Bind implements Binder.
func (b *Binding) Bind(nb Binding) {
	*b = nb
}

// ID returns the handle of the bound node.
func (b Binding) ID() NodeID {
	return b.id
}

// Container returns the container the node was added to, or nil before Add.
func (b Binding) Container() *Container {
	return b.container
}

// Propagate posts the delta to the mailbox of every child of the bound node. The children
// see it once their communication group is scheduled.
func (b Binding) Propagate(dir tuple.Direction, t tuple.Tuple, ts Timestamp) {
	if b.container == nil {
		return
	}
	b.container.propagate(b.id, dir, t, ts)
}

// cyclic reports whether the bound node lies on a cycle of the node graph, as of the last
// computation of the communication groups.
func (b Binding) cyclic() bool {
	return b.container != nil && b.container.nodes[b.id].cyclic
}

// rederiver is implemented by nodes that retract tuples eagerly inside cyclic groups and
// insert the ones still supported once the group has settled.
type rederiver interface {
	rederive() int
}

// PullParents appends the contents of every parent of the bound node to into.
func (b Binding) PullParents(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	if b.container == nil {
		return nil
	}
	for _, p := range b.container.Parents(b.id) {
		if err := b.container.pullNode(ctx, p, into, flush); err != nil {
			return err
		}
	}
	return nil
}

// capabilities are resolved once, when a node is added.
type capabilities struct {
	receiver Receiver
	supplier Supplier
	injector Injector
}

func resolve(node any) capabilities {
	var c capabilities
	c.receiver, _ = node.(Receiver)
	c.supplier, _ = node.(Supplier)
	c.injector, _ = node.(Injector)
	return c
}
