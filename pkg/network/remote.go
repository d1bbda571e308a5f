package network

import (
	"context"
	"fmt"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// Address is a location transparent handle of a node that may live in another container.
type Address struct {
	Container string
	Node      NodeID

	local *Container
}

// NewAddress returns the address of node inside the container named container.
func NewAddress(container string, node NodeID) Address {
	return Address{Container: container, Node: node}
}

// LocalAddress returns the address of node inside c, caching c so that transports can skip
// the container lookup.
func LocalAddress(c *Container, node NodeID) Address {
	return Address{Container: c.ID(), Node: node, local: c}
}

// Local returns the cached container, or nil.
func (a Address) Local() *Container {
	return a.local
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%d", a.Container, int(a.Node))
}

// Transport is the only way deltas and pulls cross container boundaries. Implementations
// must be safe for concurrent use; they are called from the goroutines of every container.
//
//go:generate mockgen -source remote.go -destination ../../internal/mocks/mock_transport.go -package mocks Transport
type Transport interface {
	// Send delivers one delta to the node at to. It may block while the target inbox is full.
	Send(ctx context.Context, to Address, dir tuple.Direction, t tuple.Tuple) error
	// Pull returns the contents of the node at from, draining its container first if flush.
	Pull(ctx context.Context, from Address, flush bool) ([]tuple.Tuple, error)
}

// ForwardingNode relays every delta it receives to each registered remote target and does
// not propagate locally. Pulls are answered from its local parents.
type ForwardingNode struct {
	Binding
	transport Transport
	targets   []Address
}

var (
	_ Receiver = (*ForwardingNode)(nil)
	_ Supplier = (*ForwardingNode)(nil)
)

func NewForwardingNode(transport Transport, targets ...Address) *ForwardingNode {
	return &ForwardingNode{transport: transport, targets: targets}
}

// AddTarget registers one more remote target.
func (n *ForwardingNode) AddTarget(a Address) {
	n.targets = append(n.targets, a)
}

func (n *ForwardingNode) Targets() []Address {
	return append([]Address(nil), n.targets...)
}

func (n *ForwardingNode) Update(ctx context.Context, msg UpdateMessage) error {
	for _, a := range n.targets {
		if err := n.transport.Send(ctx, a, msg.Direction, msg.Tuple); err != nil {
			return fmt.Errorf("forward to %s: %w", a, err)
		}
	}
	return nil
}

func (n *ForwardingNode) PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	return n.PullParents(ctx, into, flush)
}

// MirrorNode republishes the deltas arriving from a remote container into its own container
// at a fresh local timestamp. Pulls are delegated to the remote counterpart.
type MirrorNode struct {
	Binding
	transport Transport
	remote    Address
}

var (
	_ Injector = (*MirrorNode)(nil)
	_ Supplier = (*MirrorNode)(nil)
)

func NewMirrorNode(transport Transport, remote Address) *MirrorNode {
	return &MirrorNode{transport: transport, remote: remote}
}

func (n *MirrorNode) Remote() Address {
	return n.remote
}

func (n *MirrorNode) Inject(_ context.Context, dir tuple.Direction, t tuple.Tuple, ts Timestamp) error {
	if err := checkDirection(dir); err != nil {
		return err
	}
	n.Propagate(dir, t, ts)
	return nil
}

func (n *MirrorNode) PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	remote, err := n.transport.Pull(ctx, n.remote, flush)
	if err != nil {
		return fmt.Errorf("pull from %s: %w", n.remote, err)
	}
	*into = append(*into, remote...)
	return nil
}
