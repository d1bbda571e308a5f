package network

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/emirpasic/gods/sets/treeset"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

// Groups returns the communication groups in scheduling order, each sorted by handle.
func (c *Container) Groups() [][]NodeID {
	c.ensureGroups()
	out := make([][]NodeID, len(c.groups))
	for i, g := range c.groups {
		out[i] = slices.Clone(g)
	}
	return out
}

// Pending returns the number of deltas waiting in mailboxes.
func (c *Container) Pending() int {
	n := 0
	for _, e := range c.nodes {
		n += e.mailbox.len()
	}
	return n
}

// Drain runs the scheduler until every mailbox is empty. The lowest pending communication
// group is always driven to its fixed point, round by round, before a later group runs;
// within a round every member receives the deltas that were queued for it when the round
// started, in FIFO order.
//
// Cancellation of ctx is checked between rounds. The returned error then matches
// ErrCancelled and the undelivered deltas stay queued, so a later Drain resumes from a
// consistent state.
func (c *Container) Drain(ctx context.Context) error {
	ctx, span := tracer().Start(ctx, "Drain")
	defer span.End()

	groups := 0
	for {
		c.ensureGroups()
		it := c.pending.Iterator()
		if !it.First() {
			span.SetAttributes(attribute.Int("groups", groups))
			return nil
		}
		g := it.Value().(int)
		if err := c.driveGroup(ctx, g); err != nil {
			span.RecordError(err)
			return err
		}
		groups++
	}
}

func (c *Container) driveGroup(ctx context.Context, g int) error {
	members := c.groups[g]
	rounds := 0
	for {
		if c.groupsDirty {
			// wiring changed while delivering, recompute the groups first.
			return nil
		}
		if !c.hasMail(members) {
			if n := c.rederive(members); n > 0 {
				c.logger.DebugWithContext(ctx, "communication group rederived retracted tuples",
					zap.Int("group", g), zap.Int("tuples", n))
				continue
			}
			c.pending.Remove(g)
			fixedPointRoundsHistogram.Observe(float64(rounds))
			if rounds > 1 {
				c.logger.DebugWithContext(ctx, "communication group reached fixed point",
					zap.Int("group", g), zap.Int("size", len(members)), zap.Int("rounds", rounds))
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			drainCancelledCounter.Inc()
			pending := c.Pending()
			c.logger.DebugWithContext(ctx, "drain cancelled", zap.Int("group", g), zap.Int("pending", pending))
			return tferrors.With(fmt.Errorf("drain interrupted with %d deltas pending: %w", pending, err), tferrors.ErrCancelled)
		}
		if c.maxRounds > 0 && rounds >= c.maxRounds {
			return &FixedPointError{Group: g, Rounds: rounds}
		}
		rounds++

		for _, id := range members {
			e := c.nodes[id]
			for n := e.mailbox.len(); n > 0; n-- {
				msg, ok := e.mailbox.take()
				if !ok {
					break
				}
				messagesDeliveredCounter.Inc()
				if err := e.caps.receiver.Update(ctx, msg); err != nil {
					return fmt.Errorf("deliver %s %s from %s to %s: %w", msg.Direction, msg.Tuple, msg.Source, id, err)
				}
			}
		}
	}
}

// rederive lets the members of a settled group insert again the tuples they retracted
// eagerly and still have support for.
func (c *Container) rederive(members []NodeID) int {
	n := 0
	for _, id := range members {
		if r, ok := c.nodes[id].node.(rederiver); ok {
			n += r.rederive()
		}
	}
	return n
}

func (c *Container) hasMail(members []NodeID) bool {
	for _, id := range members {
		if c.nodes[id].mailbox.len() > 0 {
			return true
		}
	}
	return false
}

// ensureGroups recomputes the communication groups after a wiring change: the strongly
// connected components of the node graph, ordered topologically with ties broken by the
// smallest member handle.
func (c *Container) ensureGroups() {
	if !c.groupsDirty {
		return
	}

	g := simple.NewDirectedGraph()
	for id := range c.nodes {
		g.AddNode(simple.Node(id))
	}
	for id, e := range c.nodes {
		for _, child := range e.children {
			// a node feeding itself forms a group on its own, simple graphs reject self edges.
			if int(child) != id {
				g.SetEdge(g.NewEdge(simple.Node(id), simple.Node(child)))
			}
		}
	}
	sccs := topo.TarjanSCC(g)

	componentOf := make([]int, len(c.nodes))
	smallest := make([]int64, len(sccs))
	for i, scc := range sccs {
		smallest[i] = scc[0].ID()
		for _, n := range scc {
			componentOf[n.ID()] = i
			smallest[i] = min(smallest[i], n.ID())
		}
	}
	indegree := make([]int, len(sccs))
	successors := make([][]int, len(sccs))
	for id, e := range c.nodes {
		for _, child := range e.children {
			from, to := componentOf[id], componentOf[child]
			if from != to && !slices.Contains(successors[from], to) {
				successors[from] = append(successors[from], to)
				indegree[to]++
			}
		}
	}

	// Kahn's algorithm over the condensation, taking the ready component with the smallest
	// member first.
	ready := treeset.NewWith(func(a, b any) int {
		return cmp.Compare(smallest[a.(int)], smallest[b.(int)])
	})
	for i := range sccs {
		if indegree[i] == 0 {
			ready.Add(i)
		}
	}
	order := make([]int, 0, len(sccs))
	for !ready.Empty() {
		it := ready.Iterator()
		it.First()
		next := it.Value().(int)
		ready.Remove(next)
		order = append(order, next)
		for _, s := range successors[next] {
			if indegree[s]--; indegree[s] == 0 {
				ready.Add(s)
			}
		}
	}

	c.groups = make([][]NodeID, len(order))
	for i, n := range order {
		scc := sccs[n]
		members := make([]NodeID, len(scc))
		for j, m := range scc {
			e := c.nodes[m.ID()]
			members[j] = NodeID(m.ID())
			e.group = i
			e.cyclic = len(scc) > 1 || slices.Contains(e.children, NodeID(m.ID()))
		}
		slices.Sort(members)
		c.groups[i] = members
	}
	c.groupsDirty = false

	c.pending.Clear()
	for _, e := range c.nodes {
		if e.mailbox.len() > 0 {
			c.pending.Add(e.group)
		}
	}
}
