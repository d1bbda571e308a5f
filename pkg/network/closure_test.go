package network

import (
	"context"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/reachability"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

type closureNetwork struct {
	c      *Container
	edges  NodeID
	node   *TransitiveClosureNode
	result *ProductionNode
	resID  NodeID
}

func newClosureNetwork(t *testing.T) closureNetwork {
	t.Helper()
	n := closureNetwork{c: newTestContainer(t), node: NewTransitiveClosureNode(), result: NewProductionNode()}
	n.edges = n.c.Add(NewInputNode(2))
	tc := n.c.Add(n.node)
	n.resID = n.c.Add(n.result)
	wire(t, n.c, [2]NodeID{n.edges, tc}, [2]NodeID{tc, n.resID})
	return n
}

func restrict(ts []tuple.Tuple, pos int, v int64) []tuple.Tuple {
	var out []tuple.Tuple
	for _, t := range ts {
		if e, _ := t.Get(pos); e == v {
			out = append(out, t)
		}
	}
	return out
}

func TestClosureScenarioA(t *testing.T) {
	n := newClosureNetwork(t)
	sources, err := n.node.View(tuple.MustMask(2, 0))
	require.NoError(t, err)

	var edges []reachability.Pair
	for _, p := range []reachability.Pair{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 3, Target: 1}, {Source: 3, Target: 4}, {Source: 4, Target: 5}, {Source: 3, Target: 6}, {Source: 6, Target: 7}, {Source: 7, Target: 8}, {Source: 8, Target: 6}} {
		edges = append(edges, p)
		update(t, n.c, n.edges, tuple.Insert, tuple.Of2(p.Source, p.Target))
	}
	expected := pairs(reachability.Baseline(nil, edges))
	require.Equal(t, expected, pull(t, n.c, n.resID))
	require.Equal(t, Timestamp(9), n.node.Revision())

	require.True(t, n.node.IsReachable(1, 5))
	require.True(t, n.node.IsReachable(1, 1))
	require.False(t, n.node.IsReachable(5, 1))
	require.False(t, n.node.IsReachable(5, 5))
	require.False(t, n.node.IsReachable(1, 42))

	path, ok, err := n.node.Engine().ReachabilityPath(1, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int64{1, 2, 3, 6, 7}, path)

	t.Run("views", func(t *testing.T) {
		got, err := sources.Get(tuple.Of1(1))
		require.NoError(t, err)
		require.Equal(t, restrict(expected, 0, 1), got)

		targets, err := n.node.View(tuple.MustMask(2, 1))
		require.NoError(t, err)
		got, err = targets.Get(tuple.Of1(6))
		require.NoError(t, err)
		require.Equal(t, restrict(expected, 1, 6), got)

		all, err := n.node.View(tuple.MustMask(2))
		require.NoError(t, err)
		got, err = all.Get(tuple.New())
		require.NoError(t, err)
		require.Equal(t, expected, got)

		bound, err := n.node.View(tuple.IdentityMask(2))
		require.NoError(t, err)
		ok, err := bound.Contains(tuple.Of2(4, 5))
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = bound.Contains(tuple.Of2(5, 4))
		require.NoError(t, err)
		require.False(t, ok)

		again, err := n.node.View(tuple.MustMask(2, 1))
		require.NoError(t, err)
		require.Same(t, targets, again)
	})

	t.Run("unsupported_masks", func(t *testing.T) {
		for _, mask := range []tuple.Mask{tuple.MustMask(2, 1, 0), tuple.MustMask(2, 0, 0), tuple.MustMask(3, 0)} {
			_, err := n.node.View(mask)
			var unsupported *UnsupportedMaskError
			require.ErrorAs(t, err, &unsupported, "mask %s", mask)
			require.ErrorIs(t, err, tferrors.ErrContractViolation)
		}
	})

	t.Run("teardown_drops_nodes", func(t *testing.T) {
		for _, p := range edges {
			update(t, n.c, n.edges, tuple.Retract, tuple.Of2(p.Source, p.Target))
		}
		require.Empty(t, pull(t, n.c, n.resID))
		require.Zero(t, n.node.Engine().NodeCount())
		require.Zero(t, sources.Size())
		require.Equal(t, Timestamp(18), n.node.Revision())
	})
}

func TestClosureRandomUpdates(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		n := newClosureNetwork(t)
		bound, err := n.node.View(tuple.IdentityMask(2))
		require.NoError(t, err)

		const nodes = 10
		present := map[reachability.Pair]int{}
		for step := 0; step < 150; step++ {
			p := reachability.Pair{Source: rng.Int63n(nodes) + 1, Target: rng.Int63n(nodes) + 1}
			dir := tuple.Insert
			if present[p] > 0 && rng.Intn(2) == 0 {
				dir = tuple.Retract
			}
			present[p] += dir.Sign()
			update(t, n.c, n.edges, dir, tuple.Of2(p.Source, p.Target))

			var edges []reachability.Pair
			for e, count := range present {
				if count > 0 {
					edges = append(edges, e)
				}
			}
			expected := pairs(reachability.Baseline(nil, edges))
			require.Equal(t, expected, pull(t, n.c, n.resID), "seed %d step %d", seed, step)
			require.Equal(t, len(expected), bound.Size())
			require.NoError(t, n.node.Engine().CheckTcRelation(reachability.Baseline(n.node.Engine().Nodes(), n.node.Engine().Edges())))
		}
	}
}

func TestClosureDirectEdges(t *testing.T) {
	ctx := context.Background()
	node := NewTransitiveClosureNode()

	require.NoError(t, node.InsertEdge(ctx, tuple.Of2(1, 2), 1))
	require.NoError(t, node.InsertEdge(ctx, tuple.Of2(2, 3), 2))
	require.True(t, node.IsReachable(1, 3))

	var got []tuple.Tuple
	require.NoError(t, node.PullInto(ctx, &got, false))
	require.Equal(t, []tuple.Tuple{tuple.Of2(1, 2), tuple.Of2(1, 3), tuple.Of2(2, 3)}, got)

	for name, err := range map[string]error{
		"wrong_arity":         node.InsertEdge(ctx, tuple.New(1, 2, 3), 3),
		"invalid_element":     node.InsertEdge(ctx, tuple.Of2(-1, 2), 3),
		"delete_absent_edge":  node.DeleteEdge(ctx, tuple.Of2(3, 1), 3),
		"delete_unknown_node": node.DeleteEdge(ctx, tuple.Of2(7, 8), 3),
	} {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, err, tferrors.ErrContractViolation)
		})
	}
	require.Equal(t, Timestamp(2), node.Revision())

	require.NoError(t, node.DeleteEdge(ctx, tuple.Of2(1, 2), 4))
	require.False(t, node.Engine().HasNode(1))
	require.True(t, node.Engine().HasNode(2))
	require.False(t, node.IsReachable(1, 3))

	t.Run("older_delta_is_applied_and_counted", func(t *testing.T) {
		before := testutil.ToFloat64(outOfOrderDeltasCounter)
		require.NoError(t, node.InsertEdge(ctx, tuple.Of2(3, 4), 3))
		require.True(t, node.IsReachable(2, 4))
		require.Equal(t, Timestamp(4), node.Revision())
		require.InDelta(t, 1, testutil.ToFloat64(outOfOrderDeltasCounter)-before, 0)

		require.NoError(t, node.InsertEdge(ctx, tuple.Of2(4, 5), 5))
		require.Equal(t, Timestamp(5), node.Revision())
		require.InDelta(t, 1, testutil.ToFloat64(outOfOrderDeltasCounter)-before, 0)
	})
}
