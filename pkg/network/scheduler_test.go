package network

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/reachability"
	"github.com/tupleflow/tupleflow/pkg/testutils"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// relay forwards what it receives and can run a hook on every delivery.
type relay struct {
	Binding
	hook func(UpdateMessage)
}

func (r *relay) Update(_ context.Context, msg UpdateMessage) error {
	if r.hook != nil {
		r.hook(msg)
	}
	r.Propagate(msg.Direction, msg.Tuple, msg.Timestamp)
	return nil
}

func (r *relay) PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	return r.PullParents(ctx, into, flush)
}

type pathNetwork struct {
	edges, paths, join, trim, result NodeID
	// relay between the trimmer and the distinct paths node.
	back *relay
}

// newPathNetwork wires the recursive rule path(x, z) :- path(x, y), edge(y, z) seeded with
// path(x, y) :- edge(x, y).
func newPathNetwork(t *testing.T, c *Container) pathNetwork {
	t.Helper()
	var n pathNetwork
	n.edges = c.Add(NewInputNode(2))
	n.paths = c.Add(NewDistinctNode())
	join, err := NewJoinNode(n.paths, tuple.MustMask(2, 1), n.edges, tuple.MustMask(2, 0))
	require.NoError(t, err)
	n.join = c.Add(join)
	n.trim = c.Add(NewTrimmerNode(tuple.MustMask(3, 0, 2)))
	n.back = &relay{}
	back := c.Add(n.back)
	n.result = c.Add(NewProductionNode())
	wire(t, c,
		[2]NodeID{n.edges, n.paths},
		[2]NodeID{n.paths, n.join},
		[2]NodeID{n.edges, n.join},
		[2]NodeID{n.join, n.trim},
		[2]NodeID{n.trim, back},
		[2]NodeID{back, n.paths},
		[2]NodeID{n.paths, n.result},
	)
	return n
}

func pairs(r reachability.Relation) []tuple.Tuple {
	var out []tuple.Tuple
	for _, p := range r.Sorted() {
		out = append(out, tuple.Of2(p.Source, p.Target))
	}
	return out
}

func TestGroups(t *testing.T) {
	c := newTestContainer(t)
	n := newPathNetwork(t, c)
	require.Equal(t, [][]NodeID{{n.edges}, {n.paths, n.join, n.trim, n.back.ID()}, {n.result}}, c.Groups())

	t.Run("ties_broken_by_smallest_member", func(t *testing.T) {
		c := newTestContainer(t)
		a := c.Add(NewInputNode(1))
		b := c.Add(NewInputNode(1))
		x := c.Add(&relay{})
		y := c.Add(&relay{})
		wire(t, c, [2]NodeID{b, x}, [2]NodeID{a, y})
		require.Equal(t, [][]NodeID{{a}, {b}, {x}, {y}}, c.Groups())
	})

	t.Run("self_feeding_node", func(t *testing.T) {
		c := newTestContainer(t)
		a := c.Add(NewInputNode(1))
		x := c.Add(NewDistinctNode())
		wire(t, c, [2]NodeID{a, x}, [2]NodeID{x, x})
		require.Equal(t, [][]NodeID{{a}, {x}}, c.Groups())
	})

	t.Run("rewiring_recomputes", func(t *testing.T) {
		c := newTestContainer(t)
		x := c.Add(&relay{})
		y := c.Add(&relay{})
		wire(t, c, [2]NodeID{y, x})
		require.Equal(t, [][]NodeID{{y}, {x}}, c.Groups())
		wire(t, c, [2]NodeID{x, y})
		require.Equal(t, [][]NodeID{{x, y}}, c.Groups())
		require.NoError(t, c.RemoveChild(y, x))
		require.Equal(t, [][]NodeID{{x}, {y}}, c.Groups())
	})
}

func TestRecursivePathsMatchBaseline(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		tc := NewTransitiveClosureNode()
		tcID := c.Add(tc)
		closure := c.Add(NewProductionNode())
		wire(t, c, [2]NodeID{n.edges, tcID}, [2]NodeID{tcID, closure})

		const nodes = 8
		var edges []reachability.Pair
		for step := 0; step < 25; step++ {
			p := reachability.Pair{Source: rng.Int63n(nodes) + 1, Target: rng.Int63n(nodes) + 1}
			edges = append(edges, p)
			update(t, c, n.edges, tuple.Insert, tuple.Of2(p.Source, p.Target))

			expected := pairs(reachability.Baseline(nil, edges))
			require.Equal(t, expected, pull(t, c, n.result), "seed %d step %d", seed, step)
			require.Equal(t, expected, pull(t, c, closure), "seed %d step %d", seed, step)
		}
	}
}

func TestRecursivePathsUnderRetraction(t *testing.T) {
	t.Run("cycle_loses_its_entry", func(t *testing.T) {
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		update(t, c, n.edges, tuple.Insert, tuple.Of2(1, 2), tuple.Of2(2, 3), tuple.Of2(3, 2))
		require.Equal(t, sorted(
			tuple.Of2(1, 2), tuple.Of2(1, 3), tuple.Of2(2, 2), tuple.Of2(2, 3), tuple.Of2(3, 2), tuple.Of2(3, 3),
		), pull(t, c, n.result))

		update(t, c, n.edges, tuple.Retract, tuple.Of2(1, 2))
		expected := sorted(tuple.Of2(2, 2), tuple.Of2(2, 3), tuple.Of2(3, 2), tuple.Of2(3, 3))
		require.Equal(t, expected, pull(t, c, n.result))
		require.Equal(t, expected, pull(t, c, n.paths))
	})

	t.Run("alternative_support_is_rederived", func(t *testing.T) {
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		update(t, c, n.edges, tuple.Insert, tuple.Of2(1, 2), tuple.Of2(1, 3), tuple.Of2(3, 2), tuple.Of2(2, 4))

		update(t, c, n.edges, tuple.Retract, tuple.Of2(1, 2))
		require.Equal(t, sorted(
			tuple.Of2(1, 2), tuple.Of2(1, 3), tuple.Of2(1, 4), tuple.Of2(2, 4), tuple.Of2(3, 2), tuple.Of2(3, 4),
		), pull(t, c, n.result))
	})

	t.Run("random_sequences_match_baseline", func(t *testing.T) {
		for seed := int64(1); seed <= 10; seed++ {
			c := newTestContainer(t)
			n := newPathNetwork(t, c)
			ops := testutils.RandomEdgeOps(rand.New(rand.NewSource(seed)), 6, 60)
			for step, op := range ops {
				update(t, c, n.edges, op.Direction, op.Tuple())

				var edges []reachability.Pair
				for _, e := range testutils.LiveEdges(ops[:step+1]) {
					edges = append(edges, reachability.Pair{Source: e[0], Target: e[1]})
				}
				expected := pairs(reachability.Baseline(nil, edges))
				require.ElementsMatch(t, expected, pull(t, c, n.result), "seed %d step %d", seed, step)
			}
		}
	})

	t.Run("batched_inserts_and_retractions", func(t *testing.T) {
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		update(t, c, n.edges, tuple.Insert, tuple.Of2(1, 2), tuple.Of2(2, 1), tuple.Of2(2, 3))

		require.NoError(t, c.Transaction(context.Background(), func(tx *Tx) error {
			if err := tx.Retract(context.Background(), n.edges, tuple.Of2(2, 1)); err != nil {
				return err
			}
			return tx.Insert(context.Background(), n.edges, tuple.Of2(3, 1))
		}))
		expected := pairs(reachability.Baseline(nil, []reachability.Pair{{Source: 1, Target: 2}, {Source: 2, Target: 3}, {Source: 3, Target: 1}}))
		require.Equal(t, expected, pull(t, c, n.result))
	})
}

func TestFixedPointBeforeLaterGroups(t *testing.T) {
	c := newTestContainer(t)
	n := newPathNetwork(t, c)
	recursive := c.Groups()[1]

	result, err := c.Node(n.result)
	require.NoError(t, err)
	deliveries := 0
	result.(*ProductionNode).AddObserver(ResultObserverFunc(func(tuple.Direction, tuple.Tuple, Timestamp) {
		deliveries++
		require.False(t, c.hasMail(recursive), "result observed before the recursive group settled")
	}))

	require.NoError(t, c.Transaction(context.Background(), func(tx *Tx) error {
		for i := int64(1); i < 6; i++ {
			if err := tx.Insert(context.Background(), n.edges, tuple.Of2(i, i+1)); err != nil {
				return err
			}
		}
		return nil
	}))
	require.Equal(t, 15, deliveries)
}

func TestDrainCancellation(t *testing.T) {
	chain := func(t *testing.T, c *Container, n pathNetwork, length int64) {
		for i := int64(1); i <= length; i++ {
			require.NoError(t, c.Update(context.Background(), n.edges, tuple.Insert, tuple.Of2(i, i+1)))
		}
	}
	expected := func(length int64) []tuple.Tuple {
		var edges []reachability.Pair
		for i := int64(1); i <= length; i++ {
			edges = append(edges, reachability.Pair{Source: i, Target: i + 1})
		}
		return pairs(reachability.Baseline(nil, edges))
	}

	t.Run("cancelled_before_drain", func(t *testing.T) {
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		chain(t, c, n, 5)
		pending := c.Pending()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := c.Drain(ctx)
		require.ErrorIs(t, err, tferrors.ErrCancelled)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, pending, c.Pending())

		require.NoError(t, c.Drain(context.Background()))
		require.Equal(t, expected(5), pull(t, c, n.result))
	})

	t.Run("cancelled_between_rounds", func(t *testing.T) {
		c := newTestContainer(t)
		n := newPathNetwork(t, c)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		n.back.hook = func(UpdateMessage) { cancel() }
		chain(t, c, n, 6)

		err := c.Drain(ctx)
		require.ErrorIs(t, err, tferrors.ErrCancelled)
		require.Positive(t, c.Pending())

		require.NoError(t, c.Drain(context.Background()))
		require.Equal(t, expected(6), pull(t, c, n.result))
	})
}

func TestMaxRounds(t *testing.T) {
	c := newTestContainer(t, WithMaxRounds(2))
	n := newPathNetwork(t, c)
	for i := int64(1); i <= 8; i++ {
		require.NoError(t, c.Update(context.Background(), n.edges, tuple.Insert, tuple.Of2(i, i+1)))
	}

	err := c.Drain(context.Background())
	var fixedPoint *FixedPointError
	require.ErrorAs(t, err, &fixedPoint)
	require.Equal(t, 1, fixedPoint.Group)
	require.Equal(t, 2, fixedPoint.Rounds)
	require.ErrorIs(t, err, tferrors.ErrInvariantFailure)
}

func TestRewiringDuringDrain(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t)
	in := c.Add(NewInputNode(1))
	r := &relay{}
	rid := c.Add(r)
	late := NewProductionNode()
	lateID := c.Add(late)
	wire(t, c, [2]NodeID{in, rid})

	attached := false
	r.hook = func(UpdateMessage) {
		if !attached {
			attached = true
			require.NoError(t, c.AppendChild(rid, lateID))
		}
	}
	update(t, c, in, tuple.Insert, tuple.Of1(1), tuple.Of1(2))
	require.Equal(t, 1, late.Count(tuple.Of1(1)))
	require.Equal(t, 1, late.Count(tuple.Of1(2)))
	require.Zero(t, c.Pending())
	require.NoError(t, c.Drain(ctx))
}
