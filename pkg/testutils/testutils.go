// Package testutils holds workload generators and comparison helpers shared by tests and
// the verify command.
package testutils

import (
	"math/rand"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// TupleCmpTransformer compares tuple slices as multisets of element lists.
var TupleCmpTransformer = cmp.Transformer("Sort", func(in []tuple.Tuple) [][]int64 {
	out := make([][]int64, len(in))
	for i, t := range in {
		out[i] = t.Elements()
	}
	slices.SortStableFunc(out, slices.Compare)
	return out
})

// EdgeOp inserts or retracts one occurrence of the edge Source -> Target.
type EdgeOp struct {
	Direction      tuple.Direction
	Source, Target int64
}

func (o EdgeOp) Tuple() tuple.Tuple {
	return tuple.Of2(o.Source, o.Target)
}

// RandomEdgeOps returns steps operations over the nodes 1..nodes. An edge is only retracted
// while it has an occurrence left, so the sequence is valid against a multiset of edges.
// Self loops and repeated edges are generated too.
func RandomEdgeOps(rng *rand.Rand, nodes int64, steps int) []EdgeOp {
	live := map[[2]int64]int{}
	ops := make([]EdgeOp, 0, steps)
	for range steps {
		e := [2]int64{rng.Int63n(nodes) + 1, rng.Int63n(nodes) + 1}
		dir := tuple.Insert
		if live[e] > 0 && rng.Intn(2) == 0 {
			dir = tuple.Retract
		}
		live[e] += dir.Sign()
		ops = append(ops, EdgeOp{Direction: dir, Source: e[0], Target: e[1]})
	}
	return ops
}

// LiveEdges returns the distinct edges with an occurrence left after applying ops, sorted.
func LiveEdges(ops []EdgeOp) [][2]int64 {
	live := map[[2]int64]int{}
	for _, op := range ops {
		live[[2]int64{op.Source, op.Target}] += op.Direction.Sign()
	}
	var out [][2]int64
	for e, n := range live {
		if n > 0 {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b [2]int64) int {
		return slices.Compare(a[:], b[:])
	})
	return out
}

// Shuffle returns a copy of in with its elements in random order.
func Shuffle[T any](rng *rand.Rand, in []T) []T {
	out := slices.Clone(in)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
