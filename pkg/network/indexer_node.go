package network

import (
	"context"

	"github.com/tupleflow/tupleflow/pkg/indexer"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// IndexerNode materializes the deltas of its parents in a projection index and passes them
// on unchanged.
type IndexerNode struct {
	Binding
	index *indexer.Indexer
}

var (
	_ Receiver = (*IndexerNode)(nil)
	_ Supplier = (*IndexerNode)(nil)
)

func NewIndexerNode(mask tuple.Mask, opts ...indexer.Option) *IndexerNode {
	return &IndexerNode{index: indexer.New(mask, opts...)}
}

// Index returns the underlying index, e.g. to read its bucket count.
func (n *IndexerNode) Index() *indexer.Indexer {
	return n.index
}

// Get returns the tuples stored under signature.
func (n *IndexerNode) Get(signature tuple.Tuple) ([]tuple.Tuple, error) {
	return n.index.Get(signature)
}

func (n *IndexerNode) Update(_ context.Context, msg UpdateMessage) error {
	if err := n.index.Update(msg.Direction, msg.Tuple); err != nil {
		return err
	}
	n.Propagate(msg.Direction, msg.Tuple, msg.Timestamp)
	return nil
}

func (n *IndexerNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	appendIndexed(into, n.index)
	return nil
}

func appendIndexed(into *[]tuple.Tuple, ix *indexer.Indexer) {
	start := len(*into)
	for t, count := range ix.Tuples() {
		for range count {
			*into = append(*into, t)
		}
	}
	tuple.Sort((*into)[start:])
}
