// Package indexer maintains, for one fixed projection mask, a live mapping from the signature
// of a tuple to the multiset of tuples producing it.
package indexer

import (
	"fmt"
	"iter"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// Listener is notified when a bucket becomes non-empty (tuple.Insert) or empty
// (tuple.Retract). Each crossing is reported exactly once, whatever the multiplicity of the
// tuples in the bucket. The tuple is the one whose update caused the crossing.
type Listener interface {
	BucketChanged(dir tuple.Direction, signature, t tuple.Tuple)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(dir tuple.Direction, signature, t tuple.Tuple)

func (f ListenerFunc) BucketChanged(dir tuple.Direction, signature, t tuple.Tuple) {
	f(dir, signature, t)
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithListener registers a bucket transition listener.
func WithListener(l Listener) Option {
	return func(ix *Indexer) {
		ix.listeners = append(ix.listeners, l)
	}
}

// Indexer is a signature to tuple multiset index. It is not safe for concurrent use.
type Indexer struct {
	mask      tuple.Mask
	buckets   map[tuple.Tuple]map[tuple.Tuple]int
	size      int
	listeners []Listener
}

// New returns an empty index over mask.
func New(mask tuple.Mask, opts ...Option) *Indexer {
	ix := &Indexer{
		mask:    mask,
		buckets: map[tuple.Tuple]map[tuple.Tuple]int{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// AddListener registers a bucket transition listener.
func (ix *Indexer) AddListener(l Listener) {
	ix.listeners = append(ix.listeners, l)
}

// Mask returns the projection mask of the index.
func (ix *Indexer) Mask() tuple.Mask {
	return ix.mask
}

// Update applies one delta. Retracting a tuple that is not indexed, or updating with a tuple
// whose arity does not match the mask, is a contract violation and leaves the index unchanged.
func (ix *Indexer) Update(dir tuple.Direction, t tuple.Tuple) error {
	if !dir.Valid() {
		return tferrors.With(fmt.Errorf("invalid direction %d", dir), tferrors.ErrContractViolation)
	}
	signature, err := ix.mask.Project(t)
	if err != nil {
		return err
	}

	bucket, ok := ix.buckets[signature]
	if dir == tuple.Retract {
		if bucket[t] == 0 {
			return &TupleNotFoundError{Tuple: t}
		}
		ix.size--
		if bucket[t] > 1 {
			bucket[t]--
			return nil
		}
		delete(bucket, t)
		if len(bucket) == 0 {
			delete(ix.buckets, signature)
			ix.notify(tuple.Retract, signature, t)
		}
		return nil
	}

	ix.size++
	if !ok {
		ix.buckets[signature] = map[tuple.Tuple]int{t: 1}
		ix.notify(tuple.Insert, signature, t)
		return nil
	}
	bucket[t]++
	return nil
}

func (ix *Indexer) notify(dir tuple.Direction, signature, t tuple.Tuple) {
	for _, l := range ix.listeners {
		l.BucketChanged(dir, signature, t)
	}
}

// Get returns the distinct tuples stored under signature, sorted. The result is empty if the
// bucket is.
func (ix *Indexer) Get(signature tuple.Tuple) ([]tuple.Tuple, error) {
	if err := ix.checkSignature(signature); err != nil {
		return nil, err
	}
	bucket := ix.buckets[signature]
	out := make([]tuple.Tuple, 0, len(bucket))
	for t := range bucket {
		out = append(out, t)
	}
	tuple.Sort(out)
	return out, nil
}

// Count returns the multiplicity of t.
func (ix *Indexer) Count(t tuple.Tuple) int {
	signature, err := ix.mask.Project(t)
	if err != nil {
		return 0
	}
	return ix.buckets[signature][t]
}

// Contains reports whether the bucket of signature is non-empty.
func (ix *Indexer) Contains(signature tuple.Tuple) (bool, error) {
	if err := ix.checkSignature(signature); err != nil {
		return false, err
	}
	_, ok := ix.buckets[signature]
	return ok, nil
}

// Signatures returns the signatures of the non-empty buckets, sorted.
func (ix *Indexer) Signatures() []tuple.Tuple {
	out := make([]tuple.Tuple, 0, len(ix.buckets))
	for s := range ix.buckets {
		out = append(out, s)
	}
	tuple.Sort(out)
	return out
}

// Tuples iterates over every indexed tuple with its multiplicity, in no particular order.
// The index must not be updated during the iteration.
func (ix *Indexer) Tuples() iter.Seq2[tuple.Tuple, int] {
	return func(yield func(tuple.Tuple, int) bool) {
		for _, bucket := range ix.buckets {
			for t, n := range bucket {
				if !yield(t, n) {
					return
				}
			}
		}
	}
}

// BucketCount returns the number of non-empty buckets.
func (ix *Indexer) BucketCount() int {
	return len(ix.buckets)
}

// Size returns the number of indexed tuples counted with multiplicity.
func (ix *Indexer) Size() int {
	return ix.size
}

func (ix *Indexer) checkSignature(signature tuple.Tuple) error {
	if signature.Size() != ix.mask.Arity() {
		return &SignatureArityError{Signature: signature, Expected: ix.mask.Arity()}
	}
	return nil
}
