// Package tuple contains the immutable fixed-arity tuples of node identifiers that flow
// through the network, the bounded identity cache for single-element tuples, and the
// position masks used to derive signatures.
package tuple

import (
	"encoding/binary"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const elementWidth = 8

// Tuple is an immutable ordered sequence of node identifiers.
//
// Every arity has exactly one canonical representation and all representations are
// comparable values, so two tuples are equal iff a == b, and a Tuple can be used as a map
// key directly.
type Tuple interface {
	// Size returns the arity of the tuple.
	Size() int
	// Get returns the element at position i, or an *IndexOutOfRangeError.
	Get(i int) (int64, error)
	// Elements returns a copy of the elements.
	Elements() []int64
	// Hash returns a stable 64-bit content hash.
	Hash() uint64
	String() string

	appendTo(dst []int64) []int64
}

type flat0 struct{}

type flat1 struct {
	e0 int64
}

type flat2 struct {
	e0, e1 int64
}

// flatN packs three or more elements big-endian into a string so that the value stays
// comparable.
type flatN struct {
	packed string
}

var (
	_ Tuple = flat0{}
	_ Tuple = flat1{}
	_ Tuple = flat2{}
	_ Tuple = flatN{}
)

// Empty is the only tuple of arity zero.
var Empty Tuple = flat0{}

// New returns the canonical tuple holding elems.
func New(elems ...int64) Tuple {
	switch len(elems) {
	case 0:
		return flat0{}
	case 1:
		return flat1{e0: elems[0]}
	case 2:
		return flat2{e0: elems[0], e1: elems[1]}
	default:
		buf := make([]byte, len(elems)*elementWidth)
		for i, e := range elems {
			binary.BigEndian.PutUint64(buf[i*elementWidth:], uint64(e))
		}
		return flatN{packed: string(buf)}
	}
}

// Of1 returns a single-element tuple.
func Of1(a int64) Tuple {
	return flat1{e0: a}
}

// Of2 returns a pair.
func Of2(a, b int64) Tuple {
	return flat2{e0: a, e1: b}
}

// Concat returns the tuple holding the elements of a followed by the elements of b.
func Concat(a, b Tuple) Tuple {
	if b.Size() == 0 {
		return a
	}
	if a.Size() == 0 {
		return b
	}
	elems := make([]int64, 0, a.Size()+b.Size())
	elems = a.appendTo(elems)
	elems = b.appendTo(elems)
	return New(elems...)
}

// Equal reports whether a and b hold the same elements. A nil Tuple is only equal to nil.
func Equal(a, b Tuple) bool {
	return a == b
}

// Compare orders tuples lexicographically by their elements, shorter tuples first on a
// common prefix.
func Compare(a, b Tuple) int {
	var sa, sb [4]int64
	return slices.Compare(a.appendTo(sa[:0]), b.appendTo(sb[:0]))
}

// Sort orders ts in place with Compare.
func Sort(ts []Tuple) {
	slices.SortFunc(ts, Compare)
}

func (flat0) Size() int { return 0 }

func (flat0) Get(i int) (int64, error) {
	return 0, &IndexOutOfRangeError{Index: i, Size: 0}
}

func (flat0) Elements() []int64 { return []int64{} }

func (flat0) Hash() uint64 { return xxhash.Sum64(nil) }

func (flat0) String() string { return "()" }

func (flat0) appendTo(dst []int64) []int64 { return dst }

func (t flat1) Size() int { return 1 }

func (t flat1) Get(i int) (int64, error) {
	if i != 0 {
		return 0, &IndexOutOfRangeError{Index: i, Size: 1}
	}
	return t.e0, nil
}

func (t flat1) Elements() []int64 { return []int64{t.e0} }

func (t flat1) Hash() uint64 {
	var buf [elementWidth]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.e0))
	return xxhash.Sum64(buf[:])
}

func (t flat1) String() string { return format(t) }

func (t flat1) appendTo(dst []int64) []int64 { return append(dst, t.e0) }

func (t flat2) Size() int { return 2 }

func (t flat2) Get(i int) (int64, error) {
	switch i {
	case 0:
		return t.e0, nil
	case 1:
		return t.e1, nil
	}
	return 0, &IndexOutOfRangeError{Index: i, Size: 2}
}

func (t flat2) Elements() []int64 { return []int64{t.e0, t.e1} }

func (t flat2) Hash() uint64 {
	var buf [2 * elementWidth]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.e0))
	binary.BigEndian.PutUint64(buf[elementWidth:], uint64(t.e1))
	return xxhash.Sum64(buf[:])
}

func (t flat2) String() string { return format(t) }

func (t flat2) appendTo(dst []int64) []int64 { return append(dst, t.e0, t.e1) }

func (t flatN) Size() int { return len(t.packed) / elementWidth }

func (t flatN) Get(i int) (int64, error) {
	if i < 0 || i >= t.Size() {
		return 0, &IndexOutOfRangeError{Index: i, Size: t.Size()}
	}
	return t.at(i), nil
}

func (t flatN) at(i int) int64 {
	off := i * elementWidth
	return int64(binary.BigEndian.Uint64([]byte(t.packed[off : off+elementWidth])))
}

func (t flatN) Elements() []int64 { return t.appendTo(make([]int64, 0, t.Size())) }

func (t flatN) Hash() uint64 { return xxhash.Sum64String(t.packed) }

func (t flatN) String() string { return format(t) }

func (t flatN) appendTo(dst []int64) []int64 {
	for i := range t.Size() {
		dst = append(dst, t.at(i))
	}
	return dst
}

func format(t Tuple) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range t.appendTo(nil) {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(e, 10))
	}
	sb.WriteByte(')')
	return sb.String()
}
