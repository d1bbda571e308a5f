package tuple

import (
	"slices"
	"strconv"
	"strings"
)

// Mask selects positions of a tuple of a fixed source arity. Projecting a tuple through a
// mask yields its signature.
type Mask struct {
	positions   []int
	sourceArity int
}

// NewMask returns the mask selecting positions, in order, from tuples of sourceArity.
func NewMask(sourceArity int, positions ...int) (Mask, error) {
	for _, p := range positions {
		if p < 0 || p >= sourceArity {
			return Mask{}, &InvalidMaskError{SourceArity: sourceArity, Position: p}
		}
	}
	return Mask{positions: slices.Clone(positions), sourceArity: sourceArity}, nil
}

// MustMask is like NewMask but panics on an invalid position.
func MustMask(sourceArity int, positions ...int) Mask {
	m, err := NewMask(sourceArity, positions...)
	if err != nil {
		panic(err)
	}
	return m
}

// IdentityMask selects every position of tuples of the given arity.
func IdentityMask(arity int) Mask {
	positions := make([]int, arity)
	for i := range positions {
		positions[i] = i
	}
	return Mask{positions: positions, sourceArity: arity}
}

// Arity is the arity of the signatures produced by the mask.
func (m Mask) Arity() int {
	return len(m.positions)
}

// SourceArity is the arity of the tuples the mask applies to.
func (m Mask) SourceArity() int {
	return m.sourceArity
}

// Positions returns a copy of the selected positions.
func (m Mask) Positions() []int {
	return slices.Clone(m.positions)
}

// signatures serves the single-element signatures of Project.
var signatures = NewCache(DefaultCacheSize)

// Project returns the signature of t.
func (m Mask) Project(t Tuple) (Tuple, error) {
	if t.Size() != m.sourceArity {
		return nil, &ArityMismatchError{Tuple: t, Expected: m.sourceArity}
	}
	switch len(m.positions) {
	case 0:
		return Empty, nil
	case 1:
		v, err := t.Get(m.positions[0])
		if err != nil {
			return nil, err
		}
		return signatures.Of(v), nil
	case m.sourceArity:
		if m.isIdentity() {
			return t, nil
		}
	}
	var scratch [4]int64
	elems := t.appendTo(scratch[:0])
	out := make([]int64, len(m.positions))
	for i, p := range m.positions {
		out[i] = elems[p]
	}
	return New(out...), nil
}

func (m Mask) isIdentity() bool {
	for i, p := range m.positions {
		if i != p {
			return false
		}
	}
	return true
}

// Complement returns the mask selecting, in ascending order, the positions m does not
// select.
func (m Mask) Complement() Mask {
	selected := make([]bool, m.sourceArity)
	for _, p := range m.positions {
		selected[p] = true
	}
	var rest []int
	for i, s := range selected {
		if !s {
			rest = append(rest, i)
		}
	}
	return Mask{positions: rest, sourceArity: m.sourceArity}
}

// Equal reports whether both masks select the same positions from the same arity.
func (m Mask) Equal(o Mask) bool {
	return m.sourceArity == o.sourceArity && slices.Equal(m.positions, o.positions)
}

func (m Mask) String() string {
	parts := make([]string, len(m.positions))
	for i, p := range m.positions {
		parts[i] = strconv.Itoa(p)
	}
	return "[" + strings.Join(parts, ",") + "]/" + strconv.Itoa(m.sourceArity)
}
