package tuple

import "fmt"

// Direction tags an incremental delta as the insertion or the retraction of a tuple.
type Direction int8

const (
	Insert  Direction = 1
	Retract Direction = -1
)

// Opposite returns the direction cancelling d.
func (d Direction) Opposite() Direction {
	return -d
}

// Sign returns the multiplicity change carried by d.
func (d Direction) Sign() int {
	return int(d)
}

// Valid reports whether d is Insert or Retract.
func (d Direction) Valid() bool {
	return d == Insert || d == Retract
}

func (d Direction) String() string {
	switch d {
	case Insert:
		return "INSERT"
	case Retract:
		return "RETRACT"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}
