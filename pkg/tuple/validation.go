package tuple

// Validate returns an *InvalidElementError if t holds a negative identifier.
func Validate(t Tuple) error {
	for i, e := range t.appendTo(nil) {
		if e < 0 {
			return &InvalidElementError{Tuple: t, Position: i}
		}
	}
	return nil
}
