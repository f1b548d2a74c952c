package bitstream

import (
	"fmt"
	"math"
)

// Range is an inclusive duration window in nanoseconds.
type Range struct {
	Min uint32 `koanf:"min"`
	Max uint32 `koanf:"max"`
}

// AtLeast returns a range with no upper bound.
func AtLeast(min uint32) Range {
	return Range{Min: min, Max: math.MaxUint32}
}

func (r Range) Contains(v uint32) bool {
	return v >= r.Min && v <= r.Max
}

// Overlaps reports whether r and o share any value.
func (r Range) Overlaps(o Range) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

func (r Range) String() string {
	if r.Max == math.MaxUint32 {
		return fmt.Sprintf("[%d,∞)", r.Min)
	}
	return fmt.Sprintf("[%d,%d]", r.Min, r.Max)
}
