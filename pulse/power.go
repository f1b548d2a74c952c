package pulse

type rotation byte

const (
	none rotation = iota
	crazy
	cw
	ccw
)

// Indexed by old quadrant<<2 | new quadrant.
var motion = [16]rotation{
	none, ccw, crazy, cw,
	cw, none, ccw, crazy,
	crazy, cw, none, ccw,
	ccw, crazy, cw, none,
}

// PowerLUT holds the normalized square of each centered uint8 sample
// value, so the power of a pair is lut[i] + lut[q].
type PowerLUT [256]float64

func NewPowerLUT() (lut PowerLUT) {
	for idx := range lut {
		v := (float64(idx) - 128) / 128
		lut[idx] = v * v
	}
	return
}

// Execute computes the power of each IQ pair of input into output.
func (lut *PowerLUT) Execute(input []byte, output []float64) {
	i := 0
	for idx := range output {
		output[idx] = lut[input[i]] + lut[input[i+1]]
		i += 2
	}
}

// Quadrant of a centered IQ sample, numbered counter-clockwise from the
// positive I axis.
func Quadrant(i, q byte) uint8 {
	switch {
	case i >= 128 && q >= 128:
		return 0
	case i >= 128:
		return 3
	case q >= 128:
		return 1
	}
	return 2
}
