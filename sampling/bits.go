package sampling

// BusWidth is the number of data lines on the ADC's parallel output.
const BusWidth = 8

// CombineBits assembles the data bus into a byte.  Line i carries bit i, so
// bits[0] is the least significant bit.
func CombineBits(bits [BusWidth]bool) uint8 {
	var v uint8
	for i, high := range bits {
		if high {
			v |= 1 << i
		}
	}
	return v
}

// SplitBits is the inverse of CombineBits.
func SplitBits(v uint8) [BusWidth]bool {
	var bits [BusWidth]bool
	for i := range bits {
		bits[i] = v&(1<<i) != 0
	}
	return bits
}
