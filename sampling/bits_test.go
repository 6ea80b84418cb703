package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineBitsRoundTrip(t *testing.T) {
	for v := 0; v <= 255; v++ {
		assert.Equal(t, uint8(v), CombineBits(SplitBits(uint8(v))), "value %d", v)
	}
}

func TestCombineBitsLSBFirst(t *testing.T) {
	var bits [BusWidth]bool
	bits[0] = true
	assert.Equal(t, uint8(0x01), CombineBits(bits))

	bits = [BusWidth]bool{}
	bits[7] = true
	assert.Equal(t, uint8(0x80), CombineBits(bits))

	bits = [BusWidth]bool{true, false, true, false, false, true, true, false}
	assert.Equal(t, uint8(0b01100101), CombineBits(bits))
}

func TestCombineBitsMatchesEveryPattern(t *testing.T) {
	for pattern := 0; pattern < 256; pattern++ {
		var bits [BusWidth]bool
		want := uint8(0)
		for i := 0; i < BusWidth; i++ {
			if pattern>>i&1 == 1 {
				bits[i] = true
				want += 1 << i
			}
		}
		assert.Equal(t, want, CombineBits(bits))
	}
}
