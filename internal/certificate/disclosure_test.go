package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisclosureBitsRoundTrip(t *testing.T) {
	for mask := 0; mask <= 15; mask++ {
		assert.Equal(t, mask, DisclosureFromBits(mask).Bits())
	}
}

func TestDisclosureAllowsExactTierOnly(t *testing.T) {
	// 0b0010 grants tier 2 and nothing else: a higher grant never implies a
	// lower one and vice versa.
	d := DisclosureFromBits(0b0010)
	assert.False(t, d.Allows(1))
	assert.True(t, d.Allows(2))
	assert.False(t, d.Allows(3))
	assert.False(t, d.Allows(4))
}

func TestDisclosureBitFlipFlipsOnlyThatTier(t *testing.T) {
	for level := 1; level <= 4; level++ {
		for mask := 0; mask <= 15; mask++ {
			flipped := mask ^ (1 << (level - 1))
			before := DisclosureFromBits(mask)
			after := DisclosureFromBits(flipped)

			assert.NotEqual(t, before.Allows(level), after.Allows(level))
			for other := 1; other <= 4; other++ {
				if other == level {
					continue
				}
				assert.Equal(t, before.Allows(other), after.Allows(other),
					"flipping bit %d must not affect tier %d", level-1, other)
			}
		}
	}
}

func TestDisclosureGrant(t *testing.T) {
	d := DisclosureSet{}
	d = d.Grant(3)
	assert.True(t, d.Healthcare)
	assert.Equal(t, 0b0100, d.Bits())

	assert.False(t, d.Allows(0))
	assert.False(t, d.Allows(5))
}
