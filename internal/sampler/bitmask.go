package sampler

import "math/bits"

// MaxPoolSize is the largest candidate pool a single mask can track.
const MaxPoolSize = 64

// Bitmask tracks which candidate items have been served since the last
// reset. Bit i set means the item at pool position i has been dealt. The
// compact integer form is what gets persisted and echoed in problem
// payloads.
type Bitmask uint64

// IsSet reports whether position i has been served
func (m Bitmask) IsSet(i int) bool {
	if i < 0 || i >= MaxPoolSize {
		return false
	}
	return m&(1<<uint(i)) != 0
}

// Set returns the mask with position i marked served
func (m Bitmask) Set(i int) Bitmask {
	if i < 0 || i >= MaxPoolSize {
		return m
	}
	return m | 1<<uint(i)
}

// Count returns how many positions have been served
func (m Bitmask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Reset returns the empty mask
func (m Bitmask) Reset() Bitmask {
	return 0
}
