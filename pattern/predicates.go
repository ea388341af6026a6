package pattern

// repeatWordSize is the word width used by the repeated-line test. It does not
// depend on the base-delta granularities.
const repeatWordSize = 4

// IsAllZeros reports whether every byte of line is zero.
func IsAllZeros(line []byte) bool {
	for _, b := range line {
		if b != 0 {
			return false
		}
	}

	return true
}

// IsAllWordSame reports whether every 4-byte word of line equals the first
// one. Lines no longer than one word pass trivially.
func IsAllWordSame(line []byte) bool {
	for i := repeatWordSize; i < len(line); i++ {
		if line[i] != line[i%repeatWordSize] {
			return false
		}
	}

	return true
}
