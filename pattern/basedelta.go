package pattern

import (
	"encoding/binary"
	"fmt"
)

// matchBaseDelta reports whether every word of line after the first differs
// from the first word by an amount that fits a signed delta of g.DeltaSize
// bytes. implicit is true when every difference is zero.
func matchBaseDelta(line []byte, g Granularity) (ok, implicit bool) {
	if len(line) == 0 || len(line)%g.BaseSize != 0 {
		return false, false
	}

	base := readWord(line[:g.BaseSize])
	limit := deltaLimit(g.DeltaSize)
	implicit = true

	for off := g.BaseSize; off < len(line); off += g.BaseSize {
		w := readWord(line[off : off+g.BaseSize])
		if w == base {
			continue
		}

		implicit = false

		if deltaMagnitude(w, base) > limit {
			return false, false
		}
	}

	return true, implicit
}

// readWord decodes a little-endian two's-complement word of 1, 2, 4, or 8
// bytes.
func readWord(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	default:
		panic(fmt.Sprintf("unsupported word size %d", len(b)))
	}
}

// deltaMagnitude returns |w - base| exactly. The true difference of two int64
// values needs 65 bits, but its magnitude always fits a uint64, and unsigned
// subtraction of the ordered operands yields it without wrapping.
func deltaMagnitude(w, base int64) uint64 {
	if w >= base {
		return uint64(w) - uint64(base)
	}

	return uint64(base) - uint64(w)
}

// deltaLimit returns the largest magnitude accepted for a delta of deltaSize
// bytes, 2^(8*deltaSize-1) - 1. The bound is the same on both sides of zero.
func deltaLimit(deltaSize int) uint64 {
	return uint64(1)<<(8*deltaSize-1) - 1
}
