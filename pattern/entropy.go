package pattern

import "math"

// ComputeEntropy returns the Shannon entropy of the byte-value distribution in
// h, in bits per byte. An empty histogram has zero entropy.
func ComputeEntropy(h *Histogram) float64 {
	sum := h.Sum()
	if sum == 0 {
		return 0
	}

	entropy := 0.0
	for _, count := range h {
		if count == 0 {
			continue
		}

		p := float64(count) / float64(sum)
		entropy -= p * math.Log2(p)
	}

	return entropy
}
