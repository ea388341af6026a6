package pattern

import "fmt"

// A Histogram counts occurrences of each byte value.
type Histogram [256]uint64

// Add counts every byte of line.
func (h *Histogram) Add(line []byte) {
	for _, b := range line {
		h[b]++
	}
}

// Sum returns the number of bytes counted.
func (h *Histogram) Sum() uint64 {
	var sum uint64
	for _, c := range h {
		sum += c
	}

	return sum
}

// Statistics accumulates, for one run, how many bytes fall into each pattern
// and the byte-value distribution of the processed lines.
//
// Every processed line adds LineSize to Total and exactly LineSize to one of
// Z, R, T, U, ImplicitCounts, or ExplicitCounts, so the category counters
// always sum to Total.
type Statistics struct {
	LineSize uint64
	Total    uint64

	// Bytes in lines classified Zeros, Repeat, TemporalLocality, and
	// NotDefined.
	Z, R, T, U uint64

	// Bytes in base-delta lines, indexed like Granularities.
	ImplicitCounts [NumGranularities]uint64
	ExplicitCounts [NumGranularities]uint64

	// SymbolCounts covers every processed line. SymbolCountsExceptTrivial
	// skips lines that are all zeros or made of one repeated 4-byte word.
	SymbolCounts              Histogram
	SymbolCountsExceptTrivial Histogram
}

// NewStatistics creates an empty accumulator for lines of lineSize bytes.
func NewStatistics(lineSize int) (*Statistics, error) {
	if lineSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLineSize, lineSize)
	}

	return &Statistics{LineSize: uint64(lineSize)}, nil
}

// Update accounts one classified line: the total, the outcome category
// weighted by the full line size, and the byte histograms.
func (s *Statistics) Update(line []byte, o Outcome) {
	s.UpdateTotal()
	s.UpdateStat(o, s.LineSize)
	s.UpdateCountMap(line)
}

// UpdateTotal adds one line worth of bytes to Total.
func (s *Statistics) UpdateTotal() {
	s.Total += s.LineSize
}

// UpdateStat adds byteWeight to the counter that corresponds to o.
func (s *Statistics) UpdateStat(o Outcome, byteWeight uint64) {
	switch o.Kind {
	case KindZeros:
		s.Z += byteWeight
	case KindRepeat:
		s.R += byteWeight
	case KindTemporalLocality:
		s.T += byteWeight
	case KindNotDefined:
		s.U += byteWeight
	case KindBaseDelta:
		idx := o.Granularity.Index()
		if o.Implicit {
			s.ImplicitCounts[idx] += byteWeight
		} else {
			s.ExplicitCounts[idx] += byteWeight
		}
	default:
		panic(fmt.Sprintf("unknown outcome kind %d", o.Kind))
	}
}

// UpdateCountMap counts the bytes of line into the overall histogram, and
// into the non-trivial histogram unless the line is all zeros or a single
// repeated 4-byte word.
func (s *Statistics) UpdateCountMap(line []byte) {
	s.SymbolCounts.Add(line)

	if IsAllZeros(line) || IsAllWordSame(line) {
		return
	}

	s.SymbolCountsExceptTrivial.Add(line)
}

// Classified returns the sum of every category counter.
func (s *Statistics) Classified() uint64 {
	sum := s.Z + s.R + s.T + s.U
	for i := range NumGranularities {
		sum += s.ImplicitCounts[i] + s.ExplicitCounts[i]
	}

	return sum
}

// BytesOf returns the bytes attributed to state. For base-delta states the
// implicit and explicit counters are added together.
func (s *Statistics) BytesOf(state State) uint64 {
	switch {
	case state.IsBaseDelta():
		return s.ImplicitCounts[state] + s.ExplicitCounts[state]
	case state == Zeros:
		return s.Z
	case state == Repeat:
		return s.R
	case state == TemporalLocality:
		return s.T
	case state == NotDefined:
		return s.U
	default:
		panic(fmt.Sprintf("unknown state %d", state))
	}
}

// Coverage returns the fraction of bytes that matched any pattern other than
// NotDefined.
func (s *Statistics) Coverage() float64 {
	if s.Total == 0 {
		return 0
	}

	return float64(s.Total-s.U) / float64(s.Total)
}

// Entropy returns the byte-value entropy of all processed lines.
func (s *Statistics) Entropy() float64 {
	return ComputeEntropy(&s.SymbolCounts)
}

// EntropyExceptTrivial returns the byte-value entropy of the lines that are
// neither all zeros nor a single repeated 4-byte word.
func (s *Statistics) EntropyExceptTrivial() float64 {
	return ComputeEntropy(&s.SymbolCountsExceptTrivial)
}

// Clone returns an independent copy of s.
func (s *Statistics) Clone() *Statistics {
	c := *s
	return &c
}
