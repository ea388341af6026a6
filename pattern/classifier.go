package pattern

import (
	"errors"
	"fmt"

	"github.com/sarchlab/linecomp/linecache"
)

// ErrInvalidLineSize is returned when a component is configured with a line
// size that cannot hold any byte.
var ErrInvalidLineSize = errors.New("line size must be positive")

// A Classifier assigns exactly one Outcome to each line and remembers every
// line it has seen in its temporal-locality history.
type Classifier struct {
	lineSize int
	history  *linecache.Cache
}

// NewClassifier creates a classifier for lines of lineSize bytes that consults
// and updates history.
func NewClassifier(lineSize int, history *linecache.Cache) (*Classifier, error) {
	if lineSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLineSize, lineSize)
	}

	if history == nil {
		return nil, errors.New("classifier requires a line history")
	}

	return &Classifier{
		lineSize: lineSize,
		history:  history,
	}, nil
}

// LineSize returns the configured line size in bytes.
func (c *Classifier) LineSize() int {
	return c.lineSize
}

// History returns the temporal-locality history consulted by the classifier.
func (c *Classifier) History() *linecache.Cache {
	return c.history
}

// Classify returns the first matching pattern of line, trying zeros, repeated
// words, temporal locality, and then every base-delta granularity in priority
// order. The line is inserted into the history afterwards, whatever the
// outcome.
func (c *Classifier) Classify(line []byte) Outcome {
	o := c.classify(line)
	c.history.Insert(line)

	return o
}

func (c *Classifier) classify(line []byte) Outcome {
	switch {
	case IsAllZeros(line):
		return Outcome{Kind: KindZeros}
	case IsAllWordSame(line):
		return Outcome{Kind: KindRepeat}
	case c.history.Contains(line):
		return Outcome{Kind: KindTemporalLocality}
	}

	for _, g := range Granularities {
		if ok, implicit := matchBaseDelta(line, g); ok {
			return BaseDeltaOutcome(g, implicit)
		}
	}

	return Outcome{Kind: KindNotDefined}
}
