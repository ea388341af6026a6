// Package pattern classifies cache lines into redundancy patterns and
// accumulates per-pattern byte counts and byte-value entropy.
package pattern

import "fmt"

// State is the closed set of classifications a line can receive. The first six
// values follow the base-delta granularity priority order.
type State int

// All the states.
const (
	Base8Delta1 State = iota
	Base8Delta2
	Base8Delta4
	Base4Delta1
	Base4Delta2
	Base2Delta1
	Zeros
	Repeat
	TemporalLocality
	NotDefined
)

var stateNames = [...]string{
	"B8D1",
	"B8D2",
	"B8D4",
	"B4D1",
	"B4D2",
	"B2D1",
	"Zeros",
	"Repeat",
	"TemporalLocality",
	"NotDefined",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// ClassificationOrder lists the states in the order a line is tested for
// them.
var ClassificationOrder = [...]State{
	Zeros,
	Repeat,
	TemporalLocality,
	Base8Delta1,
	Base8Delta2,
	Base8Delta4,
	Base4Delta1,
	Base4Delta2,
	Base2Delta1,
	NotDefined,
}

// IsBaseDelta reports whether s is one of the six base-delta states.
func (s State) IsBaseDelta() bool {
	return s >= Base8Delta1 && s <= Base2Delta1
}

// NumGranularities is the number of (base size, delta size) pairs tried.
const NumGranularities = 6

// A Granularity is a (base size, delta size) pair in bytes.
type Granularity struct {
	BaseSize  int
	DeltaSize int
}

// Granularities lists the pairs in the order they are tried. Larger bases and
// narrower deltas come first.
var Granularities = [NumGranularities]Granularity{
	{8, 1},
	{8, 2},
	{8, 4},
	{4, 1},
	{4, 2},
	{2, 1},
}

// Index returns the position of g in Granularities. It panics if g is not one
// of the supported pairs.
func (g Granularity) Index() int {
	for i, candidate := range Granularities {
		if candidate == g {
			return i
		}
	}

	panic(fmt.Sprintf("unsupported granularity base %d delta %d",
		g.BaseSize, g.DeltaSize))
}

// State returns the base-delta state that corresponds to g.
func (g Granularity) State() State {
	return State(g.Index())
}

func (g Granularity) String() string {
	return fmt.Sprintf("B%dD%d", g.BaseSize, g.DeltaSize)
}

// Kind tells which branch of an Outcome is populated.
type Kind int

// All the outcome kinds.
const (
	KindZeros Kind = iota
	KindRepeat
	KindTemporalLocality
	KindBaseDelta
	KindNotDefined
)

// An Outcome is the classification of one line. Granularity and Implicit are
// only meaningful when Kind is KindBaseDelta.
type Outcome struct {
	Kind        Kind
	Granularity Granularity
	Implicit    bool
}

// BaseDeltaOutcome creates a base-delta outcome.
func BaseDeltaOutcome(g Granularity, implicit bool) Outcome {
	return Outcome{Kind: KindBaseDelta, Granularity: g, Implicit: implicit}
}

// State flattens the outcome into its State value.
func (o Outcome) State() State {
	switch o.Kind {
	case KindZeros:
		return Zeros
	case KindRepeat:
		return Repeat
	case KindTemporalLocality:
		return TemporalLocality
	case KindBaseDelta:
		return o.Granularity.State()
	case KindNotDefined:
		return NotDefined
	default:
		panic(fmt.Sprintf("unknown outcome kind %d", o.Kind))
	}
}

func (o Outcome) String() string {
	if o.Kind != KindBaseDelta {
		return o.State().String()
	}

	if o.Implicit {
		return o.Granularity.String() + "-Implicit"
	}

	return o.Granularity.String() + "-Explicit"
}
