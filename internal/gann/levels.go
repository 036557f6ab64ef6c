package gann

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput flags a non-positive anchor price. Caller bug, never retried.
var ErrInvalidInput = errors.New("gann: anchor price must be positive")

// Angle is one of the eight Square-of-9 rotations.
type Angle string

// Angles in generation order. Cardinal angles (multiples of 90) use the plain
// increment; ordinal angles scale theirs by 1.125.
var Angles = [8]Angle{"0°", "45°", "90°", "135°", "180°", "225°", "270°", "315°"}

const ordinalScale = 1.125

// Params controls level generation. Zero values are not defaulted here; the
// config layer owns defaults.
type Params struct {
	Increments       []float64
	NumValues        int
	BufferPercentage float64
	IncludeLower     bool
	TargetCount      int
}

// LevelSet is the full Square-of-9 grid for one anchor price. Treated as
// immutable once computed; regenerate when the anchor (previous close) moves.
type LevelSet struct {
	Anchor    float64
	CreatedAt time.Time
	Levels    map[Angle][]float64
}

// ComputeLevels builds the level grid for an anchor price.
//
// root = sqrt(anchor), base = floor(root), central = base². Each angle takes
// its positional increment; values run numValues/2 below base (non-positive
// roots skipped), through central, then numValues above. Every value is the
// square, rounded to 2 decimals. Deterministic: same inputs, same LevelSet.
func ComputeLevels(anchor float64, p Params) (*LevelSet, error) {
	if anchor <= 0 {
		return nil, ErrInvalidInput
	}
	if len(p.Increments) != len(Angles) {
		return nil, errors.New("gann: increments must match angle count")
	}

	root := math.Sqrt(anchor)
	base := math.Floor(root)
	central := round2(base * base)

	levels := make(map[Angle][]float64, len(Angles))
	for idx, angle := range Angles {
		increment := p.Increments[idx]
		step := increment
		if !isCardinal(angle) {
			step = increment * ordinalScale
		}

		seq := make([]float64, 0, p.NumValues+p.NumValues/2+1)
		if p.IncludeLower {
			for i := p.NumValues / 2; i >= 1; i-- {
				val := base - float64(i)*step
				if val <= 0 {
					continue
				}
				seq = append(seq, round2(val*val))
			}
		}
		seq = append(seq, central)
		for i := 1; i <= p.NumValues; i++ {
			val := base + float64(i)*step
			seq = append(seq, round2(val*val))
		}
		levels[angle] = seq
	}

	return &LevelSet{
		Anchor:    anchor,
		CreatedAt: time.Now(),
		Levels:    levels,
	}, nil
}

// CentralValue is floor(sqrt(price))², the pivot of the square for a price.
func CentralValue(price float64) float64 {
	base := math.Floor(math.Sqrt(price))
	return base * base
}

func isCardinal(a Angle) bool {
	switch a {
	case "0°", "90°", "180°", "270°":
		return true
	}
	return false
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
