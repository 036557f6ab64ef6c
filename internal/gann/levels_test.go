package gann

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() Params {
	return Params{
		Increments:       []float64{0.125, 0.25, 0.5, 0.75, 1.0, 0.75, 0.5, 0.25},
		NumValues:        20,
		BufferPercentage: 0.002,
		IncludeLower:     true,
		TargetCount:      3,
	}
}

func TestComputeLevels_RejectsNonPositiveAnchor(t *testing.T) {
	for _, anchor := range []float64{0, -1, -100.5} {
		_, err := ComputeLevels(anchor, defaultParams())
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestComputeLevels_ReferenceAnchor100(t *testing.T) {
	ls, err := ComputeLevels(100, defaultParams())
	require.NoError(t, err)

	seq := ls.Levels["0°"]
	require.NotEmpty(t, seq)

	// base=10, central=100; nearest neighbours on the 0° angle
	var below, above float64
	for _, v := range seq {
		if v < 100 && v > below {
			below = v
		}
		if v > 100 && (above == 0 || v < above) {
			above = v
		}
	}
	assert.Equal(t, 97.52, below)  // (10-0.125)²
	assert.Equal(t, 102.52, above) // (10+0.125)²
	assert.Contains(t, seq, 100.0)
}

func TestComputeLevels_EveryAngleStrictlyAscending(t *testing.T) {
	for _, anchor := range []float64{42.5, 100, 1234.56, 22500} {
		ls, err := ComputeLevels(anchor, defaultParams())
		require.NoError(t, err)
		for _, angle := range Angles {
			seq := ls.Levels[angle]
			require.NotEmpty(t, seq, "angle %s", angle)
			for i := 1; i < len(seq); i++ {
				assert.Less(t, seq[i-1], seq[i],
					"angle %s index %d for anchor %v", angle, i, anchor)
			}
		}
	}
}

func TestComputeLevels_Lengths(t *testing.T) {
	p := defaultParams()
	ls, err := ComputeLevels(100, p)
	require.NoError(t, err)
	// 10 below + central + 20 above; no skipped roots at this anchor
	assert.Len(t, ls.Levels["0°"], p.NumValues/2+1+p.NumValues)

	p.IncludeLower = false
	ls, err = ComputeLevels(100, p)
	require.NoError(t, err)
	assert.Len(t, ls.Levels["0°"], 1+p.NumValues)
	assert.Equal(t, 100.0, ls.Levels["0°"][0])
}

func TestComputeLevels_SkipsNonPositiveRoots(t *testing.T) {
	// base=1: most lower-half roots go non-positive and must be dropped
	ls, err := ComputeLevels(2.25, defaultParams())
	require.NoError(t, err)
	for _, angle := range Angles {
		for _, v := range ls.Levels[angle] {
			assert.Greater(t, v, 0.0)
		}
	}
}

func TestComputeLevels_Deterministic(t *testing.T) {
	a, err := ComputeLevels(4567.89, defaultParams())
	require.NoError(t, err)
	b, err := ComputeLevels(4567.89, defaultParams())
	require.NoError(t, err)
	assert.Equal(t, a.Levels, b.Levels)
	assert.Equal(t, a.Anchor, b.Anchor)
}

func TestCentralValue(t *testing.T) {
	assert.Equal(t, 100.0, CentralValue(100))
	assert.Equal(t, 100.0, CentralValue(109.99))
	assert.Equal(t, 121.0, CentralValue(121))
}
