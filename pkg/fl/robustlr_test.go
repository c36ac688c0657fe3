package fl_test

import (
	"math"
	"testing"

	"github.com/absmach/fedguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestRobustLR(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		updates   [][]float64
		threshold float64
		serverLR  float64
		expected  []float64
	}{
		{
			name:      "agreement above threshold",
			updates:   [][]float64{{1, 1, -1}, {1, -1, -1}, {1, 1, 1}},
			threshold: 2,
			serverLR:  0.5,
			expected:  []float64{0.5, -0.5, -0.5},
		},
		{
			name:      "unanimous and split coordinates",
			updates:   [][]float64{{2, 1}, {3, -1}},
			threshold: 1,
			serverLR:  1,
			expected:  []float64{1, -1},
		},
		{
			name:      "zeros do not vote",
			updates:   [][]float64{{0, 1}, {0, 1}},
			threshold: 2,
			serverLR:  0.1,
			expected:  []float64{-0.1, 0.1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := fl.RobustLR(newBatch(t, tc.updates...), tc.threshold, tc.serverLR)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestRobustLRPropagatesNaN(t *testing.T) {
	t.Parallel()
	got, err := fl.RobustLR(newBatch(t, []float64{math.NaN(), 1}, []float64{1, 1}), 1, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got[0]))
	assert.Equal(t, 1.0, got[1])
}

func TestClip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		update   []float64
		bound    float64
		expected []float64
	}{
		{
			name:     "scaled down to the bound",
			update:   []float64{3, 4},
			bound:    1,
			expected: []float64{0.6, 0.8},
		},
		{
			name:     "inside the bound",
			update:   []float64{3, 4},
			bound:    10,
			expected: []float64{3, 4},
		},
		{
			name:     "zero vector",
			update:   []float64{0, 0, 0},
			bound:    0.5,
			expected: []float64{0, 0, 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fl.Clip(tc.update, tc.bound)
			assert.InDeltaSlice(t, tc.expected, tc.update, 1e-12)
			assert.LessOrEqual(t, floats.Norm(tc.update, 2), tc.bound+1e-9)
		})
	}
}

func TestClipBatch(t *testing.T) {
	t.Parallel()
	batch := newBatch(t, []float64{30, 40}, []float64{0.1, 0}, []float64{-6, 8})
	fl.ClipBatch(batch, 5)

	for _, id := range batch.IDs() {
		u, ok := batch.Get(id)
		require.True(t, ok)
		assert.LessOrEqual(t, floats.Norm(u, 2), 5+1e-9)
	}
	u, _ := batch.Get("agent-b")
	assert.Equal(t, []float64{0.1, 0}, u)
}
