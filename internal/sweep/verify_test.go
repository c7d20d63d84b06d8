package sweep

import (
	"context"
	"math/rand"
	"testing"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurve(n int, stable func(i int) bool) *curve.Curve {
	points := make([]curve.FrequencyPoint, 0, n)
	for i := 0; i < n; i++ {
		s := stable(i)
		v := -20
		if !s {
			v = 0
		}
		points = append(points, curve.FrequencyPoint{FrequencyMHz: 400 + i*100, VoltageMV: v, Stable: s})
	}
	return curve.New(0, points, nil)
}

func TestVerifier_SamplesAtMostFive(t *testing.T) {
	var tested []int
	v := &verifier{
		rng: rand.New(rand.NewSource(1)),
		test: func(_ context.Context, freq, _ int) bool {
			tested = append(tested, freq)
			return true
		},
	}

	res, err := v.verify(context.Background(), testCurve(12, func(int) bool { return true }))
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Equal(t, 5, res.Tested)

	seen := map[int]bool{}
	for _, f := range tested {
		assert.False(t, seen[f], "samples are distinct")
		seen[f] = true
	}
}

func TestVerifier_SeededSelectionIsReproducible(t *testing.T) {
	pick := func(seed int64) []int {
		var tested []int
		v := &verifier{
			rng: rand.New(rand.NewSource(seed)),
			test: func(_ context.Context, freq, _ int) bool {
				tested = append(tested, freq)
				return true
			},
		}
		_, err := v.verify(context.Background(), testCurve(20, func(int) bool { return true }))
		require.NoError(t, err)
		return tested
	}

	assert.Equal(t, pick(42), pick(42))
}

func TestVerifier_OnlyStablePoints(t *testing.T) {
	c := testCurve(10, func(i int) bool { return i%3 == 0 })
	v := &verifier{
		rng: rand.New(rand.NewSource(7)),
		test: func(_ context.Context, freq, voltage int) bool {
			assert.Equal(t, -20, voltage)
			assert.Equal(t, 0, (freq-400)/100%3)
			return true
		},
	}

	res, err := v.verify(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Tested)
}

func TestVerifier_NoStablePoints(t *testing.T) {
	v := &verifier{rng: rand.New(rand.NewSource(1)), test: func(context.Context, int, int) bool { return true }}

	res, err := v.verify(context.Background(), testCurve(3, func(int) bool { return false }))
	assert.True(t, errors.HasCode(err, ErrNoStablePoints))
	assert.False(t, res.Passed())
}

func TestVerifier_FailuresDoNotMutateCurve(t *testing.T) {
	c := testCurve(6, func(int) bool { return true })
	before := append([]curve.FrequencyPoint(nil), c.Points...)

	v := &verifier{
		rng:  rand.New(rand.NewSource(3)),
		test: func(_ context.Context, freq, _ int) bool { return freq != 600 && freq != 700 },
	}

	res, err := v.verify(context.Background(), c)
	assert.True(t, errors.HasCode(err, ErrVerification))
	assert.NotEmpty(t, res.Failed)
	assert.Equal(t, before, c.Points)
}
