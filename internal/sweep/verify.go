package sweep

import (
	"context"
	"math/rand"

	"codeberg.org/mutker/undervoltctl/internal/curve"
	"codeberg.org/mutker/undervoltctl/internal/errors"
)

const maxVerifySamples = 5

// VerifyResult summarizes a verification pass.
type VerifyResult struct {
	Tested int
	Failed []curve.FrequencyPoint
}

// Passed reports whether at least one point was retested and none failed.
func (v VerifyResult) Passed() bool {
	return v.Tested > 0 && len(v.Failed) == 0
}

// verifier retests a random sample of stable points. It never changes the
// curve.
type verifier struct {
	rng  *rand.Rand
	test func(ctx context.Context, freq, voltage int) bool
}

func (v *verifier) verify(ctx context.Context, c *curve.Curve) (VerifyResult, error) {
	stable := c.Stable()
	if len(stable) == 0 {
		return VerifyResult{}, errors.New().New(ErrNoStablePoints)
	}

	n := min(maxVerifySamples, len(stable))
	var res VerifyResult
	for _, i := range v.rng.Perm(len(stable))[:n] {
		p := stable[i]
		res.Tested++
		if !v.test(ctx, p.FrequencyMHz, p.VoltageMV) {
			res.Failed = append(res.Failed, p)
		}
	}

	if len(res.Failed) > 0 {
		return res, errors.New().WithData(ErrVerification, len(res.Failed))
	}

	return res, nil
}
