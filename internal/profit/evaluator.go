package profit

import "github.com/you/rebalance-bot/internal/types"

// RatioPolicy is the secondary acceptance predicate. It is pluggable so the
// ratio check can be swapped or disabled by configuration.
type RatioPolicy func(types.Opportunity) bool

// AlwaysRebalance disables the ratio check.
func AlwaysRebalance(types.Opportunity) bool { return true }

// ImprovesRatio accepts only trades that move the portfolio's native-value
// share strictly closer to the 50/50 target.
func ImprovesRatio(o types.Opportunity) bool {
	distBefore := abs(o.NativeShareBefore - 0.5)
	distAfter := abs(o.NativeShareAfter - 0.5)
	return distAfter < distBefore
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

type Evaluator struct {
	minProfitUSD float64
	ratio        RatioPolicy
}

func NewEvaluator(minProfitUSD float64, ratio RatioPolicy) *Evaluator {
	if ratio == nil {
		ratio = AlwaysRebalance
	}
	return &Evaluator{minProfitUSD: minProfitUSD, ratio: ratio}
}

// Evaluate applies the acceptance policy: net profit at or above the minimum
// (inclusive) and the ratio predicate. Returns the opportunity with
// Acceptable set.
func (e *Evaluator) Evaluate(o types.Opportunity) types.Opportunity {
	o.Acceptable = o.NetProfitUSD >= e.minProfitUSD && e.ratio(o)
	return o
}
