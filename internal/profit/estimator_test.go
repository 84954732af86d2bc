package profit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/you/rebalance-bot/internal/types"
)

var (
	weth = types.Asset{Symbol: "WETH", Decimals: 18, Native: true}
	usdc = types.Asset{Symbol: "USDC", Decimals: 6}
)

func wethUSDC() types.Pair { return types.Pair{In: weth, Out: usdc} }

func newQuote(amountInWei, amountOutMicro int64, gas uint64) *types.Quote {
	return &types.Quote{
		SourceID:    "test",
		Pair:        wethUSDC(),
		AmountIn:    big.NewInt(amountInWei),
		AmountOut:   big.NewInt(amountOutMicro),
		GasEstimate: gas,
	}
}

func TestQuoteEstimator_Profit(t *testing.T) {
	// 1 WETH in at $3000, 3050 USDC out, 200k gas at 20 gwei.
	e := &QuoteEstimator{GasMultiplier: 1.0}
	q := newQuote(1e18, 3_050_000_000, 200000)
	gasPrice := big.NewInt(20_000_000_000)

	o := e.Estimate(q, types.BalanceSnapshot{}, 3000, gasPrice)

	assert.InDelta(t, 3000.0, o.InputValueUSD, 1e-9)
	assert.InDelta(t, 3050.0, o.OutputValueUSD, 1e-9)
	assert.InDelta(t, 50.0, o.GrossProfitUSD, 1e-9)
	// 200000 * 20 gwei = 0.004 ETH = $12
	assert.InDelta(t, 12.0, o.GasCostUSD, 1e-9)
	assert.InDelta(t, 38.0, o.NetProfitUSD, 1e-9)
	assert.InDelta(t, 38.0/3000.0*100, o.ProfitPct, 1e-9)
}

func TestQuoteEstimator_GasMultiplier(t *testing.T) {
	e := &QuoteEstimator{GasMultiplier: 1.3}
	q := newQuote(1e18, 3_000_000_000, 200000)
	o := e.Estimate(q, types.BalanceSnapshot{}, 3000, big.NewInt(20_000_000_000))
	assert.InDelta(t, 15.6, o.GasCostUSD, 1e-9) // $12 * 1.3
}

func TestQuoteEstimator_ZeroInputValueNoDivide(t *testing.T) {
	e := &QuoteEstimator{GasMultiplier: 1.0}
	q := newQuote(0, 0, 200000)
	o := e.Estimate(q, types.BalanceSnapshot{}, 3000, big.NewInt(20_000_000_000))
	assert.Equal(t, 0.0, o.ProfitPct)
}

func TestQuoteEstimator_ZeroPriceShortCircuits(t *testing.T) {
	e := &QuoteEstimator{GasMultiplier: 1.3}
	q := newQuote(1e18, 3_000_000_000, 200000)
	o := e.Estimate(q, types.BalanceSnapshot{}, 0, big.NewInt(20_000_000_000))
	// Unknown price: native legs value to 0 instead of faulting.
	assert.Equal(t, 0.0, o.InputValueUSD)
	assert.Equal(t, 0.0, o.GasCostUSD)
	assert.InDelta(t, 3000.0, o.OutputValueUSD, 1e-9) // stable leg is pegged
}

func TestPortfolioEstimator_Delta(t *testing.T) {
	e := &PortfolioEstimator{GasMultiplier: 1.0}
	balances := types.BalanceSnapshot{Amounts: map[string]*big.Int{
		"WETH": big.NewInt(1e16), // 0.01 WETH
		"USDC": big.NewInt(0),
	}}
	// Trade 0.007 WETH for 21.5 USDC at $3000: before = $30, after
	// = 0.003*3000 + 21.5 = $30.50.
	q := newQuote(7e15, 21_500_000, 0)
	o := e.Estimate(q, balances, 3000, nil)

	assert.InDelta(t, 30.0, o.TotalBeforeUSD, 1e-9)
	assert.InDelta(t, 30.5, o.TotalAfterUSD, 1e-9)
	assert.InDelta(t, 0.5, o.GrossProfitUSD, 1e-9)
	assert.InDelta(t, 0.5, o.NetProfitUSD, 1e-9)
	assert.InDelta(t, 1.0, o.NativeShareBefore, 1e-9)
	assert.InDelta(t, 9.0/30.5, o.NativeShareAfter, 1e-9)
}

func TestEvaluator_ThresholdInclusive(t *testing.T) {
	ev := NewEvaluator(15.0, nil)

	at := ev.Evaluate(types.Opportunity{NetProfitUSD: 15.0})
	assert.True(t, at.Acceptable, "net profit exactly at the threshold must accept")

	below := ev.Evaluate(types.Opportunity{NetProfitUSD: 14.999})
	assert.False(t, below.Acceptable)

	above := ev.Evaluate(types.Opportunity{NetProfitUSD: 15.001})
	assert.True(t, above.Acceptable)
}

func TestEvaluator_RatioPolicyPluggable(t *testing.T) {
	reject := func(types.Opportunity) bool { return false }
	ev := NewEvaluator(0, reject)
	o := ev.Evaluate(types.Opportunity{NetProfitUSD: 100})
	assert.False(t, o.Acceptable, "ratio policy must be able to veto")
}

func TestImprovesRatio(t *testing.T) {
	closer := types.Opportunity{NativeShareBefore: 0.9, NativeShareAfter: 0.6}
	assert.True(t, ImprovesRatio(closer))

	further := types.Opportunity{NativeShareBefore: 0.6, NativeShareAfter: 0.2}
	assert.False(t, ImprovesRatio(further))

	unchanged := types.Opportunity{NativeShareBefore: 0.6, NativeShareAfter: 0.6}
	assert.False(t, ImprovesRatio(unchanged), "strictly closer is required")
}

func TestAlwaysRebalance(t *testing.T) {
	assert.True(t, AlwaysRebalance(types.Opportunity{NativeShareBefore: 0.5, NativeShareAfter: 1.0}))
}
