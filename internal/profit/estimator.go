// Package profit turns a selected quote into a USD-denominated decision.
// Two interchangeable estimators exist: one values the quote itself, the
// other values the whole portfolio before and after the hypothetical trade.
package profit

import (
	"math/big"
	"time"

	"github.com/you/rebalance-bot/internal/types"
)

// Estimator converts a quote plus current balances and reference price into
// an Opportunity. Acceptance is applied separately by the Evaluator.
type Estimator interface {
	Estimate(q *types.Quote, balances types.BalanceSnapshot, refPrice float64, gasPriceWei *big.Int) types.Opportunity
}

// gasCostUSD prices the execution cost: gasPrice * gasEstimate * multiplier,
// converted at the reference price. A zero price yields 0, never a fault.
func gasCostUSD(gasPriceWei *big.Int, gasEstimate uint64, multiplier float64, refPrice float64) float64 {
	if gasPriceWei == nil || refPrice <= 0 {
		return 0
	}
	wei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasEstimate))
	wei.Mul(wei, big.NewInt(int64(multiplier*100)))
	wei.Div(wei, big.NewInt(100))
	native := types.Asset{Symbol: "ETH", Decimals: 18, Native: true}
	return types.ValueUSD(wei, native, refPrice)
}

// QuoteEstimator values the traded amounts directly: output value minus
// input value minus execution cost.
type QuoteEstimator struct {
	// GasMultiplier is the safety buffer applied to the estimated cost.
	GasMultiplier float64
}

func (e *QuoteEstimator) Estimate(q *types.Quote, _ types.BalanceSnapshot, refPrice float64, gasPriceWei *big.Int) types.Opportunity {
	inUSD := types.ValueUSD(q.AmountIn, q.Pair.In, refPrice)
	outUSD := types.ValueUSD(q.AmountOut, q.Pair.Out, refPrice)
	gross := outUSD - inUSD
	gasUSD := gasCostUSD(gasPriceWei, q.GasEstimate, e.GasMultiplier, refPrice)
	net := gross - gasUSD

	pct := 0.0
	if inUSD > 0 {
		pct = net / inUSD * 100
	}

	return types.Opportunity{
		Pair:           q.Pair,
		AmountIn:       q.AmountIn,
		Quote:          q,
		InputValueUSD:  inUSD,
		OutputValueUSD: outUSD,
		GrossProfitUSD: gross,
		GasCostUSD:     gasUSD,
		NetProfitUSD:   net,
		ProfitPct:      pct,
		Ts:             time.Now(),
	}
}

// PortfolioEstimator values the treasury total before and after the
// hypothetical trade and reports the delta as profit. It also tracks how far
// the post-trade native share sits from the 50/50 target.
type PortfolioEstimator struct {
	GasMultiplier float64
}

func (e *PortfolioEstimator) Estimate(q *types.Quote, balances types.BalanceSnapshot, refPrice float64, gasPriceWei *big.Int) types.Opportunity {
	inAsset, outAsset := q.Pair.In, q.Pair.Out

	inBal := balances.Of(inAsset)
	outBal := balances.Of(outAsset)

	totalBefore := types.ValueUSD(inBal, inAsset, refPrice) + types.ValueUSD(outBal, outAsset, refPrice)

	newInBal := new(big.Int).Sub(inBal, q.AmountIn)
	newOutBal := new(big.Int).Add(outBal, q.AmountOut)
	newInUSD := types.ValueUSD(newInBal, inAsset, refPrice)
	newOutUSD := types.ValueUSD(newOutBal, outAsset, refPrice)
	totalAfter := newInUSD + newOutUSD

	shareOf := func(nativeUSD, totalUSD float64) float64 {
		if totalUSD <= 0 {
			return 0
		}
		return nativeUSD / totalUSD
	}
	var shareBefore, shareAfter float64
	if inAsset.Native {
		shareBefore = shareOf(types.ValueUSD(inBal, inAsset, refPrice), totalBefore)
		shareAfter = shareOf(newInUSD, totalAfter)
	} else {
		shareBefore = shareOf(types.ValueUSD(outBal, outAsset, refPrice), totalBefore)
		shareAfter = shareOf(newOutUSD, totalAfter)
	}

	gross := totalAfter - totalBefore
	gasUSD := gasCostUSD(gasPriceWei, q.GasEstimate, e.GasMultiplier, refPrice)
	net := gross - gasUSD

	inUSD := types.ValueUSD(q.AmountIn, inAsset, refPrice)
	pct := 0.0
	if inUSD > 0 {
		pct = net / inUSD * 100
	}

	return types.Opportunity{
		Pair:              q.Pair,
		AmountIn:          q.AmountIn,
		Quote:             q,
		InputValueUSD:     inUSD,
		OutputValueUSD:    types.ValueUSD(q.AmountOut, outAsset, refPrice),
		GrossProfitUSD:    gross,
		GasCostUSD:        gasUSD,
		NetProfitUSD:      net,
		ProfitPct:         pct,
		TotalBeforeUSD:    totalBefore,
		TotalAfterUSD:     totalAfter,
		NativeShareBefore: shareBefore,
		NativeShareAfter:  shareAfter,
		Ts:                time.Now(),
	}
}
