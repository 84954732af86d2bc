// Package engine drives the monitoring loop: each cycle reads balances,
// sizes a trade per pair, gathers quotes, estimates profitability and
// conditionally executes. Pairs are evaluated sequentially so balance
// snapshots and decisions stay consistent within a cycle.
package engine

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/you/rebalance-bot/internal/feed"
	imetrics "github.com/you/rebalance-bot/internal/metrics"
	"github.com/you/rebalance-bot/internal/profit"
	"github.com/you/rebalance-bot/internal/quote"
	"github.com/you/rebalance-bot/internal/sizer"
	"github.com/you/rebalance-bot/internal/types"
)

type BalanceReader interface {
	Snapshot(ctx context.Context) types.BalanceSnapshot
}

type QuoteCollector interface {
	Collect(ctx context.Context, pair types.Pair, amountIn *big.Int) []types.SourceResult
}

type TradeSizer interface {
	Size(asset types.Asset, balance *big.Int) (*big.Int, error)
}

type Evaluator interface {
	Evaluate(o types.Opportunity) types.Opportunity
}

type Submitter interface {
	Execute(ctx context.Context, opp types.Opportunity) (string, error)
}

type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type PriceSource interface {
	Price(ctx context.Context) (float64, bool)
}

type Engine struct {
	pairs     []types.Pair
	balances  BalanceReader
	quotes    QuoteCollector
	sizer     TradeSizer
	estimator profit.Estimator
	evaluator Evaluator
	submitter Submitter
	gas       GasPricer
	oracle    PriceSource
	feed      *feed.Publisher

	interval  time.Duration
	pairPause time.Duration
	dryRun    bool
	log       *zap.Logger
}

type Deps struct {
	Pairs     []types.Pair
	Balances  BalanceReader
	Quotes    QuoteCollector
	Sizer     TradeSizer
	Estimator profit.Estimator
	Evaluator Evaluator
	Submitter Submitter
	Gas       GasPricer
	Oracle    PriceSource
	Feed      *feed.Publisher

	Interval  time.Duration
	PairPause time.Duration
	DryRun    bool
}

func New(deps Deps, log *zap.Logger) *Engine {
	return &Engine{
		pairs:     deps.Pairs,
		balances:  deps.Balances,
		quotes:    deps.Quotes,
		sizer:     deps.Sizer,
		estimator: deps.Estimator,
		evaluator: deps.Evaluator,
		submitter: deps.Submitter,
		gas:       deps.Gas,
		oracle:    deps.Oracle,
		feed:      deps.Feed,
		interval:  deps.Interval,
		pairPause: deps.PairPause,
		dryRun:    deps.DryRun,
		log:       log,
	}
}

// Run executes cycles until the context is cancelled. A panic inside one
// cycle is logged and the next cycle proceeds; an isolated anomaly must not
// kill a long-running monitor.
func (e *Engine) Run(ctx context.Context) {
	for {
		e.runCycle(ctx)
		imetrics.Cycles.Inc()
		if !sleepCtx(ctx, e.interval) {
			e.log.Info("engine stopped")
			return
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("cycle panic recovered", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	snap := e.balances.Snapshot(ctx)
	fields := make([]zap.Field, 0, len(snap.Amounts)+1)
	for sym, amt := range snap.Amounts {
		for _, p := range e.pairs {
			if p.In.Symbol == sym {
				whole, _ := types.Whole(amt, p.In.Decimals).Float64()
				imetrics.BalanceWhole.WithLabelValues(sym).Set(whole)
				fields = append(fields, zap.String(strings.ToLower(sym), types.Whole(amt, p.In.Decimals).String()))
				break
			}
		}
	}
	fields = append(fields, zap.String("native_wei", snap.NativeWei.String()))
	e.log.Info("balances observed", fields...)

	for i, pair := range e.pairs {
		if ctx.Err() != nil {
			return
		}
		e.evaluatePair(ctx, pair, snap)
		if i < len(e.pairs)-1 {
			// Short pause between pair evaluations to avoid bursting the
			// quote sources.
			if !sleepCtx(ctx, e.pairPause) {
				return
			}
		}
	}
}

func (e *Engine) evaluatePair(ctx context.Context, pair types.Pair, snap types.BalanceSnapshot) {
	amountIn, err := e.sizer.Size(pair.In, snap.Of(pair.In))
	if err != nil {
		if errors.Is(err, sizer.ErrBelowMinimum) || errors.Is(err, sizer.ErrReserveExceedsBalance) {
			e.log.Info("pair skipped", zap.String("pair", pair.String()), zap.String("reason", err.Error()))
		} else {
			e.log.Warn("sizing failed", zap.String("pair", pair.String()), zap.Error(err))
		}
		return
	}

	results := e.quotes.Collect(ctx, pair, amountIn)
	best, err := quote.SelectBest(results)
	if err != nil {
		e.log.Info("no quote available, pair skipped", zap.String("pair", pair.String()))
		return
	}
	e.logComparison(pair, results, best)

	refPrice, fromCache := e.oracle.Price(ctx)
	imetrics.ReferencePriceUSD.Set(refPrice)

	gasPrice := e.gasPrice(ctx)

	opp := e.estimator.Estimate(best, snap, refPrice, gasPrice)
	opp = e.evaluator.Evaluate(opp)
	imetrics.NetProfitUSD.WithLabelValues(pair.String()).Set(opp.NetProfitUSD)

	e.log.Info("opportunity evaluated",
		zap.String("pair", pair.String()),
		zap.String("source", best.SourceID),
		zap.String("amount_in", opp.AmountIn.String()),
		zap.Float64("input_usd", opp.InputValueUSD),
		zap.Float64("output_usd", opp.OutputValueUSD),
		zap.Float64("gross_usd", opp.GrossProfitUSD),
		zap.Float64("gas_usd", opp.GasCostUSD),
		zap.Float64("net_usd", opp.NetProfitUSD),
		zap.Float64("profit_pct", opp.ProfitPct),
		zap.Float64("ref_price", refPrice),
		zap.Bool("ref_price_cached", fromCache),
		zap.Bool("acceptable", opp.Acceptable),
	)
	e.feed.OpportunityEvaluated(ctx, opp)

	if !opp.Acceptable {
		return
	}
	if ctx.Err() != nil {
		// Interrupted between decision and submission: leave nothing
		// half-submitted.
		return
	}

	if e.dryRun {
		e.log.Warn("DRY-RUN: acceptable opportunity not executed",
			zap.String("pair", pair.String()),
			zap.Float64("net_usd", opp.NetProfitUSD),
		)
		return
	}

	txHash, err := e.submitter.Execute(ctx, opp)
	if err != nil {
		imetrics.TradesFailed.Inc()
		e.log.Error("trade failed",
			zap.String("pair", pair.String()),
			zap.String("tx", txHash),
			zap.Error(err),
		)
		e.feed.TradeFailed(ctx, opp, err.Error())
		return
	}
	imetrics.TradesExecuted.Inc()
	e.log.Info("trade executed",
		zap.String("pair", pair.String()),
		zap.String("tx", txHash),
		zap.String("amount_in", opp.AmountIn.String()),
		zap.String("amount_out", best.AmountOut.String()),
		zap.Float64("net_usd", opp.NetProfitUSD),
		zap.Float64("profit_pct", opp.ProfitPct),
	)
	e.feed.TradeExecuted(ctx, opp, txHash)
}

func (e *Engine) logComparison(pair types.Pair, results []types.SourceResult, best *types.Quote) {
	fields := make([]zap.Field, 0, len(results)+2)
	fields = append(fields, zap.String("pair", pair.String()), zap.String("best", best.SourceID))
	for _, r := range results {
		if r.Quote != nil {
			fields = append(fields, zap.String(r.SourceID, r.Quote.AmountOut.String()))
		} else {
			fields = append(fields, zap.String(r.SourceID, "error: "+r.Err.Error()))
		}
	}
	e.log.Info("quotes compared", fields...)
}

// gasPrice falls back to 20 gwei when the node declines to suggest one.
func (e *Engine) gasPrice(ctx context.Context) *big.Int {
	gp, err := e.gas.SuggestGasPrice(ctx)
	if err != nil || gp == nil || gp.Sign() <= 0 {
		if err != nil {
			e.log.Warn("gas price unavailable, using default", zap.Error(err))
		}
		return big.NewInt(20_000_000_000)
	}
	return gp
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
