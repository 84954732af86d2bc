// Package quote collects swap quotes from independent sources and selects
// the best one for a cycle.
package quote

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	imetrics "github.com/you/rebalance-bot/internal/metrics"
	"github.com/you/rebalance-bot/internal/types"
)

var (
	// ErrNoQuote means zero sources produced a usable quote; callers treat it
	// as "no opportunity this cycle", not a failure.
	ErrNoQuote = errors.New("no quote available")

	// ErrUnsupportedPair is returned by a source that cannot price the pair.
	ErrUnsupportedPair = errors.New("unsupported pair")
)

// Source is one independent quote venue.
type Source interface {
	ID() string
	Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error)
}

type Provider struct {
	sources []Source
	timeout time.Duration
	log     *zap.Logger
}

func NewProvider(sources []Source, timeout time.Duration, log *zap.Logger) *Provider {
	return &Provider{sources: sources, timeout: timeout, log: log}
}

// Collect queries every source concurrently; each call is individually
// fallible and bounded by the per-call timeout so one dead source cannot
// stall the cycle. Results come back in source order.
func (p *Provider) Collect(ctx context.Context, pair types.Pair, amountIn *big.Int) []types.SourceResult {
	results := make([]types.SourceResult, len(p.sources))

	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			start := time.Now()
			q, err := src.Quote(cctx, pair, amountIn)
			imetrics.QuoteLatency.Observe(time.Since(start).Seconds())
			if err != nil {
				imetrics.QuoteErrors.Inc()
				p.log.Debug("quote source failed",
					zap.String("source", src.ID()),
					zap.String("pair", pair.String()),
					zap.Error(err),
				)
				results[i] = types.SourceResult{SourceID: src.ID(), Err: err}
				return
			}
			q.Latency = time.Since(start)
			results[i] = types.SourceResult{SourceID: src.ID(), Quote: q}
		}(i, src)
	}
	wg.Wait()

	return results
}

// SelectBest picks the quote with the strictly greatest output amount; ties
// keep the first encountered so selection is deterministic. Returns
// ErrNoQuote when no result carries a quote.
func SelectBest(results []types.SourceResult) (*types.Quote, error) {
	var best *types.Quote
	for _, r := range results {
		if r.Quote == nil || r.Quote.AmountOut == nil {
			continue
		}
		if best == nil || r.Quote.AmountOut.Cmp(best.AmountOut) > 0 {
			best = r.Quote
		}
	}
	if best == nil {
		return nil, ErrNoQuote
	}
	return best, nil
}
