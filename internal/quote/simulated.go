package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/you/rebalance-bot/internal/types"
)

// Rand is the entropy seam for simulated sources; tests inject a seeded
// implementation to pin exact outputs.
type Rand interface {
	Float64() float64
}

// PriceFunc supplies the current native USD reference price.
type PriceFunc func(ctx context.Context) float64

// SimulatedSource mimics an off-chain venue for testnet runs. The randomized
// spread and market fluctuation are simulation artifacts; a real venue
// integration would return the quoted amount as-is.
type SimulatedSource struct {
	id    string
	price PriceFunc

	mu  sync.Mutex
	rnd Rand
}

func NewSimulatedSource(id string, price PriceFunc, rnd Rand) *SimulatedSource {
	return &SimulatedSource{id: id, price: price, rnd: rnd}
}

func (s *SimulatedSource) ID() string { return s.id }

func (s *SimulatedSource) Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	ethUSD := s.price(ctx)
	if ethUSD <= 0 {
		return nil, fmt.Errorf("%s: reference price unavailable", s.id)
	}

	var rate float64
	switch {
	case pair.In.Native && !pair.Out.Native:
		rate = ethUSD
	case !pair.In.Native && pair.Out.Native:
		rate = 1.0 / ethUSD
	default:
		return nil, fmt.Errorf("%s: %s: %w", s.id, pair.String(), ErrUnsupportedPair)
	}

	s.mu.Lock()
	spread := 0.997 + s.rnd.Float64()*0.006
	fluctuation := 0.995 + s.rnd.Float64()*0.01
	gas := 180000 + uint64(s.rnd.Float64()*40000)
	s.mu.Unlock()

	wholeIn := types.Whole(amountIn, pair.In.Decimals)
	wholeOut := wholeIn.
		Mul(decimal.NewFromFloat(rate)).
		Mul(decimal.NewFromFloat(spread)).
		Mul(decimal.NewFromFloat(fluctuation))

	return &types.Quote{
		SourceID:    s.id,
		Pair:        pair,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   types.FromWhole(wholeOut, pair.Out.Decimals),
		GasEstimate: gas,
	}, nil
}
