package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Asset identifies one tracked token of the treasury.
type Asset struct {
	Symbol   string
	Address  common.Address
	Decimals int32
	// Native marks the wrapped-native token (WETH); its USD value moves with
	// the reference price. Non-native assets are assumed pegged 1:1 to USD.
	Native bool
}

// Pair is an ordered trading direction evaluated once per cycle.
type Pair struct {
	In  Asset
	Out Asset
}

func (p Pair) String() string { return p.In.Symbol + "->" + p.Out.Symbol }

// Quote is one source's offer for a proposed swap. Amounts are integers in
// the asset's smallest unit. Quotes live for a single cycle and are never
// mutated after creation.
type Quote struct {
	SourceID  string
	Pair      Pair
	AmountIn  *big.Int
	AmountOut *big.Int
	// GasEstimate is the source's estimated execution cost in gas units.
	GasEstimate uint64
	Latency     time.Duration
}

// SourceResult pairs a source with either its quote or its failure.
type SourceResult struct {
	SourceID string
	Quote    *Quote
	Err      error
}

// Opportunity is the profitability assessment derived from one selected
// quote plus current balances and reference price. Immutable once computed;
// discarded after the cycle that produced it.
type Opportunity struct {
	Pair           Pair
	AmountIn       *big.Int
	Quote          *Quote
	InputValueUSD  float64
	OutputValueUSD float64
	GrossProfitUSD float64
	GasCostUSD     float64
	NetProfitUSD   float64
	ProfitPct      float64
	// Portfolio fields, populated by the portfolio-delta estimator.
	TotalBeforeUSD    float64
	TotalAfterUSD     float64
	NativeShareBefore float64
	NativeShareAfter  float64
	Acceptable        bool
	Ts                time.Time
}

// BalanceSnapshot holds the account's balances for one cycle. It is fetched
// fresh each cycle and never assumed consistent with a prior snapshot.
type BalanceSnapshot struct {
	Amounts map[string]*big.Int // asset symbol -> smallest-unit amount
	// NativeWei is the gas balance, observed for logging only.
	NativeWei *big.Int
	Ts        time.Time
}

func (s BalanceSnapshot) Of(a Asset) *big.Int {
	if v, ok := s.Amounts[a.Symbol]; ok && v != nil {
		return v
	}
	return big.NewInt(0)
}

// Whole converts a smallest-unit amount to whole units of the asset.
func Whole(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FromWhole converts whole units to the asset's smallest-unit integer,
// truncating any fractional dust below one unit.
func FromWhole(v decimal.Decimal, decimals int32) *big.Int {
	return v.Shift(decimals).Truncate(0).BigInt()
}

// ValueUSD prices a smallest-unit amount. Native assets are worth
// amount*price; anything else is assumed pegged to USD at parity. A zero
// price means "unknown" and collapses native valuation to 0.
func ValueUSD(amount *big.Int, a Asset, price float64) float64 {
	whole, _ := Whole(amount, a.Decimals).Float64()
	if a.Native {
		return whole * price
	}
	return whole
}
