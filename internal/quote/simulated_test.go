package quote

import (
	"context"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rebalance-bot/internal/types"
)

func fixedPrice(px float64) PriceFunc {
	return func(context.Context) float64 { return px }
}

func TestSimulated_DeterministicWithSeed(t *testing.T) {
	amountIn := big.NewInt(7_000_000_000_000_000) // 0.007 WETH

	q1, err := NewSimulatedSource("paraswap", fixedPrice(3000), rand.New(rand.NewSource(42))).
		Quote(context.Background(), testPair, amountIn)
	require.NoError(t, err)
	q2, err := NewSimulatedSource("paraswap", fixedPrice(3000), rand.New(rand.NewSource(42))).
		Quote(context.Background(), testPair, amountIn)
	require.NoError(t, err)

	assert.Equal(t, q1.AmountOut.String(), q2.AmountOut.String())
	assert.Equal(t, q1.GasEstimate, q2.GasEstimate)
}

func TestSimulated_OutputWithinSpreadBounds(t *testing.T) {
	// spread ∈ [0.997, 1.003), fluctuation ∈ [0.995, 1.005): output stays
	// within ±1% of the no-spread conversion.
	amountIn := big.NewInt(1e18) // 1 WETH
	src := NewSimulatedSource("uniswap", fixedPrice(3000), rand.New(rand.NewSource(7)))

	for i := 0; i < 50; i++ {
		q, err := src.Quote(context.Background(), testPair, amountIn)
		require.NoError(t, err)
		out := q.AmountOut.Int64() // USDC, 6 decimals
		assert.Greater(t, out, int64(2_960_000_000))
		assert.Less(t, out, int64(3_030_000_000))
		assert.GreaterOrEqual(t, q.GasEstimate, uint64(180000))
		assert.Less(t, q.GasEstimate, uint64(220000))
	}
}

func TestSimulated_ReverseDirection(t *testing.T) {
	reverse := types.Pair{In: testUSDC, Out: testWETH}
	src := NewSimulatedSource("1inch", fixedPrice(3000), rand.New(rand.NewSource(1)))

	q, err := src.Quote(context.Background(), reverse, big.NewInt(3_000_000_000)) // 3000 USDC
	require.NoError(t, err)
	// ~1 WETH give or take spread.
	out := new(big.Int).Div(q.AmountOut, big.NewInt(1e14)).Int64() // 1e-4 WETH units
	assert.Greater(t, out, int64(9_800))
	assert.Less(t, out, int64(10_100))
}

func TestSimulated_UnsupportedPair(t *testing.T) {
	both := types.Pair{In: testUSDC, Out: types.Asset{Symbol: "DAI", Decimals: 18}}
	src := NewSimulatedSource("paraswap", fixedPrice(3000), rand.New(rand.NewSource(1)))

	_, err := src.Quote(context.Background(), both, big.NewInt(1_000_000))
	assert.ErrorIs(t, err, ErrUnsupportedPair)
}

func TestSimulated_NoPriceNoQuote(t *testing.T) {
	src := NewSimulatedSource("paraswap", fixedPrice(0), rand.New(rand.NewSource(1)))
	_, err := src.Quote(context.Background(), testPair, big.NewInt(1e18))
	assert.Error(t, err)
}
