package sizer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/rebalance-bot/internal/types"
)

var (
	weth = types.Asset{Symbol: "WETH", Decimals: 18, Native: true}
	usdc = types.Asset{Symbol: "USDC", Decimals: 6}
)

func newTestSizer(t *testing.T) *Sizer {
	t.Helper()
	s, err := New(Policy{
		MinTradable: map[string]*big.Int{
			"WETH": big.NewInt(1e15),      // 0.001 WETH
			"USDC": big.NewInt(1_000_000), // 1 USDC
		},
		ReserveNative: big.NewInt(3e15), // 0.003 WETH
		FractionBps:   5000,
	})
	require.NoError(t, err)
	return s
}

func TestSize_NativeSubtractsReserveExactly(t *testing.T) {
	s := newTestSizer(t)
	// 0.01 WETH balance, 0.003 reserve: sized amount is exactly 0.007.
	amount, err := s.Size(weth, big.NewInt(1e16))
	require.NoError(t, err)
	assert.Equal(t, "7000000000000000", amount.String())
}

func TestSize_NativeBelowReserveSkips(t *testing.T) {
	s := newTestSizer(t)
	_, err := s.Size(weth, big.NewInt(2e15)) // above min, below reserve
	assert.ErrorIs(t, err, ErrReserveExceedsBalance)
}

func TestSize_NativeEqualToReserveSkips(t *testing.T) {
	s := newTestSizer(t)
	_, err := s.Size(weth, big.NewInt(3e15))
	assert.ErrorIs(t, err, ErrReserveExceedsBalance)
}

func TestSize_BelowMinimumSkips(t *testing.T) {
	s := newTestSizer(t)
	_, err := s.Size(weth, big.NewInt(1e14)) // 0.0001 WETH
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = s.Size(usdc, big.NewInt(500_000)) // 0.5 USDC
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestSize_StableUsesFraction(t *testing.T) {
	s := newTestSizer(t)
	amount, err := s.Size(usdc, big.NewInt(100_000_000)) // 100 USDC
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), amount.Int64())
}

func TestSize_FractionIntegerArithmetic(t *testing.T) {
	s := newTestSizer(t)
	// Odd balance truncates toward zero, no rounding drift.
	amount, err := s.Size(usdc, big.NewInt(3_000_001))
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), amount.Int64())
}

func TestSize_NilBalanceSkips(t *testing.T) {
	s := newTestSizer(t)
	_, err := s.Size(weth, nil)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestNew_RejectsBadFraction(t *testing.T) {
	_, err := New(Policy{FractionBps: 0})
	assert.Error(t, err)

	_, err = New(Policy{FractionBps: 10001})
	assert.Error(t, err)
}
