// Package sizer derives the trade input amount from current balances and
// policy. All amount arithmetic stays in integer smallest units.
package sizer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/you/rebalance-bot/internal/types"
)

var (
	// ErrBelowMinimum means the balance is under the per-asset tradable floor.
	ErrBelowMinimum = errors.New("balance below tradable minimum")

	// ErrReserveExceedsBalance means the native safety reserve leaves nothing
	// to trade.
	ErrReserveExceedsBalance = errors.New("reserve exceeds balance")
)

type Policy struct {
	// MinTradable holds per-asset floors in smallest units.
	MinTradable map[string]*big.Int
	// ReserveNative is withheld from native-asset trades to guarantee funds
	// for execution cost, in smallest units.
	ReserveNative *big.Int
	// FractionBps is the share of balance committed per non-native trade,
	// in basis points.
	FractionBps int64
}

type Sizer struct {
	policy Policy
}

func New(policy Policy) (*Sizer, error) {
	if policy.FractionBps <= 0 || policy.FractionBps > 10000 {
		return nil, fmt.Errorf("sizer: fraction_bps out of range: %d", policy.FractionBps)
	}
	if policy.ReserveNative == nil {
		policy.ReserveNative = big.NewInt(0)
	}
	return &Sizer{policy: policy}, nil
}

// Size returns the input amount for a trade out of the given asset, or a
// skip reason. Native assets commit balance minus the reserve; others commit
// the policy fraction with no reserve.
func (s *Sizer) Size(asset types.Asset, balance *big.Int) (*big.Int, error) {
	if balance == nil {
		balance = big.NewInt(0)
	}
	if min, ok := s.policy.MinTradable[asset.Symbol]; ok && balance.Cmp(min) < 0 {
		return nil, fmt.Errorf("%s: have %s, need %s: %w",
			asset.Symbol, balance.String(), min.String(), ErrBelowMinimum)
	}

	if asset.Native {
		amount := new(big.Int).Sub(balance, s.policy.ReserveNative)
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("%s: balance %s, reserve %s: %w",
				asset.Symbol, balance.String(), s.policy.ReserveNative.String(), ErrReserveExceedsBalance)
		}
		return amount, nil
	}

	amount := new(big.Int).Mul(balance, big.NewInt(s.policy.FractionBps))
	amount.Div(amount, big.NewInt(10000))
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s: sized amount is zero: %w", asset.Symbol, ErrBelowMinimum)
	}
	return amount, nil
}
