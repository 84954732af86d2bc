// Package balance reads the treasury account's token holdings. Transient
// read failures degrade to zero balances so the loop sees "nothing tradable"
// instead of crashing.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/rebalance-bot/internal/types"
)

const erc20ABI = `[
  {"inputs":[{"internalType":"address","name":"account","type":"address"}],
   "name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`

type chainBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Reader struct {
	ec      chainBackend
	eabi    abi.ABI
	account common.Address
	assets  []types.Asset
	log     *zap.Logger
}

func NewReader(ec chainBackend, account common.Address, assets []types.Asset, log *zap.Logger) (*Reader, error) {
	eabi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Reader{ec: ec, eabi: eabi, account: account, assets: assets, log: log}, nil
}

// Snapshot fetches all tracked balances plus the native gas balance. A
// per-asset failure yields a zero amount for that asset, never an error.
func (r *Reader) Snapshot(ctx context.Context) types.BalanceSnapshot {
	snap := types.BalanceSnapshot{
		Amounts:   make(map[string]*big.Int, len(r.assets)),
		NativeWei: big.NewInt(0),
		Ts:        time.Now(),
	}

	for _, a := range r.assets {
		bal, err := r.balanceOf(ctx, a.Address)
		if err != nil {
			r.log.Warn("balance read failed, assuming zero",
				zap.String("asset", a.Symbol),
				zap.Error(err),
			)
			bal = big.NewInt(0)
		}
		snap.Amounts[a.Symbol] = bal
	}

	if wei, err := r.ec.BalanceAt(ctx, r.account, nil); err != nil {
		r.log.Warn("native balance read failed", zap.Error(err))
	} else {
		snap.NativeWei = wei
	}

	return snap
}

func (r *Reader) balanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	input, err := r.eabi.Pack("balanceOf", r.account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	res, err := r.ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	outs, err := r.eabi.Methods["balanceOf"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	bal, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", outs[0])
	}
	return bal, nil
}
