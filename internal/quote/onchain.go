package quote

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/rebalance-bot/internal/types"
)

// Minimal ABI for the treasury's quoting view.
const treasuryQuoteABI = `[
  {"inputs":[
     {"internalType":"address","name":"tokenIn","type":"address"},
     {"internalType":"address","name":"tokenOut","type":"address"},
     {"internalType":"uint256","name":"amountIn","type":"uint256"}],
   "name":"getSwapQuote","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "stateMutability":"view","type":"function"}
]`

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TreasurySource quotes a swap against the treasury contract itself via
// eth_call. Execution cost is the configured swap gas limit; the contract
// has no per-quote gas figure.
type TreasurySource struct {
	ec       contractCaller
	tabi     abi.ABI
	treasury common.Address
	gasLimit uint64
	log      *zap.Logger
}

func NewTreasurySource(ec contractCaller, treasury common.Address, gasLimit uint64, log *zap.Logger) (*TreasurySource, error) {
	tabi, err := abi.JSON(strings.NewReader(treasuryQuoteABI))
	if err != nil {
		return nil, fmt.Errorf("parse treasury abi: %w", err)
	}
	return &TreasurySource{
		ec:       ec,
		tabi:     tabi,
		treasury: treasury,
		gasLimit: gasLimit,
		log:      log,
	}, nil
}

func (s *TreasurySource) ID() string { return "treasury" }

func (s *TreasurySource) Quote(ctx context.Context, pair types.Pair, amountIn *big.Int) (*types.Quote, error) {
	input, err := s.tabi.Pack("getSwapQuote", pair.In.Address, pair.Out.Address, amountIn)
	if err != nil {
		return nil, fmt.Errorf("pack getSwapQuote: %w", err)
	}

	res, err := s.ec.CallContract(ctx, ethereum.CallMsg{To: &s.treasury, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getSwapQuote: %w", err)
	}
	outs, err := s.tabi.Methods["getSwapQuote"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		return nil, fmt.Errorf("decode getSwapQuote: %w", err)
	}
	amountOut, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getSwapQuote output type %T", outs[0])
	}

	s.log.Debug("treasury quote",
		zap.String("pair", pair.String()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)

	return &types.Quote{
		SourceID:    s.ID(),
		Pair:        pair,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   amountOut,
		GasEstimate: s.gasLimit,
	}, nil
}
