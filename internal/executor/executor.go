// Package executor submits accepted trades to the treasury contract and
// waits for confirmation. One accepted opportunity is submitted at most once.
package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/you/rebalance-bot/internal/types"
)

// Minimal ABI for the treasury's rebalance entry point.
const treasuryRebalanceABI = `[
  {"inputs":[
     {"internalType":"address","name":"tokenIn","type":"address"},
     {"internalType":"address","name":"tokenOut","type":"address"},
     {"internalType":"uint256","name":"amountIn","type":"uint256"},
     {"internalType":"uint256","name":"minAmountOut","type":"uint256"},
     {"internalType":"uint256","name":"deadline","type":"uint256"}],
   "name":"rebalance","outputs":[],
   "stateMutability":"nonpayable","type":"function"}
]`

type txBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

type Executor struct {
	ec            txBackend
	tabi          abi.ABI
	treasury      common.Address
	pk            *ecdsa.PrivateKey
	sender        common.Address
	gasLimit      uint64
	maxGasPrice   *big.Int // wei; a suggested price above this aborts
	slippageBps   int64
	confirmWindow time.Duration
	log           *zap.Logger
}

type Options struct {
	Treasury    common.Address
	WalletPKHex string
	GasLimit    uint64
	MaxGasPrice *big.Int
	SlippageBps int64
}

func New(ec txBackend, opts Options, log *zap.Logger) (*Executor, error) {
	tabi, err := abi.JSON(strings.NewReader(treasuryRebalanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse treasury abi: %w", err)
	}
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(opts.WalletPKHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}
	return &Executor{
		ec:            ec,
		tabi:          tabi,
		treasury:      opts.Treasury,
		pk:            pk,
		sender:        crypto.PubkeyToAddress(pk.PublicKey),
		gasLimit:      opts.GasLimit,
		maxGasPrice:   opts.MaxGasPrice,
		slippageBps:   opts.SlippageBps,
		confirmWindow: 3 * time.Minute,
		log:           log,
	}, nil
}

func (e *Executor) Sender() common.Address { return e.sender }

// Execute submits the trade described by the opportunity and waits for the
// receipt. The minimum acceptable output is the quoted output reduced by the
// configured slippage allowance.
func (e *Executor) Execute(ctx context.Context, opp types.Opportunity) (string, error) {
	if gp, err := e.ec.SuggestGasPrice(ctx); err == nil && e.maxGasPrice != nil && gp.Cmp(e.maxGasPrice) > 0 {
		return "", fmt.Errorf("gas price %s above ceiling %s", gp.String(), e.maxGasPrice.String())
	}

	minOut := new(big.Int).Mul(opp.Quote.AmountOut, big.NewInt(10000-e.slippageBps))
	minOut.Div(minOut, big.NewInt(10000))
	deadline := big.NewInt(time.Now().Add(2 * time.Minute).Unix())

	input, err := e.tabi.Pack("rebalance",
		opp.Pair.In.Address, opp.Pair.Out.Address, opp.AmountIn, minOut, deadline)
	if err != nil {
		return "", fmt.Errorf("pack rebalance: %w", err)
	}

	signedTx, err := e.signTx(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := e.ec.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	hash := signedTx.Hash().Hex()
	e.log.Info("rebalance submitted",
		zap.String("tx", hash),
		zap.String("pair", opp.Pair.String()),
		zap.String("amount_in", opp.AmountIn.String()),
		zap.String("min_out", minOut.String()),
	)

	wctx, cancel := context.WithTimeout(ctx, e.confirmWindow)
	defer cancel()
	receipt, err := bind.WaitMined(wctx, e.ec, signedTx)
	if err != nil {
		return hash, fmt.Errorf("await confirmation: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return hash, fmt.Errorf("rebalance reverted in block %d", receipt.BlockNumber.Uint64())
	}
	return hash, nil
}

func (e *Executor) signTx(ctx context.Context, input []byte) (*ethtypes.Transaction, error) {
	chainID, err := e.ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := e.ec.PendingNonceAt(ctx, e.sender)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasTipCap, err := e.ec.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	header, err := e.ec.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		return nil, fmt.Errorf("get header/base fee: %w", err)
	}
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(2)),
		gasTipCap,
	)

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       e.gasLimit,
		To:        &e.treasury,
		Value:     big.NewInt(0),
		Data:      input,
	})
	return ethtypes.SignTx(tx, ethtypes.NewLondonSigner(chainID), e.pk)
}
