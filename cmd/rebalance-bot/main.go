package main

import (
	"context"
	"flag"
	"math/big"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/rebalance-bot/internal/balance"
	"github.com/you/rebalance-bot/internal/config"
	"github.com/you/rebalance-bot/internal/engine"
	"github.com/you/rebalance-bot/internal/executor"
	"github.com/you/rebalance-bot/internal/feed"
	"github.com/you/rebalance-bot/internal/metrics"
	"github.com/you/rebalance-bot/internal/oracle"
	"github.com/you/rebalance-bot/internal/profit"
	"github.com/you/rebalance-bot/internal/quote"
	"github.com/you/rebalance-bot/internal/sizer"
	"github.com/you/rebalance-bot/internal/types"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("received signal, shutting down...")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial rpc failed", zap.Error(err))
	}
	defer ec.Close()

	weth := types.Asset{
		Symbol:   "WETH",
		Address:  common.HexToAddress(cfg.Assets.WETH.Address),
		Decimals: cfg.Assets.WETH.Decimals,
		Native:   true,
	}
	usdc := types.Asset{
		Symbol:   "USDC",
		Address:  common.HexToAddress(cfg.Assets.USDC.Address),
		Decimals: cfg.Assets.USDC.Decimals,
	}
	pairs := []types.Pair{
		{In: weth, Out: usdc},
		{In: usdc, Out: weth},
	}
	treasury := common.HexToAddress(cfg.Chain.Treasury)

	px := oracle.New(oracle.Options{
		URL:         cfg.Oracle.URL,
		AssetID:     cfg.Oracle.AssetID,
		APIKey:      cfg.Oracle.APIKey,
		TTL:         cfg.OracleTTL(),
		Timeout:     cfg.OracleTimeout(),
		FallbackUSD: cfg.Oracle.FallbackUSD,
	}, logger)

	onchain, err := quote.NewTreasurySource(ec, treasury, cfg.Chain.GasLimitSwap, logger)
	if err != nil {
		logger.Fatal("treasury quote source init failed", zap.Error(err))
	}
	sources := []quote.Source{onchain}

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	priceFn := func(ctx context.Context) float64 {
		p, _ := px.Price(ctx)
		return p
	}
	for i, id := range cfg.Sim.Sources {
		rnd := rand.New(rand.NewSource(seed + int64(i)))
		sources = append(sources, quote.NewSimulatedSource(id, priceFn, rnd))
	}
	provider := quote.NewProvider(sources, cfg.QuoteTimeout(), logger)

	reader, err := balance.NewReader(ec, treasury, []types.Asset{weth, usdc}, logger)
	if err != nil {
		logger.Fatal("balance reader init failed", zap.Error(err))
	}

	minTradable := make(map[string]*big.Int, len(cfg.Trade.MinTradable))
	decimalsOf := map[string]int32{weth.Symbol: weth.Decimals, usdc.Symbol: usdc.Decimals}
	for sym, v := range cfg.Trade.MinTradable {
		dec, ok := decimalsOf[sym]
		if !ok {
			logger.Fatal("min_tradable references unknown asset", zap.String("asset", sym))
		}
		minTradable[sym] = types.FromWhole(decimal.NewFromFloat(v), dec)
	}
	gate, err := sizer.New(sizer.Policy{
		MinTradable:   minTradable,
		ReserveNative: types.FromWhole(decimal.NewFromFloat(cfg.Trade.ReserveWETH), weth.Decimals),
		FractionBps:   int64(cfg.Trade.Fraction * 10000),
	})
	if err != nil {
		logger.Fatal("sizer init failed", zap.Error(err))
	}

	var estimator profit.Estimator
	if cfg.Strategy == "portfolio" {
		estimator = &profit.PortfolioEstimator{GasMultiplier: cfg.Risk.GasMultiplier}
	} else {
		estimator = &profit.QuoteEstimator{GasMultiplier: cfg.Risk.GasMultiplier}
	}

	ratio := profit.AlwaysRebalance
	if cfg.Risk.RatioCheckEnabled {
		ratio = profit.ImprovesRatio
	}
	evaluator := profit.NewEvaluator(cfg.Risk.MinProfitUSD, ratio)

	var submitter engine.Submitter
	if !cfg.DryRun {
		maxGasWei := types.FromWhole(decimal.NewFromFloat(cfg.Chain.MaxGasPriceGwei), 9)
		exec, err := executor.New(ec, executor.Options{
			Treasury:    treasury,
			WalletPKHex: cfg.Chain.WalletPK,
			GasLimit:    cfg.Chain.GasLimitSwap,
			MaxGasPrice: maxGasWei,
			SlippageBps: int64(cfg.Risk.MaxSlippageBps),
		}, logger)
		if err != nil {
			logger.Fatal("executor init failed", zap.Error(err))
		}
		submitter = exec
	}

	pub := feed.NewPublisher(feed.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		Stream:   cfg.Redis.Stream,
	}, logger)
	defer pub.Close()

	logger.Info("rebalance bot starting",
		zap.String("strategy", cfg.Strategy),
		zap.Float64("min_profit_usd", cfg.Risk.MinProfitUSD),
		zap.Int("max_slippage_bps", cfg.Risk.MaxSlippageBps),
		zap.Duration("cycle_interval", cfg.CycleInterval()),
		zap.Bool("ratio_check", cfg.Risk.RatioCheckEnabled),
		zap.Bool("dry_run", cfg.DryRun),
	)

	eng := engine.New(engine.Deps{
		Pairs:     pairs,
		Balances:  reader,
		Quotes:    provider,
		Sizer:     gate,
		Estimator: estimator,
		Evaluator: evaluator,
		Submitter: submitter,
		Gas:       ec,
		Oracle:    px,
		Feed:      pub,
		Interval:  cfg.CycleInterval(),
		PairPause: cfg.PairPause(),
		DryRun:    cfg.DryRun,
	}, logger)

	eng.Run(ctx)
}
