package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DryRun bool `yaml:"dry_run"`
	// Strategy selects the profit estimator: "quote" values the traded
	// amounts, "portfolio" values the whole treasury before and after.
	Strategy string `yaml:"strategy"`

	Chain struct {
		RPCHTTP         string  `yaml:"rpc_http"`
		WalletPK        string  `yaml:"wallet_pk"` // overridden by WALLET_PK env
		Treasury        string  `yaml:"treasury"`
		GasLimitSwap    uint64  `yaml:"gas_limit_swap"`
		MaxGasPriceGwei float64 `yaml:"max_gas_price_gwei"`
	} `yaml:"chain"`

	Assets struct {
		WETH struct {
			Address  string `yaml:"address"`
			Decimals int32  `yaml:"decimals"`
		} `yaml:"weth"`
		USDC struct {
			Address  string `yaml:"address"`
			Decimals int32  `yaml:"decimals"`
		} `yaml:"usdc"`
	} `yaml:"assets"`

	Oracle struct {
		URL         string  `yaml:"url"`
		AssetID     string  `yaml:"asset_id"`
		APIKey      string  `yaml:"api_key"` // overridden by ORACLE_API_KEY env
		TTLSec      int     `yaml:"ttl_sec"`
		TimeoutMs   int     `yaml:"timeout_ms"`
		FallbackUSD float64 `yaml:"fallback_usd"`
	} `yaml:"oracle"`

	Risk struct {
		MinProfitUSD      float64 `yaml:"min_profit_usd"`
		MaxSlippageBps    int     `yaml:"max_slippage_bps"`
		GasMultiplier     float64 `yaml:"gas_multiplier"`
		RatioCheckEnabled bool    `yaml:"ratio_check_enabled"`
	} `yaml:"risk"`

	Trade struct {
		Fraction float64 `yaml:"fraction"` // share of balance committed per trade
		// Whole-unit thresholds, converted to smallest units at wiring time.
		MinTradable map[string]float64 `yaml:"min_tradable"`
		ReserveWETH float64            `yaml:"reserve_weth"`
	} `yaml:"trade"`

	Sim struct {
		Sources []string `yaml:"sources"`
		Seed    int64    `yaml:"seed"` // 0 = seed from entropy
	} `yaml:"sim"`

	Timings struct {
		CycleIntervalMs int `yaml:"cycle_interval_ms"`
		PairPauseMs     int `yaml:"pair_pause_ms"`
		QuoteTimeoutMs  int `yaml:"quote_timeout_ms"`
	} `yaml:"timings"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Stream   string `yaml:"stream"`
	} `yaml:"redis"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if pk := os.Getenv("WALLET_PK"); pk != "" {
		c.Chain.WalletPK = pk
	}
	if k := os.Getenv("ORACLE_API_KEY"); k != "" {
		c.Oracle.APIKey = k
	}
	if rpc := os.Getenv("RPC_HTTP"); rpc != "" {
		c.Chain.RPCHTTP = rpc
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Strategy == "" {
		c.Strategy = "quote"
	}
	if c.Oracle.URL == "" {
		c.Oracle.URL = "https://api.coingecko.com/api/v3/simple/price"
	}
	if c.Oracle.AssetID == "" {
		c.Oracle.AssetID = "ethereum"
	}
	if c.Oracle.TTLSec == 0 {
		c.Oracle.TTLSec = 300
	}
	if c.Oracle.TimeoutMs == 0 {
		c.Oracle.TimeoutMs = 10000
	}
	if c.Assets.WETH.Decimals == 0 {
		c.Assets.WETH.Decimals = 18
	}
	if c.Assets.USDC.Decimals == 0 {
		c.Assets.USDC.Decimals = 6
	}
	if c.Risk.GasMultiplier == 0 {
		c.Risk.GasMultiplier = 1.3
	}
	if c.Risk.MaxSlippageBps == 0 {
		c.Risk.MaxSlippageBps = 50
	}
	if c.Chain.GasLimitSwap == 0 {
		c.Chain.GasLimitSwap = 250000
	}
	if c.Chain.MaxGasPriceGwei == 0 {
		c.Chain.MaxGasPriceGwei = 30
	}
	if c.Trade.Fraction == 0 {
		c.Trade.Fraction = 0.5
	}
	if c.Trade.MinTradable == nil {
		c.Trade.MinTradable = map[string]float64{"WETH": 0.001, "USDC": 1}
	}
	if len(c.Sim.Sources) == 0 {
		c.Sim.Sources = []string{"paraswap", "uniswap", "1inch"}
	}
	if c.Timings.CycleIntervalMs == 0 {
		c.Timings.CycleIntervalMs = 15000
	}
	if c.Timings.PairPauseMs == 0 {
		c.Timings.PairPauseMs = 2000
	}
	if c.Timings.QuoteTimeoutMs == 0 {
		c.Timings.QuoteTimeoutMs = 5000
	}
}

// Validate rejects malformed numeric values at startup. A bad config is a
// fatal error, not a runtime surprise.
func (c *Config) Validate() error {
	checkNum := func(name string, v float64, allowZero bool) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("config: %s is not finite", name)
		}
		if v < 0 || (!allowZero && v == 0) {
			return fmt.Errorf("config: %s must be positive, got %v", name, v)
		}
		return nil
	}

	if c.Strategy != "quote" && c.Strategy != "portfolio" {
		return fmt.Errorf("config: strategy must be \"quote\" or \"portfolio\", got %q", c.Strategy)
	}
	if c.Chain.RPCHTTP == "" {
		return fmt.Errorf("config: chain.rpc_http is required")
	}
	if c.Chain.Treasury == "" {
		return fmt.Errorf("config: chain.treasury is required")
	}
	if c.Assets.WETH.Address == "" || c.Assets.USDC.Address == "" {
		return fmt.Errorf("config: both asset addresses are required")
	}
	if !c.DryRun && c.Chain.WalletPK == "" {
		return fmt.Errorf("config: chain.wallet_pk (or WALLET_PK env) is required unless dry_run")
	}

	if err := checkNum("risk.min_profit_usd", c.Risk.MinProfitUSD, true); err != nil {
		return err
	}
	if err := checkNum("risk.gas_multiplier", c.Risk.GasMultiplier, false); err != nil {
		return err
	}
	if err := checkNum("chain.max_gas_price_gwei", c.Chain.MaxGasPriceGwei, false); err != nil {
		return err
	}
	if err := checkNum("oracle.fallback_usd", c.Oracle.FallbackUSD, true); err != nil {
		return err
	}
	if err := checkNum("trade.reserve_weth", c.Trade.ReserveWETH, true); err != nil {
		return err
	}
	if c.Trade.Fraction <= 0 || c.Trade.Fraction > 1 || math.IsNaN(c.Trade.Fraction) {
		return fmt.Errorf("config: trade.fraction must be in (0,1], got %v", c.Trade.Fraction)
	}
	if c.Risk.MaxSlippageBps < 0 || c.Risk.MaxSlippageBps >= 10000 {
		return fmt.Errorf("config: risk.max_slippage_bps out of range: %d", c.Risk.MaxSlippageBps)
	}
	for sym, v := range c.Trade.MinTradable {
		if err := checkNum("trade.min_tradable."+sym, v, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Timings.CycleIntervalMs) * time.Millisecond
}
func (c *Config) PairPause() time.Duration {
	return time.Duration(c.Timings.PairPauseMs) * time.Millisecond
}
func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.Timings.QuoteTimeoutMs) * time.Millisecond
}
func (c *Config) OracleTTL() time.Duration {
	return time.Duration(c.Oracle.TTLSec) * time.Second
}
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutMs) * time.Millisecond
}
