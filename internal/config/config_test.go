package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
dry_run: true
chain:
  rpc_http: "http://localhost:8545"
  treasury: "0x00000000000000000000000000000000000000aa"
assets:
  weth:
    address: "0x00000000000000000000000000000000000000bb"
  usdc:
    address: "0x00000000000000000000000000000000000000cc"
risk:
  min_profit_usd: 15
trade:
  reserve_weth: 0.003
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "quote", cfg.Strategy)
	assert.Equal(t, 15.0, cfg.Risk.MinProfitUSD)
	assert.Equal(t, 1.3, cfg.Risk.GasMultiplier)
	assert.Equal(t, 0.5, cfg.Trade.Fraction)
	assert.Equal(t, int32(18), cfg.Assets.WETH.Decimals)
	assert.Equal(t, int32(6), cfg.Assets.USDC.Decimals)
	assert.Equal(t, []string{"paraswap", "uniswap", "1inch"}, cfg.Sim.Sources)
	assert.Equal(t, 15000, cfg.Timings.CycleIntervalMs)
	assert.Equal(t, 2000, cfg.Timings.PairPauseMs)
	assert.Equal(t, 300, cfg.Oracle.TTLSec)
	assert.Equal(t, 0.001, cfg.Trade.MinTradable["WETH"])
}

func TestLoad_EnvOverridesSecret(t *testing.T) {
	t.Setenv("WALLET_PK", "deadbeef")
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", cfg.Chain.WalletPK)
}

func TestLoad_MissingRPCFatal(t *testing.T) {
	body := `
dry_run: true
chain:
  treasury: "0xaa"
assets:
  weth: {address: "0xbb"}
  usdc: {address: "0xcc"}
`
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "rpc_http")
}

func TestLoad_MissingWalletKeyFatalUnlessDryRun(t *testing.T) {
	t.Setenv("WALLET_PK", "")
	body := `
chain:
  rpc_http: "http://localhost:8545"
  treasury: "0xaa"
assets:
  weth: {address: "0xbb"}
  usdc: {address: "0xcc"}
`
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "wallet_pk")
}

func TestValidate_RejectsNonFinite(t *testing.T) {
	body := validYAML + `
oracle:
  fallback_usd: .nan
`
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "not finite")
}

func TestValidate_RejectsNegativeMinProfit(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.Risk.MinProfitUSD = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_FractionRange(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Trade.Fraction = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Trade.Fraction = 0.5
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadStrategy(t *testing.T) {
	body := validYAML + `
strategy: "yolo"
`
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "strategy")
}

func TestDurationAccessors(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, "15s", cfg.CycleInterval().String())
	assert.Equal(t, "2s", cfg.PairPause().String())
	assert.Equal(t, "5s", cfg.QuoteTimeout().String())
	assert.Equal(t, "5m0s", cfg.OracleTTL().String())
}
