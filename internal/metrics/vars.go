package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReferencePriceUSD = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rebalance_reference_price_usd",
		Help: "USD reference price of the native asset",
	})

	NetProfitUSD = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rebalance_net_profit_usd",
		Help: "Net USD profit of the last evaluated opportunity per pair",
	}, []string{"pair"})

	BalanceWhole = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rebalance_balance_whole_units",
		Help: "Observed balance per asset in whole units",
	}, []string{"asset"})

	QuoteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rebalance_quote_errors_total",
		Help: "Number of quote source failures",
	})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rebalance_quote_latency_seconds",
		Help:    "Time to obtain a quote from one source",
		Buckets: prometheus.DefBuckets,
	})

	TradesExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rebalance_trades_executed_total",
		Help: "Number of successfully executed trades",
	})

	TradesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rebalance_trades_failed_total",
		Help: "Number of failed trade executions",
	})

	Cycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rebalance_cycles_total",
		Help: "Number of completed monitoring cycles",
	})
)

func init() {
	prometheus.MustRegister(
		ReferencePriceUSD,
		NetProfitUSD,
		BalanceWhole,
		QuoteErrors,
		QuoteLatency,
		TradesExecuted,
		TradesFailed,
		Cycles,
	)
}
