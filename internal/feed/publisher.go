// Package feed mirrors decision-trail events to a Redis stream for
// downstream consumers. The feed is optional; a nil publisher is a no-op.
package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/you/rebalance-bot/internal/types"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
	log    *zap.Logger
}

type Options struct {
	Addr     string
	DB       int
	Username string
	Password string
	Stream   string
}

// NewPublisher returns nil when no address is configured.
func NewPublisher(opts Options, log *zap.Logger) *Publisher {
	if opts.Addr == "" {
		return nil
	}
	stream := opts.Stream
	if stream == "" {
		stream = "rebalance:events"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		DB:       opts.DB,
		Username: opts.Username,
		Password: opts.Password,
	})
	return &Publisher{rdb: rdb, stream: stream, log: log}
}

func (p *Publisher) publish(ctx context.Context, values map[string]interface{}) {
	if p == nil {
		return
	}
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		p.log.Warn("feed publish failed", zap.Error(err))
	}
}

func (p *Publisher) OpportunityEvaluated(ctx context.Context, o types.Opportunity) {
	p.publish(ctx, map[string]interface{}{
		"event":      "opportunity_evaluated",
		"pair":       o.Pair.String(),
		"source":     o.Quote.SourceID,
		"amount_in":  o.AmountIn.String(),
		"amount_out": o.Quote.AmountOut.String(),
		"gross_usd":  o.GrossProfitUSD,
		"gas_usd":    o.GasCostUSD,
		"net_usd":    o.NetProfitUSD,
		"profit_pct": o.ProfitPct,
		"acceptable": o.Acceptable,
		"ts_ms":      o.Ts.UnixMilli(),
	})
}

func (p *Publisher) TradeExecuted(ctx context.Context, o types.Opportunity, txHash string) {
	p.publish(ctx, map[string]interface{}{
		"event":     "trade_executed",
		"pair":      o.Pair.String(),
		"source":    o.Quote.SourceID,
		"amount_in": o.AmountIn.String(),
		"net_usd":   o.NetProfitUSD,
		"tx":        txHash,
		"ts_ms":     o.Ts.UnixMilli(),
	})
}

func (p *Publisher) TradeFailed(ctx context.Context, o types.Opportunity, reason string) {
	p.publish(ctx, map[string]interface{}{
		"event":   "trade_failed",
		"pair":    o.Pair.String(),
		"net_usd": o.NetProfitUSD,
		"reason":  reason,
		"ts_ms":   o.Ts.UnixMilli(),
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
