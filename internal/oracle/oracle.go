// Package oracle supplies the USD reference price for the native asset with
// a short-lived cache and graceful degradation when the upstream is down.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	URL         string
	AssetID     string
	APIKey      string
	TTL         time.Duration
	Timeout     time.Duration
	FallbackUSD float64
	// Now is the time source for cache expiry; defaults to time.Now.
	Now func() time.Time
}

type Oracle struct {
	opts Options
	cli  *http.Client
	log  *zap.Logger

	mu       sync.Mutex
	cached   float64
	cachedAt time.Time
}

func New(opts Options, log *zap.Logger) *Oracle {
	if opts.TTL == 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Oracle{
		opts: opts,
		cli:  &http.Client{Timeout: opts.Timeout},
		log:  log,
	}
}

// Price returns the USD reference price and whether it came from the cache.
// It never returns an error: on upstream failure the last cached value is
// returned, or the configured fallback (possibly 0) if the cache was never
// populated. A zero price means "unknown" and downstream valuation must
// treat it as "no conversion possible".
func (o *Oracle) Price(ctx context.Context) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.opts.Now()
	if o.cached > 0 && now.Sub(o.cachedAt) < o.opts.TTL {
		return o.cached, true
	}

	px, err := o.fetch(ctx)
	if err != nil {
		if isRateLimited(err) {
			o.log.Warn("oracle rate limited, using cached price", zap.Float64("cached", o.cached))
		} else {
			o.log.Warn("oracle fetch failed, using cached price", zap.Error(err), zap.Float64("cached", o.cached))
		}
		if o.cached > 0 {
			return o.cached, true
		}
		return o.opts.FallbackUSD, false
	}

	o.cached = px
	o.cachedAt = o.opts.Now()
	return px, false
}

type rateLimitErr struct{ err error }

func (e *rateLimitErr) Error() string { return e.err.Error() }
func (e *rateLimitErr) Unwrap() error { return e.err }

func isRateLimited(err error) bool {
	_, ok := err.(*rateLimitErr)
	return ok
}

func (o *Oracle) fetch(ctx context.Context) (float64, error) {
	u := o.opts.URL
	if !strings.Contains(u, "?") {
		u += "?ids=" + url.QueryEscape(o.opts.AssetID) + "&vs_currencies=usd"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	if o.opts.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", o.opts.APIKey)
	}

	resp, err := o.cli.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		herr := fmt.Errorf("oracle: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return 0, &rateLimitErr{herr}
		}
		return 0, herr
	}

	// Upstream shape: {"<asset>":{"usd":<number>}}; treated as untrusted.
	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("oracle: decode: %w", err)
	}
	entry, ok := body[o.opts.AssetID]
	if !ok {
		return 0, fmt.Errorf("oracle: response missing asset %q", o.opts.AssetID)
	}
	px, ok := entry["usd"]
	if !ok {
		return 0, fmt.Errorf("oracle: response missing usd field for %q", o.opts.AssetID)
	}
	if px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return 0, fmt.Errorf("oracle: bad price %v", px)
	}
	return px, nil
}
