package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"icpscout/internal/domain"
	"icpscout/internal/port"
)

// ModeSupporter is implemented by providers that can only serve some
// research modes. Providers without it are assumed to serve every mode.
type ModeSupporter interface {
	SupportsMode(mode domain.ResearchMode) bool
}

// provider is one entry in a fallback chain with its rate-limit window and
// per-mode skip counts.
type provider struct {
	name   string
	oracle port.Oracle

	mu      sync.Mutex
	resetAt time.Time
	skips   map[domain.ResearchMode]int
}

func (p *provider) serves(mode domain.ResearchMode) bool {
	ms, ok := p.oracle.(ModeSupporter)
	return !ok || ms.SupportsMode(mode)
}

// limitedUntil reports the end of the provider's rate-limit window, if one is running.
func (p *provider) limitedUntil(now time.Time) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetAt, now.Before(p.resetAt)
}

func (p *provider) backOff(until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetAt = until
}

func (p *provider) skip(mode domain.ResearchMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skips[mode]++
}

// FallbackOracle asks providers in order until one answers. A provider is
// passed over while its rate-limit window runs, or when it cannot serve the
// request's research mode. It implements port.Oracle and is safe for
// concurrent use by the research workers.
type FallbackOracle struct {
	providers []*provider
	now       func() time.Time
}

// NewFallbackOracle creates a FallbackOracle from an ordered list of oracles and their names.
func NewFallbackOracle(oracles []port.Oracle, names []string) *FallbackOracle {
	f := &FallbackOracle{now: time.Now}
	for i, o := range oracles {
		f.providers = append(f.providers, &provider{
			name:   names[i],
			oracle: o,
			skips:  map[domain.ResearchMode]int{},
		})
	}
	return f
}

// SupportsMode reports whether at least one provider can serve mode.
func (f *FallbackOracle) SupportsMode(mode domain.ResearchMode) bool {
	for _, p := range f.providers {
		if p.serves(mode) {
			return true
		}
	}
	return false
}

// Skips returns, per provider name, how many requests in mode were passed
// over because the provider cannot serve that mode.
func (f *FallbackOracle) Skips(mode domain.ResearchMode) map[string]int {
	out := map[string]int{}
	for _, p := range f.providers {
		p.mu.Lock()
		if n := p.skips[mode]; n > 0 {
			out[p.name] = n
		}
		p.mu.Unlock()
	}
	return out
}

// Close closes every provider that holds resources.
func (f *FallbackOracle) Close() error {
	var errs []error
	for _, p := range f.providers {
		if c, ok := p.oracle.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (f *FallbackOracle) Judge(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	now := f.now()
	var (
		lastErr error
		tried   int
		limited = true
		retryAt time.Time
	)
	earliest := func(t time.Time) {
		if retryAt.IsZero() || t.Before(retryAt) {
			retryAt = t
		}
	}

	for _, p := range f.providers {
		if !p.serves(req.Mode) {
			p.skip(req.Mode)
			zap.L().Debug("oracle: provider does not serve research mode",
				zap.String("provider", p.name), zap.String("mode", string(req.Mode)))
			continue
		}
		if until, waiting := p.limitedUntil(now); waiting {
			zap.L().Debug("oracle: skipping rate limited provider",
				zap.String("provider", p.name), zap.Time("until", until))
			earliest(until)
			continue
		}

		tried++
		out, err := p.oracle.Judge(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		zap.L().Warn("oracle: provider failed",
			zap.String("provider", p.name), zap.String("company", req.Company), zap.Error(err))
		lastErr = err

		var rl *RateLimitError
		if errors.As(err, &rl) {
			until := now.Add(rl.RetryAfter)
			p.backOff(until)
			earliest(until)
		} else {
			limited = false
		}
	}

	switch {
	case lastErr == nil && retryAt.IsZero():
		return nil, fmt.Errorf("no oracle provider serves research mode %s", req.Mode)
	case lastErr == nil || limited:
		wait := max(retryAt.Sub(f.now()), time.Second)
		return nil, NewRateLimitError("all", errors.New("all oracle providers rate limited"), int(wait.Seconds()))
	case tried == 1:
		// a single provider answered; its error keeps its own retry class
		return nil, lastErr
	}
	return nil, fmt.Errorf("all oracle providers failed: %w", lastErr)
}
