// Package retrieval answers "which articles help with this ticket". It layers
// a managed search backend over a local similarity index and degrades through
// search tiers instead of failing.
package retrieval

import (
	"context"
	"sync"
	"time"

	"helpdesk-workers/internal/common/logger"
)

// Pinger is the slice of the search backend the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AvailabilityProbe caches the backend health check so the hot path does not
// pay a network round trip per retrieval. The cached verdict is reused until
// the TTL lapses.
type AvailabilityProbe struct {
	pinger  Pinger
	ttl     time.Duration
	timeout time.Duration
	logger  logger.Logger

	mu          sync.Mutex
	lastChecked time.Time
	cached      bool
}

func NewAvailabilityProbe(pinger Pinger, ttl, timeout time.Duration, log logger.Logger) *AvailabilityProbe {
	return &AvailabilityProbe{
		pinger:  pinger,
		ttl:     ttl,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "availability-probe"}),
	}
}

// Available reports whether the managed backend should be tried. A nil pinger
// means the backend was never configured.
func (p *AvailabilityProbe) Available(ctx context.Context) bool {
	if p.pinger == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.lastChecked.IsZero() && time.Since(p.lastChecked) < p.ttl {
		return p.cached
	}
	return p.refreshLocked(ctx)
}

// Refresh forces a fresh ping regardless of the cached verdict.
func (p *AvailabilityProbe) Refresh(ctx context.Context) bool {
	if p.pinger == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *AvailabilityProbe) refreshLocked(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(pingCtx)
	p.lastChecked = time.Now()
	p.cached = err == nil
	if err != nil {
		p.logger.Warn("search backend unreachable", map[string]interface{}{
			"error":     err.Error(),
			"recheckIn": p.ttl.String(),
		})
	}
	return p.cached
}
