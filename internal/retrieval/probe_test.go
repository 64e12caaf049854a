// internal/retrieval/probe_test.go
package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"helpdesk-workers/internal/common/logger"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestProbe_CachesVerdict(t *testing.T) {
	pinger := &fakePinger{}
	probe := NewAvailabilityProbe(pinger, 5*time.Minute, time.Second, logger.Nop())

	ctx := context.Background()
	assert.True(t, probe.Available(ctx))
	assert.True(t, probe.Available(ctx))
	assert.True(t, probe.Available(ctx))

	// Only the first call should hit the network inside the TTL.
	assert.Equal(t, 1, pinger.calls)
}

func TestProbe_CachesNegativeVerdict(t *testing.T) {
	pinger := &fakePinger{err: errors.New("connection refused")}
	probe := NewAvailabilityProbe(pinger, 5*time.Minute, time.Second, logger.Nop())

	ctx := context.Background()
	assert.False(t, probe.Available(ctx))
	assert.False(t, probe.Available(ctx))
	assert.Equal(t, 1, pinger.calls)
}

func TestProbe_ReprobesAfterTTL(t *testing.T) {
	pinger := &fakePinger{err: errors.New("down")}
	probe := NewAvailabilityProbe(pinger, time.Millisecond, time.Second, logger.Nop())

	ctx := context.Background()
	assert.False(t, probe.Available(ctx))

	time.Sleep(5 * time.Millisecond)
	pinger.err = nil
	assert.True(t, probe.Available(ctx))
	assert.Equal(t, 2, pinger.calls)
}

func TestProbe_RefreshBypassesCache(t *testing.T) {
	pinger := &fakePinger{}
	probe := NewAvailabilityProbe(pinger, time.Hour, time.Second, logger.Nop())

	ctx := context.Background()
	assert.True(t, probe.Available(ctx))

	pinger.err = errors.New("just went down")
	assert.True(t, probe.Available(ctx), "cached verdict still positive")
	assert.False(t, probe.Refresh(ctx), "refresh must re-ping")
	assert.False(t, probe.Available(ctx), "refresh replaces the cached verdict")
	assert.Equal(t, 2, pinger.calls)
}

func TestProbe_NilPingerNeverAvailable(t *testing.T) {
	probe := NewAvailabilityProbe(nil, time.Minute, time.Second, logger.Nop())
	assert.False(t, probe.Available(context.Background()))
	assert.False(t, probe.Refresh(context.Background()))
}
