package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/player-console/internal/domain"
)

// FetchFunc returns the latest profile for ref
type FetchFunc func(ctx context.Context, ref string) (domain.PlayerProfile, error)

// ApplyFunc merges a polled profile into the active one. It reports false
// when ref is no longer the active player.
type ApplyFunc func(ref string, latest domain.PlayerProfile) bool

// Poller periodically refreshes one player's profile. The next tick is
// scheduled only after the previous one finishes, so a slow tick delays
// the schedule instead of overlapping or queueing.
//
// Start and Stop carry the caller's selection generation. Once a
// generation has been seen, Starts for older generations are refused.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	apply    ApplyFunc
	logger   *slog.Logger

	mu     sync.Mutex
	fence  uint64
	ref    string
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewPoller creates a poller. It does nothing until Start.
func NewPoller(interval time.Duration, fetch FetchFunc, apply ApplyFunc, logger *slog.Logger) *Poller {
	return &Poller{
		interval: interval,
		fetch:    fetch,
		apply:    apply,
		logger:   logger,
	}
}

// Start begins polling ref for generation gen, replacing any previous
// cycle. It reports false, and changes nothing, when a newer generation
// has already started or stopped the poller.
func (p *Poller) Start(gen uint64, ref string) bool {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	if gen < p.fence {
		p.mu.Unlock()
		cancel()
		p.logger.Debug("refused stale profile polling", "player_ref", ref, "generation", gen)
		return false
	}
	p.fence = gen
	prevCancel, prevDone := p.cancel, p.doneCh
	p.ref, p.cancel, p.doneCh = ref, cancel, done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	p.logger.Debug("profile polling started", "player_ref", ref, "interval", p.interval)
	go p.run(ctx, ref, done)
	return true
}

// Stop ends the current cycle for generation gen and waits for an
// in-flight tick to return
func (p *Poller) Stop(gen uint64) {
	p.mu.Lock()
	if gen > p.fence {
		p.fence = gen
	}
	cancel, done, ref := p.cancel, p.doneCh, p.ref
	p.cancel, p.doneCh, p.ref = nil, nil, ""
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Debug("profile polling stopped", "player_ref", ref)
}

// Active returns the ref being polled
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref, p.cancel != nil
}

// run is the polling loop
func (p *Poller) run(ctx context.Context, ref string, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.tick(ctx, ref)
			timer.Reset(p.interval)
		}
	}
}

func (p *Poller) tick(ctx context.Context, ref string) {
	latest, err := p.fetch(ctx, ref)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Warn("profile poll failed", "player_ref", ref, "error", err)
		return
	}
	if !p.apply(ref, latest) {
		p.logger.Debug("discarded stale profile poll", "player_ref", ref)
	}
}
