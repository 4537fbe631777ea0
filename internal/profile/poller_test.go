package profile

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/player-console/internal/domain"
)

func TestPollerAppliesUpdates(t *testing.T) {
	applied := make(chan domain.PlayerProfile, 10)
	fetch := func(ctx context.Context, ref string) (domain.PlayerProfile, error) {
		return domain.PlayerProfile{PlayerRef: ref, Points: 7}, nil
	}
	apply := func(ref string, latest domain.PlayerProfile) bool {
		applied <- latest
		return true
	}

	p := NewPoller(5*time.Millisecond, fetch, apply, testLogger)
	p.Start(1, "p1")
	defer p.Stop(1)

	select {
	case got := <-applied:
		if got.PlayerRef != "p1" || got.Points != 7 {
			t.Errorf("applied = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no poll applied within 1s")
	}
}

func TestPollerNeverOverlaps(t *testing.T) {
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		ticks    atomic.Int32
	)
	fetch := func(ctx context.Context, ref string) (domain.PlayerProfile, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		ticks.Add(1)
		// slower than the interval
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
		}
		return domain.PlayerProfile{}, nil
	}

	p := NewPoller(time.Millisecond, fetch, func(string, domain.PlayerProfile) bool { return true }, testLogger)
	p.Start(1, "p1")
	time.Sleep(150 * time.Millisecond)
	p.Stop(1)

	if maxSeen.Load() > 1 {
		t.Errorf("max concurrent ticks = %d, want 1", maxSeen.Load())
	}
	// 150ms of 20ms ticks stays well under 10 unless ticks overlap
	if n := ticks.Load(); n == 0 || n > 10 {
		t.Errorf("ticks = %d, want between 1 and 10", n)
	}
}

func TestPollerStopHaltsTicks(t *testing.T) {
	var ticks atomic.Int32
	fetch := func(ctx context.Context, ref string) (domain.PlayerProfile, error) {
		ticks.Add(1)
		return domain.PlayerProfile{}, nil
	}

	p := NewPoller(2*time.Millisecond, fetch, func(string, domain.PlayerProfile) bool { return true }, testLogger)
	p.Start(1, "p1")
	time.Sleep(20 * time.Millisecond)
	p.Stop(1)

	if _, active := p.Active(); active {
		t.Error("Active() = true after Stop")
	}
	stopped := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != stopped {
		t.Errorf("ticks continued after Stop: %d -> %d", stopped, ticks.Load())
	}
}

func TestPollerRestartSwitchesPlayer(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	fetch := func(ctx context.Context, ref string) (domain.PlayerProfile, error) {
		mu.Lock()
		seen[ref]++
		mu.Unlock()
		return domain.PlayerProfile{PlayerRef: ref}, nil
	}

	p := NewPoller(2*time.Millisecond, fetch, func(string, domain.PlayerProfile) bool { return true }, testLogger)
	p.Start(1, "p1")
	time.Sleep(15 * time.Millisecond)
	p.Start(2, "p2")

	mu.Lock()
	before := seen["p1"]
	mu.Unlock()

	time.Sleep(15 * time.Millisecond)
	p.Stop(2)

	mu.Lock()
	defer mu.Unlock()
	if seen["p1"] != before {
		t.Errorf("p1 polled after switching: %d -> %d", before, seen["p1"])
	}
	if seen["p2"] == 0 {
		t.Error("p2 never polled")
	}
	if ref, _ := p.Active(); ref != "" {
		t.Errorf("Active() ref = %q after Stop", ref)
	}
}

func TestPollerRefusesOlderGeneration(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	fetch := func(ctx context.Context, ref string) (domain.PlayerProfile, error) {
		mu.Lock()
		seen[ref]++
		mu.Unlock()
		return domain.PlayerProfile{PlayerRef: ref}, nil
	}

	p := NewPoller(2*time.Millisecond, fetch, func(string, domain.PlayerProfile) bool { return true }, testLogger)
	// generation 2 switched away before generation 1 got to start
	p.Stop(2)
	if p.Start(1, "p1") {
		t.Fatal("Start(1) accepted after Stop(2)")
	}
	if _, active := p.Active(); active {
		t.Fatal("Active() = true after a refused start")
	}

	if !p.Start(2, "p2") {
		t.Fatal("Start(2) refused")
	}
	if p.Start(1, "p1") {
		t.Fatal("Start(1) accepted while generation 2 polls")
	}
	time.Sleep(15 * time.Millisecond)
	p.Stop(2)

	mu.Lock()
	defer mu.Unlock()
	if seen["p1"] != 0 {
		t.Errorf("p1 polled %d times, want 0", seen["p1"])
	}
	if seen["p2"] == 0 {
		t.Error("p2 never polled")
	}
}
