// Package boards holds the read-mostly views of the console. Each board
// fetches only when activated and keeps its last snapshot.
package boards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/player-console/internal/config"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// Name identifies a board
type Name string

const (
	NameMissions    Name = "missions"
	NamePrizes      Name = "prizes"
	NameLeaderboard Name = "leaderboard"
	NameAwards      Name = "awards"
	NameEvents      Name = "events"
)

// Names lists every board in display order
var Names = []Name{NameMissions, NamePrizes, NameLeaderboard, NameAwards, NameEvents}

// ParseName validates a board name
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownBoard, s)
}

// RefreshFunc resynchronizes profile and history after a mutating action
type RefreshFunc func(ctx context.Context)

// Set is the collection of boards sharing one client and notifier
type Set struct {
	Missions    *MissionBoard
	Prizes      *PrizeBoard
	Leaderboard *Leaderboard
	Awards      *AwardsBoard
	Events      *EventBoard
}

// NewSet creates every board. The leaderboard id and streak ids come from
// the upstream configuration.
func NewSet(client *upstream.Client, cfg *config.UpstreamConfig, notifier notify.Notifier, logger *slog.Logger) *Set {
	return &Set{
		Missions:    NewMissionBoard(client, notifier, logger),
		Prizes:      NewPrizeBoard(client, notifier, logger),
		Leaderboard: NewLeaderboard(client, cfg.LeaderboardID, notifier, logger),
		Awards:      NewAwardsBoard(client, cfg.StreakIDs, notifier, logger),
		Events:      NewEventBoard(client, notifier, logger),
	}
}

// OnRefresh sets the hook the mutating boards run after a success
func (s *Set) OnRefresh(fn RefreshFunc) {
	s.Prizes.OnRefresh(fn)
	s.Events.OnRefresh(fn)
}

// Activate fetches one board and returns its snapshot
func (s *Set) Activate(ctx context.Context, name Name, creds domain.Credentials, playerRef string) (any, error) {
	switch name {
	case NameMissions:
		return s.Missions.Load(ctx, creds, playerRef), nil
	case NamePrizes:
		return s.Prizes.Load(ctx, creds, playerRef), nil
	case NameLeaderboard:
		return s.Leaderboard.Load(ctx, creds), nil
	case NameAwards:
		return s.Awards.Load(ctx, creds, playerRef), nil
	case NameEvents:
		return s.Events.Load(ctx, creds), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBoard, name)
	}
}

// Snapshot returns a board's last snapshot without fetching
func (s *Set) Snapshot(name Name) (any, error) {
	switch name {
	case NameMissions:
		return s.Missions.Snapshot(), nil
	case NamePrizes:
		return s.Prizes.Snapshot(), nil
	case NameLeaderboard:
		return s.Leaderboard.Snapshot(), nil
	case NameAwards:
		return s.Awards.Snapshot(), nil
	case NameEvents:
		return s.Events.Snapshot(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBoard, name)
	}
}

// ResetPlayer drops every player-scoped snapshot and any load still in
// flight for the previous player
func (s *Set) ResetPlayer() {
	s.Missions.slot.reset()
	s.Prizes.slot.reset()
	s.Awards.slot.reset()
}

// slot holds a board snapshot. Loads begun before a reset are not
// committed.
type slot[T any] struct {
	mu    sync.Mutex
	epoch uint64
	value T
}

func (s *slot[T]) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *slot[T]) commit(epoch uint64, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.value = v
	return true
}

func (s *slot[T]) get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.epoch++
	s.value = zero
}

// reader notifies once per failed board load
type reader struct {
	board    Name
	notifier notify.Notifier
	logger   *slog.Logger
}

// fail reports the first error of a load. It stays silent once ctx is done.
func (r reader) fail(ctx context.Context, errs ...error) string {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ""
		}
		msg := domain.UserMessage(err)
		r.logger.Warn("board fetch failed", "board", r.board, "error", err)
		r.notifier.Notify(notify.KindError, fmt.Sprintf("Failed to load %s: %s", r.board, msg))
		return msg
	}
	return ""
}

// mutate reports the outcome of a mutating call. Failures surface exactly
// the server message.
func (r reader) mutate(err error, success string) {
	if err != nil {
		r.notifier.Notify(notify.KindError, domain.UserMessage(err))
		return
	}
	r.notifier.Notify(notify.KindSuccess, success)
}

// parallel runs fns concurrently and waits for all of them
func parallel(fns ...func()) {
	var wg sync.WaitGroup
	for _, fn := range fns {
		wg.Add(1)
		go func(fn func()) {
			defer wg.Done()
			fn()
		}(fn)
	}
	wg.Wait()
}
