package boards

import (
	"context"
	"log/slog"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// LeaderboardSnapshot is the ranked view of the configured leaderboard
type LeaderboardSnapshot struct {
	ID      string                    `json:"id"`
	Entries []domain.LeaderboardEntry `json:"entries"`
	Error   string                    `json:"error,omitempty"`
}

// Leaderboard shows one leaderboard chosen by configuration
type Leaderboard struct {
	client *upstream.Client
	id     string
	reader reader
	slot   slot[LeaderboardSnapshot]
}

// NewLeaderboard creates a leaderboard view for id
func NewLeaderboard(client *upstream.Client, id string, notifier notify.Notifier, logger *slog.Logger) *Leaderboard {
	return &Leaderboard{
		client: client,
		id:     id,
		reader: reader{board: NameLeaderboard, notifier: notifier, logger: logger},
	}
}

// Load fetches the leaderboard entries
func (b *Leaderboard) Load(ctx context.Context, creds domain.Credentials) LeaderboardSnapshot {
	epoch := b.slot.begin()
	snap := LeaderboardSnapshot{ID: b.id, Entries: []domain.LeaderboardEntry{}}

	raw, err := b.client.GetLeaderboard(ctx, creds, b.id)
	if err == nil {
		snap.Entries = normalize.LeaderboardEntries(raw)
	}
	snap.Error = b.reader.fail(ctx, err)
	b.slot.commit(epoch, snap)
	return snap
}

// Snapshot returns the last loaded snapshot
func (b *Leaderboard) Snapshot() LeaderboardSnapshot {
	return b.slot.get()
}
