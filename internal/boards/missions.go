package boards

import (
	"context"
	"log/slog"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// MissionSnapshot is the mission catalog with the player's completions
type MissionSnapshot struct {
	PlayerRef string              `json:"player_ref,omitempty"`
	Missions  []domain.Mission    `json:"missions"`
	Completed []domain.HistoryRow `json:"completed"`
	Error     string              `json:"error,omitempty"`
}

// MissionBoard shows the mission catalog
type MissionBoard struct {
	client *upstream.Client
	reader reader
	slot   slot[MissionSnapshot]
}

// NewMissionBoard creates a mission board
func NewMissionBoard(client *upstream.Client, notifier notify.Notifier, logger *slog.Logger) *MissionBoard {
	return &MissionBoard{
		client: client,
		reader: reader{board: NameMissions, notifier: notifier, logger: logger},
	}
}

// Load fetches the catalog and, with a player selected, their missions
func (b *MissionBoard) Load(ctx context.Context, creds domain.Credentials, playerRef string) MissionSnapshot {
	epoch := b.slot.begin()
	snap := MissionSnapshot{
		PlayerRef: playerRef,
		Missions:  []domain.Mission{},
		Completed: []domain.HistoryRow{},
	}

	var catalogErr, playerErr error
	parallel(
		func() {
			raw, err := b.client.ListMissions(ctx, creds)
			if catalogErr = err; err == nil {
				snap.Missions = normalize.Missions(raw)
			}
		},
		func() {
			if playerRef == "" {
				return
			}
			raw, err := b.client.PlayerMissions(ctx, creds, playerRef)
			if playerErr = err; err == nil {
				snap.Completed = normalize.HistoryRows(raw, domain.ResourceMissions)
			}
		},
	)

	snap.Error = b.reader.fail(ctx, catalogErr, playerErr)
	b.slot.commit(epoch, snap)
	return snap
}

// Snapshot returns the last loaded snapshot
func (b *MissionBoard) Snapshot() MissionSnapshot {
	return b.slot.get()
}
