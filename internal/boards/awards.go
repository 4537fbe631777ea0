package boards

import (
	"context"
	"log/slog"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// AwardsSnapshot is the achievement catalog, the player's achievements and
// their streaks
type AwardsSnapshot struct {
	PlayerRef    string               `json:"player_ref,omitempty"`
	Achievements []domain.Achievement `json:"achievements"`
	Earned       []domain.HistoryRow  `json:"earned"`
	Streaks      []domain.Streak      `json:"streaks"`
	Error        string               `json:"error,omitempty"`
}

// AwardsBoard shows achievements and streaks
type AwardsBoard struct {
	client    *upstream.Client
	streakIDs []string
	reader    reader
	slot      slot[AwardsSnapshot]
}

// NewAwardsBoard creates an awards board showing streakIDs
func NewAwardsBoard(client *upstream.Client, streakIDs []string, notifier notify.Notifier, logger *slog.Logger) *AwardsBoard {
	return &AwardsBoard{
		client:    client,
		streakIDs: streakIDs,
		reader:    reader{board: NameAwards, notifier: notifier, logger: logger},
	}
}

// Load fetches achievements and streaks. Streaks without a player record
// get zero progress.
func (b *AwardsBoard) Load(ctx context.Context, creds domain.Credentials, playerRef string) AwardsSnapshot {
	epoch := b.slot.begin()
	snap := AwardsSnapshot{
		PlayerRef:    playerRef,
		Achievements: []domain.Achievement{},
		Earned:       []domain.HistoryRow{},
		Streaks:      []domain.Streak{},
	}

	var (
		catalogErr, earnedErr, progressErr error
		progress                           []domain.StreakProgress
		definitions                        = make([]*domain.StreakDefinition, len(b.streakIDs))
		definitionErrs                     = make([]error, len(b.streakIDs))
	)
	fns := []func(){
		func() {
			raw, err := b.client.ListAchievements(ctx, creds)
			if catalogErr = err; err == nil {
				snap.Achievements = normalize.Achievements(raw)
			}
		},
		func() {
			if playerRef == "" {
				return
			}
			raw, err := b.client.PlayerAchievements(ctx, creds, playerRef)
			if earnedErr = err; err == nil {
				snap.Earned = normalize.HistoryRows(raw, domain.ResourceAchievements)
			}
		},
		func() {
			if playerRef == "" || len(b.streakIDs) == 0 {
				return
			}
			raw, err := b.client.PlayerStreaks(ctx, creds, playerRef)
			if progressErr = err; err == nil {
				progress = normalize.StreakProgress(raw)
			}
		},
	}
	for i, id := range b.streakIDs {
		i, id := i, id
		fns = append(fns, func() {
			raw, err := b.client.GetStreak(ctx, creds, id)
			if err != nil {
				definitionErrs[i] = err
				return
			}
			def := normalize.StreakDefinition(raw)
			if def.ID == "" {
				def.ID = id
			}
			definitions[i] = &def
		})
	}
	parallel(fns...)

	for _, def := range definitions {
		if def != nil {
			snap.Streaks = append(snap.Streaks, Streak(*def, progress))
		}
	}

	snap.Error = b.reader.fail(ctx, append([]error{catalogErr, earnedErr, progressErr}, definitionErrs...)...)
	b.slot.commit(epoch, snap)
	return snap
}

// Snapshot returns the last loaded snapshot
func (b *AwardsBoard) Snapshot() AwardsSnapshot {
	return b.slot.get()
}

// Streak pairs def with the matching progress record, synthesizing zero
// progress when the player has none
func Streak(def domain.StreakDefinition, progress []domain.StreakProgress) domain.Streak {
	for _, p := range progress {
		if p.StreakID == def.ID {
			if p.Status == "" && p.Count == 0 {
				p.Status = domain.StreakStatusNotStarted
			}
			return domain.Streak{Definition: def, Progress: p}
		}
	}
	return domain.Streak{
		Definition: def,
		Progress: domain.StreakProgress{
			StreakID: def.ID,
			Count:    0,
			Status:   domain.StreakStatusNotStarted,
		},
	}
}
