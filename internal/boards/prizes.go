package boards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// PrizeSnapshot is the prize catalog with the player's claims
type PrizeSnapshot struct {
	PlayerRef string              `json:"player_ref,omitempty"`
	Prizes    []domain.Prize      `json:"prizes"`
	Claimed   []domain.HistoryRow `json:"claimed"`
	Error     string              `json:"error,omitempty"`
}

// PrizeBoard shows the prize catalog and claims prizes
type PrizeBoard struct {
	client *upstream.Client
	reader reader
	slot   slot[PrizeSnapshot]

	mu        sync.Mutex
	onRefresh RefreshFunc
}

// NewPrizeBoard creates a prize board
func NewPrizeBoard(client *upstream.Client, notifier notify.Notifier, logger *slog.Logger) *PrizeBoard {
	return &PrizeBoard{
		client: client,
		reader: reader{board: NamePrizes, notifier: notifier, logger: logger},
	}
}

// OnRefresh sets the hook run after a successful claim
func (b *PrizeBoard) OnRefresh(fn RefreshFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRefresh = fn
}

// Load fetches the catalog and, with a player selected, their prizes
func (b *PrizeBoard) Load(ctx context.Context, creds domain.Credentials, playerRef string) PrizeSnapshot {
	epoch := b.slot.begin()
	snap := PrizeSnapshot{
		PlayerRef: playerRef,
		Prizes:    []domain.Prize{},
		Claimed:   []domain.HistoryRow{},
	}

	var catalogErr, playerErr error
	parallel(
		func() {
			raw, err := b.client.ListPrizes(ctx, creds)
			if catalogErr = err; err == nil {
				snap.Prizes = normalize.Prizes(raw)
			}
		},
		func() {
			if playerRef == "" {
				return
			}
			raw, err := b.client.PlayerPrizes(ctx, creds, playerRef)
			if playerErr = err; err == nil {
				snap.Claimed = normalize.HistoryRows(raw, domain.ResourcePrizes)
			}
		},
	)

	snap.Error = b.reader.fail(ctx, catalogErr, playerErr)
	b.slot.commit(epoch, snap)
	return snap
}

// Snapshot returns the last loaded snapshot
func (b *PrizeBoard) Snapshot() PrizeSnapshot {
	return b.slot.get()
}

// Claim claims prizeID for the player. The board is refetched whatever the
// outcome; a success also runs the refresh hook.
func (b *PrizeBoard) Claim(ctx context.Context, creds domain.Credentials, prizeID, playerRef string) error {
	if playerRef == "" {
		return domain.ErrNoPlayerSelected
	}
	if prizeID == "" {
		return fmt.Errorf("%w: prize id is required", domain.ErrInvalidRequest)
	}

	_, err := b.client.ClaimPrize(ctx, creds, prizeID, playerRef)
	if err != nil {
		b.reader.logger.Warn("prize claim failed", "prize_id", prizeID, "player_ref", playerRef, "error", err)
	}
	b.reader.mutate(err, "Prize claimed")

	b.Load(ctx, creds, playerRef)

	if err != nil {
		return fmt.Errorf("claiming prize: %w", err)
	}
	b.reader.logger.Info("prize claimed", "prize_id", prizeID, "player_ref", playerRef)

	b.mu.Lock()
	refresh := b.onRefresh
	b.mu.Unlock()
	if refresh != nil {
		refresh(ctx)
	}
	return nil
}
