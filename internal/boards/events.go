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

// EventSnapshot is the account's event list
type EventSnapshot struct {
	Events []domain.Event `json:"events"`
	Error  string         `json:"error,omitempty"`
}

// EventBoard lists events and completes them for a player
type EventBoard struct {
	client *upstream.Client
	reader reader
	slot   slot[EventSnapshot]

	mu        sync.Mutex
	onRefresh RefreshFunc
}

// NewEventBoard creates an event board
func NewEventBoard(client *upstream.Client, notifier notify.Notifier, logger *slog.Logger) *EventBoard {
	return &EventBoard{
		client: client,
		reader: reader{board: NameEvents, notifier: notifier, logger: logger},
	}
}

// OnRefresh sets the hook run after a successful completion
func (b *EventBoard) OnRefresh(fn RefreshFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRefresh = fn
}

// Load fetches the event list
func (b *EventBoard) Load(ctx context.Context, creds domain.Credentials) EventSnapshot {
	epoch := b.slot.begin()
	snap := EventSnapshot{Events: []domain.Event{}}

	raw, err := b.client.ListEvents(ctx, creds)
	if err == nil {
		snap.Events = normalize.Events(raw)
	}
	snap.Error = b.reader.fail(ctx, err)
	b.slot.commit(epoch, snap)
	return snap
}

// Snapshot returns the last loaded snapshot
func (b *EventBoard) Snapshot() EventSnapshot {
	return b.slot.get()
}

// Complete records eventID for the player and runs the refresh hook on
// success
func (b *EventBoard) Complete(ctx context.Context, creds domain.Credentials, eventID, playerRef string) error {
	if playerRef == "" {
		return domain.ErrNoPlayerSelected
	}
	if eventID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidRequest)
	}

	_, err := b.client.CompleteEvent(ctx, creds, eventID, playerRef)
	if err != nil {
		b.reader.logger.Warn("event completion failed", "event_id", eventID, "player_ref", playerRef, "error", err)
		b.reader.mutate(err, "")
		return fmt.Errorf("completing event: %w", err)
	}
	b.reader.logger.Info("event completed", "event_id", eventID, "player_ref", playerRef)
	b.reader.mutate(nil, "Event completed")

	b.mu.Lock()
	refresh := b.onRefresh
	b.mu.Unlock()
	if refresh != nil {
		refresh(ctx)
	}
	return nil
}
