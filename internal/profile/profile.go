// Package profile loads the selected player's profile and keeps its
// progress fields current.
package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/upstream"
)

// Aggregator builds player profiles from the upstream player and team
// records
type Aggregator struct {
	client *upstream.Client
	logger *slog.Logger
}

// NewAggregator creates a profile aggregator
func NewAggregator(client *upstream.Client, logger *slog.Logger) *Aggregator {
	return &Aggregator{client: client, logger: logger}
}

// Load fetches the player and splices in the team name. Missing optional
// fields take their defaults; only transport and auth failures return an
// error. A failed team lookup leaves TeamName empty.
func (a *Aggregator) Load(ctx context.Context, creds domain.Credentials, ref string) (domain.PlayerProfile, error) {
	p, err := a.Progress(ctx, creds, ref)
	if err != nil {
		return domain.PlayerProfile{}, err
	}

	if p.TeamID != "" {
		raw, err := a.client.GetTeam(ctx, creds, p.TeamID)
		if err != nil {
			a.logger.Debug("team lookup failed", "player_ref", ref, "team_id", p.TeamID, "error", err)
		} else {
			p.TeamName = normalize.Team(raw).Name
		}
	}
	return p, nil
}

// Progress fetches the bare player record without the team lookup
func (a *Aggregator) Progress(ctx context.Context, creds domain.Credentials, ref string) (domain.PlayerProfile, error) {
	raw, err := a.client.GetPlayer(ctx, creds, ref)
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("getting player %s: %w", ref, err)
	}
	return normalize.Profile(raw, ref), nil
}
