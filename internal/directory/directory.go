// Package directory maintains the player and team lists of the active
// account.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/player-console/internal/credentials"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/upstream"
)

// Listing is the result of a directory load
type Listing struct {
	Players []domain.Player   `json:"players"`
	Teams   map[string]string `json:"teams"`
}

// Directory fetches and caches the account's players and teams
type Directory struct {
	client   *upstream.Client
	store    *credentials.Store
	notifier notify.Notifier
	logger   *slog.Logger

	mu      sync.RWMutex
	players []domain.Player
	teams   map[string]string
}

// New creates a player directory
func New(client *upstream.Client, store *credentials.Store, notifier notify.Notifier, logger *slog.Logger) *Directory {
	return &Directory{
		client:   client,
		store:    store,
		notifier: notifier,
		logger:   logger,
		players:  []domain.Player{},
		teams:    map[string]string{},
	}
}

// Load fetches players and teams. Players and teams are independent: a
// team failure leaves the player list intact, while a player failure
// yields an empty player list. Incomplete credentials return empty
// collections without a network call.
func (d *Directory) Load(ctx context.Context, creds domain.Credentials) Listing {
	listing := Listing{Players: []domain.Player{}, Teams: map[string]string{}}
	if !creds.Complete() {
		d.replace(listing)
		return listing
	}

	var (
		wg        sync.WaitGroup
		playerErr error
		teamErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, err := d.client.ListPlayers(ctx, creds)
		if err != nil {
			playerErr = err
			return
		}
		listing.Players = normalize.Players(raw)
	}()
	go func() {
		defer wg.Done()
		raw, err := d.client.ListTeams(ctx, creds)
		if err != nil {
			teamErr = err
			return
		}
		listing.Teams = normalize.TeamMap(normalize.Teams(raw))
	}()
	wg.Wait()

	if playerErr != nil {
		listing.Players = []domain.Player{}
		d.logger.Warn("failed to load players", "account", creds.Account, "error", playerErr)
		if errors.Is(playerErr, domain.ErrUnauthorized) {
			d.notifier.Notify(notify.KindError, domain.ErrUnauthorized.Error())
		} else {
			d.notifier.Notify(notify.KindError, "Failed to load players: "+domain.UserMessage(playerErr))
		}
	}
	if teamErr != nil {
		// Team names are cosmetic; the player list is still shown.
		d.logger.Warn("failed to load teams", "account", creds.Account, "error", teamErr)
	}

	d.replace(listing)
	return listing
}

func (d *Directory) replace(listing Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.players = listing.Players
	d.teams = listing.Teams
}

// CreatePlayer creates a player after confirming the id is free. It
// requires stored credentials, not merely present ones.
func (d *Directory) CreatePlayer(ctx context.Context, input domain.NewPlayer) (domain.Player, error) {
	p, err := d.createPlayer(ctx, input)
	if err != nil {
		d.notifier.Notify(notify.KindError, domain.UserMessage(err))
		return domain.Player{}, err
	}
	d.notifier.Notify(notify.KindSuccess, fmt.Sprintf("Player %s created", p.Name))
	return p, nil
}

func (d *Directory) createPlayer(ctx context.Context, input domain.NewPlayer) (domain.Player, error) {
	if !d.store.Stored() {
		return domain.Player{}, domain.ErrCredentialsNotStored
	}
	creds := d.store.Get()
	if !creds.Complete() {
		return domain.Player{}, domain.ErrMissingCredentials
	}
	if input.ID == "" || input.Name == "" {
		return domain.Player{}, domain.ErrInvalidRequest
	}

	_, err := d.client.GetPlayer(ctx, creds, input.ID)
	switch {
	case err == nil:
		return domain.Player{}, domain.ErrAlreadyExists
	case domain.IsNotFoundError(err):
		// free to create
	default:
		return domain.Player{}, fmt.Errorf("%w: %v", domain.ErrProbeFailed, domain.UserMessage(err))
	}

	raw, err := d.client.CreatePlayer(ctx, creds, input)
	if err != nil {
		return domain.Player{}, fmt.Errorf("creating player: %w", err)
	}
	created := normalize.CreatedPlayer(raw, input)

	d.mu.Lock()
	d.players = append(d.players, created)
	d.mu.Unlock()

	d.logger.Info("player created", "account", creds.Account, "player_ref", created.PlayerRef)

	// Reload for server-side canonical fields
	d.Load(ctx, creds)
	return created, nil
}

// Players returns the current player list
func (d *Directory) Players() []domain.Player {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Player, len(d.players))
	copy(out, d.players)
	return out
}

// Teams returns a copy of the team map
func (d *Directory) Teams() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.teams))
	for k, v := range d.teams {
		out[k] = v
	}
	return out
}

// TeamName resolves a team id to its display name
func (d *Directory) TeamName(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.teams[id]
}

// Find returns the player with the given ref
func (d *Directory) Find(ref string) (domain.Player, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.players {
		if p.PlayerRef == ref {
			return p, true
		}
	}
	return domain.Player{}, false
}
