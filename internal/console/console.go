// Package console is the operator session: it owns the selected player and
// coordinates the directory, profile, history, boards and quiz engine.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/player-console/internal/boards"
	"github.com/player-console/internal/credentials"
	"github.com/player-console/internal/directory"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/history"
	"github.com/player-console/internal/normalize"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/profile"
	"github.com/player-console/internal/quiz"
	"github.com/player-console/internal/upstream"
)

// ProfileFunc receives every profile applied to the selection
type ProfileFunc func(playerRef string, p domain.PlayerProfile)

// Deps are the collaborators of a console
type Deps struct {
	Client       *upstream.Client
	Store        *credentials.Store
	Directory    *directory.Directory
	Profiles     *profile.Aggregator
	History      *history.Aggregator
	Boards       *boards.Set
	Quiz         *quiz.Engine
	Notifier     notify.Notifier
	Sink         ActionSink
	OnProfile    ProfileFunc
	PollInterval time.Duration
}

// Console is one operator session
type Console struct {
	client    *upstream.Client
	store     *credentials.Store
	directory *directory.Directory
	profiles  *profile.Aggregator
	history   *history.Aggregator
	boards    *boards.Set
	quiz      *quiz.Engine
	poller    *profile.Poller
	notifier  notify.Notifier
	sink      ActionSink
	onProfile ProfileFunc
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
	selected   string
	selCtx     context.Context
	selCancel  context.CancelFunc
	profile    *domain.PlayerProfile
	missions   []domain.HistoryRow
	hist       *domain.History
}

// New creates a console and wires the refresh hooks of the boards and the
// quiz engine back into it
func New(deps Deps, logger *slog.Logger) *Console {
	c := &Console{
		client:    deps.Client,
		store:     deps.Store,
		directory: deps.Directory,
		profiles:  deps.Profiles,
		history:   deps.History,
		boards:    deps.Boards,
		quiz:      deps.Quiz,
		notifier:  deps.Notifier,
		sink:      deps.Sink,
		onProfile: deps.OnProfile,
		logger:    logger,
	}
	if c.notifier == nil {
		c.notifier = notify.Discard
	}
	c.selCtx, c.selCancel = context.WithCancel(context.Background())
	c.poller = profile.NewPoller(deps.PollInterval, c.pollProfile, c.applyPoll, logger)

	c.boards.OnRefresh(c.Refresh)
	c.quiz.OnCompleted(func(ctx context.Context, _ string, _ domain.QuizFeedback) {
		c.Refresh(ctx)
	})
	return c
}

// selection captures the active player at dispatch time
type selection struct {
	generation uint64
	ref        string
	ctx        context.Context
}

func (c *Console) current() selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return selection{generation: c.generation, ref: c.selected, ctx: c.selCtx}
}

// scoped derives a context from ctx that is also cancelled when the
// selection changes
func scoped(ctx context.Context, sel selection) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(sel.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// stillSelected reports whether sel is the active selection. Callers hold mu.
func (c *Console) stillSelected(sel selection) bool {
	return c.generation == sel.generation
}

// begin switches the selection to ref and cancels work for the previous one
func (c *Console) begin(ref string) selection {
	c.mu.Lock()
	c.generation++
	c.selCancel()
	c.selCtx, c.selCancel = context.WithCancel(context.Background())
	c.selected = ref
	c.profile = nil
	c.missions = nil
	c.hist = nil
	sel := selection{generation: c.generation, ref: ref, ctx: c.selCtx}
	c.mu.Unlock()

	// Stopping waits for an in-flight tick whose apply takes mu.
	c.poller.Stop(sel.generation)
	c.boards.ResetPlayer()
	c.quiz.Reset()
	return sel
}

// Select makes ref the active player: it persists the choice, loads the
// profile and the player's missions, then starts polling. Results for a
// selection that was replaced in the meantime are dropped.
func (c *Console) Select(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: player ref is required", domain.ErrInvalidRequest)
	}
	sel := c.begin(ref)

	if err := c.store.SetLastPlayer(ctx, ref); err != nil {
		c.logger.Warn("failed to persist last player", "player_ref", ref, "error", err)
	}

	creds := c.store.Get()
	if !creds.Complete() {
		return domain.ErrMissingCredentials
	}

	ctx, cancel := scoped(ctx, sel)
	defer cancel()

	var (
		p           domain.PlayerProfile
		profileErr  error
		missionsRaw []byte
		missionsErr error
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		p, profileErr = c.profiles.Load(ctx, creds, ref)
	}()
	go func() {
		defer wg.Done()
		missionsRaw, missionsErr = c.client.PlayerMissions(ctx, creds, ref)
	}()
	wg.Wait()

	c.mu.Lock()
	if !c.stillSelected(sel) {
		c.mu.Unlock()
		c.logger.Debug("discarded stale selection", "player_ref", ref)
		return fmt.Errorf("%w: selection changed", domain.ErrInvalidState)
	}
	if missionsErr == nil {
		c.missions = normalize.HistoryRows(missionsRaw, domain.ResourceMissions)
	}
	if profileErr == nil {
		c.profile = &p
	}
	c.mu.Unlock()

	if missionsErr != nil {
		c.logger.Warn("player missions fetch failed", "player_ref", ref, "error", missionsErr)
		c.notifier.Notify(notify.KindError, "Failed to load missions: "+domain.UserMessage(missionsErr))
	}
	if profileErr != nil {
		c.logger.Warn("profile load failed", "player_ref", ref, "error", profileErr)
		c.notifier.Notify(notify.KindError, "Failed to load player: "+domain.UserMessage(profileErr))
		return profileErr
	}

	c.publishProfile(ref, p)
	if !c.poller.Start(sel.generation, ref) {
		c.logger.Debug("selection replaced before polling started", "player_ref", ref)
		return fmt.Errorf("%w: selection changed", domain.ErrInvalidState)
	}
	c.logger.Info("player selected", "player_ref", ref)
	return nil
}

// Restore reselects the persisted last player, if any
func (c *Console) Restore(ctx context.Context) error {
	ref := c.store.LastPlayer()
	if ref == "" || !c.store.Get().Complete() {
		return nil
	}
	return c.Select(ctx, ref)
}

// Clear drops the selection with its profile and history and stops polling
func (c *Console) Clear(ctx context.Context) {
	c.begin("")
	if err := c.store.SetLastPlayer(ctx, ""); err != nil {
		c.logger.Warn("failed to clear last player", "error", err)
	}
	c.logger.Info("selection cleared")
}

// Selected returns the active player ref
func (c *Console) Selected() string {
	return c.current().ref
}

// RefreshHistory reloads the selected player's history. A result that
// arrives after the selection changed is discarded.
func (c *Console) RefreshHistory(ctx context.Context) (domain.History, error) {
	sel := c.current()
	if sel.ref == "" {
		return domain.History{}, domain.ErrNoPlayerSelected
	}
	creds := c.store.Get()
	if !creds.Complete() {
		return domain.History{}, domain.ErrMissingCredentials
	}

	ctx, cancel := scoped(ctx, sel)
	defer cancel()
	h := c.history.Load(ctx, creds, sel.ref)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stillSelected(sel) {
		c.logger.Debug("discarded stale history", "player_ref", sel.ref)
		return domain.History{}, fmt.Errorf("%w: selection changed", domain.ErrInvalidState)
	}
	c.hist = &h
	return h, nil
}

// RefreshProfile reloads the full profile of the selected player
func (c *Console) RefreshProfile(ctx context.Context) (domain.PlayerProfile, error) {
	sel := c.current()
	if sel.ref == "" {
		return domain.PlayerProfile{}, domain.ErrNoPlayerSelected
	}
	creds := c.store.Get()
	if !creds.Complete() {
		return domain.PlayerProfile{}, domain.ErrMissingCredentials
	}

	ctx, cancel := scoped(ctx, sel)
	defer cancel()
	p, err := c.profiles.Load(ctx, creds, sel.ref)

	c.mu.Lock()
	if !c.stillSelected(sel) {
		c.mu.Unlock()
		return domain.PlayerProfile{}, fmt.Errorf("%w: selection changed", domain.ErrInvalidState)
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("profile refresh failed", "player_ref", sel.ref, "error", err)
		c.notifier.Notify(notify.KindError, "Failed to load player: "+domain.UserMessage(err))
		return domain.PlayerProfile{}, err
	}
	c.profile = &p
	c.mu.Unlock()

	c.publishProfile(sel.ref, p)
	return p, nil
}

// Refresh resynchronizes profile and history after a mutating action
func (c *Console) Refresh(ctx context.Context) {
	if c.Selected() == "" {
		return
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshHistory(ctx)
	}()
	wg.Wait()
}

func (c *Console) pollProfile(ctx context.Context, ref string) (domain.PlayerProfile, error) {
	return c.profiles.Progress(ctx, c.store.Get(), ref)
}

// applyPoll merges polled progress into the active profile
func (c *Console) applyPoll(ref string, latest domain.PlayerProfile) bool {
	c.mu.Lock()
	if c.selected != ref || c.profile == nil {
		c.mu.Unlock()
		return false
	}
	c.profile.MergeProgress(latest)
	merged := *c.profile
	c.mu.Unlock()

	c.publishProfile(ref, merged)
	return true
}

func (c *Console) publishProfile(ref string, p domain.PlayerProfile) {
	if c.onProfile != nil {
		c.onProfile(ref, p)
	}
}

// KnownPlayer reports whether ref is in the directory or is the selection
func (c *Console) KnownPlayer(ref string) bool {
	if _, ok := c.directory.Find(ref); ok {
		return true
	}
	return ref != "" && c.Selected() == ref
}

// CurrentProfile returns the loaded profile when ref is the selected player
func (c *Console) CurrentProfile(ref string) (domain.PlayerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil || c.selected != ref {
		return domain.PlayerProfile{}, false
	}
	return *c.profile, true
}

// Activate fetches a board for the current selection
func (c *Console) Activate(ctx context.Context, name string) (any, error) {
	board, err := boards.ParseName(name)
	if err != nil {
		return nil, err
	}
	creds := c.store.Get()
	if !creds.Complete() {
		return nil, domain.ErrMissingCredentials
	}
	sel := c.current()
	ctx, cancel := scoped(ctx, sel)
	defer cancel()
	return c.boards.Activate(ctx, board, creds, sel.ref)
}

// Board returns a board's last snapshot without fetching
func (c *Console) Board(name string) (any, error) {
	board, err := boards.ParseName(name)
	if err != nil {
		return nil, err
	}
	return c.boards.Snapshot(board)
}

// LoadDirectory reloads the player and team lists
func (c *Console) LoadDirectory(ctx context.Context) directory.Listing {
	return c.directory.Load(ctx, c.store.Get())
}

// CredentialsView is the credential state shown to the operator. The api
// key is never echoed back.
type CredentialsView struct {
	Account   string `json:"account"`
	HasAPIKey bool   `json:"has_api_key"`
	Stored    bool   `json:"stored"`
}

// Snapshot is the read model of the whole session
type Snapshot struct {
	Credentials CredentialsView       `json:"credentials"`
	Players     []domain.Player       `json:"players"`
	Teams       map[string]string     `json:"teams"`
	Selected    string                `json:"selected,omitempty"`
	Profile     *domain.PlayerProfile `json:"profile,omitempty"`
	Missions    []domain.HistoryRow   `json:"missions,omitempty"`
	History     *domain.History       `json:"history,omitempty"`
	Quiz        quiz.View             `json:"quiz"`
	Polling     bool                  `json:"polling"`
}

// Snapshot returns a copy of the session state
func (c *Console) Snapshot() Snapshot {
	creds := c.store.Get()
	_, polling := c.poller.Active()
	s := Snapshot{
		Credentials: CredentialsView{
			Account:   creds.Account,
			HasAPIKey: creds.APIKey != "",
			Stored:    c.store.Stored(),
		},
		Players: c.directory.Players(),
		Teams:   c.directory.Teams(),
		Quiz:    c.quiz.View(),
		Polling: polling,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s.Selected = c.selected
	if c.profile != nil {
		p := *c.profile
		s.Profile = &p
	}
	if c.missions != nil {
		s.Missions = append([]domain.HistoryRow(nil), c.missions...)
	}
	if c.hist != nil {
		h := *c.hist
		s.History = &h
	}
	return s
}

// Profile returns the selected player's profile
func (c *Console) Profile() (domain.PlayerProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profile == nil {
		return domain.PlayerProfile{}, false
	}
	return *c.profile, true
}

// History returns the selected player's last loaded history
func (c *Console) History() (domain.History, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hist == nil {
		return domain.History{}, false
	}
	return *c.hist, true
}

// Close stops polling and cancels work for the selection
func (c *Console) Close() {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.selCancel()
	c.mu.Unlock()
	c.poller.Stop(gen)
}
