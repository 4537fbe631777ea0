package console

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/player-console/internal/boards"
	"github.com/player-console/internal/config"
	"github.com/player-console/internal/credentials"
	"github.com/player-console/internal/directory"
	"github.com/player-console/internal/domain"
	"github.com/player-console/internal/history"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/profile"
	"github.com/player-console/internal/quiz"
	"github.com/player-console/internal/upstream/upstreamtest"
)

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	testCreds  = domain.Credentials{Account: "acme", APIKey: "k1"}
)

type memorySink struct {
	mu      sync.Mutex
	records []domain.ActionRecord
}

func (s *memorySink) RecordAction(_ context.Context, rec domain.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) all() []domain.ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ActionRecord(nil), s.records...)
}

type harness struct {
	console  *Console
	srv      *upstreamtest.Server
	notes    *notify.Recorder
	sink     *memorySink
	backend  *credentials.MemoryBackend
	profiles chan domain.PlayerProfile

	// profileHook runs before a published profile is queued. Set it before
	// starting concurrent work.
	profileHook func(ref string)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := upstreamtest.New(t)
	client := srv.Client()
	backend := credentials.NewMemoryBackend(nil)
	store, err := credentials.Open(context.Background(), backend, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		srv:      srv,
		notes:    &notify.Recorder{},
		sink:     &memorySink{},
		backend:  backend,
		profiles: make(chan domain.PlayerProfile, 16),
	}
	cfg := &config.UpstreamConfig{LeaderboardID: "main"}
	h.console = New(Deps{
		Client:       client,
		Store:        store,
		Directory:    directory.New(client, store, h.notes, testLogger),
		Profiles:     profile.NewAggregator(client, testLogger),
		History:      history.NewAggregator(client, h.notes, testLogger),
		Boards:       boards.NewSet(client, cfg, h.notes, testLogger),
		Quiz:         quiz.NewEngine(client, h.notes, testLogger),
		Notifier:     h.notes,
		Sink:         h.sink,
		OnProfile: func(ref string, p domain.PlayerProfile) {
			if h.profileHook != nil {
				h.profileHook(ref)
			}
			select {
			case h.profiles <- p:
			default:
			}
		},
		PollInterval: time.Hour,
	}, testLogger)
	t.Cleanup(h.console.Close)

	srv.Handle(http.MethodGet, "/players", http.StatusOK, `[{"id":"p1","name":"Ann","player":"p1"},{"id":"p2","name":"Bo","player":"p2"}]`)
	srv.Handle(http.MethodGet, "/teams", http.StatusOK, `[]`)
	srv.Handle(http.MethodGet, "/players/p1", http.StatusOK, `{"id":"p1","name":"Ann","player":"p1"}`)
	srv.Handle(http.MethodGet, "/players/p1/missions", http.StatusOK, `[]`)
	srv.Handle(http.MethodGet, "/players/p2", http.StatusOK, `{"id":"p2","name":"Bo","player":"p2","points":12}`)
	srv.Handle(http.MethodGet, "/players/p2/missions", http.StatusOK, `[]`)
	return h
}

func (h *harness) storeCredentials(t *testing.T) {
	t.Helper()
	if err := h.console.StoreCredentials(context.Background(), testCreds); err != nil {
		t.Fatalf("StoreCredentials() error = %v", err)
	}
}

func TestSelectIssuesExactlyTwoCalls(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	if got := len(h.console.Snapshot().Players); got != 2 {
		t.Fatalf("players = %d, want 2", got)
	}
	h.srv.Reset()

	if err := h.console.Select(context.Background(), "p1"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	calls := h.srv.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v, want 2", calls)
	}
	if h.srv.CallCount(http.MethodGet, "/players/p1") != 1 || h.srv.CallCount(http.MethodGet, "/players/p1/missions") != 1 {
		t.Errorf("calls = %+v, want player detail and player missions", calls)
	}

	p, ok := h.console.Profile()
	if !ok {
		t.Fatal("no profile after select")
	}
	if p.Name != "Ann" || p.Level.Name != domain.DefaultLevelName || p.Points != 0 || p.Credits != 0 || p.TeamName != "" {
		t.Errorf("profile = %+v", p)
	}
	if got := h.console.Snapshot(); got.Selected != "p1" || !got.Polling {
		t.Errorf("snapshot = %+v", got)
	}
	select {
	case p := <-h.profiles:
		if p.PlayerRef != "p1" {
			t.Errorf("published profile = %+v", p)
		}
	default:
		t.Error("selected profile was not published")
	}
}

func TestSelectPersistsLastPlayer(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p1")

	fields, _ := h.backend.Load(context.Background())
	if fields[credentials.FieldLastPlayer] != "p1" {
		t.Errorf("last player = %q, want p1", fields[credentials.FieldLastPlayer])
	}

	h.console.Clear(context.Background())
	fields, _ = h.backend.Load(context.Background())
	if fields[credentials.FieldLastPlayer] != "" {
		t.Errorf("last player = %q after clear", fields[credentials.FieldLastPlayer])
	}
	snap := h.console.Snapshot()
	if snap.Selected != "" || snap.Profile != nil || snap.Polling {
		t.Errorf("snapshot after clear = %+v", snap)
	}
}

func TestSelectWithoutCredentialsSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	if err := h.console.Select(context.Background(), "p1"); !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("Select() error = %v", err)
	}
	if n := len(h.srv.Calls()); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestStaleHistoryIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	if err := h.console.Select(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	defer close(gate)
	h.srv.HandleFunc(http.MethodGet, "/players/p1/achievements",
		upstreamtest.Gated(gate, http.StatusOK, `[{"id":"a1","name":"Early bird"}]`))
	h.srv.Handle(http.MethodGet, "/players/p1/prizes", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodGet, "/quizzes", http.StatusOK, `[]`)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.console.RefreshHistory(context.Background())
		errCh <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.srv.CallCount(http.MethodGet, "/players/p1/achievements") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("history request never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := h.console.Select(context.Background(), "p2"); err != nil {
		t.Fatalf("Select(p2) error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("RefreshHistory() error = %v, want ErrInvalidState", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history fetch for p1 never returned")
	}

	if hist, ok := h.console.History(); ok {
		t.Errorf("p1 history applied to p2: %+v", hist)
	}
	for _, n := range h.notes.All() {
		if strings.HasPrefix(n.Message, "Failed to load") {
			t.Errorf("stale fetch notified: %v", n)
		}
	}
	if p, _ := h.console.Profile(); p.PlayerRef != "p2" || p.Points != 12 {
		t.Errorf("profile = %+v, want p2", p)
	}
}

func TestPollDiscardedAfterSelectionChange(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p1")
	h.console.Select(context.Background(), "p2")

	if h.console.applyPoll("p1", domain.PlayerProfile{Points: 99}) {
		t.Error("poll for p1 applied while p2 is selected")
	}
	if !h.console.applyPoll("p2", domain.PlayerProfile{Points: 30, Name: "ignored"}) {
		t.Fatal("poll for p2 rejected")
	}
	p, _ := h.console.Profile()
	if p.Points != 30 || p.Name != "Bo" {
		t.Errorf("profile = %+v, want merged points and original name", p)
	}
}

func TestClaimPrizeRefreshesAndRecords(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p1")
	h.srv.Handle(http.MethodGet, "/prizes", http.StatusOK, `[{"id":"z1","name":"Mug"}]`)
	h.srv.Handle(http.MethodGet, "/players/p1/prizes", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodGet, "/players/p1/achievements", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodGet, "/quizzes", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodPost, "/prizes/z1/claim", http.StatusOK, `{}`)
	h.srv.Reset()

	if err := h.console.ClaimPrize(context.Background(), "z1"); err != nil {
		t.Fatalf("ClaimPrize() error = %v", err)
	}
	if n := h.srv.CallCount(http.MethodGet, "/players/p1"); n != 1 {
		t.Errorf("profile refetches = %d, want 1", n)
	}
	if _, ok := h.console.History(); !ok {
		t.Error("history not refreshed after claim")
	}

	var claim *domain.ActionRecord
	for _, rec := range h.sink.all() {
		if rec.Kind == domain.ActionPrizeClaimed {
			rec := rec
			claim = &rec
		}
	}
	if claim == nil || !claim.Succeeded || claim.TargetID != "z1" || claim.PlayerRef != "p1" || claim.Account != "acme" {
		t.Errorf("claim record = %+v", claim)
	}
}

func TestClaimPrizeWithoutSelection(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	if err := h.console.ClaimPrize(context.Background(), "z1"); !errors.Is(err, domain.ErrNoPlayerSelected) {
		t.Errorf("ClaimPrize() error = %v", err)
	}
	for _, rec := range h.sink.all() {
		if rec.Kind == domain.ActionPrizeClaimed {
			t.Errorf("local failure recorded: %+v", rec)
		}
	}
}

func TestQuizSubmissionRefreshesProfile(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p1")
	h.srv.Handle(http.MethodPost, "/quizzes/qz/start", http.StatusOK,
		`{"questions":[{"id":"q1","text":"?","choices":[{"id":"c1","label":"yes"}]}]}`)
	h.srv.Handle(http.MethodPost, "/quizzes/qz/complete", http.StatusOK, `{"message":"Recorded"}`)
	h.srv.Handle(http.MethodGet, "/players/p1/achievements", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodGet, "/players/p1/prizes", http.StatusOK, `[]`)
	h.srv.Handle(http.MethodGet, "/quizzes", http.StatusOK, `[]`)

	if err := h.console.StartQuiz(context.Background(), "qz"); err != nil {
		t.Fatalf("StartQuiz() error = %v", err)
	}
	if err := h.console.AnswerQuiz("q1", "c1"); err != nil {
		t.Fatal(err)
	}
	h.srv.Reset()

	feedback, err := h.console.SubmitQuiz(context.Background())
	if err != nil {
		t.Fatalf("SubmitQuiz() error = %v", err)
	}
	if feedback.Message != "Recorded" {
		t.Errorf("feedback = %+v", feedback)
	}
	if n := h.srv.CallCount(http.MethodGet, "/players/p1"); n != 1 {
		t.Errorf("profile refetches = %d, want 1", n)
	}
	if got := h.console.Quiz().State; got != quiz.StateIdle {
		t.Errorf("quiz state = %s, want idle", got)
	}

	recorded := false
	for _, rec := range h.sink.all() {
		if rec.Kind == domain.ActionQuizSubmitted && rec.TargetID == "qz" && rec.Succeeded {
			recorded = true
		}
	}
	if !recorded {
		t.Errorf("records = %+v", h.sink.all())
	}
}

func TestSelectResetsQuiz(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p1")
	h.srv.Handle(http.MethodPost, "/quizzes/qz/start", http.StatusOK,
		`{"questions":[{"id":"q1","text":"?","choices":[{"id":"c1","label":"yes"}]}]}`)
	if err := h.console.StartQuiz(context.Background(), "qz"); err != nil {
		t.Fatal(err)
	}

	h.console.Select(context.Background(), "p2")
	if got := h.console.Quiz().State; got != quiz.StateIdle {
		t.Errorf("quiz state = %s, want idle", got)
	}
}

func TestRestoreReselectsLastPlayer(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)
	h.console.Select(context.Background(), "p2")

	store, err := credentials.Open(context.Background(), h.backend, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	client := h.srv.Client()
	restored := New(Deps{
		Client:       client,
		Store:        store,
		Directory:    directory.New(client, store, notify.Discard, testLogger),
		Profiles:     profile.NewAggregator(client, testLogger),
		History:      history.NewAggregator(client, notify.Discard, testLogger),
		Boards:       boards.NewSet(client, &config.UpstreamConfig{}, notify.Discard, testLogger),
		Quiz:         quiz.NewEngine(client, notify.Discard, testLogger),
		PollInterval: time.Hour,
	}, testLogger)
	defer restored.Close()

	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got := restored.Selected(); got != "p2" {
		t.Errorf("Selected() = %q, want p2", got)
	}
}

func TestStoreCredentialsRecordsAction(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)

	recs := h.sink.all()
	if len(recs) != 1 || recs[0].Kind != domain.ActionCredentialsStored || !recs[0].Succeeded || recs[0].ID == "" {
		t.Errorf("records = %+v", recs)
	}
	if !h.console.Snapshot().Credentials.Stored {
		t.Error("credentials not marked stored")
	}

	h.console.EditCredentials(domain.Credentials{Account: "acme", APIKey: "k2"})
	if h.console.Snapshot().Credentials.Stored {
		t.Error("edit kept the stored flag")
	}
}

func TestSupersededSelectDoesNotStartPolling(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.profileHook = func(ref string) {
		if ref == "p1" {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}

	first := make(chan error, 1)
	go func() { first <- h.console.Select(context.Background(), "p1") }()
	<-entered

	// p2 completes while p1 sits between its stale check and polling start
	if err := h.console.Select(context.Background(), "p2"); err != nil {
		t.Fatalf("Select(p2) error = %v", err)
	}
	close(release)

	if err := <-first; !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Select(p1) error = %v, want ErrInvalidState", err)
	}
	ref, active := h.console.poller.Active()
	if h.console.Selected() != "p2" || ref != "p2" || !active {
		t.Errorf("selected = %q, polling %q (active %v), want p2 polled", h.console.Selected(), ref, active)
	}
	if p, ok := h.console.Profile(); !ok || p.PlayerRef != "p2" {
		t.Errorf("profile = %+v, want p2", p)
	}
}

func TestConsoleResolvesWatchablePlayers(t *testing.T) {
	h := newHarness(t)
	h.storeCredentials(t)

	if !h.console.KnownPlayer("p1") || h.console.KnownPlayer("ghost") {
		t.Error("KnownPlayer() does not follow the directory")
	}
	if _, ok := h.console.CurrentProfile("p1"); ok {
		t.Error("CurrentProfile(p1) before selection")
	}
	if err := h.console.Select(context.Background(), "p2"); err != nil {
		t.Fatal(err)
	}
	if p, ok := h.console.CurrentProfile("p2"); !ok || p.Points != 12 {
		t.Errorf("CurrentProfile(p2) = %+v, %v", p, ok)
	}
	if _, ok := h.console.CurrentProfile("p1"); ok {
		t.Error("CurrentProfile(p1) while p2 is selected")
	}
}
